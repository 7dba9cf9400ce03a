// Package parser turns recognized document text into typed field records.
//
// Every field is an independent pattern scan over the same text. A pattern
// that does not match leaves the field nil, which marshals as JSON null; no
// parser ever returns an error.
package parser

// LabeledIDRecord holds the fields of a national ID with English labels.
type LabeledIDRecord struct {
	Name         *string `json:"Name"`
	DateOfBirth  *string `json:"DateOfBirth"`
	Sex          *string `json:"Sex"`
	IDNumber     *string `json:"IDNumber"`
	ExpiryDate   *string `json:"ExpiryDate"`
	IssuingDate  *string `json:"IssuingDate"`
	Occupation   *string `json:"Occupation"`
	Employer     *string `json:"Employer"`
	IssuingPlace *string `json:"IssuingPlace"`
}

// PassportRecord holds the fields read from a passport machine-readable zone.
type PassportRecord struct {
	IDNumber    *string `json:"IDNumber"`
	DateOfBirth *string `json:"DateOfBirth"`
	Name        *string `json:"Name"`
	Sex         *string `json:"Sex"`
	ExpiryDate  *string `json:"ExpiryDate"`
}

// ArabicRegionsRecord holds the fields read from the calibrated regions of an
// Arabic-layout national ID. Name is the raw text of the name region.
type ArabicRegionsRecord struct {
	IDNumber    *string `json:"IDNumber"`
	DateOfBirth *string `json:"DateOfBirth"`
	Name        *string `json:"Name"`
	ArabicName  *string `json:"ArabicName"`
}

// ArabicTextRecord is the full-page text form of an Arabic-layout result.
// ExtractedData is always null.
type ArabicTextRecord struct {
	ExtractedData *struct{} `json:"extracted_data"`
	ArabicText    string    `json:"arabic_text"`
}

// LabeledIDEnvelope nests the labeled record under extracted_data.
type LabeledIDEnvelope struct {
	ExtractedData LabeledIDRecord `json:"extracted_data"`
}

func ptr(s string) *string { return &s }

// Value dereferences an optional field, returning "" when absent.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
