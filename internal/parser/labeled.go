package parser

import (
	"regexp"
	"strings"
	"time"
)

var (
	labeledNameRe         = regexp.MustCompile(`Name:\s*(.*)`)
	labeledDOBRe          = regexp.MustCompile(`Date of Birth:\s*(\d{2}/\d{2}/\d{4})`)
	labeledSexRe          = regexp.MustCompile(`Sex:\s*([MF])`)
	labeledIDRe           = regexp.MustCompile(`784-\d{4}-\d{7}-\d`)
	labeledExpiryRe       = regexp.MustCompile(`[MF](\d{2})(\d{2})(\d{2})`)
	labeledOccupationRe   = regexp.MustCompile(`(?i)Occupation:\s*(.*)`)
	labeledEmployerRe     = regexp.MustCompile(`(?i)Employer:\s*(.*)`)
	labeledIssuingPlaceRe = regexp.MustCompile(`Issuing\s+Place:\s*(.*)`)
)

// shortDateLayout is the two-digit year-month-day layout of expiry and issuing dates.
const shortDateLayout = "06-01-02"

// ParseLabeledID reads a national ID whose fields carry English labels.
func ParseLabeledID(text string) LabeledIDRecord {
	rec := LabeledIDRecord{
		Name:         trimmedGroup(labeledNameRe, text),
		DateOfBirth:  trimmedGroup(labeledDOBRe, text),
		Sex:          trimmedGroup(labeledSexRe, text),
		IDNumber:     wholeMatch(labeledIDRe, text),
		ExpiryDate:   LabeledExpiryDate(text),
		Occupation:   trimmedGroup(labeledOccupationRe, text),
		Employer:     trimmedGroup(labeledEmployerRe, text),
		IssuingPlace: trimmedGroup(labeledIssuingPlaceRe, text),
	}
	rec.IssuingDate = IssuingDate(rec.ExpiryDate)
	return rec
}

// LabeledExpiryDate finds a sex letter followed by six digits and reassembles
// the three digit pairs in reverse order, joined by hyphens. "M250630"
// becomes "30-06-25".
func LabeledExpiryDate(text string) *string {
	m := labeledExpiryRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return ptr(m[3] + "-" + m[2] + "-" + m[1])
}

// IssuingDate derives the issuing date as expiry minus 365 days plus one day,
// both in the YY-MM-DD layout. Absent or invalid expiry dates give nil.
func IssuingDate(expiry *string) *string {
	if expiry == nil {
		return nil
	}
	t, err := time.Parse(shortDateLayout, *expiry)
	if err != nil {
		return nil
	}
	issued := t.AddDate(0, 0, -365).AddDate(0, 0, 1)
	return ptr(issued.Format(shortDateLayout))
}

func trimmedGroup(re *regexp.Regexp, text string) *string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return ptr(strings.TrimSpace(m[1]))
}

func wholeMatch(re *regexp.Regexp, text string) *string {
	m := re.FindString(text)
	if m == "" {
		return nil
	}
	return ptr(m)
}
