package parser

import (
	"regexp"
	"strings"
)

var (
	arabicNameRe = regexp.MustCompile(`[\x{0600}-\x{06FF}]+ [\x{0600}-\x{06FF}]+ [\x{0600}-\x{06FF}]+ [\x{0600}-\x{06FF}]+`)
	arabicDOBRe  = regexp.MustCompile(`[\x{0660}-\x{0669}]{4}/[\x{0660}-\x{0669}]{2}/[\x{0660}-\x{0669}]{2}`)
	arabicIDRe   = regexp.MustCompile(`\b\d{10}\b`)
	asciiDigitRe = regexp.MustCompile(`[0-9]`)
)

// ParseArabicName returns the first run of four space-separated Arabic words.
func ParseArabicName(text string) *string {
	return wholeMatch(arabicNameRe, text)
}

// ParseArabicDOB returns the first Arabic-Indic YYYY/MM/DD date with its
// digits transliterated to ASCII.
func ParseArabicDOB(text string) *string {
	m := arabicDOBRe.FindString(text)
	if m == "" {
		return nil
	}
	return ptr(ArabicToEnglish(m))
}

// ParseArabicID returns the first standalone ten-digit number.
func ParseArabicID(text string) *string {
	return wholeMatch(arabicIDRe, text)
}

// ParseArabicRegions builds the region record from the per-region texts.
// Name carries the raw name-region text when that region was read.
func ParseArabicRegions(nameText, dobText, idText *string) ArabicRegionsRecord {
	rec := ArabicRegionsRecord{Name: nameText}
	if nameText != nil {
		rec.ArabicName = ParseArabicName(*nameText)
	}
	if dobText != nil {
		rec.DateOfBirth = ParseArabicDOB(*dobText)
	}
	if idText != nil {
		rec.IDNumber = ParseArabicID(*idText)
	}
	return rec
}

// ArabicToEnglish maps Arabic-Indic digits to ASCII digits and leaves every
// other rune untouched.
func ArabicToEnglish(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '٠' && r <= '٩' {
			return '0' + (r - '٠')
		}
		return r
	}, s)
}

// EnglishToArabic maps ASCII digits to Arabic-Indic digits.
func EnglishToArabic(s string) string {
	return asciiDigitRe.ReplaceAllStringFunc(s, func(d string) string {
		return string('٠' + rune(d[0]-'0'))
	})
}
