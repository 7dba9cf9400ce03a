package parser

import (
	"regexp"
	"strings"
)

var (
	// Document type P, filler, three-character issuing state, then the name field.
	mrzNameRe   = regexp.MustCompile(`P<[A-Z<]{3}([A-Z<]+)`)
	mrzSexRe    = regexp.MustCompile(`([MF])[0-9]{7}(?:[^0-9]|$)`)
	mrzIDRe     = regexp.MustCompile(`([A-Z][0-9]{7})(?:[^0-9]|$)`)
	mrzDOBRe    = regexp.MustCompile(`([0-9O]{6})[0-9O]?[MF]`)
	mrzExpiryRe = regexp.MustCompile(`[MF]([0-9O]{6})[0-9O]`)
)

// ParsePassport reads the machine-readable zone of a passport.
func ParsePassport(text string) PassportRecord {
	return PassportRecord{
		IDNumber:    firstGroup(mrzIDRe, text),
		DateOfBirth: mrzDate(mrzDOBRe, text),
		Name:        PassportName(text),
		Sex:         firstGroup(mrzSexRe, text),
		ExpiryDate:  mrzDate(mrzExpiryRe, text),
	}
}

// PassportName returns at most the first two tokens of "SURNAME GIVEN NAMES"
// from the name field following the P< prefix.
func PassportName(text string) *string {
	m := mrzNameRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	surname, given, _ := strings.Cut(m[1], "<<")
	full := strings.ReplaceAll(surname, "<", " ") + " " + strings.ReplaceAll(given, "<", " ")
	tokens := strings.Fields(full)
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	return ptr(strings.Join(tokens, " "))
}

func mrzDate(re *regexp.Regexp, text string) *string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return ptr(ReorderYYMMDD(strings.ReplaceAll(m[1], "O", "0")))
}

// ReorderYYMMDD turns a six-character YYMMDD string into DDMMYY. Other
// lengths are returned unchanged.
func ReorderYYMMDD(s string) string {
	if len(s) != 6 {
		return s
	}
	return s[4:6] + s[2:4] + s[0:2]
}

func firstGroup(re *regexp.Regexp, text string) *string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return ptr(m[1])
}
