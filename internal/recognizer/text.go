package recognizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls text post-processing behavior.
type CleanOptions struct {
	NormalizeForm      string            // "NFC" (default), "NFKC", "NFD", "NFKD", "none" to disable
	CollapseWhitespace bool              // collapse runs of whitespace to a single space
	PreserveLines      bool              // when collapsing, keep line breaks and collapse within lines only
	Trim               bool              // trim leading/trailing whitespace
	RemoveControlChars bool              // remove non-printable control characters
	RemoveZeroWidth    bool              // remove zero-width spaces/joiners
	ReplaceMap         map[string]string // string replacements applied after normalization
}

// DefaultCleanOptions returns defaults for document text. Line structure is
// kept because field patterns read a label's value up to the end of its line.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:      "NFC",
		CollapseWhitespace: true,
		PreserveLines:      true,
		Trim:               true,
		RemoveControlChars: true,
		RemoveZeroWidth:    true,
		ReplaceMap:         DefaultReplaceMap(),
	}
}

// PostProcessText applies normalization and cleaning to OCR text.
func PostProcessText(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = applyNormalization(s, opts)
	if opts.RemoveZeroWidth {
		s = removeZeroWidth(s)
	}
	if opts.RemoveControlChars {
		s = removeControlChars(s)
	}
	if len(opts.ReplaceMap) > 0 {
		s = applyReplaceMap(s, opts.ReplaceMap)
	}
	if opts.CollapseWhitespace {
		if opts.PreserveLines {
			s = collapseWithinLines(s)
		} else {
			s = collapseWhitespace(s)
		}
	}
	if opts.Trim {
		s = strings.TrimSpace(s)
	}
	return s
}

func applyNormalization(s string, opts CleanOptions) string {
	switch strings.ToUpper(opts.NormalizeForm) {
	case "NFC", "":
		return norm.NFC.String(s)
	case "NFKC":
		return norm.NFKC.String(s)
	case "NFD":
		return norm.NFD.String(s)
	case "NFKD":
		return norm.NFKD.String(s)
	}
	return s
}

func applyReplaceMap(s string, replaceMap map[string]string) string {
	// Replace longer keys first to avoid partial overlaps
	keys := sortedKeysByLength(replaceMap)
	for _, k := range keys {
		s = strings.ReplaceAll(s, k, replaceMap[k])
	}
	return s
}

func sortedKeysByLength(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := range len(keys) - 1 {
		for j := i + 1; j < len(keys); j++ {
			if len(keys[j]) > len(keys[i]) || (len(keys[j]) == len(keys[i]) && keys[j] < keys[i]) {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys
}

func removeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DefaultReplaceMap folds typographic punctuation and exotic spaces that OCR
// emits into their ASCII forms.
func DefaultReplaceMap() map[string]string {
	return map[string]string{
		"\u2018": "'",  // left single quote
		"\u2019": "'",  // right single quote
		"\u201C": "\"", // left double quote
		"\u201D": "\"", // right double quote
		"\u2013": "-",  // en dash
		"\u2014": "-",  // em dash
		"\u00A0": " ",  // non-breaking space
		"\u2009": " ",  // thin space
		"\uFF1A": ":",  // fullwidth colon
	}
}

var (
	wsRe      = regexp.MustCompile(`\s+`)
	hspaceRe  = regexp.MustCompile(`[^\S\n]+`)
	blanksRe  = regexp.MustCompile(`\n{2,}`)
	lineEndRe = regexp.MustCompile(`[^\S\n]*\n[^\S\n]*`)
)

func collapseWhitespace(s string) string { return wsRe.ReplaceAllString(s, " ") }

func collapseWithinLines(s string) string {
	s = hspaceRe.ReplaceAllString(s, " ")
	s = lineEndRe.ReplaceAllString(s, "\n")
	return blanksRe.ReplaceAllString(s, "\n")
}

// removeZeroWidth removes common zero-width characters used in OCR noise.
func removeZeroWidth(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u200B', // ZERO WIDTH SPACE
			'\u200C', // ZERO WIDTH NON-JOINER
			'\u200D', // ZERO WIDTH JOINER
			'\uFEFF': // ZERO WIDTH NO-BREAK SPACE (BOM)
			// skip
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
