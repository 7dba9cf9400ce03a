// Package classifier decides which document template a recognized page belongs to.
package classifier

import (
	"fmt"
	"strings"
)

// Template identifies a document layout.
type Template int

const (
	// NationalIDLatinLabeled is a national ID whose fields carry English labels.
	NationalIDLatinLabeled Template = iota
	// Passport carries a machine-readable zone.
	Passport
	// NationalIDArabicLayout is read from calibrated regions.
	NationalIDArabicLayout
)

// String returns the stable template identifier.
func (t Template) String() string {
	switch t {
	case NationalIDLatinLabeled:
		return "national_id_latin"
	case Passport:
		return "passport"
	case NationalIDArabicLayout:
		return "national_id_arabic"
	default:
		return fmt.Sprintf("template(%d)", int(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Template) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// ParseTemplate parses a template identifier as produced by String.
func ParseTemplate(s string) (Template, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "national_id_latin", "latin":
		return NationalIDLatinLabeled, nil
	case "passport":
		return Passport, nil
	case "national_id_arabic", "arabic":
		return NationalIDArabicLayout, nil
	default:
		return 0, fmt.Errorf("unknown template %q", s)
	}
}

// Config holds the marker tokens. Matching is case-sensitive substring search.
type Config struct {
	NameLabels      []string `mapstructure:"name_labels" yaml:"name_labels"`
	PassportBanners []string `mapstructure:"passport_banners" yaml:"passport_banners"`
}

// DefaultConfig returns the stock markers.
func DefaultConfig() Config {
	return Config{
		NameLabels:      []string{"Name"},
		PassportBanners: []string{"UNITED", "REPUBLIC"},
	}
}

// Classifier is an immutable token matcher.
type Classifier struct {
	cfg Config
}

// New returns a classifier for cfg.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: Config{
		NameLabels:      nonEmpty(cfg.NameLabels),
		PassportBanners: nonEmpty(cfg.PassportBanners),
	}}
}

// Classify is total: the first matching test wins and anything unmatched is
// the Arabic layout.
func (c *Classifier) Classify(text string) Template {
	if containsAny(text, c.cfg.NameLabels) {
		return NationalIDLatinLabeled
	}
	if containsAny(text, c.cfg.PassportBanners) {
		return Passport
	}
	return NationalIDArabicLayout
}

// Classify uses the default markers.
func Classify(text string) Template {
	return defaultClassifier.Classify(text)
}

var defaultClassifier = New(DefaultConfig())

func containsAny(text string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
