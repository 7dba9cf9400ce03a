package classifier

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestClassify_Total verifies every text maps to exactly one known template.
func TestClassify_Total(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("classification is total and deterministic", prop.ForAll(
		func(text string) bool {
			got := Classify(text)
			switch got {
			case NationalIDLatinLabeled, Passport, NationalIDArabicLayout:
			default:
				return false
			}
			return Classify(text) == got
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestClassify_FirstMatchWins verifies a name label beats a passport banner wherever they appear.
func TestClassify_FirstMatchWins(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("name label wins over banner", prop.ForAll(
		func(prefix, middle, suffix, banner string) bool {
			text := prefix + banner + middle + "Name" + suffix
			return Classify(text) == NationalIDLatinLabeled
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.OneConstOf("UNITED", "REPUBLIC"),
	))

	properties.Property("banner without label is a passport", prop.ForAll(
		func(prefix, suffix, banner string) bool {
			text := prefix + banner + suffix
			if strings.Contains(text, "Name") {
				return true
			}
			return Classify(text) == Passport
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.OneConstOf("UNITED", "REPUBLIC"),
	))

	properties.Property("text without markers falls back to the Arabic layout", prop.ForAll(
		func(text string) bool {
			return Classify(text) == NationalIDArabicLayout
		},
		gen.NumString(),
	))

	properties.TestingRun(t)
}
