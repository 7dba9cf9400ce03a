package recognizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostProcessText_Defaults(t *testing.T) {
	in := "\uFEFF  Hello\tWorld\u200B!  "
	out := PostProcessText(in, DefaultCleanOptions())
	assert.Equal(t, "Hello World!", out)
}

func TestPostProcessText_Replacements(t *testing.T) {
	in := "\u201CQuoted\u201D and \u2013 dash \u2014 and nbsp\u00A0here"
	out := PostProcessText(in, DefaultCleanOptions())
	assert.Equal(t, `"Quoted" and - dash - and nbsp here`, out)
}

func TestPostProcessText_PreservesLines(t *testing.T) {
	in := "Name:   JOHN  SMITH  \r\n\n\n  Sex:\tM\n"
	out := PostProcessText(in, DefaultCleanOptions())
	assert.Equal(t, "Name: JOHN SMITH\nSex: M", out)
}

func TestPostProcessText_WhitespaceCollapse(t *testing.T) {
	in := "Line\n\nwith\t\tmany   spaces"
	opts := DefaultCleanOptions()
	opts.PreserveLines = false
	out := PostProcessText(in, opts)
	assert.Equal(t, "Line with many spaces", out)
}

func TestPostProcessText_ArabicUntouched(t *testing.T) {
	in := "محمد احمد علي حسن\n١٩٩٠/٠٥/١٢"
	assert.Equal(t, in, PostProcessText(in, DefaultCleanOptions()))
}

func TestPostProcessText_Empty(t *testing.T) {
	assert.Equal(t, "", PostProcessText("", DefaultCleanOptions()))
	assert.Equal(t, "", PostProcessText(" \n\t ", DefaultCleanOptions()))
}
