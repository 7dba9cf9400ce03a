//go:build notesseract

package recognizer

import (
	"context"
	"errors"
	"image"
)

var errNoBackend = errors.New("no OCR backend linked; build without -tags=notesseract")

type unavailableEngine struct{}

func newDefaultEngine(_ Config) Engine { return unavailableEngine{} }

func (unavailableEngine) Recognize(_ context.Context, _ image.Image, _ Options) (*Result, error) {
	return nil, unavailable(errNoBackend)
}
