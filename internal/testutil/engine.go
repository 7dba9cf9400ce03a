package testutil

import (
	"context"
	"image"
	"strings"
	"sync"

	"github.com/MeKo-Tech/idextract/internal/recognizer"
)

// RecognizeCall records one call made to a FakeEngine.
type RecognizeCall struct {
	Size image.Point
	Opts recognizer.Options
}

// FakeEngine is a scripted recognizer.Engine. Handler decides the text per call;
// a nil Handler returns Text for every call.
type FakeEngine struct {
	Text    string
	Err     error
	Handler func(img image.Image, opts recognizer.Options) (string, error)

	mu    sync.Mutex
	calls []RecognizeCall
}

// Recognize implements recognizer.Engine.
func (f *FakeEngine) Recognize(ctx context.Context, img image.Image, opts recognizer.Options) (*recognizer.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, RecognizeCall{Size: img.Bounds().Size(), Opts: opts})
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	text := f.Text
	if f.Handler != nil {
		var err error
		if text, err = f.Handler(img, opts); err != nil {
			return nil, err
		}
	}
	res := &recognizer.Result{Text: text}
	if opts.WithBoxes {
		// Every word spans the whole image; only the order is meaningful.
		for _, w := range strings.Fields(text) {
			res.Fragments = append(res.Fragments, recognizer.Fragment{Text: w, Confidence: 1, Box: img.Bounds()})
		}
	}
	return res, nil
}

// Calls returns a copy of the recorded calls.
func (f *FakeEngine) Calls() []RecognizeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecognizeCall(nil), f.calls...)
}

// IsFullPage reports whether img has the document reference size.
func IsFullPage(img image.Image) bool {
	return img.Bounds().Dx() == DocumentSize.Width && img.Bounds().Dy() == DocumentSize.Height
}

// ScriptedDocument answers full-page calls with page and every other call
// with the text registered for its language hint.
func ScriptedDocument(page string, byLanguage map[recognizer.Language]string) *FakeEngine {
	return &FakeEngine{Handler: func(img image.Image, opts recognizer.Options) (string, error) {
		if IsFullPage(img) {
			return page, nil
		}
		return byLanguage[opts.Language], nil
	}}
}
