// Package recognizer wraps the OCR engine behind a small, context-aware interface.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
)

// ErrRecognitionUnavailable is returned when the engine cannot be initialised or invoked.
var ErrRecognitionUnavailable = errors.New("recognition engine unavailable")

// Language is a script hint for recognition.
type Language int

const (
	LanguageBoth Language = iota
	LanguageLatin
	LanguageArabic
)

// String returns the config name of the hint.
func (l Language) String() string {
	switch l {
	case LanguageLatin:
		return "latin"
	case LanguageArabic:
		return "arabic"
	default:
		return "both"
	}
}

// Codes returns the tesseract language codes for the hint.
func (l Language) Codes() []string {
	switch l {
	case LanguageLatin:
		return []string{"eng"}
	case LanguageArabic:
		return []string{"ara"}
	default:
		return []string{"eng", "ara"}
	}
}

// ParseLanguage parses "latin", "arabic" or "both" (tesseract codes are accepted too).
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "latin", "eng":
		return LanguageLatin, nil
	case "arabic", "ara":
		return LanguageArabic, nil
	case "both", "eng+ara", "":
		return LanguageBoth, nil
	default:
		return LanguageBoth, fmt.Errorf("unknown language hint %q", s)
	}
}

// DefaultPageSegMode treats the input as a single uniform block of text.
const DefaultPageSegMode = 6

// Options configure one recognition call.
type Options struct {
	Language    Language
	PageSegMode int
	WithBoxes   bool
}

// Fragment is one recognized word with its location.
type Fragment struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Result holds recognized text, empty when nothing was read.
type Result struct {
	Text      string        `json:"text"`
	Fragments []Fragment    `json:"fragments,omitempty"`
	Duration  time.Duration `json:"-"`
}

// Engine recognizes text in an image.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, opts Options) (*Result, error)
}

// Config holds engine settings.
type Config struct {
	TessdataPrefix string
	Variables      map[string]string
	Timeout        time.Duration
	Clean          CleanOptions
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Clean:   DefaultCleanOptions(),
	}
}

// NewEngine returns the linked backend. Builds tagged notesseract get an
// engine that always reports ErrRecognitionUnavailable.
func NewEngine(cfg Config) Engine { return newDefaultEngine(cfg) }

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, img image.Image, opts Options) (*Result, error)

// Recognize calls f.
func (f EngineFunc) Recognize(ctx context.Context, img image.Image, opts Options) (*Result, error) {
	return f(ctx, img, opts)
}

func unavailable(err error) error {
	if err == nil {
		return ErrRecognitionUnavailable
	}
	return fmt.Errorf("%w: %w", ErrRecognitionUnavailable, err)
}
