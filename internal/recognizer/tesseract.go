//go:build !notesseract

package recognizer

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/MeKo-Tech/idextract/internal/utils"
	"github.com/otiai10/gosseract/v2"
)

type tesseractEngine struct {
	cfg Config
}

func newDefaultEngine(cfg Config) Engine { return &tesseractEngine{cfg: cfg} }

type recognition struct {
	res *Result
	err error
}

// Recognize runs tesseract with a fresh client. The cgo call cannot be
// interrupted, so on timeout the worker finishes in the background and closes
// its own client.
func (e *tesseractEngine) Recognize(ctx context.Context, img image.Image, opts Options) (*Result, error) {
	if err := utils.ValidateImage(img); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("recognition aborted: %w", err)
	}
	data, err := utils.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan recognition, 1)
	go func() {
		res, err := e.run(data, opts)
		done <- recognition{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("recognition aborted: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		r.res.Duration = time.Since(start)
		slog.Debug("tesseract recognition",
			"languages", strings.Join(opts.Language.Codes(), "+"),
			"psm", opts.PageSegMode,
			"chars", len(r.res.Text),
			"duration_ms", r.res.Duration.Milliseconds())
		return r.res, nil
	}
}

func (e *tesseractEngine) run(data []byte, opts Options) (*Result, error) {
	client := gosseract.NewClient()
	defer func() {
		_ = client.Close()
	}()

	if e.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.cfg.TessdataPrefix); err != nil {
			return nil, unavailable(fmt.Errorf("set tessdata prefix: %w", err))
		}
	}
	if err := client.SetLanguage(opts.Language.Codes()...); err != nil {
		return nil, unavailable(fmt.Errorf("set language: %w", err))
	}
	psm := opts.PageSegMode
	if psm <= 0 {
		psm = DefaultPageSegMode
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
		return nil, unavailable(fmt.Errorf("set page segmentation mode: %w", err))
	}
	for _, k := range sortedVariableKeys(e.cfg.Variables) {
		if err := client.SetVariable(gosseract.SettableVariable(k), e.cfg.Variables[k]); err != nil {
			return nil, unavailable(fmt.Errorf("set variable %s: %w", k, err))
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, unavailable(fmt.Errorf("set image: %w", err))
	}

	text, err := client.Text()
	if err != nil {
		return nil, unavailable(fmt.Errorf("recognize text: %w", err))
	}
	res := &Result{Text: PostProcessText(text, e.cfg.Clean)}

	if opts.WithBoxes && res.Text != "" {
		boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
		if err != nil {
			slog.Debug("bounding boxes unavailable", "error", err)
			return res, nil
		}
		res.Fragments = make([]Fragment, 0, len(boxes))
		for _, b := range boxes {
			if strings.TrimSpace(b.Word) == "" {
				continue
			}
			res.Fragments = append(res.Fragments, Fragment{
				Text:       b.Word,
				Confidence: b.Confidence / 100.0,
				Box:        b.Box,
			})
		}
	}
	return res, nil
}

func sortedVariableKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
