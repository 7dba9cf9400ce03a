package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/idextract/internal/classifier"
	"github.com/MeKo-Tech/idextract/internal/common"
	"github.com/MeKo-Tech/idextract/internal/normalize"
	"github.com/MeKo-Tech/idextract/internal/parser"
	"github.com/MeKo-Tech/idextract/internal/pdf"
	"github.com/MeKo-Tech/idextract/internal/regions"
	"github.com/MeKo-Tech/idextract/internal/utils"
	"golang.org/x/sync/errgroup"
)

// Process runs one pass over img: full-page recognition, classification,
// the template's parser and assembly. The input image is never modified.
func (p *Pipeline) Process(ctx context.Context, img image.Image) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := utils.ValidateImage(img); err != nil {
		return nil, stageErr(StageDecode, err)
	}

	total := common.NewNamedTimer("total")
	var timings Timings

	t := common.NewNamedTimer("normalize")
	page, err := normalize.Apply(img, p.cfg.FullPage.Ops)
	if err != nil {
		return nil, stageErr(StageNormalize, err)
	}
	timings.Normalize = t.Stop()

	t = common.NewNamedTimer("recognize")
	opts := p.cfg.FullPage.options()
	opts.WithBoxes = p.cfg.WordBoxes
	rec, err := p.engine.Recognize(ctx, page, opts)
	if err != nil {
		return nil, stageErr(StageRecognize, err)
	}
	timings.Recognition = t.Stop()
	slog.Debug("full page recognized", "timer", t.String(), "chars", len(rec.Text), "words", len(rec.Fragments))

	tpl := p.template(rec.Text)
	slog.Debug("document classified", "template", tpl.String())

	var data any
	switch tpl {
	case classifier.NationalIDLatinLabeled:
		data = labeledData(parser.ParseLabeledID(rec.Text))
	case classifier.Passport:
		data = parser.ParsePassport(rec.Text)
	default:
		t = common.NewNamedTimer("regions")
		data, err = p.processArabic(ctx, img, page)
		if err != nil {
			return nil, err
		}
		timings.Regions = t.Stop()
		slog.Debug("arabic layout processed", "timer", t.String(), "mode", p.cfg.ArabicMode)
	}

	res := Assemble(tpl, data)
	if p.cfg.WordBoxes {
		res.Fragments = rec.Fragments
	}
	timings.Total = total.Stop()
	res.Timings = timings
	slog.Debug("extraction finished", "template", res.Template, "timer", total.String())
	return res, nil
}

func (p *Pipeline) template(text string) classifier.Template {
	if p.forced != nil {
		return *p.forced
	}
	return p.classifier.Classify(text)
}

// processArabic reads the Arabic layout either region by region from the
// normalized page, or as full-page text from the original image.
func (p *Pipeline) processArabic(ctx context.Context, original, page image.Image) (any, error) {
	if p.cfg.ArabicMode == ArabicModeText {
		return p.arabicText(ctx, original)
	}
	texts, err := p.recognizeRegions(ctx, page)
	if err != nil {
		return nil, err
	}
	return parser.ParseArabicRegions(texts[regions.FieldName], texts[regions.FieldDateOfBirth], texts[regions.FieldIDNumber]), nil
}

func (p *Pipeline) arabicText(ctx context.Context, img image.Image) (parser.ArabicTextRecord, error) {
	prepared, err := normalize.Apply(img, p.cfg.ArabicText.Ops)
	if err != nil {
		return parser.ArabicTextRecord{}, stageErr(StageNormalize, err)
	}
	rec, err := p.engine.Recognize(ctx, prepared, p.cfg.ArabicText.options())
	if err != nil {
		return parser.ArabicTextRecord{}, stageErr(StageRecognize, err)
	}
	return parser.ArabicTextRecord{ArabicText: parser.EnglishToArabic(rec.Text)}, nil
}

// recognizeRegions crops, normalizes and recognizes every calibrated region.
// Empty regions are left out of the returned map.
func (p *Pipeline) recognizeRegions(ctx context.Context, page image.Image) (map[string]*string, error) {
	selected := regions.Select(p.cfg.Calibration, page.Bounds().Size())
	names := p.cfg.Calibration.Names()
	texts := make([]*string, len(names))

	read := func(ctx context.Context, i int) error {
		region := selected[names[i]]
		if region.Empty {
			slog.Debug("region skipped", "region", region.Name, "reason", region.Err())
			return nil
		}
		crop, err := regions.Crop(page, region)
		if err != nil {
			return stageErr(StageRegions, err)
		}
		step := p.regionStep(region.Name)
		prepared, err := normalize.Apply(crop, step.Ops)
		if err != nil {
			return stageErr(StageNormalize, fmt.Errorf("region %s: %w", region.Name, err))
		}
		start := time.Now()
		rec, err := p.engine.Recognize(ctx, prepared, step.options())
		if err != nil {
			return stageErr(StageRecognize, fmt.Errorf("region %s: %w", region.Name, err))
		}
		slog.Debug("region recognized", "region", region.Name, "duration", time.Since(start), "chars", len(rec.Text))
		text := rec.Text
		texts[i] = &text
		return nil
	}

	if p.cfg.ConcurrentRegions {
		g, gctx := errgroup.WithContext(ctx)
		for i := range names {
			g.Go(func() error { return read(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range names {
			if err := read(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	out := make(map[string]*string, len(names))
	for i, name := range names {
		if texts[i] != nil {
			out[name] = texts[i]
		}
	}
	return out, nil
}

func (p *Pipeline) regionStep(name string) Step {
	if step, ok := p.cfg.Regions[name]; ok {
		return step
	}
	return Step{Language: p.cfg.FullPage.Language}
}

// Extract runs Process and folds every error, including a recovered panic,
// into the failure envelope.
func (p *Pipeline) Extract(ctx context.Context, img image.Image) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("extraction panicked", "panic", r)
			res = Failure(fmt.Errorf("%w: %v", ErrInternal, r))
		}
	}()
	out, err := p.Process(ctx, img)
	if err != nil {
		slog.Debug("extraction failed", "error", err)
		return Failure(err)
	}
	return *out
}

// ExtractFile loads an image or the first page image of a PDF and extracts it.
func (p *Pipeline) ExtractFile(ctx context.Context, path string) Result {
	img, err := p.loadFile(path)
	if err != nil {
		return Failure(err)
	}
	return p.Extract(ctx, img)
}

// ExtractBytes decodes an in-memory upload and extracts it. The filename is
// only used for logging.
func (p *Pipeline) ExtractBytes(ctx context.Context, data []byte, filename string) Result {
	if !pdf.IsPDF(data) {
		img, err := utils.DecodeImage(data)
		if err != nil {
			slog.Debug("decode failed", "file", filename, "error", err)
			return Failure(stageErr(StageDecode, err))
		}
		return p.Extract(ctx, img)
	}

	// pdfcpu reads from disk.
	f, err := os.CreateTemp("", "idextract-*.pdf")
	if err != nil {
		return Failure(fmt.Errorf("create temp file: %w", err))
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return Failure(fmt.Errorf("write temp file: %w", err))
	}
	if err := f.Close(); err != nil {
		return Failure(fmt.Errorf("close temp file: %w", err))
	}
	return p.ExtractFile(ctx, f.Name())
}

func (p *Pipeline) loadFile(path string) (image.Image, error) {
	if pdf.IsPDFFile(path) {
		img, page, err := pdf.FirstPageImage(path, p.cfg.PDFPages)
		if err != nil {
			return nil, stageErr(StageDecode, err)
		}
		slog.Debug("pdf page selected", "file", filepath.Base(path), "page", page)
		return img, nil
	}
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, stageErr(StageDecode, err)
	}
	return img, nil
}
