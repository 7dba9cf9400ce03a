package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MeKo-Tech/idextract/internal/classifier"
	"github.com/MeKo-Tech/idextract/internal/normalize"
	"github.com/MeKo-Tech/idextract/internal/recognizer"
	"github.com/MeKo-Tech/idextract/internal/regions"
)

// Arabic layout output modes.
const (
	ArabicModeRegions = "regions"
	ArabicModeText    = "text"
)

// Step describes how one image (the full page or a region) is normalized and
// recognized.
type Step struct {
	Language    recognizer.Language
	PageSegMode int
	Ops         []normalize.Op
}

func (s Step) options() recognizer.Options {
	psm := s.PageSegMode
	if psm <= 0 {
		psm = recognizer.DefaultPageSegMode
	}
	return recognizer.Options{Language: s.Language, PageSegMode: psm}
}

// Config holds configuration for the extraction pipeline and its components.
type Config struct {
	Recognizer recognizer.Config
	Classifier classifier.Config

	// FullPage is the classification pass over the whole document.
	FullPage Step

	// Regions holds the per-field steps of the Arabic layout, keyed by region name.
	Regions     map[string]Step
	Calibration regions.Calibration

	// ArabicMode selects ArabicModeRegions or ArabicModeText output.
	ArabicMode string
	ArabicText Step

	// ConcurrentRegions recognizes the Arabic layout regions in parallel.
	ConcurrentRegions bool

	// ForceTemplate skips classification when non-empty.
	ForceTemplate string

	// PDFPages restricts which PDF pages are searched for the document image.
	PDFPages string

	// WordBoxes attaches the full-page word boxes to successful results.
	WordBoxes bool
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Recognizer: recognizer.DefaultConfig(),
		Classifier: classifier.DefaultConfig(),
		FullPage: Step{
			Language:    recognizer.LanguageBoth,
			PageSegMode: recognizer.DefaultPageSegMode,
			Ops:         []normalize.Op{{Name: normalize.OpGrayscale}},
		},
		Regions:     DefaultRegionSteps(),
		Calibration: regions.DefaultCalibration(),
		ArabicMode:  ArabicModeRegions,
		ArabicText: Step{
			Language:    recognizer.LanguageArabic,
			PageSegMode: recognizer.DefaultPageSegMode,
			Ops: []normalize.Op{
				{Name: normalize.OpGrayscale},
				{Name: normalize.OpSharpen, Sigma: 1},
				{Name: normalize.OpContrast, Percent: 100},
				{Name: normalize.OpResize, Width: 1200, Interpolation: "lanczos"},
				{Name: normalize.OpThreshold, Mode: normalize.ThresholdFixed, Value: 128},
			},
		},
		ConcurrentRegions: true,
	}
}

// DefaultRegionSteps returns the normalization and language hint of each
// Arabic layout region.
func DefaultRegionSteps() map[string]Step {
	return map[string]Step{
		regions.FieldName: {
			Language:    recognizer.LanguageBoth,
			PageSegMode: recognizer.DefaultPageSegMode,
			Ops:         []normalize.Op{{Name: normalize.OpBrightnessContrast, Alpha: 1.2, Beta: 20}},
		},
		regions.FieldDateOfBirth: {
			Language:    recognizer.LanguageArabic,
			PageSegMode: recognizer.DefaultPageSegMode,
			Ops: []normalize.Op{
				{Name: normalize.OpBrightnessContrast, Alpha: 1.2, Beta: 30},
				{Name: normalize.OpGaussianBlur, Kernel: 3},
				{Name: normalize.OpThreshold, Mode: normalize.ThresholdOtsu},
			},
		},
		regions.FieldIDNumber: {
			Language:    recognizer.LanguageLatin,
			PageSegMode: recognizer.DefaultPageSegMode,
			Ops: []normalize.Op{
				{Name: normalize.OpGaussianBlur, Kernel: 5},
				{Name: normalize.OpThreshold, Mode: normalize.ThresholdOtsu},
			},
		},
	}
}

// Validate checks the op lists, calibration and mode.
func (c Config) Validate() error {
	if err := normalize.Validate(c.FullPage.Ops); err != nil {
		return fmt.Errorf("full page ops: %w", err)
	}
	if err := normalize.Validate(c.ArabicText.Ops); err != nil {
		return fmt.Errorf("arabic text ops: %w", err)
	}
	names := make([]string, 0, len(c.Regions))
	for name := range c.Regions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := normalize.Validate(c.Regions[name].Ops); err != nil {
			return fmt.Errorf("region %s ops: %w", name, err)
		}
	}
	if err := c.Calibration.Validate(); err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	switch c.ArabicMode {
	case ArabicModeRegions, ArabicModeText:
	default:
		return fmt.Errorf("arabic mode must be %q or %q, got %q", ArabicModeRegions, ArabicModeText, c.ArabicMode)
	}
	if c.ForceTemplate != "" {
		if _, err := classifier.ParseTemplate(c.ForceTemplate); err != nil {
			return err
		}
	}
	if c.Recognizer.Timeout < 0 {
		return errors.New("recognizer timeout must be >= 0")
	}
	return nil
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg    Config
	engine recognizer.Engine
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFromConfig starts from an explicit configuration.
func NewBuilderFromConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithEngine replaces the recognition backend.
func (b *Builder) WithEngine(engine recognizer.Engine) *Builder {
	b.engine = engine
	return b
}

// WithTessdataPrefix points tesseract at a tessdata directory.
func (b *Builder) WithTessdataPrefix(dir string) *Builder {
	if dir != "" {
		b.cfg.Recognizer.TessdataPrefix = dir
	}
	return b
}

// WithRecognitionTimeout bounds each recognition call. Zero disables the limit.
func (b *Builder) WithRecognitionTimeout(d time.Duration) *Builder {
	if d >= 0 {
		b.cfg.Recognizer.Timeout = d
	}
	return b
}

// WithCalibration sets the Arabic layout region calibration.
func (b *Builder) WithCalibration(cal regions.Calibration) *Builder {
	b.cfg.Calibration = cal
	return b
}

// WithRegionStep overrides the step of one region.
func (b *Builder) WithRegionStep(name string, step Step) *Builder {
	if b.cfg.Regions == nil {
		b.cfg.Regions = map[string]Step{}
	}
	b.cfg.Regions[name] = step
	return b
}

// WithFullPageStep overrides the classification pass.
func (b *Builder) WithFullPageStep(step Step) *Builder {
	b.cfg.FullPage = step
	return b
}

// WithClassifier sets the label and banner tokens.
func (b *Builder) WithClassifier(cfg classifier.Config) *Builder {
	b.cfg.Classifier = cfg
	return b
}

// WithArabicMode selects the Arabic layout output mode.
func (b *Builder) WithArabicMode(mode string) *Builder {
	if mode != "" {
		b.cfg.ArabicMode = mode
	}
	return b
}

// WithConcurrentRegions toggles parallel region recognition.
func (b *Builder) WithConcurrentRegions(enabled bool) *Builder {
	b.cfg.ConcurrentRegions = enabled
	return b
}

// WithTemplate forces a template instead of classifying. An empty name
// restores classification.
func (b *Builder) WithTemplate(name string) *Builder {
	b.cfg.ForceTemplate = name
	return b
}

// WithPDFPages restricts PDF page extraction, e.g. "1-2".
func (b *Builder) WithPDFPages(pages string) *Builder {
	b.cfg.PDFPages = pages
	return b
}

// WithWordBoxes requests word boxes from the full-page pass.
func (b *Builder) WithWordBoxes(enabled bool) *Builder {
	b.cfg.WordBoxes = enabled
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks the configuration.
func (b *Builder) Validate() error { return b.cfg.Validate() }

// Pipeline runs classification and field extraction. It is immutable after
// Build and safe for concurrent use.
type Pipeline struct {
	cfg        Config
	engine     recognizer.Engine
	classifier *classifier.Classifier
	forced     *classifier.Template
}

// Build validates the configuration and wires the components.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	engine := b.engine
	if engine == nil {
		engine = recognizer.NewEngine(b.cfg.Recognizer)
	}
	p := &Pipeline{
		cfg:        cloneConfig(b.cfg),
		engine:     engine,
		classifier: classifier.New(b.cfg.Classifier),
	}
	if b.cfg.ForceTemplate != "" {
		tpl, err := classifier.ParseTemplate(b.cfg.ForceTemplate)
		if err != nil {
			return nil, err
		}
		p.forced = &tpl
	}
	return p, nil
}

// Config returns a copy of the pipeline configuration.
func (p *Pipeline) Config() Config { return cloneConfig(p.cfg) }

// Info returns a summary of the pipeline configuration.
func (p *Pipeline) Info() map[string]any {
	forced := ""
	if p.forced != nil {
		forced = p.forced.String()
	}
	return map[string]any{
		"arabic_mode":        p.cfg.ArabicMode,
		"concurrent_regions": p.cfg.ConcurrentRegions,
		"regions":            p.cfg.Calibration.Names(),
		"forced_template":    forced,
		"recognizer_timeout": p.cfg.Recognizer.Timeout.String(),
		"word_boxes":         p.cfg.WordBoxes,
	}
}

func cloneConfig(c Config) Config {
	out := c
	out.FullPage.Ops = append([]normalize.Op(nil), c.FullPage.Ops...)
	out.ArabicText.Ops = append([]normalize.Op(nil), c.ArabicText.Ops...)
	out.Regions = make(map[string]Step, len(c.Regions))
	for name, s := range c.Regions {
		s.Ops = append([]normalize.Op(nil), s.Ops...)
		out.Regions[name] = s
	}
	out.Calibration.Regions = make(map[string]regions.Rect, len(c.Calibration.Regions))
	for name, r := range c.Calibration.Regions {
		out.Calibration.Regions[name] = r
	}
	return out
}
