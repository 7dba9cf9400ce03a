package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/idextract/internal/classifier"
	"github.com/MeKo-Tech/idextract/internal/normalize"
	"github.com/MeKo-Tech/idextract/internal/pipeline"
	"github.com/MeKo-Tech/idextract/internal/recognizer"
	"github.com/MeKo-Tech/idextract/internal/server"
	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	pl := pipeline.DefaultConfig()
	steps := make(map[string]StepConfig, len(pl.Regions))
	for name, step := range pl.Regions {
		steps[name] = fromStep(step)
	}
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Pipeline: PipelineConfig{
			Recognizer: RecognizerConfig{
				TimeoutSec:    int(pl.Recognizer.Timeout / time.Second),
				NormalizeForm: pl.Recognizer.Clean.NormalizeForm,
			},
			Classifier: ClassifierConfig{
				NameLabels:      pl.Classifier.NameLabels,
				PassportBanners: pl.Classifier.PassportBanners,
			},
			FullPage:          fromStep(pl.FullPage),
			ArabicMode:        pl.ArabicMode,
			ArabicText:        fromStep(pl.ArabicText),
			Regions:           steps,
			Calibration:       pl.Calibration,
			ConcurrentRegions: pl.ConcurrentRegions,
		},
		Output: OutputConfig{
			Format: "json",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			AllowedOrigins:  []string{server.DefaultAllowedOrigin},
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 30,
				RequestsPerHour:   500,
			},
		},
	}
}

func fromStep(s pipeline.Step) StepConfig {
	return StepConfig{
		Language:    s.Language.String(),
		PageSegMode: s.PageSegMode,
		Ops:         slices.Clone(s.Ops),
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"json", "pretty"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if rl := c.Server.RateLimit; rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 ||
		rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDayMB < 0 {
		return fmt.Errorf("invalid rate limit: %+v (limits must not be negative)", rl)
	}
	if _, err := server.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		return err
	}
	if c.Pipeline.Recognizer.TimeoutSec < 0 {
		return fmt.Errorf("invalid recognizer timeout: %d (must not be negative)", c.Pipeline.Recognizer.TimeoutSec)
	}

	pl, err := c.ToPipelineConfig()
	if err != nil {
		return err
	}
	return pl.Validate()
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	p := c.Pipeline
	cfg := pipeline.DefaultConfig()

	cfg.Recognizer.TessdataPrefix = p.Recognizer.TessdataPrefix
	cfg.Recognizer.Timeout = time.Duration(p.Recognizer.TimeoutSec) * time.Second
	cfg.Recognizer.Variables = p.Recognizer.Variables
	if p.Recognizer.NormalizeForm != "" {
		cfg.Recognizer.Clean.NormalizeForm = p.Recognizer.NormalizeForm
	}

	cfg.Classifier = classifier.Config{
		NameLabels:      p.Classifier.NameLabels,
		PassportBanners: p.Classifier.PassportBanners,
	}

	var err error
	if cfg.FullPage, err = p.FullPage.toStep("full_page"); err != nil {
		return pipeline.Config{}, err
	}
	if cfg.ArabicText, err = p.ArabicText.toStep("arabic_text"); err != nil {
		return pipeline.Config{}, err
	}
	cfg.Regions = make(map[string]pipeline.Step, len(p.Regions))
	for name, sc := range p.Regions {
		if cfg.Regions[name], err = sc.toStep("regions." + name); err != nil {
			return pipeline.Config{}, err
		}
	}
	if len(p.Calibration.Regions) > 0 {
		cfg.Calibration = p.Calibration
	}
	if p.ArabicMode != "" {
		cfg.ArabicMode = p.ArabicMode
	}
	cfg.ConcurrentRegions = p.ConcurrentRegions
	cfg.ForceTemplate = p.Template
	cfg.PDFPages = p.PDFPages
	return cfg, nil
}

func (s StepConfig) toStep(key string) (pipeline.Step, error) {
	lang, err := recognizer.ParseLanguage(s.Language)
	if err != nil {
		return pipeline.Step{}, fmt.Errorf("invalid %s.language: %w", key, err)
	}
	if err := normalize.Validate(s.Ops); err != nil {
		return pipeline.Step{}, fmt.Errorf("invalid %s.ops: %w", key, err)
	}
	return pipeline.Step{
		Language:    lang,
		PageSegMode: s.PageSegMode,
		Ops:         slices.Clone(s.Ops),
	}, nil
}

// ToServerConfig converts the config to the server configuration, including
// the pipeline the server builds.
func (c *Config) ToServerConfig() (server.Config, error) {
	pl, err := c.ToPipelineConfig()
	if err != nil {
		return server.Config{}, err
	}
	s := c.Server
	return server.Config{
		Host:            s.Host,
		Port:            s.Port,
		AllowedOrigins:  slices.Clone(s.AllowedOrigins),
		MaxUploadMB:     int64(s.MaxUploadMB),
		TimeoutSec:      s.TimeoutSec,
		ShutdownTimeout: s.ShutdownTimeout,
		TempDir:         s.TempDir,
		RateLimit: server.RateLimitConfig{
			Enabled:           s.RateLimit.Enabled,
			RequestsPerMinute: s.RateLimit.RequestsPerMinute,
			RequestsPerHour:   s.RateLimit.RequestsPerHour,
			MaxRequestsPerDay: s.RateLimit.MaxRequestsPerDay,
			MaxDataPerDay:     s.RateLimit.MaxDataPerDayMB * 1024 * 1024,
		},
		PipelineConfig: pl,
		TrustedProxies: slices.Clone(s.TrustedProxies),
	}, nil
}

// YAML renders the configuration as a config file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
