package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/idextract/internal/normalize"
	"github.com/MeKo-Tech/idextract/internal/pipeline"
	"github.com/MeKo-Tech/idextract/internal/recognizer"
	"github.com/MeKo-Tech/idextract/internal/regions"
	"github.com/MeKo-Tech/idextract/internal/server"
)

const (
	infoLevel  = "info"
	debugLevel = "debug"
)

// TestDefaultConfig verifies that DefaultConfig returns expected values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected log_level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Verbose {
		t.Error("Expected verbose to be false")
	}

	// Pipeline defaults
	if cfg.Pipeline.ArabicMode != pipeline.ArabicModeRegions {
		t.Errorf("Expected arabic_mode %q, got %q", pipeline.ArabicModeRegions, cfg.Pipeline.ArabicMode)
	}
	if !cfg.Pipeline.ConcurrentRegions {
		t.Error("Expected concurrent regions by default")
	}
	if cfg.Pipeline.FullPage.Language != "both" {
		t.Errorf("Expected full page language 'both', got %s", cfg.Pipeline.FullPage.Language)
	}
	if got := cfg.Pipeline.Regions[regions.FieldIDNumber].Language; got != "latin" {
		t.Errorf("Expected id_number language 'latin', got %s", got)
	}
	if got := cfg.Pipeline.Regions[regions.FieldDateOfBirth].Language; got != "arabic" {
		t.Errorf("Expected date_of_birth language 'arabic', got %s", got)
	}
	if cfg.Pipeline.Recognizer.TimeoutSec != 30 {
		t.Errorf("Expected recognizer timeout 30, got %d", cfg.Pipeline.Recognizer.TimeoutSec)
	}
	if cfg.Pipeline.Template != "" {
		t.Errorf("Expected no forced template, got %q", cfg.Pipeline.Template)
	}

	// Output defaults
	if cfg.Output.Format != "json" {
		t.Errorf("Expected output format 'json', got %s", cfg.Output.Format)
	}

	// Server defaults
	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected server host 'localhost', got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected server port 8080, got %d", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Server.AllowedOrigins, []string{server.DefaultAllowedOrigin}) {
		t.Errorf("Expected default allowed origin, got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.MaxUploadMB != 50 {
		t.Errorf("Expected max upload 50, got %d", cfg.Server.MaxUploadMB)
	}
	if cfg.Server.RateLimit.Enabled {
		t.Error("Expected rate limiting to be disabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

// TestDefaultConfigMatchesPipelineDefaults verifies the config layer adds no
// behavior of its own on top of the pipeline defaults.
func TestDefaultConfigMatchesPipelineDefaults(t *testing.T) {
	cfg := DefaultConfig()
	got, err := cfg.ToPipelineConfig()
	if err != nil {
		t.Fatalf("ToPipelineConfig() error: %v", err)
	}
	want := pipeline.DefaultConfig()

	if !reflect.DeepEqual(got.FullPage, want.FullPage) {
		t.Errorf("FullPage = %+v, want %+v", got.FullPage, want.FullPage)
	}
	if !reflect.DeepEqual(got.ArabicText, want.ArabicText) {
		t.Errorf("ArabicText = %+v, want %+v", got.ArabicText, want.ArabicText)
	}
	if !reflect.DeepEqual(got.Regions, want.Regions) {
		t.Errorf("Regions = %+v, want %+v", got.Regions, want.Regions)
	}
	if !reflect.DeepEqual(got.Calibration, want.Calibration) {
		t.Errorf("Calibration = %+v, want %+v", got.Calibration, want.Calibration)
	}
	if !reflect.DeepEqual(got.Classifier, want.Classifier) {
		t.Errorf("Classifier = %+v, want %+v", got.Classifier, want.Classifier)
	}
	if got.Recognizer.Timeout != want.Recognizer.Timeout {
		t.Errorf("Recognizer timeout = %v, want %v", got.Recognizer.Timeout, want.Recognizer.Timeout)
	}
	if got.ArabicMode != want.ArabicMode || got.ConcurrentRegions != want.ConcurrentRegions {
		t.Errorf("Arabic settings = %q/%v, want %q/%v",
			got.ArabicMode, got.ConcurrentRegions, want.ArabicMode, want.ConcurrentRegions)
	}
}

// TestValidate tests configuration validation.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid default config", modify: func(*Config) {}},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "invalid output format",
			modify:  func(c *Config) { c.Output.Format = "csv" },
			wantErr: "invalid output format",
		},
		{
			name:    "invalid trusted proxy",
			modify:  func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "proxy.local"} },
			wantErr: "invalid trusted proxy",
		},
		{
			name:   "trusted proxy ranges",
			modify: func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "::1"} },
		},
		{
			name:    "port zero",
			modify:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "port too large",
			modify:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "negative upload size",
			modify:  func(c *Config) { c.Server.MaxUploadMB = -1 },
			wantErr: "invalid max upload size",
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.Server.TimeoutSec = 0 },
			wantErr: "invalid timeout",
		},
		{
			name:    "negative rate limit",
			modify:  func(c *Config) { c.Server.RateLimit.RequestsPerHour = -5 },
			wantErr: "invalid rate limit",
		},
		{
			name:    "negative recognizer timeout",
			modify:  func(c *Config) { c.Pipeline.Recognizer.TimeoutSec = -1 },
			wantErr: "invalid recognizer timeout",
		},
		{
			name:    "unknown language",
			modify:  func(c *Config) { c.Pipeline.FullPage.Language = "klingon" },
			wantErr: "invalid full_page.language",
		},
		{
			name: "unknown op",
			modify: func(c *Config) {
				step := c.Pipeline.Regions[regions.FieldName]
				step.Ops = []normalize.Op{{Name: "posterize"}}
				c.Pipeline.Regions[regions.FieldName] = step
			},
			wantErr: "invalid regions.name.ops",
		},
		{
			name:    "unknown arabic mode",
			modify:  func(c *Config) { c.Pipeline.ArabicMode = "both" },
			wantErr: "arabic mode",
		},
		{
			name:    "unknown template",
			modify:  func(c *Config) { c.Pipeline.Template = "drivers_license" },
			wantErr: "unknown template",
		},
		{
			name: "bad calibration",
			modify: func(c *Config) {
				c.Pipeline.Calibration = regions.Calibration{
					ReferenceWidth: 1000, ReferenceHeight: 700,
					Regions: map[string]regions.Rect{"name": {X: 10, Y: 10, Width: 0, Height: 10}},
				}
			},
			wantErr: "calibration",
		},
		{
			name:   "forced template",
			modify: func(c *Config) { c.Pipeline.Template = "passport" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

// TestToPipelineConfig tests conversion of overridden settings.
func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Recognizer.TessdataPrefix = "/opt/tessdata"
	cfg.Pipeline.Recognizer.TimeoutSec = 5
	cfg.Pipeline.Recognizer.Variables = map[string]string{"tessedit_char_whitelist": "0123456789-"}
	cfg.Pipeline.Recognizer.NormalizeForm = "NFKC"
	cfg.Pipeline.Classifier.NameLabels = []string{"Name", "NAME"}
	cfg.Pipeline.ArabicMode = pipeline.ArabicModeText
	cfg.Pipeline.ConcurrentRegions = false
	cfg.Pipeline.Template = "arabic"
	cfg.Pipeline.PDFPages = "1-2"
	cfg.Pipeline.Regions[regions.FieldIDNumber] = StepConfig{
		Language:    "eng",
		PageSegMode: 7,
		Ops:         []normalize.Op{{Name: normalize.OpThreshold, Mode: normalize.ThresholdOtsu}},
	}

	pc, err := cfg.ToPipelineConfig()
	if err != nil {
		t.Fatalf("ToPipelineConfig() error: %v", err)
	}

	if pc.Recognizer.TessdataPrefix != "/opt/tessdata" {
		t.Errorf("TessdataPrefix = %s", pc.Recognizer.TessdataPrefix)
	}
	if pc.Recognizer.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", pc.Recognizer.Timeout)
	}
	if pc.Recognizer.Variables["tessedit_char_whitelist"] != "0123456789-" {
		t.Errorf("Variables = %v", pc.Recognizer.Variables)
	}
	if pc.Recognizer.Clean.NormalizeForm != "NFKC" {
		t.Errorf("NormalizeForm = %s, want NFKC", pc.Recognizer.Clean.NormalizeForm)
	}
	if !reflect.DeepEqual(pc.Classifier.NameLabels, []string{"Name", "NAME"}) {
		t.Errorf("NameLabels = %v", pc.Classifier.NameLabels)
	}
	if pc.ArabicMode != pipeline.ArabicModeText || pc.ConcurrentRegions {
		t.Errorf("Arabic settings = %q/%v", pc.ArabicMode, pc.ConcurrentRegions)
	}
	if pc.ForceTemplate != "arabic" || pc.PDFPages != "1-2" {
		t.Errorf("ForceTemplate/PDFPages = %q/%q", pc.ForceTemplate, pc.PDFPages)
	}

	id := pc.Regions[regions.FieldIDNumber]
	if id.Language != recognizer.LanguageLatin || id.PageSegMode != 7 || len(id.Ops) != 1 {
		t.Errorf("id_number step = %+v", id)
	}
	if _, ok := pc.Regions[regions.FieldName]; !ok {
		t.Error("Untouched regions should keep their defaults")
	}
}

// TestToServerConfig tests conversion to the server configuration.
func TestToServerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 9000
	cfg.Server.AllowedOrigins = []string{"https://a.example", "https://b.example"}
	cfg.Server.TempDir = "/var/tmp/idextract"
	cfg.Server.RateLimit = RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 10,
		MaxDataPerDayMB:   2,
	}
	cfg.Server.TrustedProxies = []string{"10.0.0.0/8"}

	sc, err := cfg.ToServerConfig()
	if err != nil {
		t.Fatalf("ToServerConfig() error: %v", err)
	}
	if sc.Host != "0.0.0.0" || sc.Port != 9000 {
		t.Errorf("address = %s:%d", sc.Host, sc.Port)
	}
	if len(sc.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", sc.AllowedOrigins)
	}
	if sc.MaxUploadMB != 50 || sc.TimeoutSec != 60 || sc.ShutdownTimeout != 10 {
		t.Errorf("limits = %d/%d/%d", sc.MaxUploadMB, sc.TimeoutSec, sc.ShutdownTimeout)
	}
	if sc.TempDir != "/var/tmp/idextract" {
		t.Errorf("TempDir = %s", sc.TempDir)
	}
	if !sc.RateLimit.Enabled || sc.RateLimit.RequestsPerMinute != 10 {
		t.Errorf("RateLimit = %+v", sc.RateLimit)
	}
	if sc.RateLimit.MaxDataPerDay != 2*1024*1024 {
		t.Errorf("MaxDataPerDay = %d, want %d", sc.RateLimit.MaxDataPerDay, 2*1024*1024)
	}
	if len(sc.TrustedProxies) != 1 || sc.TrustedProxies[0] != "10.0.0.0/8" {
		t.Errorf("TrustedProxies = %v", sc.TrustedProxies)
	}
	if sc.PipelineConfig.ArabicMode != pipeline.ArabicModeRegions {
		t.Errorf("PipelineConfig not populated: %+v", sc.PipelineConfig)
	}
}

// TestToServerConfigBuildsServer checks the converted config is accepted by the server.
func TestToServerConfigBuildsServer(t *testing.T) {
	cfg := DefaultConfig()
	sc, err := cfg.ToServerConfig()
	if err != nil {
		t.Fatalf("ToServerConfig() error: %v", err)
	}
	if _, err := server.NewServer(sc); err != nil {
		t.Errorf("NewServer() error: %v", err)
	}
}

func TestToPipelineConfigRejectsBadStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.ArabicText.Ops = []normalize.Op{{Name: normalize.OpResize}}
	if _, err := cfg.ToPipelineConfig(); err == nil {
		t.Error("Expected error for resize without width or scale")
	}
	if _, err := cfg.ToServerConfig(); err == nil {
		t.Error("Expected ToServerConfig to surface the pipeline error")
	}
}
