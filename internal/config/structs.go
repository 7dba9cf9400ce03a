//nolint:lll
package config

import (
	"github.com/MeKo-Tech/idextract/internal/normalize"
	"github.com/MeKo-Tech/idextract/internal/regions"
)

// Config represents the complete configuration for the idextract application.
// It covers the extract and serve commands and supports loading from
// configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Output configuration (for extract command)
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// PipelineConfig contains extraction pipeline settings.
type PipelineConfig struct {
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier" json:"classifier"`

	// Full-page pass used for classification and the labeled templates
	FullPage StepConfig `mapstructure:"full_page" yaml:"full_page" json:"full_page"`

	// Arabic layout
	ArabicMode        string                `mapstructure:"arabic_mode" yaml:"arabic_mode" json:"arabic_mode"`
	ArabicText        StepConfig            `mapstructure:"arabic_text" yaml:"arabic_text" json:"arabic_text"`
	Regions           map[string]StepConfig `mapstructure:"regions" yaml:"regions" json:"regions"`
	Calibration       regions.Calibration   `mapstructure:"calibration" yaml:"calibration" json:"calibration"`
	ConcurrentRegions bool                  `mapstructure:"concurrent_regions" yaml:"concurrent_regions" json:"concurrent_regions"`

	// Template skips classification when set
	Template string `mapstructure:"template" yaml:"template" json:"template"`

	// PDF page selection, pdfcpu syntax
	PDFPages string `mapstructure:"pdf_pages" yaml:"pdf_pages" json:"pdf_pages"`
}

// RecognizerConfig contains recognition engine settings.
type RecognizerConfig struct {
	TessdataPrefix string            `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix" json:"tessdata_prefix"`
	TimeoutSec     int               `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	Variables      map[string]string `mapstructure:"variables" yaml:"variables" json:"variables"`
	NormalizeForm  string            `mapstructure:"normalize_form" yaml:"normalize_form" json:"normalize_form"`
}

// ClassifierConfig contains template marker tokens.
type ClassifierConfig struct {
	NameLabels      []string `mapstructure:"name_labels" yaml:"name_labels" json:"name_labels"`
	PassportBanners []string `mapstructure:"passport_banners" yaml:"passport_banners" json:"passport_banners"`
}

// StepConfig describes the normalization and recognition of one image.
type StepConfig struct {
	Language    string         `mapstructure:"language" yaml:"language" json:"language"`
	PageSegMode int            `mapstructure:"psm" yaml:"psm" json:"psm"`
	Ops         []normalize.Op `mapstructure:"ops" yaml:"ops" json:"ops"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	TempDir         string          `mapstructure:"temp_dir" yaml:"temp_dir" json:"temp_dir"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`

	// Proxies whose X-Forwarded-For / X-Real-IP headers are believed
	TrustedProxies []string `mapstructure:"trusted_proxies" yaml:"trusted_proxies" json:"trusted_proxies"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}
