package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/MeKo-Tech/idextract/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultAllowedOrigin is the browser client allowed when no origins are configured.
const DefaultAllowedOrigin = "https://clientapp-dev.intelpeek.com"

// extractor is what the server needs from a pipeline.
type extractor interface {
	ExtractFile(ctx context.Context, path string) pipeline.Result
	ExtractBytes(ctx context.Context, data []byte, filename string) pipeline.Result
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	extractor      extractor
	allowedOrigins []string
	maxUploadMB    int64
	timeout        time.Duration
	tempDir        string
	rateLimiter    *RateLimiter
	trustedProxies []netip.Prefix
}

// RateLimitConfig holds per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	AllowedOrigins  []string
	MaxUploadMB     int64
	TimeoutSec      int
	ShutdownTimeout int
	TempDir         string
	RateLimit       RateLimitConfig
	PipelineConfig  pipeline.Config

	// TrustedProxies lists addresses or CIDR ranges whose forwarding headers
	// identify the client. Empty trusts no one.
	TrustedProxies []string
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// NewServer builds the extraction pipeline from config and wraps it in a server.
func NewServer(config Config) (*Server, error) {
	if _, err := ParseTrustedProxies(config.TrustedProxies); err != nil {
		return nil, err
	}
	pl, err := pipeline.NewBuilderFromConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}
	return New(config, pl), nil
}

// New creates a server around an existing extractor.
func New(config Config, ex extractor) *Server {
	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{DefaultAllowedOrigin}
	}
	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 50
	}
	s := &Server{
		extractor:      ex,
		allowedOrigins: origins,
		maxUploadMB:    maxUpload,
		timeout:        time.Duration(config.TimeoutSec) * time.Second,
		tempDir:        config.TempDir,
	}
	proxies, err := ParseTrustedProxies(config.TrustedProxies)
	if err != nil {
		slog.Warn("Ignoring trusted proxies", "error", err)
	}
	s.trustedProxies = proxies
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/upload/", s.corsMiddleware(s.rateLimitMiddleware(s.uploadHandler)))
	mux.HandleFunc("/ws/upload", s.corsMiddleware(s.uploadWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func ListenAndServe(ctx context.Context, cfg Config, handler http.Handler) error {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		// Extraction runs within the write window.
		WriteTimeout: timeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting extraction server", "host", cfg.Host, "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdown := time.Duration(cfg.ShutdownTimeout) * time.Second
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()
	slog.Info("Shutting down extraction server", "timeout", shutdown)
	if err := httpServer.Shutdown(sctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
