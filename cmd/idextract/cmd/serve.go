package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/idextract/internal/config"
	"github.com/MeKo-Tech/idextract/internal/pipeline"
	"github.com/MeKo-Tech/idextract/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for document extraction",
	Long: `Start an HTTP server that extracts identity document fields from uploads.

The server provides the following endpoints:
  POST /upload/    - Extract fields from a multipart upload (field "file")
  GET  /ws/upload  - WebSocket upload, one result per message
  GET  /health     - Health check endpoint
  GET  /metrics    - Prometheus metrics

Examples:
  idextract serve
  idextract serve --port 8000
  idextract serve --host 0.0.0.0 --allowed-origin https://app.example`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		applyServeFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		serverConfig, err := cfg.ToServerConfig()
		if err != nil {
			return err
		}
		pl, err := pipeline.NewBuilderFromConfig(serverConfig.PipelineConfig).
			WithEngine(newEngine(serverConfig.PipelineConfig.Recognizer)).
			Build()
		if err != nil {
			return fmt.Errorf("failed to initialize pipeline: %w", err)
		}
		slog.Info("pipeline ready", "info", pl.Info())

		srv := server.New(serverConfig, pl)
		return server.ListenAndServe(cmd.Context(), serverConfig, srv.Handler())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().StringSlice("allowed-origin", nil, "CORS allowed origins (repeatable, * allows any)")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().String("temp-dir", "", "directory for uploaded files while they are processed")
	serveCmd.Flags().String("tessdata", "", "tessdata directory")
	serveCmd.Flags().String("arabic-mode", "", "Arabic layout output: regions or text")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 30, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 500, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 0, "maximum requests per day per client (0 = unlimited)")
	serveCmd.Flags().Int64("max-data-per-day", 0, "maximum upload data per day per client in MB (0 = unlimited)")
	serveCmd.Flags().StringSlice("trusted-proxy", nil, "proxy address or CIDR whose forwarding headers identify the client (repeatable)")
}

// applyServeFlags overrides configuration with flags set on the command line.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	s := &cfg.Server
	if flags.Changed("host") {
		s.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		s.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("allowed-origin") {
		s.AllowedOrigins, _ = flags.GetStringSlice("allowed-origin")
	}
	if flags.Changed("max-upload-size") {
		s.MaxUploadMB, _ = flags.GetInt("max-upload-size")
	}
	if flags.Changed("timeout") {
		s.TimeoutSec, _ = flags.GetInt("timeout")
	}
	if flags.Changed("shutdown-timeout") {
		s.ShutdownTimeout, _ = flags.GetInt("shutdown-timeout")
	}
	if flags.Changed("temp-dir") {
		s.TempDir, _ = flags.GetString("temp-dir")
	}
	if flags.Changed("tessdata") {
		cfg.Pipeline.Recognizer.TessdataPrefix, _ = flags.GetString("tessdata")
	}
	if flags.Changed("arabic-mode") {
		cfg.Pipeline.ArabicMode, _ = flags.GetString("arabic-mode")
	}
	if flags.Changed("rate-limit-enabled") {
		s.RateLimit.Enabled, _ = flags.GetBool("rate-limit-enabled")
	}
	if flags.Changed("requests-per-minute") {
		s.RateLimit.RequestsPerMinute, _ = flags.GetInt("requests-per-minute")
	}
	if flags.Changed("requests-per-hour") {
		s.RateLimit.RequestsPerHour, _ = flags.GetInt("requests-per-hour")
	}
	if flags.Changed("max-requests-per-day") {
		s.RateLimit.MaxRequestsPerDay, _ = flags.GetInt("max-requests-per-day")
	}
	if flags.Changed("max-data-per-day") {
		s.RateLimit.MaxDataPerDayMB, _ = flags.GetInt64("max-data-per-day")
	}
	if flags.Changed("trusted-proxy") {
		s.TrustedProxies, _ = flags.GetStringSlice("trusted-proxy")
	}
}
