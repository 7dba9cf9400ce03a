package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/idextract/internal/batch"
	"github.com/MeKo-Tech/idextract/internal/config"
	"github.com/MeKo-Tech/idextract/internal/pipeline"
	"github.com/MeKo-Tech/idextract/internal/recognizer"
	"github.com/spf13/cobra"
)

const (
	outputFormatJSON   = "json"
	outputFormatPretty = "pretty"
)

// newEngine creates the recognition backend; tests replace it.
var newEngine = recognizer.NewEngine

// extractCmd represents the extract command.
var extractCmd = &cobra.Command{
	Use:   "extract <file|dir>...",
	Short: "Extract identity document fields from images or PDFs",
	Long: `Extract fields from one or more scanned identity documents.

Supported formats: JPEG, PNG, BMP, TIFF, and scanned PDFs (first page image).
Directories are searched for documents (--recursive descends into
subdirectories). A single file prints its result envelope; anything else
prints an array of {file, result} objects in discovery order.

Examples:
  idextract extract card.jpg
  idextract extract front.png back.png --format pretty
  idextract extract scan.pdf --pages 2 --output result.json
  idextract extract card.jpg --template arabic --arabic-mode text
  idextract extract card.jpg --boxes --format pretty
  idextract extract scans/ --recursive --include '*.png' --workers 4`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		if err := applyExtractFlags(cmd, cfg); err != nil {
			return err
		}
		pCfg, err := cfg.ToPipelineConfig()
		if err != nil {
			return err
		}

		boxes, _ := cmd.Flags().GetBool("boxes")
		pl, err := pipeline.NewBuilderFromConfig(pCfg).
			WithEngine(newEngine(pCfg.Recognizer)).
			WithWordBoxes(boxes).
			Build()
		if err != nil {
			return fmt.Errorf("failed to create pipeline: %w", err)
		}
		slog.Debug("pipeline ready", "info", pl.Info())

		res, err := batch.Run(cmd.Context(), pl, args, batchConfig(cmd))
		if err != nil {
			return err
		}
		slog.Debug("batch finished", "documents", len(res.Items), "workers", res.Workers, "duration", res.Duration)

		single := len(args) == 1 && len(res.Items) == 1 && res.Items[0].File == args[0]
		if err := writeResults(cmd, cfg.Output, res.Items, single); err != nil {
			return err
		}
		if failed := res.Failed(); failed > 0 {
			return fmt.Errorf("%d of %d documents failed", failed, len(res.Items))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringP("template", "t", "", "skip classification: latin, passport or arabic")
	extractCmd.Flags().String("arabic-mode", "", "Arabic layout output: regions or text")
	extractCmd.Flags().String("pages", "", "PDF pages searched for the document image (e.g. 1-2)")
	extractCmd.Flags().String("tessdata", "", "tessdata directory")
	extractCmd.Flags().Bool("sequential", false, "recognize Arabic layout regions one at a time")
	extractCmd.Flags().StringP("format", "f", "", "output format: json or pretty")
	extractCmd.Flags().StringP("output", "o", "", "write results to file instead of stdout")
	extractCmd.Flags().Bool("boxes", false, "include full-page word boxes in each result")
	extractCmd.Flags().BoolP("recursive", "r", false, "search directories recursively")
	extractCmd.Flags().StringSlice("include", nil, "only extract files matching these glob patterns")
	extractCmd.Flags().StringSlice("exclude", nil, "skip files matching these glob patterns")
	extractCmd.Flags().IntP("workers", "w", 1, "documents extracted in parallel")
}

// batchConfig reads the discovery and parallelism flags.
func batchConfig(cmd *cobra.Command) batch.Config {
	flags := cmd.Flags()
	cfg := batch.DefaultConfig()
	cfg.Recursive, _ = flags.GetBool("recursive")
	cfg.IncludePatterns, _ = flags.GetStringSlice("include")
	cfg.ExcludePatterns, _ = flags.GetStringSlice("exclude")
	cfg.Workers, _ = flags.GetInt("workers")
	return cfg
}

// applyExtractFlags overrides configuration with flags set on the command line.
func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("template") {
		cfg.Pipeline.Template, _ = flags.GetString("template")
	}
	if flags.Changed("arabic-mode") {
		cfg.Pipeline.ArabicMode, _ = flags.GetString("arabic-mode")
	}
	if flags.Changed("pages") {
		cfg.Pipeline.PDFPages, _ = flags.GetString("pages")
	}
	if flags.Changed("tessdata") {
		cfg.Pipeline.Recognizer.TessdataPrefix, _ = flags.GetString("tessdata")
	}
	if flags.Changed("sequential") {
		sequential, _ := flags.GetBool("sequential")
		cfg.Pipeline.ConcurrentRegions = !sequential
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("output") {
		cfg.Output.File, _ = flags.GetString("output")
	}
	switch cfg.Output.Format {
	case "", outputFormatJSON, outputFormatPretty:
		return nil
	default:
		return fmt.Errorf("invalid output format: %s (must be json or pretty)", cfg.Output.Format)
	}
}

// writeResults renders the results to the configured destination.
func writeResults(cmd *cobra.Command, out config.OutputConfig, items []batch.Item, single bool) (err error) {
	var w io.Writer = cmd.OutOrStdout()
	if out.File != "" {
		f, err := os.Create(out.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			err = errors.Join(err, f.Close())
		}()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if out.Format == outputFormatPretty {
		enc.SetIndent("", "  ")
	}
	if single {
		return enc.Encode(items[0].Result)
	}
	return enc.Encode(items)
}
