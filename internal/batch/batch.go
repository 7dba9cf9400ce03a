// Package batch runs the extraction pipeline over many documents.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/idextract/internal/common"
	"github.com/MeKo-Tech/idextract/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

// ErrNoDocuments is returned when discovery finds nothing to extract.
var ErrNoDocuments = errors.New("no documents found")

// Extractor is the part of a pipeline a batch run needs.
type Extractor interface {
	ExtractFile(ctx context.Context, path string) pipeline.Result
}

// Config holds document discovery and parallelism settings.
type Config struct {
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
	Workers         int
}

// DefaultConfig processes one document at a time without recursion.
func DefaultConfig() Config {
	return Config{Workers: 1}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d (must be at least 1)", c.Workers)
	}
	return nil
}

// Item is the extraction of one document.
type Item struct {
	File     string          `json:"file"`
	Result   pipeline.Result `json:"result"`
	Duration time.Duration   `json:"-"`
}

// Result holds every item in discovery order.
type Result struct {
	Items    []Item
	Duration time.Duration
	Workers  int
}

// Failed counts the items whose envelope reports a failure.
func (r *Result) Failed() int {
	n := 0
	for _, it := range r.Items {
		if !it.Result.Success {
			n++
		}
	}
	return n
}

// Run discovers the documents named by inputs and extracts them with up to
// cfg.Workers documents in flight. A failed document does not stop the run;
// its envelope is kept in the result. Cancelling ctx marks the remaining
// documents as canceled.
func Run(ctx context.Context, ex Extractor, inputs []string, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	files, err := discoverDocuments(inputs, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover documents: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoDocuments
	}

	workers := min(cfg.Workers, len(files))
	slog.Debug("batch started", "documents", len(files), "workers", workers)

	items := make([]Item, len(files))
	start := time.Now()
	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			items[i] = extractOne(ctx, ex, path)
			return nil
		})
	}
	_ = g.Wait()

	return &Result{Items: items, Duration: time.Since(start), Workers: workers}, nil
}

func extractOne(ctx context.Context, ex Extractor, path string) Item {
	if err := ctx.Err(); err != nil {
		return Item{File: path, Result: pipeline.Failure(err)}
	}
	timer := common.NewNamedTimer(path)
	res := ex.ExtractFile(ctx, path)
	timer.Stop()
	if res.Success {
		slog.Info("extraction completed", "file", path, "template", res.Template, "duration", timer)
	} else {
		slog.Warn("extraction failed", "file", path, "error", res.Error, "code", res.Code)
	}
	return Item{File: path, Result: res, Duration: timer.Duration()}
}
