package batch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/idextract/internal/pipeline"
	"github.com/MeKo-Tech/idextract/internal/recognizer"
	"github.com/MeKo-Tech/idextract/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowExtractor succeeds for every path except those containing "bad" and
// tracks how many calls overlap.
type slowExtractor struct {
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32

	mu    sync.Mutex
	paths []string
}

func (s *slowExtractor) ExtractFile(ctx context.Context, path string) pipeline.Result {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()

	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return pipeline.Failure(ctx.Err())
	}
	if strings.Contains(path, "bad") {
		return pipeline.Failure(pipeline.ErrInvalidImage)
	}
	return pipeline.Result{Success: true, Data: map[string]string{"file": path}}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	err := Config{Workers: 0}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid workers")
}

func TestRunKeepsOrderAndFailures(t *testing.T) {
	ex := &slowExtractor{delay: 5 * time.Millisecond}
	inputs := []string{"/scans/a.png", "/scans/bad.png", "/scans/c.png"}

	res, err := Run(context.Background(), ex, inputs, Config{Workers: 3})
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	for i, it := range res.Items {
		assert.Equal(t, inputs[i], it.File)
	}
	assert.True(t, res.Items[0].Result.Success)
	assert.False(t, res.Items[1].Result.Success)
	assert.Equal(t, pipeline.CodeInvalidImage, res.Items[1].Result.Code)
	assert.Equal(t, 1, res.Failed())
	assert.Equal(t, 3, res.Workers)
	assert.Positive(t, res.Items[0].Duration)
}

func TestRunBoundsWorkers(t *testing.T) {
	ex := &slowExtractor{delay: 20 * time.Millisecond}
	inputs := []string{"1.png", "2.png", "3.png", "4.png", "5.png", "6.png"}

	res, err := Run(context.Background(), ex, inputs, Config{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Workers)
	assert.LessOrEqual(t, ex.maxSeen.Load(), int32(2))
	assert.Len(t, ex.paths, len(inputs))
}

func TestRunCapsWorkersAtDocumentCount(t *testing.T) {
	res, err := Run(context.Background(), &slowExtractor{}, []string{"only.png"}, Config{Workers: 8})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Workers)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := &slowExtractor{}

	res, err := Run(ctx, ex, []string{"a.png", "b.png"}, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed())
	for _, it := range res.Items {
		assert.Equal(t, pipeline.CodeCanceled, it.Result.Code)
	}
	assert.Empty(t, ex.paths)
}

func TestRunNoDocuments(t *testing.T) {
	_, err := Run(context.Background(), &slowExtractor{}, []string{t.TempDir()}, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = Run(context.Background(), &slowExtractor{}, []string{"a.png"}, Config{})
	assert.Error(t, err)
}

func TestRunWithPipeline(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDocument(t, dir, "card.png")
	testutil.WriteDocument(t, filepath.Join(dir, "more"), "second.png")

	pl, err := pipeline.NewBuilder().
		WithEngine(&testutil.FakeEngine{Text: "Name: John Smith\nSex: M"}).
		Build()
	require.NoError(t, err)

	res, err := Run(context.Background(), pl, []string{dir}, Config{Recursive: true, Workers: 2})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	for _, it := range res.Items {
		assert.True(t, it.Result.Success, it.Result.Error)
	}
}

func TestRunRecognitionUnavailable(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteDocument(t, dir, "card.png")

	pl, err := pipeline.NewBuilder().
		WithEngine(&testutil.FakeEngine{Err: recognizer.ErrRecognitionUnavailable}).
		Build()
	require.NoError(t, err)

	res, err := Run(context.Background(), pl, []string{path}, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, pipeline.CodeRecognitionUnavailable, res.Items[0].Result.Code)
}
