package support

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/MeKo-Tech/idextract/internal/pipeline"
	"github.com/MeKo-Tech/idextract/internal/recognizer"
	"github.com/MeKo-Tech/idextract/internal/server"
	"github.com/MeKo-Tech/idextract/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Engine answers every recognition call made by the pipeline.
	Engine recognizer.Engine

	// Server configuration applied when the server starts.
	ServerConfig server.Config
	ArabicMode   string

	HTTPTestServer *httptest.Server
	TempDir        string

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    http.Header
	LastJSON           map[string]any
}

// NewTestContext creates a scenario context with a private temp directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "idextract-api-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		Engine:  &testutil.FakeEngine{},
		TempDir: tempDir,
		ServerConfig: server.Config{
			TimeoutSec:  30,
			MaxUploadMB: 50,
			TempDir:     tempDir,
		},
	}, nil
}

// StartServer builds a pipeline around the scenario engine and serves it.
func (testCtx *TestContext) StartServer() error {
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Close()
	}
	b := pipeline.NewBuilder().WithEngine(testCtx.Engine)
	if testCtx.ArabicMode != "" {
		b = b.WithArabicMode(testCtx.ArabicMode)
	}
	pl, err := b.Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	srv := server.New(testCtx.ServerConfig, pl)
	testCtx.HTTPTestServer = httptest.NewServer(srv.Handler())
	return nil
}

// ServerURL returns the base URL of the running test server.
func (testCtx *TestContext) ServerURL() string {
	if testCtx.HTTPTestServer == nil {
		return ""
	}
	return testCtx.HTTPTestServer.URL
}

// Cleanup stops the server and removes scenario files.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Close()
		testCtx.HTTPTestServer = nil
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}
