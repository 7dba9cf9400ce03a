package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/MeKo-Tech/idextract/internal/config"
	"github.com/MeKo-Tech/idextract/internal/recognizer"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of c and its subcommands to its default, since
// cobra keeps parsed values between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command in an isolated home and working directory.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Chdir(dir)

	resetFlags(rootCmd)
	cfgFile = ""
	globalConfig = nil

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func useEngine(t *testing.T, engine recognizer.Engine) {
	t.Helper()
	prev := newEngine
	newEngine = func(recognizer.Config) recognizer.Engine { return engine }
	t.Cleanup(func() { newEngine = prev })
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "idextract", GetRootCommand().Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "identity documents")
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "idextract dev (commit unknown")
}

func TestRootCommandSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, sub := range rootCmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"extract", "serve", "config"} {
		assert.Contains(t, names, expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	_, _, err := execute(t, "--no-such-flag")
	assert.Error(t, err)
}

func TestRootCommandRejectsInvalidLogLevel(t *testing.T) {
	_, _, err := execute(t, "config", "show", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestVerboseFlagIsBound(t *testing.T) {
	_, _, err := execute(t, "config", "show", "--verbose")
	require.NoError(t, err)
	assert.True(t, globalConfig.Verbose)
	assert.Equal(t, slog.LevelDebug, logLevel(globalConfig))
}

func TestLogLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, slog.LevelInfo, logLevel(&cfg))
	cfg.LogLevel = "warn"
	assert.Equal(t, slog.LevelWarn, logLevel(&cfg))
	cfg.LogLevel = "error"
	assert.Equal(t, slog.LevelError, logLevel(&cfg))
	cfg.Verbose = true
	assert.Equal(t, slog.LevelDebug, logLevel(&cfg))
}
