package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")

	out, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	_, _, err = execute(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, "config", "init", path, "--force")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  arabic_mode: text\nserver:\n  port: 9000\n"), 0o600))
	out, _, err = execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# loaded from "+path)
	assert.Contains(t, out, "arabic_mode: text")
	assert.Contains(t, out, "port: 9000")
	assert.Contains(t, out, "date_of_birth:")
}

func TestConfigInitDefaultName(t *testing.T) {
	_, _, err := execute(t, "config", "init")
	require.NoError(t, err)
	_, err = os.Stat("idextract.yaml")
	assert.NoError(t, err)
}

func TestConfigMissingFile(t *testing.T) {
	_, _, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestConfigPaths(t *testing.T) {
	out, _, err := execute(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, out, "/etc/idextract")
	assert.Contains(t, out, "IDEXTRACT_")
}

func TestConfigEnvironmentOverride(t *testing.T) {
	t.Setenv("IDEXTRACT_SERVER_PORT", "7777")
	out, _, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 7777")
}
