package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Workdir)
	assert.Equal(t, DefaultSources, cfg.Sources)
	assert.Equal(t, "images", cfg.Storage.ImagesDir)
	assert.Equal(t, "images/processed", cfg.Storage.ProcessedDir)
	assert.Equal(t, 60*time.Second, cfg.Fetcher.Timeout)
	assert.True(t, cfg.Fetcher.ValidateStatus)
	assert.False(t, cfg.Fetcher.VerifyContent)
	assert.Equal(t, "scan", cfg.Pipeline.Handoff)
	assert.False(t, cfg.Pipeline.ContinueOnError)
	assert.Len(t, cfg.Sources, 21)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
workdir: /tmp/run
sources:
  - https://example.com/foo/bar-123?w=800&h=600
  - https://example.com/baz
fetcher:
  workers: 4
  timeout: 5s
  validate_status: false
transformer:
  workers: 2
pipeline:
  handoff: list
  continue_on_error: true
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/run", cfg.Workdir)
	assert.Equal(t, []string{"https://example.com/foo/bar-123?w=800&h=600", "https://example.com/baz"}, cfg.Sources)
	assert.Equal(t, 4, cfg.Fetcher.Workers)
	assert.Equal(t, 5*time.Second, cfg.Fetcher.Timeout)
	assert.False(t, cfg.Fetcher.ValidateStatus)
	assert.Equal(t, 32, cfg.Fetcher.MaxIdleConnsPerHost)
	assert.Equal(t, 2, cfg.Transformer.Workers)
	assert.Equal(t, "list", cfg.Pipeline.Handoff)
	assert.True(t, cfg.Pipeline.ContinueOnError)
}

func TestLoadEmptySourceList(t *testing.T) {
	cfg, err := Load(writeConfig(t, "sources: []\n"), nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Sources)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("THUMBNAILER_FETCHER_WORKERS", "7")
	t.Setenv("THUMBNAILER_PIPELINE_HANDOFF", "list")

	cfg, err := Load(writeConfig(t, "fetcher:\n  workers: 3\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Fetcher.Workers)
	assert.Equal(t, "list", cfg.Pipeline.Handoff)
}

func TestLoadFlagsOverride(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--workdir", "/data",
		"--source", "https://example.com/a",
		"--source", "https://example.com/b?x=1",
		"--transform-workers", "1",
		"--continue-on-error",
	}))

	cfg, err := Load(writeConfig(t, "workdir: /ignored\nfetcher:\n  workers: 3\n"), fs)
	require.NoError(t, err)

	assert.Equal(t, "/data", cfg.Workdir)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b?x=1"}, cfg.Sources)
	assert.Equal(t, 1, cfg.Transformer.Workers)
	assert.Equal(t, 3, cfg.Fetcher.Workers, "unset flag must not override the file")
	assert.True(t, cfg.Pipeline.ContinueOnError)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"), nil)
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "fetcher:\n  workers: -1\n"), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(writeConfig(t, "storage:\n  images_dir: out\n  processed_dir: out\n"), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
