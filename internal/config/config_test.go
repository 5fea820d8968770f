package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	t.Setenv("OS_API_KEY", "test-key")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.Provider.APIKey)
	assert.Equal(t, "https://api.opensubtitles.com/api/v1", cfg.Provider.APIURL)
	assert.Equal(t, "auto", cfg.Pipeline.Mode)
	assert.Equal(t, "en", cfg.Pipeline.ReferenceLang)
	assert.Equal(t, "pt-br", cfg.Pipeline.TargetLang)
	assert.Equal(t, 3, cfg.Pipeline.MaxVariants)
	assert.Equal(t, ":7000", cfg.Server.ListenAddr)
	assert.Equal(t, 25*time.Second, cfg.Server.FetchTimeout)

	// paths derive from the cache directory when not set explicitly
	assert.Equal(t, "./subtitle_cache", cfg.Storage.CacheDir)
	assert.Equal(t, "./subtitle_cache/autosync.db", cfg.Storage.DBPath)
	assert.Equal(t, "./subtitle_cache/tmp", cfg.Pipeline.TempDir)
}

func TestNewFromEnv_EnvOverrides(t *testing.T) {
	t.Setenv("OS_API_KEY", "test-key")
	t.Setenv("TARGET_LANG", "es")
	t.Setenv("MAX_VARIANTS", "1")
	t.Setenv("FETCH_TIMEOUT", "90s")
	t.Setenv("CACHE_DIR", "/var/lib/autosync")
	t.Setenv("PIPELINE_MODE", "align")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "es", cfg.Pipeline.TargetLang)
	assert.Equal(t, 1, cfg.Pipeline.MaxVariants)
	assert.Equal(t, 90*time.Second, cfg.Server.FetchTimeout)
	assert.Equal(t, "align", cfg.Pipeline.Mode)
	assert.Equal(t, "/var/lib/autosync/autosync.db", cfg.Storage.DBPath)
	assert.Equal(t, "/var/lib/autosync/tmp", cfg.Pipeline.TempDir)
}

func TestNewFromEnv_FileOverlayAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autosync.toml")
	content := `
[pipeline]
target_lang = "fr"
max_variants = 2

[server]
listen_addr = ":9000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("OS_API_KEY", "test-key")
	t.Setenv("AUTOSYNC_CONFIG", path)
	t.Setenv("TARGET_LANG", "es") // environment beats the file

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "es", cfg.Pipeline.TargetLang)
	assert.Equal(t, 2, cfg.Pipeline.MaxVariants)
	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
}

func TestNewFromEnv_MissingConfigFileFails(t *testing.T) {
	t.Setenv("OS_API_KEY", "test-key")
	t.Setenv("AUTOSYNC_CONFIG", "/nonexistent/autosync.toml")

	_, err := NewFromEnv()
	require.Error(t, err)
}

func TestNewFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing provider key",
			env:  map[string]string{"OS_API_KEY": ""},
		},
		{
			name: "translate mode without engine key",
			env:  map[string]string{"OS_API_KEY": "k", "PIPELINE_MODE": "translate", "TRANSLATE_API_KEY": ""},
		},
		{
			name: "unknown mode",
			env:  map[string]string{"OS_API_KEY": "k", "PIPELINE_MODE": "turbo"},
		},
		{
			name: "too many variants",
			env:  map[string]string{"OS_API_KEY": "k", "MAX_VARIANTS": "5"},
		},
		{
			name: "zero variants",
			env:  map[string]string{"OS_API_KEY": "k", "MAX_VARIANTS": "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestNewFromEnv_Options(t *testing.T) {
	t.Setenv("OS_API_KEY", "test-key")

	cfg, err := NewFromEnv(func(c *Config) {
		c.Pipeline.WorkerCount = 8
	})
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Pipeline.WorkerCount)
}
