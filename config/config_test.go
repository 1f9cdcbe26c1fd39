package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, time.Second, cfg.GetDebounce())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemaform.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/schemaform.db
autosave:
  debounce: 250ms
confidence:
  high: 0.95
  medium: 0.6
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/schemaform.db", cfg.Database.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.GetDebounce())
	assert.Equal(t, 0.95, cfg.Confidence.High)
	assert.Equal(t, 30*time.Second, cfg.GetAutosaveTimeout(), "unset keys keep defaults")
	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCHEMAFORM_DB", "env.db")
	t.Setenv("SCHEMAFORM_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("SCHEMAFORM_DEBOUNCE", "2s")
	t.Setenv("SCHEMAFORM_LOG_LEVEL", "WARN")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env.db", cfg.Database.Path)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, 2*time.Second, cfg.GetDebounce())
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_RejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"debounce":   "autosave:\n  debounce: soon\n",
		"log level":  "logging:\n  level: chatty\n",
		"thresholds": "confidence:\n  high: 0.5\n  medium: 0.8\n",
		"yaml":       "database: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "c.yaml")
	cfg := DefaultConfig()
	cfg.Table.ColumnLimit = 6
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, loaded.Table.ColumnLimit)
}
