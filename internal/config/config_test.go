package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.History.Limit)
	assert.Equal(t, 24*time.Hour, cfg.GetBackupInterval())
	assert.Equal(t, 2*time.Second, cfg.GetAutosaveDelay())
}

func TestLoadFrom_FileAndDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[history]
limit = 25

[storage]
path = "/data/cardtable.db"

[log]
format = "json"
`), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.History.Limit)
	assert.Equal(t, "/data/cardtable.db", cfg.Storage.Path)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:8472", cfg.Server.Address, "keys missing from the file keep their defaults")
	assert.Equal(t, 10, cfg.Storage.Revisions)
}

func TestLoadFrom_MissingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DirName, "cardtable.db"), cfg.Storage.Path)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CARDTABLE_HISTORY_LIMIT", "7")
	t.Setenv("CARDTABLE_SERVER_ADDRESS", ":9000")
	t.Setenv("CARDTABLE_SERVER_ALLOWED_ORIGINS", "http://a,http://b")
	t.Setenv("CARDTABLE_IMPORT_WATCH", "true")
	t.Setenv("CARDTABLE_IMPORT_FEED_DIR", "/feed")

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[history]\nlimit = 25\n"), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.History.Limit, "the environment wins over the file")
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Import.Watch)
	assert.Equal(t, "/feed", cfg.Import.FeedDir)
}

func TestLoadFrom_Invalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	cases := map[string]string{
		"syntax":   "[history\n",
		"limit":    "[history]\nlimit = 0\n",
		"duration": "[storage]\nautosave_delay = \"soon\"\n",
		"level":    "[log]\nlevel = \"loud\"\n",
		"format":   "[log]\nformat = \"xml\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".toml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := LoadFrom(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.History.Limit = 42
	cfg.Storage.Path = "/tmp/x.db"
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
