package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, ":8600", cfg.ListenAddr)
	assert.Equal(t, "edlog.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Equal(t, ":8600", cfg.ListenAddr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"listen_addr: \":9900\"\ndb_path: /tmp/sessions.db\nlog_level: debug\n",
	), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":9900", cfg.ListenAddr)
	assert.Equal(t, "/tmp/sessions.db", cfg.DBPath)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9900\"\n"), 0o644))
	t.Setenv("EDLOG_LISTEN_ADDR", ":7000")
	t.Setenv("EDLOG_EXEC_URL", "http://runner:9090")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "http://runner:9090", cfg.ExecURL)
}

func TestLoad_RejectsBadLogLevel(t *testing.T) {
	t.Setenv("EDLOG_LOG_LEVEL", "loud")

	_, err := Load("")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: [oops\n"), 0o644))

	_, err := Load(path)

	require.Error(t, err)
}
