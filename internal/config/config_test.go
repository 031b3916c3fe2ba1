package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "spanview.db", filepath.Base(cfg.DBPath))
	assert.Equal(t, 1000, cfg.ImportBatchSize)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.SpanNameColumnWidth)
	assert.Equal(t, 200, cfg.TraceLimit)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
db_path: /tmp/traces.db
span_name_column_width: 0.4
import_flush_interval: 2s
watch: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/traces.db", cfg.DBPath)
	assert.Equal(t, 0.4, cfg.SpanNameColumnWidth)
	assert.Equal(t, 2*time.Second, cfg.ImportFlushInterval)
	assert.True(t, cfg.Watch)
	// untouched keys keep their defaults
	assert.Equal(t, 1.0, cfg.ViewEnd)
	assert.Equal(t, 1000, cfg.ImportBatchSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "trace_limit: 50\n")
	t.Setenv(EnvTraceLimit, "75")
	t.Setenv(EnvViewStart, "0.2")
	t.Setenv(EnvWatch, "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.TraceLimit)
	assert.Equal(t, 0.2, cfg.ViewStart)
	assert.True(t, cfg.Watch)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "trace_limit: [nope\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing config file")
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{EnvColumnWidth, "wide"},
		{EnvBatchSize, "lots"},
		{EnvFlushInterval, "soon"},
		{EnvWatch, "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			err := DefaultConfig().ApplyEnv()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"inverted view range", func(c *Config) { c.ViewStart, c.ViewEnd = 0.8, 0.2 }, "view range"},
		{"view end past one", func(c *Config) { c.ViewEnd = 1.5 }, "view range"},
		{"column width", func(c *Config) { c.SpanNameColumnWidth = 1 }, "column width"},
		{"trace limit", func(c *Config) { c.TraceLimit = 0 }, "trace limit"},
		{"batch size", func(c *Config) { c.ImportBatchSize = -1 }, "batch size"},
		{"db path", func(c *Config) { c.DBPath = "" }, "db path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
