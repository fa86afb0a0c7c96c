package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `{"unsplash.com": {"access": "abc"}, "feed": {"debounceMs": 250}}`))
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Unsplash.AccessKey)
	assert.Equal(t, dbFile, cfg.Database)
	assert.Equal(t, ":8081", cfg.Listen)
	assert.Equal(t, 2, cfg.Layout.Columns)
	assert.Equal(t, 6.0, cfg.Layout.Padding)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce())
	assert.Equal(t, 250*time.Millisecond, cfg.RateInterval())
	assert.Equal(t, 30*time.Minute, cfg.SessionIdle())
	assert.Equal(t, DefaultImageHosts, cfg.Images.Hosts)
	assert.False(t, cfg.Debug.Pprof)

	searchers := buildSearchers(cfg, nil)
	require.Len(t, searchers, 1)
	assert.Equal(t, "unsplash", searchers[0].Type())
}

func TestLoadConfigSyntaxErrorPosition(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "{\n  \"listen\": \":80\",\n  \"auth\": tru, \"rateLimitMs\": 10\n}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Line: 3")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
