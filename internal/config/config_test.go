package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "nativefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func Test_Config_Defaults_Valid(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.LockOSThread)
	assert.False(t, cfg.Uring.Enabled)
}

func Test_Config_LoadFromFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
buffers:
  free_list_depth: 8
  verify_owner_tags: true
io_uring:
  enabled: true
  entries: 64
disable: [xattr, birthtime]
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.Buffers.FreeListDepth)
	assert.True(t, cfg.Buffers.VerifyOwnerTags)
	assert.True(t, cfg.Uring.Enabled)
	assert.Equal(t, uint32(64), cfg.Uring.Entries)
	assert.Equal(t, []string{"xattr", "birthtime"}, cfg.Disable)
	// untouched keys keep their defaults
	assert.True(t, cfg.LockOSThread)
}

func Test_Config_LoadFromFile_Invalid(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "io_uring: {enabled: true, entries: 3}\n"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeConfig(t, "log_level: loud\n"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeConfig(t, "buffers: [\n"))
	assert.Error(t, err)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func Test_Config_ParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	assert.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	lvl, err = ParseLevel("")
	assert.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}
