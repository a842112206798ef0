package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetForTest clears the singleton so each test can exercise LoadConfig
// independently within the same test binary.
func resetForTest() {
	appConfig = nil
	initErr = nil
	once = sync.Once{}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	resetForTest()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, defaults, *cfg)
}

func TestLoadConfig_PartialYAMLFillsDefaults(t *testing.T) {
	resetForTest()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "internal", "config"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "internal", "config", "config.yml"),
		[]byte("DATA_DIR: /tmp/custom-data\n"),
		0o644,
	))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-data", cfg.DATA_DIR)
	assert.Equal(t, defaults.COMPACTION_THRESHOLD_BYTES, cfg.COMPACTION_THRESHOLD_BYTES)
	assert.Equal(t, defaults.POOL_KIND, cfg.POOL_KIND)
}

func TestLoadConfig_IsASingleton(t *testing.T) {
	resetForTest()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	first, err := LoadConfig()
	require.NoError(t, err)
	second, err := LoadConfig()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestGetConfig_PanicsBeforeLoad(t *testing.T) {
	resetForTest()
	assert.Panics(t, func() { GetConfig() })
}
