package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Theme.Preset)
	assert.Equal(t, DefaultTimeoutsConfig(), cfg.Timeouts)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
theme:
  preset: dracula
timeouts:
  worker_spawn: 20s
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dracula", cfg.Theme.Preset)
	assert.Equal(t, 20*time.Second, cfg.Timeouts.WorkerSpawn)
}

func TestFlattenedColorsHandlesNestedMaps(t *testing.T) {
	theme := ThemeConfig{
		Colors: map[string]any{
			"status": map[string]any{
				"running": "#00FF00",
				"stopped": "#FF0000",
			},
			"border": "#333333",
		},
	}
	flat := theme.FlattenedColors()
	assert.Equal(t, "#00FF00", flat["status.running"])
	assert.Equal(t, "#FF0000", flat["status.stopped"])
	assert.Equal(t, "#333333", flat["border"])
}

func TestDefaultConfigPathUnderUserConfigDir(t *testing.T) {
	assert.Equal(t, filepath.Join(Defaults().UserConfigDir, "config.yaml"), DefaultConfigPath())
}
