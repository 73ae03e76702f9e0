package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "fumo", cfg.Name)
	assert.Equal(t, 1200*time.Millisecond, cfg.Loading.GetMinStepDisplay())
	assert.Equal(t, 2*time.Second, cfg.Loading.GetDefaultCheckTimeout())
	assert.Equal(t, 16*time.Millisecond, cfg.Loading.GetTickInterval())
	assert.Equal(t, "auto", cfg.UI.Theme)
	assert.True(t, cfg.UI.KnownTheme())
}

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Loading.MinStepDisplay, cfg.Loading.MinStepDisplay)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
loading:
  min_step_display: 300ms
  default_check_timeout: 1s
  timeouts:
    theme: 500ms
  disabled:
    - runtime
ui:
  theme: dark
logging:
  debug_mode: true
  level: debug
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 300*time.Millisecond, cfg.Loading.GetMinStepDisplay())
		assert.Equal(t, time.Second, cfg.Loading.GetDefaultCheckTimeout())
		assert.Equal(t, 500*time.Millisecond, cfg.Loading.GetTimeout("theme"))
		assert.Equal(t, time.Duration(0), cfg.Loading.GetTimeout("terminal"))
		assert.True(t, cfg.Loading.IsDisabled("runtime"))
		assert.False(t, cfg.Loading.IsDisabled("theme"))
		assert.Equal(t, "dark", cfg.UI.Theme)
		assert.True(t, cfg.Logging.DebugMode)
	})

	t.Run("malformed yaml fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(":\n  - ["), 0644))

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("malformed durations fall back", func(t *testing.T) {
		cfg := &Config{Loading: LoadingConfig{
			MinStepDisplay:      "soon",
			DefaultCheckTimeout: "eventually",
			TickInterval:        "fast",
		}}
		assert.Equal(t, 1200*time.Millisecond, cfg.Loading.GetMinStepDisplay())
		assert.Equal(t, 2*time.Second, cfg.Loading.GetDefaultCheckTimeout())
		assert.Equal(t, 16*time.Millisecond, cfg.Loading.GetTickInterval())
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".fumo", "config.yaml")

	cfg := DefaultConfig()
	cfg.UI.Theme = "light"
	cfg.Loading.MinStepDisplay = "800ms"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "light", loaded.UI.Theme)
	assert.Equal(t, 800*time.Millisecond, loaded.Loading.GetMinStepDisplay())
}
