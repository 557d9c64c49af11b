package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAppConfig(t *testing.T) {
	config := DefaultAppConfig()

	assert.NotEmpty(t, config.SettingsPath)
	assert.NotEmpty(t, config.DatabasePath)
	assert.Equal(t, 20*time.Second, config.RuleEvalInterval)
	assert.Equal(t, 5*time.Second, config.SettingsReloadInterval)
	assert.NoError(t, config.validate())
}

func TestLoadAppConfigEmptyPathReturnsDefaults(t *testing.T) {
	config, err := LoadAppConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAppConfig(), config)
}

func TestLoadAppConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
settings_path: /tmp/custom/settings.json
rule_eval_interval: 15s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	config, err := LoadAppConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom/settings.json", config.SettingsPath)
	assert.Equal(t, 15*time.Second, config.RuleEvalInterval)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultAppConfig().PersistInterval, config.PersistInterval)
}

func TestLoadAppConfigMissingExplicitPath(t *testing.T) {
	_, err := LoadAppConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadAppConfigRejectsOutOfRangeEvalInterval(t *testing.T) {
	for _, interval := range []string{"5s", "45s"} {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "rule_eval_interval: " + interval + "\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		_, err := LoadAppConfig(path)
		assert.Error(t, err, "interval %s should be rejected", interval)
	}
}

func TestLoadAppConfigRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("persist_interval: soon\n"), 0644))

	_, err := LoadAppConfig(path)
	assert.Error(t, err)
}

func TestEnsureDirs(t *testing.T) {
	base := t.TempDir()
	config := AppConfig{
		SettingsPath: filepath.Join(base, "a", "settings.json"),
		DatabasePath: filepath.Join(base, "b", "history.db"),
		LogPath:      filepath.Join(base, "c", "engine.log"),
		RegistryDir:  filepath.Join(base, "d"),
	}

	require.NoError(t, config.EnsureDirs())
	for _, dir := range []string{"a", "b", "c", "d"} {
		info, err := os.Stat(filepath.Join(base, dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
