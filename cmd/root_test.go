package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rotaplan/config"
)

func withPaths(t *testing.T, cfg, env string) {
	t.Helper()
	oldCfg, oldEnv := cfgPath, envPath
	cfgPath, envPath = cfg, env
	t.Cleanup(func() { cfgPath, envPath = oldCfg, oldEnv })
}

func TestLoadConfig_MissingDefaultsToBuiltIn(t *testing.T) {
	dir := t.TempDir()
	withPaths(t, filepath.Join(dir, "config.yaml"), filepath.Join(dir, ".env"))

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.Default().Optimizer.Cost.Type, cfg.Optimizer.Cost.Type)
}

func TestLoadConfig_DotenvOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("history:\n  path: runs.jsonl\n"), 0o644))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ROTA_HISTORY__DRIVER=sqlite\nROTA_HISTORY__DSN=runs.db\n"), 0o644))
	withPaths(t, cfgFile, envFile)
	t.Cleanup(func() {
		_ = os.Unsetenv("ROTA_HISTORY__DRIVER")
		_ = os.Unsetenv("ROTA_HISTORY__DSN")
	})

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.History.Driver)
	assert.Equal(t, "runs.db", cfg.History.DSN)
	assert.Equal(t, "runs.jsonl", cfg.History.Path)
}
