package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir runs the test from an empty directory so no stray statement-agent.yaml
// or .env is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Loop.MaxIters)
	assert.Equal(t, 10, cfg.Loop.MaxDiffs)
	assert.Equal(t, "data", cfg.Paths.DataDir)
	assert.Equal(t, "custom_parsers", cfg.Paths.ParsersDir)
	assert.Equal(t, "debug", cfg.Paths.DebugDir)
	assert.Equal(t, ".statement-agent/history.db", cfg.Paths.History)
	assert.Equal(t, GeneratorTemplate, cfg.Generator.Kind)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Generator.Model)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Debug.Workbook)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(
		"loop:\n  max_iters: 5\npaths:\n  data_dir: samples\ndebug:\n  workbook: true\n"), 0o644))
	t.Setenv("STMT_PATHS_DATA_DIR", "/srv/statements")
	t.Setenv("STMT_LOOP_MAX_DIFFS", "25")
	t.Setenv("STMT_GENERATOR_KIND", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Loop.MaxIters)
	assert.Equal(t, 25, cfg.Loop.MaxDiffs)
	assert.Equal(t, "/srv/statements", cfg.Paths.DataDir)
	assert.Equal(t, "custom_parsers", cfg.Paths.ParsersDir)
	assert.True(t, cfg.Debug.Workbook)
	assert.Equal(t, GeneratorClaude, cfg.Generator.Kind)
	assert.Equal(t, "sk-test", cfg.Generator.APIKey)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STMT_SERVER_ADDR=:9090\n"), 0o644))
	t.Setenv("STMT_SERVER_ADDR", "")
	os.Unsetenv("STMT_SERVER_ADDR")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoadErrors(t *testing.T) {
	dir := chdir(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "explicit path must exist")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("generator:\n  kind: oracle\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "generator.kind")

	t.Setenv("STMT_LOOP_MAX_ITERS", "0")
	_, err = Load("")
	assert.ErrorContains(t, err, "loop.max_iters")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "paths.data_dir", envKey("STMT_PATHS_DATA_DIR"))
	assert.Equal(t, "generator.api_key", envKey("STMT_GENERATOR_API_KEY"))
	assert.Equal(t, "verbose", envKey("STMT_VERBOSE"))
}
