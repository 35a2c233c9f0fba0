package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, used, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.False(t, cfg.Verbose)
	assert.NotNil(t, cfg.Connections)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
batch_size: 500
connections:
  warehouse:
    type: postgres
    host: db.internal
    port: 5433
    database: analytics
    username: reader
  local:
    type: duckdb
    path: ./local.duckdb
    params:
      extensions: [httpfs]
`)

	cfg, used, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 500, cfg.BatchSize)

	require.Len(t, cfg.Connections, 2)
	wh := cfg.Connections["warehouse"]
	assert.Equal(t, "postgres", wh.Type)
	assert.Equal(t, "db.internal", wh.Host)
	assert.Equal(t, 5433, wh.Port)
	assert.Equal(t, "reader", wh.Username)

	local := cfg.Connections["local"]
	assert.Equal(t, "duckdb", local.Type)
	assert.Equal(t, "./local.duckdb", local.Path)
	assert.NotNil(t, local.Params["extensions"])
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n")
	t.Setenv("SQLBRIDGE_LOG_LEVEL", "warn")

	cfg, _, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	path := writeConfig(t, "log_level: debug\nbatch_size: 500\n")
	t.Setenv("SQLBRIDGE_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	flags.Int("batch-size", 0, "")
	require.NoError(t, flags.Parse([]string{"--log-level", "error"}))

	cfg, _, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel, "a changed flag wins over env and file")
	assert.Equal(t, 500, cfg.BatchSize, "an unchanged flag does not override the file")
}

func TestLoad_MissingTypeRejected(t *testing.T) {
	path := writeConfig(t, `
connections:
  broken:
    host: db.internal
`)

	_, _, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `connection "broken": type is required`)
}

func TestLoad_SecretExpansion(t *testing.T) {
	t.Setenv("WAREHOUSE_PASSWORD", "hunter2")

	path := writeConfig(t, `
connections:
  warehouse:
    type: postgres
    database: analytics
    username: reader
    password: ${WAREHOUSE_PASSWORD}
  other:
    type: postgres
    database: analytics
    password: ${NOT_SET_ANYWHERE}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Connections["warehouse"].Password)
	assert.Equal(t, "${NOT_SET_ANYWHERE}", cfg.Connections["other"].Password,
		"unknown variables are left as literals")
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestFindConfigFileIn(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindConfigFileIn(dir))

	path := filepath.Join(dir, ConfigFileNameAlt)
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	assert.Equal(t, path, FindConfigFileIn(dir))

	primary := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(primary, []byte("{}\n"), 0o644))
	assert.Equal(t, primary, FindConfigFileIn(dir), "the .yaml name wins over .yml")
}
