package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/leapmetrics/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapmetrics/pkg/adapters/postgres"
)

const sampleConfig = `
semantics_dir: defs
default_database: warehouse
databases:
  warehouse:
    type: duckdb
    path: data/warehouse.duckdb
    params:
      settings:
        threads: "2"
  pg:
    type: Postgres
    host: ${LEAPMETRICS_TEST_PGHOST}
    port: 5432
    database: analytics
    user: reader
    password: ${LEAPMETRICS_TEST_PGPASS}
server:
  addr: ":9000"
  refresh_schedule: "*/5 * * * *"
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("project-dir", "", "")
	fs.String("semantics-dir", "", "")
	fs.StringP("output", "o", "", "")
	fs.BoolP("verbose", "v", false, "")
	fs.String("addr", "", "")
	fs.Int("limit", 0, "")
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Cleanup(ResetConfig)
	dir := t.TempDir()
	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--project-dir", dir}))

	cfg, err := LoadConfig("", fs)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, DefaultSemanticsDir), cfg.SemanticsDir)
	assert.Equal(t, filepath.Join(dir, DefaultHistoryFile), cfg.HistoryPath)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultMaxRows, cfg.Server.MaxRows)
	assert.Empty(t, cfg.Databases)
	assert.Empty(t, GetConfigFileUsed())
}

func TestLoadConfig_File(t *testing.T) {
	t.Cleanup(ResetConfig)
	t.Setenv("LEAPMETRICS_TEST_PGHOST", "db.internal")
	t.Setenv("LEAPMETRICS_TEST_PGPASS", "s3cret")

	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
	assert.Equal(t, filepath.Join(dir, "defs"), cfg.SemanticsDir)
	assert.Equal(t, filepath.Join(dir, "defs", "semantic_model.yml"), cfg.SemanticModelPath())
	assert.Equal(t, filepath.Join(dir, "defs", "business_rules.yml"), cfg.BusinessRulesPath())
	assert.Equal(t, "warehouse", cfg.DefaultDatabase)
	assert.Equal(t, []string{"pg", "warehouse"}, cfg.DatabaseNames())

	wh := cfg.Databases["warehouse"]
	assert.Equal(t, "duckdb", wh.Type)
	assert.Equal(t, filepath.Join(dir, "data", "warehouse.duckdb"), wh.Path)
	assert.Equal(t, "main", wh.Schema)
	assert.Contains(t, wh.Params, "settings")

	pg := cfg.Databases["pg"]
	assert.Equal(t, "postgres", pg.Type)
	assert.Equal(t, "public", pg.Schema)
	assert.Equal(t, "db.internal", pg.Host)
	assert.Equal(t, "s3cret", pg.Password)
	assert.Equal(t, 5432, pg.Port)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "*/5 * * * *", cfg.Server.RefreshSchedule)
}

func TestLoadConfig_EnvIsWeaklyTyped(t *testing.T) {
	t.Cleanup(ResetConfig)
	dir := t.TempDir()

	t.Setenv("LEAPMETRICS_SERVER__MAX_ROWS", "250")
	t.Setenv("LEAPMETRICS_SERVER__WATCH", "true")
	t.Setenv("LEAPMETRICS_VERBOSE", "1")

	fs := newFlags()
	require.NoError(t, fs.Parse([]string{"--project-dir", dir}))

	cfg, err := LoadConfig("", fs)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Server.MaxRows)
	assert.True(t, cfg.Server.Watch)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_Precedence(t *testing.T) {
	t.Cleanup(ResetConfig)
	dir := t.TempDir()
	writeConfig(t, dir, sampleConfig)

	t.Setenv("LEAPMETRICS_SERVER__ADDR", ":7000")
	t.Setenv("LEAPMETRICS_OUTPUT", "markdown")

	t.Run("env overrides file", func(t *testing.T) {
		fs := newFlags()
		require.NoError(t, fs.Parse([]string{"--project-dir", dir}))

		cfg, err := LoadConfig("", fs)
		require.NoError(t, err)
		assert.Equal(t, ":7000", cfg.Server.Addr)
		assert.Equal(t, "markdown", cfg.OutputFormat)
	})

	t.Run("flags override env", func(t *testing.T) {
		fs := newFlags()
		require.NoError(t, fs.Parse([]string{"--project-dir", dir, "--addr", ":6000", "-o", "json", "--limit", "3"}))

		cfg, err := LoadConfig("", fs)
		require.NoError(t, err)
		assert.Equal(t, ":6000", cfg.Server.Addr)
		assert.Equal(t, "json", cfg.OutputFormat)
	})

	t.Run("unchanged flags are ignored", func(t *testing.T) {
		fs := newFlags()
		require.NoError(t, fs.Parse([]string{"--project-dir", dir}))

		cfg, err := LoadConfig("", fs)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "defs"), cfg.SemanticsDir)
	})
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{
			name:      "unknown adapter type",
			content:   "databases:\n  wh:\n    type: mysql\n",
			errSubstr: "unknown adapter type",
		},
		{
			name:      "missing adapter type",
			content:   "databases:\n  wh:\n    path: x.duckdb\n",
			errSubstr: "adapter type not specified",
		},
		{
			name:      "unknown default database",
			content:   "default_database: nope\ndatabases:\n  wh:\n    type: duckdb\n",
			errSubstr: `default_database "nope"`,
		},
		{
			name:      "bad output format",
			content:   "output: html\n",
			errSubstr: "invalid output format",
		},
		{
			name:      "malformed yaml",
			content:   "databases: [unclosed\n",
			errSubstr: "error reading config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(ResetConfig)
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := LoadConfig(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestValidateDatabase_ErrorContainsAvailable(t *testing.T) {
	err := ValidateDatabase(DatabaseConfig{Type: "invalid_db"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duckdb", "error should list available adapters")
	assert.Contains(t, err.Error(), "leapmetrics.yaml", "error should mention config file")
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "semantics_dir: semantics\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	assert.Equal(t, root, FindProjectRoot(nested))
	assert.Equal(t, root, FindProjectRoot(root))
	assert.Empty(t, FindProjectRoot(t.TempDir()))
}

func TestDefaultSchemaForType(t *testing.T) {
	tests := []struct {
		dbType   string
		expected string
	}{
		{"duckdb", "main"},
		{"DuckDB", "main"},
		{"postgres", "public"},
		{"snowflake", "main"},
		{"", "main"},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			assert.Equal(t, tt.expected, DefaultSchemaForType(tt.dbType))
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")
	t.Setenv("TEST_VAR_TWO", "value_two")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single variable", "${TEST_VAR_ONE}", "value_one"},
		{"multiple variables", "${TEST_VAR_ONE}/${TEST_VAR_TWO}", "value_one/value_two"},
		{"unset variable stays as-is", "${UNSET_VARIABLE}", "${UNSET_VARIABLE}"},
		{"no variables", "plain string", "plain string"},
		{"mixed set and unset", "${TEST_VAR_ONE}:${UNSET_VAR}", "value_one:${UNSET_VAR}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestResolvePathRelativeTo(t *testing.T) {
	assert.Equal(t, "", resolvePathRelativeTo("", "/base"))
	assert.Equal(t, ":memory:", resolvePathRelativeTo(":memory:", "/base"))
	assert.Equal(t, "/abs/x.db", resolvePathRelativeTo("/abs/x.db", "/base"))
	assert.Equal(t, filepath.Join("/base", "x.db"), resolvePathRelativeTo("x.db", "/base"))
}
