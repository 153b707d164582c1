package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "工商普查原始", cfg.Census.RootDir)
	assert.Equal(t, []string{"85年AA290005", "90年AA290006", "95年AA290007"}, cfg.Census.Datasets)
	assert.Equal(t, "ISIC_to_ROCSIC.xlsx", cfg.Census.Reference.Path)
	assert.Equal(t, "Sheet2", cfg.Census.Reference.Sheet)
	assert.Equal(t, "ISIC_Rev3", cfg.Census.Reference.ClassificationColumn)
	assert.Equal(t, []string{"scale != 8"}, cfg.Census.Filters)
	assert.True(t, cfg.Census.SkipMalformed)
	assert.True(t, cfg.Census.SortFiles)
	assert.True(t, cfg.Census.ShortCodeFallback)
	assert.False(t, cfg.Census.Parallel)
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.Equal(t, 60, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
census:
  root_dir: data
  datasets:
    - 95年AA290007
  filters:
    - scale != 8
    - asset > 0
  parallel: true
store:
  driver: sqlite
  database_url: census.db
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.Census.RootDir)
	assert.Equal(t, []string{"95年AA290007"}, cfg.Census.Datasets)
	assert.Equal(t, []string{"scale != 8", "asset > 0"}, cfg.Census.Filters)
	assert.True(t, cfg.Census.Parallel)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "census.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, "Sheet2", cfg.Census.Reference.Sheet)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
census:
  reference:
    path: ref.xlsx
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CENSUS_LOG_LEVEL", "warn")
	t.Setenv("CENSUS_CENSUS_REFERENCE_PATH", "https://example.com/ref.xlsx")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "https://example.com/ref.xlsx", cfg.Census.Reference.Path)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CENSUS_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadInvalidStore(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CENSUS_STORE_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"none driver", Config{Store: StoreConfig{Driver: "none"}, Census: CensusConfig{Reference: ReferenceConfig{Path: "r.xlsx"}}}, ""},
		{"sqlite with url", Config{Store: StoreConfig{Driver: "sqlite", DatabaseURL: "x.db"}, Census: CensusConfig{Reference: ReferenceConfig{Path: "r.xlsx"}}}, ""},
		{"unknown driver", Config{Store: StoreConfig{Driver: "mysql"}, Census: CensusConfig{Reference: ReferenceConfig{Path: "r.xlsx"}}}, "unknown store.driver"},
		{"no reference", Config{Store: StoreConfig{Driver: "none"}}, "census.reference.path is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
