package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 768, cfg.DefaultDimension)
	assert.Equal(t, "cosine", cfg.DefaultMetric)
	assert.Equal(t, "conservative", cfg.Normalization.Level)
	assert.True(t, cfg.Storage.Compression.Enabled)
	assert.Equal(t, 3, cfg.Storage.Compression.Level)
	assert.Equal(t, 30, cfg.Autosave.IntervalSeconds)
	assert.True(t, cfg.Watcher.Enabled)
	assert.Equal(t, 16, cfg.HNSW.M)
	assert.Equal(t, 200, cfg.HNSW.EfConstruction)
	assert.Equal(t, 64, cfg.HNSW.EfSearch)
	assert.Equal(t, "none", cfg.Quantization.Policy)
	assert.Equal(t, 0.7, cfg.Search.Hybrid.Alpha)
	assert.Equal(t, "rrf", cfg.Search.Hybrid.Algorithm)
	assert.Equal(t, 60, cfg.Search.Hybrid.RRFConstant)
	assert.Equal(t, 0.7, cfg.Search.MMR.Lambda)

	require.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.DefaultDimension)
	assert.Equal(t, "cosine", cfg.DefaultMetric)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
default_dimension: 1536
default_metric: dot
hnsw:
  m: 32
  ef_construction: 400
  ef_search: 128
search:
  hybrid:
    alpha: 0.5
    algorithm: linear
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vecdb.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1536, cfg.DefaultDimension)
	assert.Equal(t, "dot", cfg.DefaultMetric)
	assert.Equal(t, 32, cfg.HNSW.M)
	assert.Equal(t, 400, cfg.HNSW.EfConstruction)
	assert.Equal(t, 128, cfg.HNSW.EfSearch)
	assert.Equal(t, 0.5, cfg.Search.Hybrid.Alpha)
	assert.Equal(t, "linear", cfg.Search.Hybrid.Algorithm)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vecdb.yml"), []byte("default_dimension: 256\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.DefaultDimension)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vecdb.yaml"), []byte("default_dimension: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vecdb.yml"), []byte("default_dimension: 2\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.DefaultDimension)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vecdb.yaml"), []byte("not: valid: yaml: [["), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_InvalidFieldType_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vecdb.yaml"), []byte("default_dimension: \"not a number\"\n"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownMetric(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vecdb.yaml"), []byte("default_metric: manhattan\n"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_MergeExcludeGlobs_AppendsToDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := "watcher:\n  exclude_globs:\n    - \"**/tmp/**\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vecdb.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Contains(t, cfg.Watcher.ExcludeGlobs, "**/node_modules/**")
	assert.Contains(t, cfg.Watcher.ExcludeGlobs, "**/tmp/**")
}

func TestLoad_EnvVarOverridesDefaultDimension(t *testing.T) {
	t.Setenv("VECDB_DEFAULT_DIMENSION", "512")
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.DefaultDimension)
}

func TestLoad_EnvVarOverridesHybridAlpha(t *testing.T) {
	t.Setenv("VECDB_HYBRID_ALPHA", "0.3")
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.Search.Hybrid.Alpha)
}

func TestLoad_EnvVarOverridesFileConfig(t *testing.T) {
	t.Setenv("VECDB_DEFAULT_METRIC", "dot")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vecdb.yaml"), []byte("default_metric: euclidean\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "dot", cfg.DefaultMetric)
}

func TestLoad_EnvVarEmptyString_DoesNotOverride(t *testing.T) {
	t.Setenv("VECDB_DEFAULT_METRIC", "")
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "cosine", cfg.DefaultMetric)
}

func TestGetUserConfigPath_DefaultsToXDGLocation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	path := GetUserConfigPath()
	assert.Equal(t, filepath.Join(home, ".config", "vecdb", "config.yaml"), path)
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/xdg")

	path := GetUserConfigPath()
	assert.Equal(t, "/custom/xdg/vecdb/config.yaml", path)
}

func TestGetUserConfigDir_ReturnsParentOfConfigPath(t *testing.T) {
	dir := GetUserConfigDir()
	assert.Equal(t, filepath.Dir(GetUserConfigPath()), dir)
}

func TestUserConfigExists_ReturnsFalseWhenMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	assert.False(t, UserConfigExists())
}

func TestUserConfigExists_ReturnsTrueWhenPresent(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	configDir := filepath.Join(xdg, "vecdb")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("version: 1\n"), 0o644))

	assert.True(t, UserConfigExists())
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	configDir := filepath.Join(xdg, "vecdb")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("default_dimension: 3072\n"), 0o644))

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 3072, cfg.DefaultDimension)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	configDir := filepath.Join(xdg, "vecdb")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("default_dimension: 3072\n"), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vecdb.yaml"), []byte("default_dimension: 1024\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.DefaultDimension)
}

func TestValidate_RejectsAlphaOutOfRange(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.Hybrid.Alpha = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveHNSWParams(t *testing.T) {
	cfg := NewConfig()
	cfg.HNSW.M = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownQuantizationPolicy(t *testing.T) {
	cfg := NewConfig()
	cfg.Quantization.Policy = "lsh"
	assert.Error(t, cfg.Validate())
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := NewConfig()
	cfg.DefaultDimension = 99
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, 99, loaded.DefaultDimension)
}
