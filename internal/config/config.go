// Package config loads the layered configuration for a vecdb data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete vecdb configuration.
// It mirrors the configuration surface in the external interfaces section
// of the design: collection defaults, storage behavior, autosave cadence,
// the file watcher, ingest chunking, HNSW graph parameters, quantization
// policy, and hybrid search defaults.
type Config struct {
	Version int `yaml:"version" json:"version"`

	DefaultDimension int    `yaml:"default_dimension" json:"default_dimension"`
	DefaultMetric    string `yaml:"default_metric" json:"default_metric"`

	Normalization NormalizationConfig `yaml:"normalization" json:"normalization"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Autosave      AutosaveConfig      `yaml:"autosave" json:"autosave"`
	Watcher       WatcherConfig       `yaml:"watcher" json:"watcher"`
	Chunking      ChunkingConfig      `yaml:"chunking" json:"chunking"`
	HNSW          HNSWConfig          `yaml:"hnsw" json:"hnsw"`
	Quantization  QuantizationConfig  `yaml:"quantization" json:"quantization"`
	Search        SearchConfig        `yaml:"search" json:"search"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
}

// NormalizationConfig configures text normalization applied before embedding.
type NormalizationConfig struct {
	// Level is one of off|conservative|moderate|aggressive.
	Level string `yaml:"level" json:"level"`
}

// StorageConfig configures the on-disk archive format and snapshot policy.
type StorageConfig struct {
	Compression CompressionConfig `yaml:"compression" json:"compression"`
	Snapshots   SnapshotsConfig   `yaml:"snapshots" json:"snapshots"`
}

// CompressionConfig holds the compact .vecdb archive settings. Enabled is
// set from defaults and VECDB_COMPRESSION_ENABLED but nothing reads it:
// data is always stored in the .vecdb archive, and no legacy
// per-collection layout exists.
type CompressionConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Level is the Zstandard compression level, 1-22.
	Level int `yaml:"level" json:"level"`
}

// SnapshotsConfig configures automatic snapshot rotation.
type SnapshotsConfig struct {
	IntervalHours int `yaml:"interval_hours" json:"interval_hours"`
	RetentionDays int `yaml:"retention_days" json:"retention_days"`
	MaxSnapshots  int `yaml:"max_snapshots" json:"max_snapshots"`
}

// AutosaveConfig configures the background autosave manager's wake cadence.
type AutosaveConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" json:"interval_seconds"`
}

// WatcherConfig configures the file watcher and its debounce behavior.
type WatcherConfig struct {
	Enabled           bool     `yaml:"enabled" json:"enabled"`
	IncludeExtensions []string `yaml:"include_extensions" json:"include_extensions"`
	ExcludeGlobs      []string `yaml:"exclude_globs" json:"exclude_globs"`
	DebounceMs        int      `yaml:"debounce_ms" json:"debounce_ms"`
}

// ChunkingConfig configures default chunk parameters for text ingest.
type ChunkingConfig struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// HNSWConfig configures default graph construction/search parameters for
// newly created collections.
type HNSWConfig struct {
	M              int `yaml:"m" json:"m"`
	EfConstruction int `yaml:"ef_construction" json:"ef_construction"`
	EfSearch       int `yaml:"ef_search" json:"ef_search"`
}

// QuantizationConfig selects the default codec policy for new collections.
// Policy is one of: none|sq8|pq|binary. PQ subquantizer/centroid counts are
// set per-collection at creation time; these are just the defaults used
// when a collection doesn't override them.
type QuantizationConfig struct {
	Policy        string `yaml:"policy" json:"policy"`
	Subquantizers int    `yaml:"pq_subquantizers" json:"pq_subquantizers"`
	Centroids     int    `yaml:"pq_centroids" json:"pq_centroids"`
}

// SearchConfig configures hybrid fusion and diversification defaults.
type SearchConfig struct {
	Hybrid HybridConfig `yaml:"hybrid" json:"hybrid"`
	MMR    MMRConfig    `yaml:"mmr" json:"mmr"`
}

// HybridConfig configures dense+sparse fusion defaults.
type HybridConfig struct {
	// Alpha is the weight given to the dense list in linear/alpha-blend fusion.
	Alpha float64 `yaml:"alpha" json:"alpha"`
	// Algorithm is one of rrf|linear|alpha.
	Algorithm string `yaml:"algorithm" json:"algorithm"`
	// RRFConstant is the k0 smoothing constant for reciprocal rank fusion.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`
}

// MMRConfig configures maximal marginal relevance diversification.
type MMRConfig struct {
	Lambda float64 `yaml:"lambda" json:"lambda"`
}

// LoggingConfig configures the ambient structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// defaultExcludeGlobs are always excluded from the file watcher.
var defaultExcludeGlobs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
}

// NewConfig creates a new Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version:          1,
		DefaultDimension: 768,
		DefaultMetric:    "cosine",
		Normalization: NormalizationConfig{
			Level: "conservative",
		},
		Storage: StorageConfig{
			Compression: CompressionConfig{
				Enabled: true,
				Level:   3,
			},
			Snapshots: SnapshotsConfig{
				IntervalHours: 6,
				RetentionDays: 14,
				MaxSnapshots:  10,
			},
		},
		Autosave: AutosaveConfig{
			IntervalSeconds: 30,
		},
		Watcher: WatcherConfig{
			Enabled:           true,
			IncludeExtensions: []string{".md", ".txt", ".go", ".py", ".js", ".ts", ".rs", ".java"},
			ExcludeGlobs:      defaultExcludeGlobs,
			DebounceMs:        500,
		},
		Chunking: ChunkingConfig{
			Size:    1500,
			Overlap: 200,
		},
		HNSW: HNSWConfig{
			M:              16,
			EfConstruction: 200,
			EfSearch:       64,
		},
		Quantization: QuantizationConfig{
			Policy:        "none",
			Subquantizers: 8,
			Centroids:     256,
		},
		Search: SearchConfig{
			Hybrid: HybridConfig{
				Alpha:       0.7,
				Algorithm:   "rrf",
				RRFConstant: 60,
			},
			MMR: MMRConfig{
				Lambda: 0.7,
			},
		},
		Logging: LoggingConfig{
			Level:     "info",
			FilePath:  "",
			MaxSizeMB: 50,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/vecdb/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/vecdb/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vecdb", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "vecdb", "config.yaml")
	}
	return filepath.Join(home, ".config", "vecdb", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration for the data directory at dir, applying
// configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/vecdb/config.yaml)
//  3. Data-directory config (vecdb.yaml in dir)
//  4. Environment variable overrides (VECDB_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from vecdb.yaml or vecdb.yml
// in dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, "vecdb.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, "vecdb.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.DefaultDimension != 0 {
		c.DefaultDimension = other.DefaultDimension
	}
	if other.DefaultMetric != "" {
		c.DefaultMetric = other.DefaultMetric
	}
	if other.Normalization.Level != "" {
		c.Normalization.Level = other.Normalization.Level
	}

	if other.Storage.Compression.Level != 0 {
		c.Storage.Compression.Level = other.Storage.Compression.Level
	}
	if other.Storage.Snapshots.IntervalHours != 0 {
		c.Storage.Snapshots.IntervalHours = other.Storage.Snapshots.IntervalHours
	}
	if other.Storage.Snapshots.RetentionDays != 0 {
		c.Storage.Snapshots.RetentionDays = other.Storage.Snapshots.RetentionDays
	}
	if other.Storage.Snapshots.MaxSnapshots != 0 {
		c.Storage.Snapshots.MaxSnapshots = other.Storage.Snapshots.MaxSnapshots
	}

	if other.Autosave.IntervalSeconds != 0 {
		c.Autosave.IntervalSeconds = other.Autosave.IntervalSeconds
	}

	if len(other.Watcher.IncludeExtensions) > 0 {
		c.Watcher.IncludeExtensions = other.Watcher.IncludeExtensions
	}
	if len(other.Watcher.ExcludeGlobs) > 0 {
		c.Watcher.ExcludeGlobs = append(c.Watcher.ExcludeGlobs, other.Watcher.ExcludeGlobs...)
	}
	if other.Watcher.DebounceMs != 0 {
		c.Watcher.DebounceMs = other.Watcher.DebounceMs
	}

	if other.Chunking.Size != 0 {
		c.Chunking.Size = other.Chunking.Size
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}

	if other.HNSW.M != 0 {
		c.HNSW.M = other.HNSW.M
	}
	if other.HNSW.EfConstruction != 0 {
		c.HNSW.EfConstruction = other.HNSW.EfConstruction
	}
	if other.HNSW.EfSearch != 0 {
		c.HNSW.EfSearch = other.HNSW.EfSearch
	}

	if other.Quantization.Policy != "" {
		c.Quantization.Policy = other.Quantization.Policy
	}
	if other.Quantization.Subquantizers != 0 {
		c.Quantization.Subquantizers = other.Quantization.Subquantizers
	}
	if other.Quantization.Centroids != 0 {
		c.Quantization.Centroids = other.Quantization.Centroids
	}

	if other.Search.Hybrid.Alpha != 0 {
		c.Search.Hybrid.Alpha = other.Search.Hybrid.Alpha
	}
	if other.Search.Hybrid.Algorithm != "" {
		c.Search.Hybrid.Algorithm = other.Search.Hybrid.Algorithm
	}
	if other.Search.Hybrid.RRFConstant != 0 {
		c.Search.Hybrid.RRFConstant = other.Search.Hybrid.RRFConstant
	}
	if other.Search.MMR.Lambda != 0 {
		c.Search.MMR.Lambda = other.Search.MMR.Lambda
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies VECDB_* environment variable overrides. These
// take precedence over every file-based source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VECDB_DEFAULT_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.DefaultDimension = n
		}
	}
	if v := os.Getenv("VECDB_DEFAULT_METRIC"); v != "" {
		c.DefaultMetric = v
	}
	if v := os.Getenv("VECDB_NORMALIZATION_LEVEL"); v != "" {
		c.Normalization.Level = v
	}
	if v := os.Getenv("VECDB_COMPRESSION_ENABLED"); v != "" {
		c.Storage.Compression.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("VECDB_AUTOSAVE_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Autosave.IntervalSeconds = n
		}
	}
	if v := os.Getenv("VECDB_WATCHER_ENABLED"); v != "" {
		c.Watcher.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("VECDB_HYBRID_ALPHA"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Search.Hybrid.Alpha = f
		}
	}
	if v := os.Getenv("VECDB_HYBRID_ALGORITHM"); v != "" {
		c.Search.Hybrid.Algorithm = v
	}
	if v := os.Getenv("VECDB_MMR_LAMBDA"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Search.MMR.Lambda = f
		}
	}
	if v := os.Getenv("VECDB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// parseFloat64 parses a string to float64.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.DefaultDimension <= 0 {
		return fmt.Errorf("default_dimension must be positive, got %d", c.DefaultDimension)
	}

	validMetrics := map[string]bool{"cosine": true, "euclidean": true, "dot": true}
	if !validMetrics[strings.ToLower(c.DefaultMetric)] {
		return fmt.Errorf("default_metric must be 'cosine', 'euclidean', or 'dot', got %s", c.DefaultMetric)
	}

	validNormLevels := map[string]bool{"off": true, "conservative": true, "moderate": true, "aggressive": true}
	if !validNormLevels[strings.ToLower(c.Normalization.Level)] {
		return fmt.Errorf("normalization.level must be 'off', 'conservative', 'moderate', or 'aggressive', got %s", c.Normalization.Level)
	}

	if c.Storage.Compression.Level < 1 || c.Storage.Compression.Level > 22 {
		return fmt.Errorf("storage.compression.level must be between 1 and 22, got %d", c.Storage.Compression.Level)
	}

	if c.Autosave.IntervalSeconds <= 0 {
		return fmt.Errorf("autosave.interval_seconds must be positive, got %d", c.Autosave.IntervalSeconds)
	}

	if c.HNSW.M <= 0 || c.HNSW.EfConstruction <= 0 || c.HNSW.EfSearch <= 0 {
		return fmt.Errorf("hnsw.M, hnsw.ef_construction, and hnsw.ef_search must all be positive")
	}

	validPolicies := map[string]bool{"none": true, "sq8": true, "pq": true, "binary": true}
	if !validPolicies[strings.ToLower(c.Quantization.Policy)] {
		return fmt.Errorf("quantization.policy must be 'none', 'sq8', 'pq', or 'binary', got %s", c.Quantization.Policy)
	}

	if c.Search.Hybrid.Alpha < 0 || c.Search.Hybrid.Alpha > 1 {
		return fmt.Errorf("search.hybrid.alpha must be between 0 and 1, got %f", c.Search.Hybrid.Alpha)
	}
	validAlgorithms := map[string]bool{"rrf": true, "linear": true, "alpha": true}
	if !validAlgorithms[strings.ToLower(c.Search.Hybrid.Algorithm)] {
		return fmt.Errorf("search.hybrid.algorithm must be 'rrf', 'linear', or 'alpha', got %s", c.Search.Hybrid.Algorithm)
	}

	if c.Search.MMR.Lambda < 0 || c.Search.MMR.Lambda > 1 {
		return fmt.Errorf("search.mmr.lambda must be between 0 and 1, got %f", c.Search.MMR.Lambda)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}
