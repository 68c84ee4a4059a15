package embed

import "time"

// Ollama API constants
const (
	// DefaultOllamaHost is the default Ollama API endpoint
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the recommended general-purpose embedding model.
	// 308M parameters and a Matryoshka-representation embedding space, so a
	// collection can truncate to a smaller dimension without re-embedding.
	DefaultOllamaModel = "embeddinggemma"

	// OllamaConnectTimeout is the default for OllamaConfig.ConnectTimeout
	OllamaConnectTimeout = 5 * time.Second

	// OllamaPoolSize for connection pool
	OllamaPoolSize = 4
)

// FallbackOllamaModels are tried in order if the primary model is unavailable.
var FallbackOllamaModels = []string{
	"nomic-embed-text",  // general text embeddings, 768 dims
	"mxbai-embed-large", // larger general-purpose fallback
}

// OllamaConfig configures the Ollama embedder
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434)
	Host string

	// Model is the embedding model to use (default: embeddinggemma)
	Model string

	// FallbackModels are tried in order if primary model unavailable
	FallbackModels []string

	// Dimensions can be set to override auto-detection (0 = auto-detect)
	Dimensions int

	// BatchSize for batch embedding requests (default: 32)
	BatchSize int

	// Timeout defaults to DefaultTimeout (60s); request deadlines come from
	// getProgressiveTimeout, which does not read this field
	Timeout time.Duration

	// ConnectTimeout is stored on the config (default: 5s); the initial
	// health check uses DefaultColdTimeout instead
	ConnectTimeout time.Duration

	// MaxRetries for transient failures (default: 3)
	MaxRetries int

	// PoolSize for HTTP connection pool (default: 4)
	PoolSize int

	// SkipHealthCheck skips initial Ollama availability check (for testing)
	SkipHealthCheck bool

	// ProgressFunc is called after each batch with (completed, total) counts
	// This allows callers to display progress during embedding
	ProgressFunc func(completed, total int)

	// ThermalConfig carries the sustained-workload tuning (Apple Silicon GPU
	// cooling) that config.yaml and SetThermalConfig populate; its promoted
	// fields (InterBatchDelay, TimeoutProgression, RetryTimeoutMultiplier)
	// are read directly off an OllamaConfig value. See getProgressiveTimeout
	// for the formulas TimeoutProgression and RetryTimeoutMultiplier feed into.
	ThermalConfig
}

// DefaultOllamaConfig returns sensible defaults
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:           DefaultOllamaHost,
		Model:          DefaultOllamaModel,
		FallbackModels: FallbackOllamaModels,
		Dimensions:     0, // Auto-detect
		BatchSize:      DefaultBatchSize,
		Timeout:        DefaultTimeout,
		ConnectTimeout: OllamaConnectTimeout,
		MaxRetries:     DefaultMaxRetries,
		PoolSize:       OllamaPoolSize,
		ThermalConfig: ThermalConfig{
			InterBatchDelay:        DefaultInterBatchDelay,
			TimeoutProgression:     DefaultTimeoutProgression,
			RetryTimeoutMultiplier: DefaultRetryTimeoutMultiplier,
		},
	}
}

// Wire types for the subset of the Ollama HTTP API vecdb talks to:
// POST /api/embed for embedding and GET /api/tags to discover what's pulled.

// OllamaEmbedRequest is the Ollama /api/embed request
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string for batch
}

// OllamaEmbedResponse is the Ollama /api/embed response
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaModelListResponse is the Ollama /api/tags response
type OllamaModelListResponse struct {
	Models []OllamaModelInfo `json:"models"`
}

// OllamaModelInfo describes an installed model
type OllamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
