package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the persistent application configuration. It is constructed
// once at process start and handed to each component constructor; nothing
// reads it through a global.
type Config struct {
	// LLM providers, in fallback priority order
	Providers ProviderConfig `json:"providers"`

	// Embedding backend for deduplication
	Embedding EmbeddingConfig `json:"embedding"`

	// Pipeline tuning
	Digest DigestConfig `json:"digest"`
}

// ProviderConfig holds per-provider LLM settings
type ProviderConfig struct {
	OpenAI ModelSettings `json:"openai"`
	Claude ModelSettings `json:"claude"`
	Gemini ModelSettings `json:"gemini"`
	Ollama ModelSettings `json:"ollama"`

	// Preferred provider name; empty means priority order
	Preferred string `json:"preferred,omitempty"`
}

// ModelSettings for a single LLM provider
type ModelSettings struct {
	Enabled  bool   `json:"enabled"`
	APIKey   string `json:"api_key,omitempty"`
	Endpoint string `json:"endpoint,omitempty"` // For Ollama or OpenAI-compatible endpoints
	Model    string `json:"model,omitempty"`
	Priority int    `json:"priority"` // Lower = higher priority for fallback
}

// EmbeddingConfig selects the embedding backend used by deduplication
type EmbeddingConfig struct {
	Backend  string `json:"backend"` // "openai", "jina", "ollama", or "" for auto
	APIKey   string `json:"api_key,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	Model    string `json:"model,omitempty"`
}

// DigestConfig holds ranking and deduplication tuning
type DigestConfig struct {
	BatchSize           int     `json:"batch_size"`           // Items per scoring call
	MaxConcurrent       int     `json:"max_concurrent"`       // In-flight LLM/embedding calls
	SimilarityThreshold float64 `json:"similarity_threshold"` // Cosine similarity cutoff for duplicates
	BufferRatio         float64 `json:"buffer_ratio"`         // Oversampling factor before dedup
	TopN                int     `json:"top_n"`                // Final digest size
	DedupEnabled        bool    `json:"dedup_enabled"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Providers: ProviderConfig{
			OpenAI: ModelSettings{
				Enabled:  true,
				Priority: 1,
				Model:    "gpt-4o-mini",
			},
			Claude: ModelSettings{
				Enabled:  false,
				Priority: 2,
				Model:    "claude-sonnet-4-5-20250929",
			},
			Gemini: ModelSettings{
				Enabled:  false,
				Priority: 3,
				Model:    "gemini-2.0-flash",
			},
			Ollama: ModelSettings{
				Enabled:  false,
				Priority: 4,
				Endpoint: "http://localhost:11434",
				Model:    "llama3.1",
			},
		},
		Embedding: EmbeddingConfig{
			Backend: "",
		},
		Digest: DigestConfig{
			BatchSize:           20,
			MaxConcurrent:       3,
			SimilarityThreshold: 0.85,
			BufferRatio:         2.5,
			TopN:                20,
			DedupEnabled:        true,
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".digest", "config.json")
}

// Load reads config from path, or from the default location when path is
// empty. Missing files are not an error; defaults (plus environment
// autopopulation) are returned instead. Keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.AutoPopulateFromEnv()
			cfg.Normalize()
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.AutoPopulateFromEnv()
	cfg.Normalize()
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// AutoPopulateFromEnv fills in API keys from the environment when the
// config file didn't provide them, and enables the matching provider.
func (c *Config) AutoPopulateFromEnv() {
	if c.Providers.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.Providers.OpenAI.APIKey = key
			c.Providers.OpenAI.Enabled = true
		}
	}
	if c.Providers.Claude.APIKey == "" {
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			c.Providers.Claude.APIKey = key
			c.Providers.Claude.Enabled = true
		}
	}
	if c.Providers.Gemini.APIKey == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.Providers.Gemini.APIKey = key
			c.Providers.Gemini.Enabled = true
		}
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Providers.Ollama.Endpoint = host
		c.Providers.Ollama.Enabled = true
	}
	if c.Embedding.APIKey == "" {
		if key := os.Getenv("JINA_API_KEY"); key != "" && (c.Embedding.Backend == "" || c.Embedding.Backend == "jina") {
			c.Embedding.Backend = "jina"
			c.Embedding.APIKey = key
		}
	}
}

// Normalize clamps out-of-range tuning values back to defaults.
func (c *Config) Normalize() {
	d := &c.Digest
	if d.BatchSize <= 0 {
		d.BatchSize = 20
	}
	if d.MaxConcurrent <= 0 {
		d.MaxConcurrent = 3
	}
	if d.SimilarityThreshold <= 0 || d.SimilarityThreshold > 1 {
		d.SimilarityThreshold = 0.85
	}
	if d.BufferRatio < 1 {
		d.BufferRatio = 2.5
	}
	if d.TopN <= 0 {
		d.TopN = 20
	}
}
