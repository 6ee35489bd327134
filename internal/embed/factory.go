package embed

import (
	"github.com/abelbrown/digest/internal/config"
	"github.com/abelbrown/digest/internal/logging"
)

// New creates a batch embedder from configuration. With an explicit
// backend the choice is honored even if the service turns out to be
// down; with backend "" the first available backend wins. Returns nil
// when nothing is configured, which disables deduplication upstream.
func New(cfg config.EmbeddingConfig) BatchEmbedder {
	switch cfg.Backend {
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.Endpoint)
	case "jina":
		return NewJinaEmbedder(cfg.APIKey, cfg.Model)
	case "ollama":
		return NewOllamaEmbedder(cfg.Endpoint, cfg.Model)
	case "":
		// Auto-detect below.
	default:
		logging.Warn("Unknown embedding backend", "backend", cfg.Backend)
		return nil
	}

	candidates := []BatchEmbedder{
		NewOpenAIEmbedder(cfg.APIKey, cfg.Model, ""),
		NewJinaEmbedder(cfg.APIKey, cfg.Model),
		NewOllamaEmbedder(cfg.Endpoint, cfg.Model),
	}
	for _, c := range candidates {
		if c.Available() {
			return c
		}
	}

	logging.Warn("No embedding backend available; deduplication will be skipped")
	return nil
}
