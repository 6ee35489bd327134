package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Digest.BatchSize != 20 {
		t.Errorf("BatchSize = %d, want 20", cfg.Digest.BatchSize)
	}
	if cfg.Digest.MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", cfg.Digest.MaxConcurrent)
	}
	if cfg.Digest.SimilarityThreshold != 0.85 {
		t.Errorf("SimilarityThreshold = %v, want 0.85", cfg.Digest.SimilarityThreshold)
	}
	if cfg.Digest.BufferRatio != 2.5 {
		t.Errorf("BufferRatio = %v, want 2.5", cfg.Digest.BufferRatio)
	}
	if !cfg.Digest.DedupEnabled {
		t.Error("DedupEnabled should default to true")
	}
}

func TestNormalizeClampsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Digest.BatchSize = -5
	cfg.Digest.MaxConcurrent = 0
	cfg.Digest.SimilarityThreshold = 1.5
	cfg.Digest.BufferRatio = 0.1
	cfg.Digest.TopN = 0

	cfg.Normalize()

	if cfg.Digest.BatchSize != 20 {
		t.Errorf("BatchSize = %d, want 20", cfg.Digest.BatchSize)
	}
	if cfg.Digest.MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", cfg.Digest.MaxConcurrent)
	}
	if cfg.Digest.SimilarityThreshold != 0.85 {
		t.Errorf("SimilarityThreshold = %v, want 0.85", cfg.Digest.SimilarityThreshold)
	}
	if cfg.Digest.BufferRatio != 2.5 {
		t.Errorf("BufferRatio = %v, want 2.5", cfg.Digest.BufferRatio)
	}
	if cfg.Digest.TopN != 20 {
		t.Errorf("TopN = %d, want 20", cfg.Digest.TopN)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Digest.TopN != 20 {
		t.Errorf("TopN = %d, want 20", cfg.Digest.TopN)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := map[string]any{
		"digest": map[string]any{
			"top_n": 5,
		},
	}
	data, _ := json.Marshal(raw)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Digest.TopN != 5 {
		t.Errorf("TopN = %d, want 5", cfg.Digest.TopN)
	}
	// Keys absent from the file keep their defaults, including bools.
	if !cfg.Digest.DedupEnabled {
		t.Error("DedupEnabled should remain true when absent from file")
	}
	if cfg.Digest.BatchSize != 20 {
		t.Errorf("BatchSize = %d, want 20", cfg.Digest.BatchSize)
	}
}

func TestAutoPopulateFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("JINA_API_KEY", "jina-test")

	cfg := DefaultConfig()
	cfg.AutoPopulateFromEnv()

	if cfg.Providers.OpenAI.APIKey != "sk-test" {
		t.Errorf("OpenAI key = %q, want sk-test", cfg.Providers.OpenAI.APIKey)
	}
	if !cfg.Providers.OpenAI.Enabled {
		t.Error("OpenAI should be enabled when key present")
	}
	if cfg.Embedding.Backend != "jina" || cfg.Embedding.APIKey != "jina-test" {
		t.Errorf("Embedding = %q/%q, want jina/jina-test", cfg.Embedding.Backend, cfg.Embedding.APIKey)
	}
}

func TestAutoPopulateDoesNotOverrideFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := DefaultConfig()
	cfg.Providers.OpenAI.APIKey = "sk-file"
	cfg.AutoPopulateFromEnv()

	if cfg.Providers.OpenAI.APIKey != "sk-file" {
		t.Errorf("OpenAI key = %q, want sk-file", cfg.Providers.OpenAI.APIKey)
	}
}
