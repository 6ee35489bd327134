// Command digest ranks collected content by importance, removes
// near-duplicates, and emits a digest of the top items.
//
// Usage:
//
//	digest                  Show help
//	digest run              Score, dedup, and select the top items
//	digest history          List recorded digest runs
//	digest init             Write a starter config file
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/abelbrown/digest/internal/brain"
	"github.com/abelbrown/digest/internal/config"
	"github.com/abelbrown/digest/internal/logging"
)

const usage = `digest — content ranking & deduplication pipeline

Usage:
  digest <command> [flags]

Commands:
  run         Score items, collapse duplicates, and select the top N
  history     List recorded digest runs (requires a previous run with -db)
  init        Write a starter config to ~/.digest/config.json

Environment:
  OPENAI_API_KEY      OpenAI API key
  ANTHROPIC_API_KEY   Anthropic API key
  GEMINI_API_KEY      Google Gemini API key
  OLLAMA_HOST         Ollama endpoint (default: http://localhost:11434)
  JINA_API_KEY        Jina AI key for dedup embeddings

Run 'digest <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "run":
		runRun()
	case "history":
		runHistory()
	case "init":
		runInit()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "digest: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func defaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".digest", "digest.db")
}

// buildProviders constructs every enabled provider in priority order.
func buildProviders(ctx context.Context, cfg *config.Config) *brain.ProviderManager {
	type entry struct {
		name     string
		settings config.ModelSettings
	}
	entries := []entry{
		{"openai", cfg.Providers.OpenAI},
		{"claude", cfg.Providers.Claude},
		{"gemini", cfg.Providers.Gemini},
		{"ollama", cfg.Providers.Ollama},
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].settings.Priority < entries[j].settings.Priority
	})

	mgr := brain.NewProviderManager()
	for _, e := range entries {
		if !e.settings.Enabled {
			continue
		}
		switch e.name {
		case "openai":
			mgr.AddProvider(brain.NewOpenAIProvider(e.settings.APIKey, e.settings.Model, e.settings.Endpoint))
		case "claude":
			mgr.AddProvider(brain.NewClaudeProvider(e.settings.APIKey, e.settings.Model))
		case "gemini":
			p, err := brain.NewGeminiProvider(ctx, e.settings.APIKey, e.settings.Model)
			if err != nil {
				logging.Warn("Gemini provider unavailable", "error", err)
				continue
			}
			mgr.AddProvider(p)
		case "ollama":
			mgr.AddProvider(brain.NewOllamaProvider(e.settings.Endpoint, e.settings.Model))
		}
	}
	if cfg.Providers.Preferred != "" {
		mgr.SetPreferred(cfg.Providers.Preferred)
	}
	return mgr
}
