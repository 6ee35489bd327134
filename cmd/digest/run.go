package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/digest/internal/brain"
	"github.com/abelbrown/digest/internal/config"
	"github.com/abelbrown/digest/internal/digest"
	"github.com/abelbrown/digest/internal/embed"
	"github.com/abelbrown/digest/internal/logging"
	"github.com/abelbrown/digest/internal/model"
	"github.com/abelbrown/digest/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	metaStyle   = lipgloss.NewStyle().Faint(true)
)

func runRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	input := fs.String("input", "-", "Input JSON file of items ('-' for stdin)")
	top := fs.Int("top", 0, "Number of items to select (0 = config default)")
	trend := fs.String("trend", "", "Trend context; adds a trend-relevance scoring axis")
	noDedup := fs.Bool("no-dedup", false, "Disable embedding-based deduplication")
	jsonOut := fs.Bool("json", false, "Emit the digest as JSON on stdout")
	dbPath := fs.String("db", "", "SQLite file to record the run in (empty disables)")
	providerName := fs.String("provider", "", "Force one provider: openai, claude, gemini, ollama")
	configPath := fs.String("config", "", "Config file (default: ~/.digest/config.json)")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(os.Args[1:])

	logging.Init(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal("Failed to load config", "error", err)
	}
	if *top > 0 {
		cfg.Digest.TopN = *top
	}
	if *noDedup {
		cfg.Digest.DedupEnabled = false
	}

	items := loadInput(*input)
	if len(items) == 0 {
		logging.Fatal("No items in input")
	}
	logging.Info("Loaded items", "count", len(items))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := buildProviders(ctx, cfg)
	var provider brain.Provider
	if *providerName != "" {
		provider = mgr.GetByName(*providerName)
		if provider == nil || !provider.Available() {
			logging.Fatal("Requested provider not available", "provider", *providerName)
		}
	} else if sp := mgr.GetStructured(); sp != nil {
		provider = sp
	} else {
		provider = mgr.GetAvailable()
	}
	if provider == nil {
		logging.Fatal("No LLM provider available; set an API key or enable Ollama")
	}
	logging.Info("Using provider", "name", provider.Name())

	var embedder embed.BatchEmbedder
	if cfg.Digest.DedupEnabled {
		embedder = embed.New(cfg.Embedding)
	}

	proc := digest.NewProcessor(provider, embedder, cfg.Digest)
	d := proc.Process(ctx, items, *trend)

	if *dbPath != "" {
		saveRun(*dbPath, d)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(d); err != nil {
			logging.Fatal("Failed to encode digest", "error", err)
		}
		return
	}
	render(d)
}

func loadInput(path string) []*model.Item {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			logging.Fatal("Failed to open input", "path", path, "error", err)
		}
		defer f.Close()
		r = f
	}

	items, err := model.LoadItems(r)
	if err != nil {
		logging.Fatal("Failed to parse input", "error", err)
	}
	return items
}

func saveRun(dbPath string, d *digest.Digest) {
	st, err := store.Open(dbPath)
	if err != nil {
		logging.Error("Failed to open database, run not recorded", "path", dbPath, "error", err)
		return
	}
	defer st.Close()

	runID, err := st.SaveDigest(d)
	if err != nil {
		logging.Error("Failed to record run", "error", err)
		return
	}
	logging.Info("Recorded run", "run_id", runID, "db", dbPath)
}

func render(d *digest.Digest) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("Top %d of %d items", len(d.Items), d.TotalItems)))
	if d.DuplicateGroups > 0 {
		fmt.Println(metaStyle.Render(fmt.Sprintf("%d duplicate groups collapsed", d.DuplicateGroups)))
	}
	fmt.Println()

	if d.TrendSummary != "" {
		fmt.Println(titleStyle.Render("Trends"))
		fmt.Println(d.TrendSummary)
		fmt.Println()
	}

	for i, it := range d.Items {
		line := fmt.Sprintf("%2d. %s %s", i+1,
			scoreStyle.Render(fmt.Sprintf("[%.1f]", it.ImportanceScore)),
			titleStyle.Render(it.Title))
		if it.DuplicateCount > 1 {
			line += metaStyle.Render(fmt.Sprintf("  (%d similar)", it.DuplicateCount))
		}
		fmt.Println(line)
		if it.DigestSummary != "" {
			fmt.Println("    " + it.DigestSummary)
		}
		if it.URL != "" {
			fmt.Println("    " + metaStyle.Render(it.URL))
		}
		fmt.Println()
	}
}
