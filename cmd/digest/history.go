package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/abelbrown/digest/internal/logging"
	"github.com/abelbrown/digest/internal/store"
)

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBPath(), "SQLite file holding recorded runs")
	limit := fs.Int("limit", 10, "Number of runs to list")
	runID := fs.Int64("run", 0, "Show the items of one run instead of the list")
	verbose := fs.Bool("v", false, "Verbose logging")
	fs.Parse(os.Args[1:])

	logging.Init(*verbose)

	st, err := store.Open(*dbPath)
	if err != nil {
		logging.Fatal("Failed to open database", "path", *dbPath, "error", err)
	}
	defer st.Close()

	if *runID > 0 {
		showRun(st, *runID)
		return
	}

	runs, err := st.RecentRuns(*limit)
	if err != nil {
		logging.Fatal("Failed to list runs", "error", err)
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return
	}

	for _, r := range runs {
		line := fmt.Sprintf("%4d  %s  %d/%d items",
			r.ID, r.Created.Format("2006-01-02 15:04"), r.SelectedItems, r.TotalItems)
		if r.DuplicateGroups > 0 {
			line += fmt.Sprintf("  (%d dup groups)", r.DuplicateGroups)
		}
		fmt.Println(line)
	}
}

func showRun(st *store.Store, runID int64) {
	items, err := st.RunItems(runID)
	if err != nil {
		logging.Fatal("Failed to load run items", "run", runID, "error", err)
	}
	if len(items) == 0 {
		fmt.Printf("No items recorded for run %d.\n", runID)
		return
	}

	for i, it := range items {
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
	}
}
