// Package digest runs the full ranking pipeline: importance scoring,
// dedup-aware top-N selection, a trend summary over the survivors, and
// a short generated summary per selected item.
package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/abelbrown/digest/internal/brain"
	"github.com/abelbrown/digest/internal/config"
	"github.com/abelbrown/digest/internal/dedup"
	"github.com/abelbrown/digest/internal/embed"
	"github.com/abelbrown/digest/internal/logging"
	"github.com/abelbrown/digest/internal/model"
	"github.com/abelbrown/digest/internal/score"
	"github.com/abelbrown/digest/internal/work"
)

const trendSummaryPrompt = `You are a technology journalist. Analyze the list of items below and write a 3-4 sentence summary of the main trends this period. Highlight the most notable developments; do not mention specific item titles verbatim.

## Items
%s

## Summary:`

const itemSummaryPrompt = `Summarize the following item in 2-3 sentences. Plain text only, no preamble.

Title: %s
Content: %s

Summary:`

// Digest is the result of one pipeline run.
type Digest struct {
	TrendSummary    string        `json:"trend_summary"`
	Items           []*model.Item `json:"items"`
	TotalItems      int           `json:"total_items"`
	DuplicateGroups int           `json:"duplicate_groups,omitempty"`
}

// Processor wires the pipeline stages together. One provider and one
// admission gate are shared across every stage.
type Processor struct {
	llm      brain.Provider
	scorer   *score.Scorer
	detector *dedup.Detector // nil disables deduplication
	gate     *work.Gate
	cfg      config.DigestConfig
}

// NewProcessor creates a Processor. A nil embedder, or dedup disabled
// in the config, turns selection into plain sort-and-truncate.
func NewProcessor(p brain.Provider, embedder embed.BatchEmbedder, cfg config.DigestConfig) *Processor {
	gate := work.NewGate(cfg.MaxConcurrent)
	proc := &Processor{
		llm:    p,
		scorer: score.New(p, gate, cfg.BatchSize),
		gate:   gate,
		cfg:    cfg,
	}
	if cfg.DedupEnabled && embedder != nil {
		proc.detector = dedup.NewDetector(embedder, cfg.SimilarityThreshold)
	}
	return proc
}

// Rank scores every item in place. See score.Scorer.Rank.
func (p *Processor) Rank(ctx context.Context, items []*model.Item, trendContext string) []*model.Item {
	return p.scorer.Rank(ctx, items, trendContext)
}

// SelectTop returns the top-N items and the number of duplicate groups
// collapsed on the way. With deduplication unavailable or failing, it
// degrades to score-ordered truncation.
func (p *Processor) SelectTop(ctx context.Context, items []*model.Item) ([]*model.Item, int) {
	if len(items) == 0 {
		return nil, 0
	}
	if p.detector == nil {
		return sortTop(items, p.cfg.TopN), 0
	}

	top, _, err := p.detector.SelectTop(ctx, items, p.cfg.TopN, p.cfg.BufferRatio)
	if err != nil {
		logging.Error("Deduplication failed, selecting by score only", "error", err)
		return sortTop(items, p.cfg.TopN), 0
	}

	dupGroups := 0
	for _, it := range top {
		if it.DuplicateCount > 1 {
			dupGroups++
		}
	}
	return top, dupGroups
}

func sortTop(items []*model.Item, topN int) []*model.Item {
	sorted := make([]*model.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ImportanceScore > sorted[j].ImportanceScore
	})
	if topN > 0 && len(sorted) > topN {
		sorted = sorted[:topN]
	}
	return sorted
}

// TrendSummary generates a short trend overview from the top items.
// Failures yield a fixed placeholder, never an error.
func (p *Processor) TrendSummary(ctx context.Context, items []*model.Item) string {
	if len(items) == 0 {
		return "No notable items this period."
	}

	var b strings.Builder
	for i, it := range items {
		if i == 20 {
			break
		}
		fmt.Fprintf(&b, "- %s\n", it.Title)
	}

	var out string
	err := p.gate.Do(ctx, "trend summary", work.DefaultRetryConfig(), func(ctx context.Context) error {
		resp, err := p.llm.Generate(ctx, brain.Request{
			UserPrompt: fmt.Sprintf(trendSummaryPrompt, b.String()),
			MaxTokens:  1024,
		})
		if err != nil {
			return err
		}
		out = strings.TrimSpace(resp.Content)
		return nil
	})
	if err != nil {
		logging.Error("Trend summary generation failed", "error", err)
		return "Trend summary unavailable."
	}
	logging.Info("Generated trend summary", "chars", len(out))
	return out
}

// Summarize generates a short digest summary for each item, in
// parallel under the shared gate. An item that cannot be summarized
// falls back to a truncated version of its existing summary.
func (p *Processor) Summarize(ctx context.Context, items []*model.Item) {
	if len(items) == 0 {
		return
	}
	logging.Info("Generating item summaries", "count", len(items))

	var wg sync.WaitGroup
	for _, it := range items {
		wg.Add(1)
		go func(it *model.Item) {
			defer wg.Done()
			p.summarizeItem(ctx, it)
		}(it)
	}
	wg.Wait()
}

func (p *Processor) summarizeItem(ctx context.Context, it *model.Item) {
	if !it.HasText() {
		it.DigestSummary = "No content available."
		return
	}

	content := it.Summary
	if r := []rune(content); len(r) > 1000 {
		content = string(r[:1000])
	}
	if content == "" {
		content = "(no content)"
	}

	var out string
	err := p.gate.Do(ctx, "item summary", work.DefaultRetryConfig(), func(ctx context.Context) error {
		resp, err := p.llm.Generate(ctx, brain.Request{
			UserPrompt: fmt.Sprintf(itemSummaryPrompt, it.Title, content),
			MaxTokens:  512,
		})
		if err != nil {
			return err
		}
		out = strings.TrimSpace(resp.Content)
		return nil
	})
	if err != nil {
		logging.Warn("Item summary failed, using original text", "title", it.Title, "error", err)
		if r := []rune(it.Summary); len(r) > 200 {
			it.DigestSummary = string(r[:200])
		} else if it.Summary != "" {
			it.DigestSummary = it.Summary
		} else {
			it.DigestSummary = "No summary available."
		}
		return
	}
	it.DigestSummary = out
}

// Process runs the whole pipeline over items and returns the digest.
// trendContext, when non-empty, steers scoring toward it via an extra
// rubric axis.
func (p *Processor) Process(ctx context.Context, items []*model.Item, trendContext string) *Digest {
	logging.Info("Starting digest processing", "items", len(items))

	scored := p.Rank(ctx, items, trendContext)
	top, dupGroups := p.SelectTop(ctx, scored)
	trend := p.TrendSummary(ctx, top)
	p.Summarize(ctx, top)

	logging.Info("Digest processing completed",
		"selected", len(top), "duplicate_groups", dupGroups)

	return &Digest{
		TrendSummary:    trend,
		Items:           top,
		TotalItems:      len(items),
		DuplicateGroups: dupGroups,
	}
}
