// Package dedup finds near-duplicate items by embedding similarity and
// collapses each cluster to its highest-scoring representative. Items
// are compared pairwise on cosine similarity and clustered with
// union-find, so duplicates chain transitively.
package dedup

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/abelbrown/digest/internal/embed"
	"github.com/abelbrown/digest/internal/logging"
	"github.com/abelbrown/digest/internal/model"
)

const (
	// DefaultThreshold is the cosine similarity at or above which two
	// items count as duplicates.
	DefaultThreshold = 0.85

	// DefaultBufferRatio oversamples the candidate pool before
	// deduplication so collapsed clusters do not leave the final
	// selection short.
	DefaultBufferRatio = 2.5

	// summaryPrefixLen bounds how much of the summary joins the title
	// in the embedded text.
	summaryPrefixLen = 200
)

// Detector clusters similar items using a batch embedder.
type Detector struct {
	embedder  embed.BatchEmbedder
	threshold float64
}

// NewDetector creates a Detector. Thresholds outside (0,1] fall back to
// the default.
func NewDetector(embedder embed.BatchEmbedder, threshold float64) *Detector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Detector{embedder: embedder, threshold: threshold}
}

// embedText builds the text compared for similarity: the title plus the
// first 200 runes of the summary.
func embedText(it *model.Item) string {
	if it.Summary == "" {
		return strings.TrimSpace(it.Title)
	}
	summary := it.Summary
	if r := []rune(summary); len(r) > summaryPrefixLen {
		summary = string(r[:summaryPrefixLen])
	}
	return strings.TrimSpace(it.Title + "\n" + summary)
}

// DetectDuplicates partitions items into similarity clusters. Every
// input item lands in exactly one cluster; items with no text cannot be
// compared and get singleton clusters. An embedding failure aborts the
// whole detection, the caller decides whether to degrade to score-only
// selection.
func (d *Detector) DetectDuplicates(ctx context.Context, items []*model.Item) ([][]*model.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(items))
	valid := make([]*model.Item, 0, len(items))
	var textless []*model.Item
	for _, it := range items {
		text := embedText(it)
		if text == "" {
			textless = append(textless, it)
			continue
		}
		texts = append(texts, text)
		valid = append(valid, it)
	}

	groups := make([][]*model.Item, 0, len(items))
	if len(valid) > 0 {
		logging.Info("Computing embeddings", "count", len(valid))
		vecs, err := d.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("compute embeddings: %w", err)
		}

		uf := newUnionFind(len(valid))
		for i := 0; i < len(vecs); i++ {
			for j := i + 1; j < len(vecs); j++ {
				sim := embed.CosineSimilarity(vecs[i], vecs[j])
				if sim >= d.threshold {
					uf.union(i, j)
					logging.Debug("Merged similar items",
						"a", clip(valid[i].Title, 40), "b", clip(valid[j].Title, 40),
						"similarity", fmt.Sprintf("%.3f", sim))
				}
			}
		}

		for _, indices := range uf.groups() {
			group := make([]*model.Item, len(indices))
			for k, idx := range indices {
				group[k] = valid[idx]
			}
			groups = append(groups, group)
		}
	}

	for _, it := range textless {
		groups = append(groups, []*model.Item{it})
	}

	logDuplicateGroups(groups)
	return groups, nil
}

func logDuplicateGroups(groups [][]*model.Item) {
	var dup, members int
	for _, g := range groups {
		if len(g) > 1 {
			dup++
			members += len(g)
		}
	}
	if dup > 0 {
		logging.Info("Detected duplicate groups", "groups", dup, "items", members)
	}
}

// SelectRepresentatives picks the highest-scoring item from each
// cluster (first seen wins ties), records the cluster size on it, and
// returns up to topN representatives in descending score order.
func (d *Detector) SelectRepresentatives(groups [][]*model.Item, topN int) []*model.Item {
	reps := make([]*model.Item, 0, len(groups))
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		best := group[0]
		for _, it := range group[1:] {
			if it.ImportanceScore > best.ImportanceScore {
				best = it
			}
		}
		best.DuplicateCount = len(group)
		reps = append(reps, best)
	}

	sort.SliceStable(reps, func(i, j int) bool {
		return reps[i].ImportanceScore > reps[j].ImportanceScore
	})

	if topN > 0 && len(reps) > topN {
		reps = reps[:topN]
	}
	return reps
}

// SelectTop returns the top-N items after deduplication. The candidate
// pool is the ceil(topN * bufferRatio) highest-scored items; clustering
// runs on the pool only, and the surviving representatives are cut to
// topN. The full cluster partition is returned alongside for reporting.
func (d *Detector) SelectTop(ctx context.Context, items []*model.Item, topN int, bufferRatio float64) ([]*model.Item, [][]*model.Item, error) {
	if len(items) == 0 {
		return nil, nil, nil
	}
	if topN <= 0 {
		topN = 20
	}
	if bufferRatio < 1 {
		bufferRatio = DefaultBufferRatio
	}

	sorted := make([]*model.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ImportanceScore > sorted[j].ImportanceScore
	})

	bufferN := int(math.Ceil(float64(topN) * bufferRatio))
	candidates := sorted
	if len(candidates) > bufferN {
		candidates = candidates[:bufferN]
	}
	logging.Info("Deduplicating candidate pool",
		"total", len(items), "candidates", len(candidates), "buffer_ratio", bufferRatio)

	groups, err := d.DetectDuplicates(ctx, candidates)
	if err != nil {
		return nil, nil, err
	}
	return d.SelectRepresentatives(groups, topN), groups, nil
}

func clip(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
