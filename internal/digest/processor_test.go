package digest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/abelbrown/digest/internal/brain"
	"github.com/abelbrown/digest/internal/config"
	"github.com/abelbrown/digest/internal/model"
)

// Test items are titled like "a8": one letter, then the score every
// rubric axis should get.
var itemLinePattern = regexp.MustCompile(`\[(\d+)\] Title: [a-z](\d+)`)

// scriptedLLM answers scoring calls from the titles in the prompt and
// summary calls with canned text.
type scriptedLLM struct {
	mu            sync.Mutex
	jsonCalls     int
	generateCalls int
	failTrend     bool
	failSummaries bool
}

func (s *scriptedLLM) Name() string    { return "scripted" }
func (s *scriptedLLM) Available() bool { return true }

func (s *scriptedLLM) GenerateJSON(_ context.Context, req brain.Request) (string, error) {
	s.mu.Lock()
	s.jsonCalls++
	s.mu.Unlock()

	var results []string
	for _, m := range itemLinePattern.FindAllStringSubmatch(req.UserPrompt, -1) {
		results = append(results, fmt.Sprintf(
			`{"index": %s, "technical_impact": %s, "industry_impact": %s, "trending": %s, "novelty": %s, "reason": "scripted"}`,
			m[1], m[2], m[2], m[2], m[2]))
	}
	return `{"results": [` + strings.Join(results, ",") + `]}`, nil
}

func (s *scriptedLLM) Generate(_ context.Context, req brain.Request) (brain.Response, error) {
	s.mu.Lock()
	s.generateCalls++
	s.mu.Unlock()

	switch {
	case strings.Contains(req.UserPrompt, "technology journalist"):
		if s.failTrend {
			return brain.Response{}, errors.New("trend model broke")
		}
		return brain.Response{Content: "Trend overview for the period.", Model: "scripted"}, nil
	case strings.HasPrefix(req.UserPrompt, "Summarize the following item"):
		if s.failSummaries {
			return brain.Response{}, errors.New("summary model broke")
		}
		return brain.Response{Content: "A concise generated summary.", Model: "scripted"}, nil
	}
	return brain.Response{}, fmt.Errorf("unexpected prompt: %.60s", req.UserPrompt)
}

// mapEmbedder returns canned vectors keyed by the embedded text.
type mapEmbedder struct {
	vecs map[string][]float32
	err  error
}

func (f *mapEmbedder) Available() bool { return true }

func (f *mapEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (f *mapEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vecs[t]
		if !ok {
			return nil, fmt.Errorf("no canned vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func testConfig(topN int) config.DigestConfig {
	return config.DigestConfig{
		BatchSize:           20,
		MaxConcurrent:       2,
		SimilarityThreshold: 0.85,
		BufferRatio:         2.5,
		TopN:                topN,
		DedupEnabled:        true,
	}
}

func scoredItems(titles ...string) []*model.Item {
	items := make([]*model.Item, len(titles))
	for i, title := range titles {
		items[i] = &model.Item{ID: title, Title: title}
	}
	return items
}

func TestProcessEndToEnd(t *testing.T) {
	llm := &scriptedLLM{}
	emb := &mapEmbedder{vecs: map[string][]float32{
		"a8": {1, 0, 0},
		"b6": {0, 1, 0},
		"c4": {0, 0, 1},
	}}
	p := NewProcessor(llm, emb, testConfig(2))

	d := p.Process(context.Background(), scoredItems("a8", "b6", "c4"), "")

	if d.TotalItems != 3 {
		t.Errorf("TotalItems = %d, want 3", d.TotalItems)
	}
	if len(d.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(d.Items))
	}
	if d.Items[0].Title != "a8" || d.Items[1].Title != "b6" {
		t.Errorf("selection = %q, %q; want a8, b6", d.Items[0].Title, d.Items[1].Title)
	}
	if d.Items[0].ImportanceScore != 8.0 {
		t.Errorf("top score = %v, want 8.0", d.Items[0].ImportanceScore)
	}
	if d.TrendSummary != "Trend overview for the period." {
		t.Errorf("trend summary = %q", d.TrendSummary)
	}
	for _, it := range d.Items {
		if it.DigestSummary != "A concise generated summary." {
			t.Errorf("item %q summary = %q", it.Title, it.DigestSummary)
		}
	}
	if d.DuplicateGroups != 0 {
		t.Errorf("DuplicateGroups = %d, want 0", d.DuplicateGroups)
	}
}

func TestProcessCollapsesDuplicates(t *testing.T) {
	llm := &scriptedLLM{}
	// a8 and b7 are near-identical; c5 stands alone.
	emb := &mapEmbedder{vecs: map[string][]float32{
		"a8": {1, 0},
		"b7": {0.99, 0.14},
		"c5": {0, 1},
	}}
	p := NewProcessor(llm, emb, testConfig(2))

	d := p.Process(context.Background(), scoredItems("b7", "a8", "c5"), "")

	if len(d.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(d.Items))
	}
	if d.Items[0].Title != "a8" {
		t.Errorf("representative = %q, want a8 (higher score)", d.Items[0].Title)
	}
	if d.Items[0].DuplicateCount != 2 {
		t.Errorf("DuplicateCount = %d, want 2", d.Items[0].DuplicateCount)
	}
	if d.Items[1].Title != "c5" {
		t.Errorf("second item = %q, want c5", d.Items[1].Title)
	}
	if d.DuplicateGroups != 1 {
		t.Errorf("DuplicateGroups = %d, want 1", d.DuplicateGroups)
	}
}

func TestSelectTopWithoutEmbedder(t *testing.T) {
	llm := &scriptedLLM{}
	p := NewProcessor(llm, nil, testConfig(2))

	items := []*model.Item{
		{ID: "low", Title: "low", ImportanceScore: 2.0},
		{ID: "high", Title: "high", ImportanceScore: 9.0},
		{ID: "mid", Title: "mid", ImportanceScore: 5.0},
	}
	top, dupGroups := p.SelectTop(context.Background(), items)

	if len(top) != 2 || top[0].ID != "high" || top[1].ID != "mid" {
		t.Errorf("top = %v", top)
	}
	if dupGroups != 0 {
		t.Errorf("dupGroups = %d, want 0", dupGroups)
	}
	// Input order untouched.
	if items[0].ID != "low" {
		t.Error("SelectTop must not reorder its input slice")
	}
}

func TestSelectTopEmbedFailureFallsBackToScoreOrder(t *testing.T) {
	llm := &scriptedLLM{}
	emb := &mapEmbedder{err: errors.New("embedding backend down")}
	p := NewProcessor(llm, emb, testConfig(2))

	items := []*model.Item{
		{ID: "a", Title: "a", ImportanceScore: 3.0},
		{ID: "b", Title: "b", ImportanceScore: 7.0},
		{ID: "c", Title: "c", ImportanceScore: 5.0},
	}
	top, dupGroups := p.SelectTop(context.Background(), items)

	if len(top) != 2 || top[0].ID != "b" || top[1].ID != "c" {
		t.Errorf("fallback selection = %v", top)
	}
	if dupGroups != 0 {
		t.Errorf("dupGroups = %d, want 0", dupGroups)
	}
}

func TestTrendSummaryEmptyItems(t *testing.T) {
	p := NewProcessor(&scriptedLLM{}, nil, testConfig(5))

	got := p.TrendSummary(context.Background(), nil)
	if got != "No notable items this period." {
		t.Errorf("TrendSummary(empty) = %q", got)
	}
}

func TestTrendSummaryFailureUsesPlaceholder(t *testing.T) {
	llm := &scriptedLLM{failTrend: true}
	p := NewProcessor(llm, nil, testConfig(5))

	got := p.TrendSummary(context.Background(), scoredItems("a8"))
	if got != "Trend summary unavailable." {
		t.Errorf("TrendSummary = %q", got)
	}
}

func TestSummarizeFallbacks(t *testing.T) {
	llm := &scriptedLLM{failSummaries: true}
	p := NewProcessor(llm, nil, testConfig(5))

	long := strings.Repeat("x", 300)
	items := []*model.Item{
		{ID: "1", Title: "has summary", Summary: long},
		{ID: "2", Title: "title only"},
		{ID: "3"},
	}
	p.Summarize(context.Background(), items)

	if got := items[0].DigestSummary; len([]rune(got)) != 200 {
		t.Errorf("long summary fallback length = %d, want 200", len([]rune(got)))
	}
	if items[1].DigestSummary != "No summary available." {
		t.Errorf("title-only fallback = %q", items[1].DigestSummary)
	}
	if items[2].DigestSummary != "No content available." {
		t.Errorf("textless fallback = %q", items[2].DigestSummary)
	}
}
