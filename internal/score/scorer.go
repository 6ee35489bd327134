// Package score assigns rubric-based importance scores to items using
// an LLM. Items are scored in batches of batchSize with one model call
// per batch; a failed batch degrades to per-item calls, and a failed
// item keeps the neutral default score. Scoring never fails the
// pipeline.
package score

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/abelbrown/digest/internal/brain"
	"github.com/abelbrown/digest/internal/logging"
	"github.com/abelbrown/digest/internal/model"
	"github.com/abelbrown/digest/internal/work"
)

// DefaultScore is assigned when no usable score can be obtained for an
// item: scoring failure, a missing index in the batch response, or an
// item with no text to evaluate.
const DefaultScore = 5.0

const defaultBatchSize = 20

// Scorer scores items against the importance rubric.
type Scorer struct {
	llm        brain.Provider
	structured brain.StructuredProvider // nil when llm has no JSON mode
	gate       *work.Gate
	retry      work.RetryConfig
	batchSize  int
}

// New creates a Scorer on top of the given provider. If the provider
// supports structured output it is used for every call; otherwise the
// plain text path with lenient JSON extraction is used. The capability
// is resolved here, once.
func New(p brain.Provider, gate *work.Gate, batchSize int) *Scorer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if gate == nil {
		gate = work.NewGate(0)
	}
	s := &Scorer{
		llm:       p,
		gate:      gate,
		retry:     work.DefaultRetryConfig(),
		batchSize: batchSize,
	}
	if sp, ok := p.(brain.StructuredProvider); ok {
		s.structured = sp
	}
	return s
}

// Rank assigns an importance score to every item, in place, and returns
// the same slice in its original order. Items without any text get the
// default score without a model call. trendContext, when non-empty, is
// included in the rubric and adds a fifth trend-relevance axis.
//
// Rank never returns an error: every failure mode degrades to the
// default score for the items affected.
func (s *Scorer) Rank(ctx context.Context, items []*model.Item, trendContext string) []*model.Item {
	if len(items) == 0 {
		return items
	}

	scorable := make([]*model.Item, 0, len(items))
	for _, it := range items {
		if !it.HasText() {
			it.ImportanceScore = DefaultScore
			it.ScoreReason = "no content to evaluate"
			continue
		}
		scorable = append(scorable, it)
	}

	logging.Info("Ranking items by importance",
		"count", len(scorable), "batch_size", s.batchSize)

	var wg sync.WaitGroup
	for start := 0; start < len(scorable); start += s.batchSize {
		end := min(start+s.batchSize, len(scorable))
		batch := scorable[start:end]

		wg.Add(1)
		go func(batch []*model.Item, idx int) {
			defer wg.Done()
			if err := s.scoreBatch(ctx, batch, trendContext); err != nil {
				logging.Warn("Batch scoring failed, scoring items individually",
					"batch", idx, "size", len(batch), "error", err)
				s.scoreIndividually(ctx, batch, trendContext)
			}
		}(batch, start/s.batchSize)
	}
	wg.Wait()

	return items
}

// scoreBatch scores one batch with a single model call. Any error means
// the whole batch is unscored and the caller falls back to per-item
// calls.
func (s *Scorer) scoreBatch(ctx context.Context, batch []*model.Item, trendContext string) error {
	raw, err := s.call(ctx, "score batch", batchPrompt(batch, trendContext))
	if err != nil {
		return err
	}

	results, err := parseBatchResponse(raw)
	if err != nil {
		return err
	}

	byIndex := make(map[int]rawScores, len(results))
	for _, r := range results {
		if i, ok := asIndex(r.Index); ok {
			byIndex[i] = r
		}
	}

	for i, it := range batch {
		r, ok := byIndex[i]
		if !ok {
			logging.Warn("No score returned for item, using default",
				"index", i, "title", clip(it.Title, 40))
			it.ImportanceScore = DefaultScore
			it.ScoreReason = "no score returned"
			continue
		}
		apply(it, r, trendContext != "")
		logging.Debug("Scored item", "title", clip(it.Title, 40), "score", it.ImportanceScore)
	}
	return nil
}

func (s *Scorer) scoreIndividually(ctx context.Context, batch []*model.Item, trendContext string) {
	for _, it := range batch {
		if err := s.scoreSingle(ctx, it, trendContext); err != nil {
			logging.Warn("Individual scoring failed",
				"title", clip(it.Title, 40), "error", err)
			it.ImportanceScore = DefaultScore
			it.ScoreReason = "scoring failed"
		}
	}
}

func (s *Scorer) scoreSingle(ctx context.Context, it *model.Item, trendContext string) error {
	raw, err := s.call(ctx, "score item", singlePrompt(it, trendContext))
	if err != nil {
		return err
	}

	doc := extractJSON(raw)
	if doc == "" {
		return work.Classify(work.ErrMalformed, errors.New("no JSON object in response"))
	}
	var r rawScores
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return work.Classify(work.ErrMalformed, fmt.Errorf("parse score: %w", err))
	}
	apply(it, r, trendContext != "")
	return nil
}

// call runs one model call through the gate with retry for transient
// failures.
func (s *Scorer) call(ctx context.Context, op, prompt string) (string, error) {
	var raw string
	err := s.gate.Do(ctx, op, s.retry, func(ctx context.Context) error {
		req := brain.Request{
			SystemPrompt: scoreSystemPrompt,
			UserPrompt:   prompt,
			MaxTokens:    4096,
		}
		if s.structured != nil {
			out, err := s.structured.GenerateJSON(ctx, req)
			if err != nil {
				return err
			}
			raw = out
			return nil
		}
		resp, err := s.llm.Generate(ctx, req)
		if err != nil {
			return err
		}
		raw = resp.Content
		return nil
	})
	return raw, err
}

// rawScores is one rubric result as the model returned it, before
// clamping. Axis values stay untyped because models occasionally emit
// strings or floats where integers were asked for.
type rawScores struct {
	Index           any    `json:"index"`
	TechnicalImpact any    `json:"technical_impact"`
	IndustryImpact  any    `json:"industry_impact"`
	Trending        any    `json:"trending"`
	Novelty         any    `json:"novelty"`
	TrendRelevance  any    `json:"trend_relevance"`
	Reason          string `json:"reason"`
}

// parseBatchResponse accepts either {"results": [...]} or a bare array.
func parseBatchResponse(raw string) ([]rawScores, error) {
	doc := extractJSON(raw)
	if doc == "" {
		return nil, work.Classify(work.ErrMalformed, errors.New("no JSON in response"))
	}

	if strings.HasPrefix(doc, "[") {
		var list []rawScores
		if err := json.Unmarshal([]byte(doc), &list); err != nil {
			return nil, work.Classify(work.ErrMalformed, fmt.Errorf("parse results array: %w", err))
		}
		return list, nil
	}

	var wrapper struct {
		Results []rawScores `json:"results"`
	}
	if err := json.Unmarshal([]byte(doc), &wrapper); err != nil {
		return nil, work.Classify(work.ErrMalformed, fmt.Errorf("parse results object: %w", err))
	}
	if wrapper.Results == nil {
		return nil, work.Classify(work.ErrMalformed, errors.New("response has no results key"))
	}
	return wrapper.Results, nil
}

// extractJSON returns the outermost JSON object or array embedded in s,
// tolerating markdown fences and surrounding prose. Returns "" when
// neither is present.
func extractJSON(s string) string {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		if end := strings.LastIndexByte(s, ']'); end > arrStart {
			return s[arrStart : end+1]
		}
		return ""
	}
	if objStart != -1 {
		if end := strings.LastIndexByte(s, '}'); end > objStart {
			return s[objStart : end+1]
		}
	}
	return ""
}

// apply clamps the axis values, averages them, and writes the score
// onto the item. The average is rounded to one decimal place.
func apply(it *model.Item, r rawScores, withTrend bool) {
	details := &model.RubricScore{
		TechnicalImpact: clampScore(r.TechnicalImpact, 5),
		IndustryImpact:  clampScore(r.IndustryImpact, 5),
		Trending:        clampScore(r.Trending, 5),
		Novelty:         clampScore(r.Novelty, 5),
		Reason:          r.Reason,
	}
	sum := details.TechnicalImpact + details.IndustryImpact + details.Trending + details.Novelty
	n := 4
	if withTrend {
		details.TrendRelevance = clampScore(r.TrendRelevance, 5)
		sum += details.TrendRelevance
		n++
	}

	avg := float64(sum) / float64(n)
	it.ImportanceScore = math.Round(avg*10) / 10
	it.ScoreReason = r.Reason
	it.ScoreDetails = details
}

// clampScore coerces a model-supplied axis value into an integer in
// [1,10]. Anything that is not number-like becomes the default.
func clampScore(v any, def int) int {
	switch n := v.(type) {
	case nil:
		return def
	case float64:
		return clampInt(int(n))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return def
		}
		return clampInt(int(f))
	default:
		return def
	}
}

func clampInt(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

func asIndex(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}
