// Package model defines the canonical content record that flows through
// the ranking pipeline. Key-name variance from upstream collectors
// (title vs original_title, summary vs snippet) is resolved once at load
// time; every later stage sees one fixed shape.
package model

import "time"

// Item is a single piece of collected content being ranked and
// deduplicated. Items move through the pipeline by pointer; stages
// annotate them in place and never delete fields.
type Item struct {
	ID        string    `json:"id"`
	Source    string    `json:"source,omitempty"` // "arxiv", "medium", "rss", ...
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	URL       string    `json:"url,omitempty"`
	Author    string    `json:"author,omitempty"`
	Published time.Time `json:"published,omitempty"`

	// Set by the importance scorer
	ImportanceScore float64      `json:"importance_score,omitempty"`
	ScoreReason     string       `json:"score_reason,omitempty"`
	ScoreDetails    *RubricScore `json:"score_details,omitempty"`

	// Set by deduplication on the surviving representative (>= 1)
	DuplicateCount int `json:"duplicate_count,omitempty"`

	// Set when a short digest summary was generated for the final set
	DigestSummary string `json:"digest_summary,omitempty"`
}

// RubricScore holds the raw sub-axis scores from one rubric evaluation.
// Each axis is clamped to [1,10]. TrendRelevance is present only when a
// trend context was supplied to the scorer.
type RubricScore struct {
	TechnicalImpact int    `json:"technical_impact"`
	IndustryImpact  int    `json:"industry_impact"`
	Trending        int    `json:"trending"`
	Novelty         int    `json:"novelty"`
	TrendRelevance  int    `json:"trend_relevance,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// HasText reports whether the item carries any usable text for scoring
// or embedding.
func (it *Item) HasText() bool {
	return it.Title != "" || it.Summary != ""
}
