package model

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// rawItem accepts the loose key variants that different collectors emit.
type rawItem struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Title         string    `json:"title"`
	OriginalTitle string    `json:"original_title"`
	Summary       string    `json:"summary"`
	Snippet       string    `json:"snippet"`
	URL           string    `json:"url"`
	Link          string    `json:"link"`
	Author        string    `json:"author"`
	Published     time.Time `json:"published"`
}

// itemFile is the wrapped export format: {"items": [...]}
type itemFile struct {
	Items []rawItem `json:"items"`
}

// LoadItems reads a collector export (either a bare JSON array or an
// object with an "items" key) and normalizes each record into the
// canonical Item shape. Records with no usable content at all are
// dropped; an item with no stable identifier gets one assigned.
func LoadItems(r io.Reader) ([]*Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("model: read input: %w", err)
	}

	var raws []rawItem
	if err := json.Unmarshal(data, &raws); err != nil {
		var wrapped itemFile
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("model: parse items: %w", err)
		}
		raws = wrapped.Items
	}

	items := make([]*Item, 0, len(raws))
	for _, raw := range raws {
		it := normalize(raw)
		if it == nil {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// normalize resolves key aliases and assigns a stable ID. Returns nil
// for records that carry nothing worth ranking.
func normalize(raw rawItem) *Item {
	title := raw.Title
	if title == "" {
		title = raw.OriginalTitle
	}
	summary := raw.Summary
	if summary == "" {
		summary = raw.Snippet
	}
	url := raw.URL
	if url == "" {
		url = raw.Link
	}

	if title == "" && summary == "" && url == "" {
		return nil
	}

	id := raw.ID
	if id == "" {
		id = url
	}
	if id == "" {
		id = uuid.NewString()
	}

	return &Item{
		ID:        id,
		Source:    raw.Source,
		Title:     title,
		Summary:   summary,
		URL:       url,
		Author:    raw.Author,
		Published: raw.Published,
	}
}
