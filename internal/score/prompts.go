package score

import (
	"fmt"
	"strings"

	"github.com/abelbrown/digest/internal/model"
)

const scoreSystemPrompt = `You are an expert analyst covering AI and technology news. You evaluate content strictly against a scoring rubric and respond with JSON only, no commentary.`

const rubricAxesText = `Score each axis as an integer from 1 to 10:
1. technical_impact: degree of technical breakthrough or innovation
2. industry_impact: breadth and severity of impact across the industry
3. trending: current attention and frequency of media coverage
4. novelty: a genuinely new finding or announcement versus a rehash of known information`

const trendAxisText = `5. trend_relevance: how directly the item relates to the trend context above`

func resultSchema(withTrend bool) string {
	var b strings.Builder
	b.WriteString(`    {
      "index": 0,
      "technical_impact": <integer 1-10>,
      "industry_impact": <integer 1-10>,
      "trending": <integer 1-10>,
      "novelty": <integer 1-10>,
`)
	if withTrend {
		b.WriteString("      \"trend_relevance\": <integer 1-10>,\n")
	}
	b.WriteString(`      "reason": "<one short sentence>"
    }`)
	return b.String()
}

func writeRubric(b *strings.Builder, trendContext string) {
	b.WriteString("## Rubric\n")
	b.WriteString(rubricAxesText)
	b.WriteString("\n")
	if trendContext != "" {
		b.WriteString("\n## Trend context\n")
		b.WriteString(trendContext)
		b.WriteString("\n\n")
		b.WriteString(trendAxisText)
		b.WriteString("\n")
	}
}

// batchPrompt lists every item with a bracketed position so the model
// can key its results back to inputs by index.
func batchPrompt(items []*model.Item, trendContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate the importance of each of the following %d items.\n\n", len(items))
	writeRubric(&b, trendContext)

	b.WriteString("\n## Items\n")
	for i, it := range items {
		summary := clip(it.Summary, 300)
		if summary == "" {
			summary = "(no summary)"
		}
		fmt.Fprintf(&b, "[%d] Title: %s\n    Summary: %s\n\n", i, it.Title, summary)
	}

	fmt.Fprintf(&b, "## Response format\nRespond with JSON only. You must include an entry for every one of the %d items:\n", len(items))
	b.WriteString("{\n  \"results\": [\n")
	b.WriteString(resultSchema(trendContext != ""))
	b.WriteString(",\n    ...\n  ]\n}\n")
	return b.String()
}

func singlePrompt(it *model.Item, trendContext string) string {
	var b strings.Builder
	b.WriteString("Evaluate the importance of the following item.\n\n")
	writeRubric(&b, trendContext)

	summary := clip(it.Summary, 300)
	if summary == "" {
		summary = "(no summary)"
	}
	fmt.Fprintf(&b, "\n## Item\nTitle: %s\nSummary: %s\n\n", it.Title, summary)

	b.WriteString("## Response format\nRespond with JSON only:\n")
	b.WriteString(strings.ReplaceAll(resultSchema(trendContext != ""), "\"index\": 0,\n      ", ""))
	b.WriteString("\n")
	return b.String()
}

// clip truncates s to at most n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
