package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleOutput() *SearchOutput {
	return &SearchOutput{
		Results: []SearchResultOutput{
			{
				ID:         "bs7671:701.411.3.3",
				Source:     "BS 7671:2018+A2:2022",
				Section:    "701.411.3.3",
				Content:    "Additional protection by RCD shall be provided for circuits in bathroom locations.",
				Authority:  "normative",
				Score:      0.87,
				Confidence: 0.91,
				Level:      "high",
				Reasoning:  "directly addresses query",
			},
		},
		AverageConfidence: 0.91,
		Intent:            "design",
	}
}

func TestFormatSearchResults_Empty(t *testing.T) {
	out := FormatSearchResults("obscure question", &SearchOutput{})
	assert.Contains(t, out, "No regulations found")
	assert.Contains(t, out, "obscure question")
}

func TestFormatSearchResults_Nil(t *testing.T) {
	out := FormatSearchResults("q", nil)
	assert.Contains(t, out, "No regulations found")
}

func TestFormatSearchResults_SingleResult(t *testing.T) {
	out := FormatSearchResults("shower rcd", sampleOutput())

	assert.Contains(t, out, `## Regulation Results for "shower rcd"`)
	assert.Contains(t, out, "Found 1 result (intent: design")
	assert.NotContains(t, out, "1 results")
	assert.Contains(t, out, "### 1. 701.411.3.3 — BS 7671:2018+A2:2022 (score: 0.87)")
	assert.Contains(t, out, "**Confidence:** high (0.91) — directly addresses query")
	assert.Contains(t, out, "> Additional protection by RCD")
}

func TestFormatSearchResults_DegradedNotice(t *testing.T) {
	output := sampleOutput()
	output.DegradedCalls = 2
	out := FormatSearchResults("shower rcd", output)
	assert.Contains(t, out, "2 retrieval call(s) failed")
}

func TestFormatSearchResults_CacheMarker(t *testing.T) {
	output := sampleOutput()
	output.CacheHit = true
	out := FormatSearchResults("shower rcd", output)
	assert.Contains(t, out, "[cached]")
}

func TestExcerptBlock_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("regulation text ", 100)
	block := excerptBlock(long)
	assert.Less(t, len(block), len(long))
	assert.True(t, strings.HasPrefix(block, "> "))
	assert.Contains(t, block, "…")
}

func TestExcerptBlock_QuotesEveryLine(t *testing.T) {
	block := excerptBlock("first line\nsecond line")
	assert.Contains(t, block, "> first line")
	assert.Contains(t, block, "> second line")
}
