package mcp

import (
	"fmt"
	"strings"
)

// FormatSearchResults renders a search output as markdown for display
// in terminals and text-only MCP clients.
func FormatSearchResults(query string, output *SearchOutput) string {
	if output == nil || len(output.Results) == 0 {
		return fmt.Sprintf("No regulations found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Regulation Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(output.Results))
	if len(output.Results) != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, " (intent: %s, average confidence: %.2f)", output.Intent, output.AverageConfidence)
	if output.CacheHit {
		sb.WriteString(" [cached]")
	}
	sb.WriteString("\n\n")

	if output.DegradedCalls > 0 {
		fmt.Fprintf(&sb, "> %d retrieval call(s) failed; results may be incomplete.\n\n", output.DegradedCalls)
	}

	for i, r := range output.Results {
		formatResult(&sb, i+1, r)
	}

	return sb.String()
}

// formatResult renders one result.
func formatResult(sb *strings.Builder, num int, r SearchResultOutput) {
	fmt.Fprintf(sb, "### %d. %s — %s (score: %.2f)\n", num, r.Section, r.Source, r.Score)
	fmt.Fprintf(sb, "**Confidence:** %s (%.2f) — %s\n", r.Level, r.Confidence, r.Reasoning)
	if r.Authority != "" {
		fmt.Fprintf(sb, "**Authority:** %s\n", r.Authority)
	}
	sb.WriteString("\n")
	sb.WriteString(excerptBlock(r.Content))
	sb.WriteString("\n")
}

// excerptBlock quotes regulation text, truncating very long passages.
func excerptBlock(content string) string {
	const maxDisplay = 800
	content = strings.TrimSpace(content)
	if len(content) > maxDisplay {
		cut := maxDisplay
		for cut > 0 && content[cut]&0xC0 == 0x80 {
			cut--
		}
		content = content[:cut] + "…"
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n") + "\n"
}
