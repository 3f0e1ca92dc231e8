package cases

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Export formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// MarkdownTitle is the heading prefix of a Markdown export.
const MarkdownTitle = "# Research Results: "

// RenderMarkdown renders a case result as a Markdown report.
// Findings that do not decode as a JSON object are emitted raw under "## Findings".
func RenderMarkdown(title string, r *Result) string {
	var b strings.Builder
	b.WriteString(MarkdownTitle + title + "\n\n")
	if r == nil {
		return b.String()
	}

	if r.Summary != nil && *r.Summary != "" {
		fmt.Fprintf(&b, "## Summary\n\n%s\n\n", *r.Summary)
	}

	findings := r.FindingsText()
	if findings == "" {
		return b.String()
	}

	var doc Document
	if err := json.Unmarshal([]byte(findings), &doc); err != nil || doc == nil {
		fmt.Fprintf(&b, "## Findings\n\n%s", findings)
		return b.String()
	}

	if s := doc.String("analysis"); s != "" {
		fmt.Fprintf(&b, "## Analysis\n\n%s\n\n", s)
	}
	if s := doc.String("recommendation"); s != "" {
		fmt.Fprintf(&b, "## Recommendation\n\n%s\n\n", s)
	}
	if s := doc.String("riskAssessment"); s != "" {
		fmt.Fprintf(&b, "## Risk Assessment\n\n%s\n\n", s)
	}
	if cites := doc.Citations(); len(cites) > 0 {
		b.WriteString("## Citations\n\n")
		for _, c := range cites {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// ExportFilename builds the download name for an export of the given format.
func ExportFilename(title, caseID, format string) string {
	name := SanitizeForFilename(title)
	if name == "" {
		name = "case-" + caseID
	}
	if format == FormatJSON {
		return name + "_verdict.json"
	}
	return name + ".md"
}

// SanitizeForFilename makes a string safe for use as a filename component.
// Removes path separators, traversal sequences, and control characters.
// Returns "" when nothing usable remains.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")
	s = strings.ReplaceAll(s, "\"", "")

	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = strings.TrimSpace(result.String())

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}

	return strings.Trim(s, "-")
}
