package agents

import "strings"

// TruncationMarker is appended to inputs clamped for model limits.
const TruncationMarker = "\n\n[...truncated for model limits...]"

// clampReserve is how much room below max a clamped prefix leaves.
const clampReserve = 500

// Sanitize extracts the JSON payload from model output. It drops every
// ```json and ``` marker, trims whitespace, and when both a '{' and a
// later '}' are present keeps only the span between the first and last.
// Empty output becomes "{}".
func Sanitize(raw string) string {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return "{}"
	}

	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first != -1 && last > first {
		s = s[first : last+1]
	}
	return s
}

// Clamp bounds s to max runes. Longer input keeps its prefix and ends with
// TruncationMarker; the result never exceeds max.
func Clamp(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	marker := []rune(TruncationMarker)
	keep := max - clampReserve
	if keep < 0 {
		keep = max - len(marker)
	}
	if keep < 0 {
		if max < 0 {
			max = 0
		}
		return string(runes[:max])
	}
	return string(runes[:keep]) + TruncationMarker
}

// Preview returns at most n runes of s for display, ending in "..." when cut.
func Preview(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
