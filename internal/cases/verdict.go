package cases

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Verdict is the Lawyer stage's five-field output.
type Verdict struct {
	Summary        string   `json:"summary"`
	Analysis       string   `json:"analysis"`
	Recommendation string   `json:"recommendation"`
	RiskAssessment string   `json:"riskAssessment"`
	Citations      []string `json:"citations"`
}

// Document is a decoded verdict object. Unknown keys emitted by the model are
// kept so the stored findings stay faithful to what the model returned.
type Document map[string]any

var (
	leadingJSONFence = regexp.MustCompile("(?i)^```json\\s*")
	leadingFence     = regexp.MustCompile("^```\\s*")
	trailingFence    = regexp.MustCompile("```\\s*$")
)

// TrimFences removes one leading ```json or ``` marker and one trailing ```.
func TrimFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = leadingJSONFence.ReplaceAllString(s, "")
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// DecodeVerdict parses verdict JSON into a Document.
// Anything other than a JSON object is an error. Model output must be
// sanitized first; stored findings are already plain JSON.
func DecodeVerdict(raw string) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode verdict: not a JSON object")
	}
	return doc, nil
}

// DiagnosticVerdict is substituted when the Lawyer output cannot be decoded.
// The raw text is kept as the analysis so nothing the model produced is lost.
func DiagnosticVerdict(raw string) Document {
	return Document{
		"summary":        "Automated parsing failed. See detailed analysis below.",
		"analysis":       TrimFences(raw),
		"recommendation": "Please review raw findings.",
		"riskAssessment": "Unknown",
		"citations":      []any{},
	}
}

// String returns the value at key when it is a string, else "".
func (d Document) String(key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

// Citations returns the string entries of the "citations" array.
func (d Document) Citations() []string {
	raw, ok := d["citations"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// Verdict projects the document onto the five known fields.
func (d Document) Verdict() Verdict {
	return Verdict{
		Summary:        d.String("summary"),
		Analysis:       d.String("analysis"),
		Recommendation: d.String("recommendation"),
		RiskAssessment: d.String("riskAssessment"),
		Citations:      d.Citations(),
	}
}

// precedentPattern matches case-style citations ("Roe v. Wade", "A vs B").
var precedentPattern = regexp.MustCompile(`(?i)\b(v\.|vs\.?|versus)\s`)

// SplitCitations separates case-law citations from statutory ones.
func SplitCitations(citations []string) (precedents, statutes []string) {
	for _, c := range citations {
		if precedentPattern.MatchString(c) {
			precedents = append(precedents, c)
		} else {
			statutes = append(statutes, c)
		}
	}
	return precedents, statutes
}
