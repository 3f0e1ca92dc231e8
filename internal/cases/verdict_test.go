package cases

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTrimFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"upper-case fence", "```JSON {\"a\":1}```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```  ", `{"a":1}`},
		{"no fence", `  {"a":1}  `, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimFences(tt.input); got != tt.want {
				t.Errorf("TrimFences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeVerdict(t *testing.T) {
	raw := `{
		"summary": "S",
		"analysis": "A",
		"recommendation": "R",
		"riskAssessment": "Low - clear statute",
		"citations": ["Article 14", "Smith v. Jones", 42],
		"extra": true
	}`

	doc, err := DecodeVerdict(raw)
	if err != nil {
		t.Fatalf("DecodeVerdict() error = %v", err)
	}

	want := Verdict{
		Summary:        "S",
		Analysis:       "A",
		Recommendation: "R",
		RiskAssessment: "Low - clear statute",
		Citations:      []string{"Article 14", "Smith v. Jones"},
	}
	if diff := cmp.Diff(want, doc.Verdict()); diff != "" {
		t.Errorf("Verdict() mismatch (-want +got):\n%s", diff)
	}
	if doc["extra"] != true {
		t.Errorf("unknown keys should be preserved, got %v", doc["extra"])
	}
}

func TestDecodeVerdict_Rejects(t *testing.T) {
	fenced := "```json\n{\"summary\": \"S\"}\n```"
	for _, raw := range []string{"", "not json", "[1,2]", `"str"`, "null", `{"summary": "cut`, fenced} {
		if _, err := DecodeVerdict(raw); err == nil {
			t.Errorf("DecodeVerdict(%q) expected error", raw)
		}
	}
}

func TestDiagnosticVerdict(t *testing.T) {
	doc := DiagnosticVerdict("```json\n{\"summary\": \"trunc")
	v := doc.Verdict()

	if v.Summary != "Automated parsing failed. See detailed analysis below." {
		t.Errorf("Summary = %q", v.Summary)
	}
	if v.Analysis != `{"summary": "trunc` {
		t.Errorf("Analysis = %q", v.Analysis)
	}
	if v.Recommendation != "Please review raw findings." {
		t.Errorf("Recommendation = %q", v.Recommendation)
	}
	if v.RiskAssessment != "Unknown" {
		t.Errorf("RiskAssessment = %q", v.RiskAssessment)
	}
	if len(v.Citations) != 0 {
		t.Errorf("Citations = %v, want empty", v.Citations)
	}
}

func TestSplitCitations(t *testing.T) {
	precedents, statutes := SplitCitations([]string{
		"Maneka Gandhi v. Union of India (1978)",
		"Article 21, Constitution of India",
		"Brown vs Board of Education",
		"Indian Contract Act, 1872, s. 73",
	})

	wantP := []string{"Maneka Gandhi v. Union of India (1978)", "Brown vs Board of Education"}
	wantS := []string{"Article 21, Constitution of India", "Indian Contract Act, 1872, s. 73"}
	if diff := cmp.Diff(wantP, precedents); diff != "" {
		t.Errorf("precedents mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantS, statutes); diff != "" {
		t.Errorf("statutes mismatch (-want +got):\n%s", diff)
	}
}

func TestStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if Status("archived").Valid() {
		t.Errorf("unknown status reported valid")
	}
	if StatusProcessing.Terminal() || StatusPending.Terminal() {
		t.Errorf("non-terminal status reported terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Errorf("terminal status reported non-terminal")
	}
}
