package agents

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptsFileName is the optional override file under the base directory.
const PromptsFileName = "prompts.yaml"

const defaultSearchPrompt = `You are a legal researcher. Generate {{.Count}} specific search queries to find case law or statutes relevant to this situation.

Situation:
{{.Situation}}

Return ONLY a JSON object: {"queries": ["string", "string"]}`

const defaultAssociatePrompt = `You are a Legal Associate. Synthesize the Case Facts and Web Search Results.
Identify relevant statutes (e.g., Article 14, Contract Act) and precedents.

Return JSON: {"precedents": [], "statutes": [], "principles": [], "arguments": []}`

const defaultLawyerPrompt = `You are a Senior Judge/Lawyer. Write a verdict based on the Facts and Synthesis.

OUTPUT FORMAT (JSON ONLY):
{
  "summary": "Brief summary of the case facts (2-3 sentences)",
  "analysis": "Legal reasoning applying statutes/precedents to the facts",
  "recommendation": "Clear advice for the client",
  "riskAssessment": "High/Medium/Low with reason",
  "citations": ["List specific sections/cases"]
}
Do NOT include markdown formatting.`

// Prompts are the instruction texts sent to each stage.
// Search is a text/template over {{.Situation}} and {{.Count}}.
type Prompts struct {
	Search    string `yaml:"search"`
	Associate string `yaml:"associate"`
	Lawyer    string `yaml:"lawyer"`

	search *template.Template
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() *Prompts {
	p := &Prompts{
		Search:    defaultSearchPrompt,
		Associate: defaultAssociatePrompt,
		Lawyer:    defaultLawyerPrompt,
	}
	p.search = template.Must(template.New("search").Parse(p.Search))
	return p
}

// LoadPrompts reads overrides from path on top of the defaults.
// A missing file yields the defaults. Empty fields keep their default.
func LoadPrompts(path string) (*Prompts, error) {
	p := DefaultPrompts()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}

	var overlay Prompts
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	if overlay.Search != "" {
		tmpl, err := template.New("search").Parse(overlay.Search)
		if err != nil {
			return nil, fmt.Errorf("parse search prompt: %w", err)
		}
		p.Search = overlay.Search
		p.search = tmpl
	}
	if overlay.Associate != "" {
		p.Associate = overlay.Associate
	}
	if overlay.Lawyer != "" {
		p.Lawyer = overlay.Lawyer
	}
	return p, nil
}

// renderSearch fills the search-formulation template.
func (p *Prompts) renderSearch(situation string, count int) (string, error) {
	var buf bytes.Buffer
	err := p.search.Execute(&buf, struct {
		Situation string
		Count     int
	}{situation, count})
	if err != nil {
		return "", fmt.Errorf("render search prompt: %w", err)
	}
	return buf.String(), nil
}
