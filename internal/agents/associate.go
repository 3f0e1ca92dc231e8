package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hpungsan/brief/internal/cases"
)

// associateFallback replaces the synthesis when the Associate stage fails.
type associateFallback struct {
	Error     string   `json:"error"`
	Arguments []string `json:"arguments"`
}

// associate runs the synthesis stage. It never fails the run.
func (p *Pipeline) associate(ctx context.Context, rec *recorder, in RunInput, research string) string {
	agent := cases.AgentAssociate
	input := fmt.Sprintf("USER QUERY: %s\n\nCASE FACTS (Important):\n%s\n\nWEB SEARCH RESULTS:\n%s",
		in.Query, orDefault(in.Description, "None provided"), research)

	out, err := p.synthesize(ctx, rec, Clamp(input, p.limits.InputMaxChars))
	if err != nil {
		rec.fail(ctx, agent, "Synthesis", err)
		b, _ := json.Marshal(associateFallback{Error: err.Error(), Arguments: []string{"Analysis failed"}})
		return string(b)
	}
	return out
}

func (p *Pipeline) synthesize(ctx context.Context, rec *recorder, input string) (string, error) {
	agent := cases.AgentAssociate
	if err := rec.log(ctx, agent, cases.ActionStarted, "Synthesizing facts and search results...", "", ""); err != nil {
		return "", err
	}
	out, err := p.complete(ctx, p.prompts.Associate, input)
	if err != nil {
		return "", err
	}
	if err := rec.log(ctx, agent, cases.ActionCompleted, "Synthesized Analysis", out, Preview(out, 100)); err != nil {
		return "", err
	}
	return out, nil
}
