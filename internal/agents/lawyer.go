package agents

import (
	"context"
	"fmt"

	"github.com/hpungsan/brief/internal/cases"
)

// lawyer drafts the verdict. Its error fails the run.
func (p *Pipeline) lawyer(ctx context.Context, rec *recorder, in RunInput, synthesis string) (string, error) {
	agent := cases.AgentLawyer
	input := fmt.Sprintf("CASE FACTS: %s\n\nASSOCIATE SYNTHESIS:\n%s", orDefault(in.Description, "N/A"), synthesis)

	if err := rec.log(ctx, agent, cases.ActionStarted, "Drafting final verdict...", "", ""); err != nil {
		rec.fail(ctx, agent, "Verdict", err)
		return "", err
	}

	out, err := p.complete(ctx, p.prompts.Lawyer, Clamp(input, p.limits.InputMaxChars))
	if err != nil {
		rec.fail(ctx, agent, "Verdict", err)
		return "", err
	}

	if err := rec.log(ctx, agent, cases.ActionCompleted, "Verdict", out, Preview(out, 100)); err != nil {
		rec.fail(ctx, agent, "Verdict", err)
		return "", err
	}
	return out, nil
}
