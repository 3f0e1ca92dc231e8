package llm

import (
	"context"
	"time"
)

// DemoVerdict is the fixed placeholder returned when no provider is configured.
const DemoVerdict = `{"summary":"Demo Mode","analysis":"No API Key configured.","recommendation":"Check .env","riskAssessment":"None","citations":[]}`

type demoProvider struct{}

func (demoProvider) Name() string { return ProviderDemo }

func (demoProvider) Complete(ctx context.Context, _ []Message, _ Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Result{
		ID:           "demo",
		Created:      time.Now().Unix(),
		Model:        "demo-mock",
		Text:         DemoVerdict,
		FinishReason: "stop",
	}, nil
}
