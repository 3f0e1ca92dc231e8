// Package agents runs the three-stage legal research pipeline:
// WebResearcher gathers sources, Associate synthesizes them, and Lawyer
// drafts the verdict. Researcher and Associate failures degrade to
// fallback text; only a Lawyer failure fails the run.
package agents

import (
	"context"
	"log/slog"

	"github.com/hpungsan/brief/internal/cases"
	"github.com/hpungsan/brief/internal/config"
	"github.com/hpungsan/brief/internal/llm"
	"github.com/hpungsan/brief/internal/logging"
	"github.com/hpungsan/brief/internal/search"
)

// Completer is the model gateway.
type Completer interface {
	Invoke(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Result, error)
}

// Searcher is the web search client.
type Searcher interface {
	Enabled() bool
	Search(ctx context.Context, query string, maxResults int) ([]search.Result, error)
}

// LogSink stores trace entries and returns them with ID and timestamp set.
type LogSink interface {
	Append(ctx context.Context, e cases.AgentLogEntry) (cases.AgentLogEntry, error)
}

// Limits bound prompt sizes and search fan-out.
type Limits struct {
	InputMaxChars        int
	SearchPromptMaxChars int
	MaxSearchQueries     int
	MaxSearches          int
	SearchMaxResults     int
}

// LimitsFrom reads limits from config.
func LimitsFrom(cfg *config.Config) Limits {
	return Limits{
		InputMaxChars:        cfg.InputMaxChars,
		SearchPromptMaxChars: cfg.SearchPromptMaxChars,
		MaxSearchQueries:     cfg.MaxSearchQueries,
		MaxSearches:          cfg.MaxSearches,
		SearchMaxResults:     cfg.SearchMaxResults,
	}
}

// DefaultLimits matches config.DefaultConfig.
func DefaultLimits() Limits {
	return LimitsFrom(config.DefaultConfig())
}

// Pipeline runs research cases through the three stages.
type Pipeline struct {
	llm     Completer
	search  Searcher
	sink    LogSink
	prompts *Prompts
	limits  Limits
	logger  *slog.Logger
}

// New creates a pipeline. A nil prompts uses the defaults.
func New(model Completer, searcher Searcher, sink LogSink, prompts *Prompts, limits Limits) *Pipeline {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	def := DefaultLimits()
	if limits.InputMaxChars <= 0 {
		limits.InputMaxChars = def.InputMaxChars
	}
	if limits.SearchPromptMaxChars <= 0 {
		limits.SearchPromptMaxChars = def.SearchPromptMaxChars
	}
	if limits.MaxSearchQueries <= 0 {
		limits.MaxSearchQueries = def.MaxSearchQueries
	}
	if limits.MaxSearches <= 0 {
		limits.MaxSearches = def.MaxSearches
	}
	if limits.SearchMaxResults <= 0 {
		limits.SearchMaxResults = def.SearchMaxResults
	}
	return &Pipeline{
		llm:     model,
		search:  searcher,
		sink:    sink,
		prompts: prompts,
		limits:  limits,
		logger:  logging.New("agents"),
	}
}

// RunInput is the case being researched.
type RunInput struct {
	CaseID      string
	Query       string
	Description string
}

// RunOutput is the outcome of one run.
type RunOutput struct {
	Success bool
	// Result is the sanitized verdict text, set when Success.
	Result string
	// Logs are the trace entries the sink accepted during this run, in order.
	Logs  []cases.AgentLogEntry
	Error string
}

// Run executes WebResearcher, Associate and Lawyer in order.
func (p *Pipeline) Run(ctx context.Context, in RunInput) RunOutput {
	rec := &recorder{sink: p.sink, caseID: in.CaseID, logger: p.logger}

	if err := rec.log(ctx, cases.AgentLawyer, cases.ActionInitiated, in.Query, "", ""); err != nil {
		return RunOutput{Logs: rec.entries, Error: err.Error()}
	}

	research := p.research(ctx, rec, in)
	synthesis := p.associate(ctx, rec, in, research)
	verdict, err := p.lawyer(ctx, rec, in, synthesis)
	if err != nil {
		p.logger.Warn("run failed", "case_id", in.CaseID, "error", err)
		return RunOutput{Logs: rec.entries, Error: err.Error()}
	}

	p.logger.Info("run completed", "case_id", in.CaseID, "entries", len(rec.entries))
	return RunOutput{Success: true, Result: verdict, Logs: rec.entries}
}

// complete sends a user-role conversation and returns the sanitized reply.
func (p *Pipeline) complete(ctx context.Context, prompts ...string) (string, error) {
	messages := make([]llm.Message, 0, len(prompts))
	for _, s := range prompts {
		messages = append(messages, llm.NewMessage(llm.RoleUser, s))
	}
	res, err := p.llm.Invoke(ctx, messages, llm.Options{ResponseFormat: llm.FormatJSONObject})
	if err != nil {
		return "", err
	}
	return Sanitize(res.Text), nil
}

// recorder appends trace entries and keeps the acknowledged ones.
type recorder struct {
	sink    LogSink
	caseID  string
	logger  *slog.Logger
	entries []cases.AgentLogEntry
}

func (r *recorder) log(ctx context.Context, agent cases.AgentName, action cases.Action, input, output, reasoning string) error {
	e := cases.AgentLogEntry{
		CaseID:    r.caseID,
		AgentName: agent,
		Action:    action,
		Input:     optional(input),
		Output:    optional(output),
		Reasoning: optional(reasoning),
	}
	stored, err := r.sink.Append(context.WithoutCancel(ctx), e)
	if err != nil {
		return err
	}
	r.entries = append(r.entries, stored)
	return nil
}

// fail records a failed entry. A sink error here is only logged since the
// stage is already failing.
func (r *recorder) fail(ctx context.Context, agent cases.AgentName, input string, cause error) {
	if err := r.log(ctx, agent, cases.ActionFailed, input, "", cause.Error()); err != nil {
		r.logger.Error("append failed entry", "case_id", r.caseID, "agent", agent, "error", err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
