package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/brief/internal/agents"
	"github.com/hpungsan/brief/internal/cases"
	"github.com/hpungsan/brief/internal/config"
	"github.com/hpungsan/brief/internal/db"
	"github.com/hpungsan/brief/internal/errors"
	"github.com/hpungsan/brief/internal/logging"
)

// ExecuteInput contains parameters for the Execute operation.
type ExecuteInput struct {
	ID string
}

// ExecuteOutput contains the result of the Execute operation.
type ExecuteOutput struct {
	CaseID  string                `json:"case_id"`
	Status  cases.Status          `json:"status"`
	Success bool                  `json:"success"`
	Error   string                `json:"error,omitempty"`
	Logs    []cases.AgentLogEntry `json:"logs"`
	Result  *cases.Result         `json:"result,omitempty"`
}

// Execute runs the pipeline for a case and records the outcome.
//
// The case is claimed atomically; a second Execute while one is in flight
// gets CONFLICT. A successful run stores a Result and marks the case
// completed in one transaction. A failed run marks it failed. Both writes
// require the claim to still hold; if stale recovery took it the run's
// outcome is discarded and CONFLICT is returned.
func Execute(ctx context.Context, database *sql.DB, runner Runner, cfg *config.Config, input ExecuteInput) (*ExecuteOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	c, err := db.GetCase(ctx, database, id)
	if err != nil {
		return nil, err
	}
	claim, err := db.ClaimCase(ctx, database, id)
	if err != nil {
		return nil, err
	}

	logger := logging.New("ops")
	logger.Info("execute started", "case_id", id)

	runCtx := ctx
	if timeout := cfg.RunTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	out := runner.Run(runCtx, agents.RunInput{
		CaseID:      c.ID,
		Query:       c.Query,
		Description: c.DescriptionText(),
	})

	// Status writes must land even when the caller has gone away
	persistCtx := context.WithoutCancel(ctx)

	if !out.Success {
		if err := db.ReleaseCase(persistCtx, database, id, claim, cases.StatusFailed); err != nil {
			logger.Warn("execute could not record failure", "case_id", id, "error", err)
			return nil, err
		}
		logger.Warn("execute failed", "case_id", id, "error", out.Error, "elapsed", time.Since(start))
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("execute")
		}
		return &ExecuteOutput{
			CaseID: id,
			Status: cases.StatusFailed,
			Error:  out.Error,
			Logs:   nonNilLogs(out.Logs),
		}, nil
	}

	result, err := buildResult(id, out.Result)
	if err != nil {
		_ = db.ReleaseCase(persistCtx, database, id, claim, cases.StatusFailed)
		return nil, err
	}
	if err := db.CompleteCase(persistCtx, database, claim, result); err != nil {
		// A lost claim belongs to someone else now; leave the row as they left it
		if !errors.Is(err, errors.ErrConflict) {
			_ = db.ReleaseCase(persistCtx, database, id, claim, cases.StatusFailed)
		}
		logger.Warn("execute could not store result", "case_id", id, "error", err)
		return nil, err
	}

	logger.Info("execute completed", "case_id", id, "elapsed", time.Since(start))
	return &ExecuteOutput{
		CaseID:  id,
		Status:  cases.StatusCompleted,
		Success: true,
		Logs:    nonNilLogs(out.Logs),
		Result:  result,
	}, nil
}

// buildResult parses the verdict text into a Result, substituting the
// diagnostic verdict when it does not decode as a JSON object.
func buildResult(caseID, verdictText string) (*cases.Result, error) {
	doc, err := cases.DecodeVerdict(agents.Sanitize(verdictText))
	if err != nil {
		logging.New("ops").Warn("verdict parse failed, storing diagnostic result", "case_id", caseID, "error", err)
		doc = cases.DiagnosticVerdict(verdictText)
	}

	findings, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	precedents, statutes := cases.SplitCitations(doc.Citations())
	precJSON, err := jsonArray(precedents)
	if err != nil {
		return nil, err
	}
	statJSON, err := jsonArray(statutes)
	if err != nil {
		return nil, err
	}

	return &cases.Result{
		ID:             db.NewID(),
		CaseID:         caseID,
		Summary:        nonEmpty(doc.String("summary")),
		Findings:       nonEmpty(string(findings)),
		Precedents:     &precJSON,
		Statutes:       &statJSON,
		Recommendation: nonEmpty(doc.String("recommendation")),
		CreatedAt:      db.Now(),
	}, nil
}

func jsonArray(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(b), nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNilLogs(entries []cases.AgentLogEntry) []cases.AgentLogEntry {
	if entries == nil {
		return []cases.AgentLogEntry{}
	}
	return entries
}
