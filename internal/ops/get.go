package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/brief/internal/cases"
	"github.com/hpungsan/brief/internal/db"
	"github.com/hpungsan/brief/internal/errors"
)

// GetInput contains parameters for the Get operation.
type GetInput struct {
	ID string
}

// GetOutput is a case with its canonical result, if any.
type GetOutput struct {
	cases.Case
	Result *cases.Result `json:"result,omitempty"`
}

// Get retrieves a case by ID.
func Get(ctx context.Context, database *sql.DB, input GetInput) (*GetOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}

	c, err := db.GetCase(ctx, database, id)
	if err != nil {
		return nil, err
	}

	output := &GetOutput{Case: *c}
	r, err := db.LatestResult(ctx, database, id)
	switch {
	case err == nil:
		output.Result = r
	case !errors.Is(err, errors.ErrNotFound):
		return nil, err
	}
	return output, nil
}

// LogsInput contains parameters for the Logs operation.
type LogsInput struct {
	ID string
}

// LogsOutput is a case's execution trace.
type LogsOutput struct {
	CaseID string                `json:"case_id"`
	Items  []cases.AgentLogEntry `json:"items"`
}

// Logs returns the execution trace of a case in order.
func Logs(ctx context.Context, database *sql.DB, input LogsInput) (*LogsOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}
	if _, err := db.GetCase(ctx, database, id); err != nil {
		return nil, err
	}

	entries, err := db.ListLogs(ctx, database, id)
	if err != nil {
		return nil, err
	}
	return &LogsOutput{CaseID: id, Items: nonNilLogs(entries)}, nil
}

// ResultInput contains parameters for the Result operation.
type ResultInput struct {
	ID string
}

// ResultOutput is the canonical result with its verdict decoded.
type ResultOutput struct {
	cases.Result
	Verdict *cases.Verdict `json:"verdict,omitempty"`
}

// Result returns the latest result of a case. NOT_FOUND if the case has none.
func Result(ctx context.Context, database *sql.DB, input ResultInput) (*ResultOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}
	if _, err := db.GetCase(ctx, database, id); err != nil {
		return nil, err
	}

	r, err := db.LatestResult(ctx, database, id)
	if err != nil {
		return nil, err
	}

	output := &ResultOutput{Result: *r}
	if doc, err := cases.DecodeVerdict(r.FindingsText()); err == nil {
		v := doc.Verdict()
		output.Verdict = &v
	}
	return output, nil
}
