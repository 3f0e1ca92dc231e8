package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/brief/internal/cases"
	"github.com/hpungsan/brief/internal/db"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []cases.Case `json:"items"`
	Pagination Pagination   `json:"pagination"`
	Sort       string       `json:"sort"`
}

// List returns the demo user's cases, newest first.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	userID, err := demoUser(ctx, database)
	if err != nil {
		return nil, err
	}

	items, total, err := db.ListCases(ctx, database, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []cases.Case{}
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}
