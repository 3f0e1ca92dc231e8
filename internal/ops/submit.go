package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/brief/internal/cases"
	"github.com/hpungsan/brief/internal/db"
	"github.com/hpungsan/brief/internal/errors"
)

// Field limits for submitted cases.
const (
	MaxTitleChars = 500
	MaxQueryChars = 50000
)

// SubmitInput contains parameters for the Submit operation.
type SubmitInput struct {
	Title       string
	Description *string // optional
	Query       string
}

// SubmitOutput contains the result of the Submit operation.
type SubmitOutput struct {
	ID     string       `json:"id"`
	Status cases.Status `json:"status"`
}

// Submit creates a pending case owned by the demo user.
func Submit(ctx context.Context, database *sql.DB, input SubmitInput) (*SubmitOutput, error) {
	title := strings.TrimSpace(input.Title)
	query := strings.TrimSpace(input.Query)
	if title == "" {
		return nil, errors.NewInvalidRequest("title is required")
	}
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	if len([]rune(title)) > MaxTitleChars {
		return nil, errors.NewInvalidRequest("title is too long")
	}
	if len([]rune(query)) > MaxQueryChars {
		return nil, errors.NewInvalidRequest("query is too long")
	}

	var description *string
	if input.Description != nil {
		if d := strings.TrimSpace(*input.Description); d != "" {
			description = &d
		}
	}

	userID, err := demoUser(ctx, database)
	if err != nil {
		return nil, err
	}

	now := db.Now()
	c := &cases.Case{
		ID:          db.NewID(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Query:       query,
		Status:      cases.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.InsertCase(ctx, database, c); err != nil {
		return nil, err
	}

	return &SubmitOutput{ID: c.ID, Status: c.Status}, nil
}
