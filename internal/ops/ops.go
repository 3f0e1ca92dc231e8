// Package ops implements the case lifecycle operations shared by the CLI,
// the web server and the MCP tools.
package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/brief/internal/agents"
	"github.com/hpungsan/brief/internal/db"
	"github.com/hpungsan/brief/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// The single local user that owns every case.
const (
	DemoUserOpenID = "demo@local"
	DemoUserName   = "Demo User"
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Runner executes the research pipeline for one case.
type Runner interface {
	Run(ctx context.Context, in agents.RunInput) agents.RunOutput
}

// demoUser returns the demo user's ID, creating the user on first use.
func demoUser(ctx context.Context, database *sql.DB) (string, error) {
	return db.EnsureUser(ctx, database, DemoUserOpenID, DemoUserName)
}

// requireID trims id and rejects an empty one.
func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	return id, nil
}
