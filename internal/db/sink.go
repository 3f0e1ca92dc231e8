package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/brief/internal/cases"
)

// LogSink persists pipeline trace entries as they are produced.
type LogSink struct {
	DB *sql.DB
}

// Append assigns the entry an ID and timestamp, stores it, and returns the stored copy.
func (s *LogSink) Append(ctx context.Context, e cases.AgentLogEntry) (cases.AgentLogEntry, error) {
	e.ID = NewID()
	e.Timestamp = Now()
	if err := InsertLog(ctx, s.DB, &e); err != nil {
		return cases.AgentLogEntry{}, err
	}
	return e, nil
}
