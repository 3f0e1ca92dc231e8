package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/brief/internal/cases"
	"github.com/hpungsan/brief/internal/db"
	"github.com/hpungsan/brief/internal/logging"
)

// InterruptedReason is logged against cases failed by RecoverStale.
const InterruptedReason = "Run interrupted: the process exited while this case was processing."

// RecoverStale fails cases whose processing claim is older than staleAfter
// and appends a failed entry to each trace. Younger claims may be held by a
// live run in another process sharing the database and are left alone.
func RecoverStale(ctx context.Context, database *sql.DB, staleAfter time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-staleAfter).UnixMilli()
	ids, err := db.FailStaleProcessing(ctx, database, cutoff)
	if err != nil {
		return nil, err
	}

	logger := logging.New("ops")
	sink := &db.LogSink{DB: database}
	reason := InterruptedReason
	for _, id := range ids {
		_, err := sink.Append(ctx, cases.AgentLogEntry{
			CaseID:    id,
			AgentName: cases.AgentLawyer,
			Action:    cases.ActionFailed,
			Reasoning: &reason,
		})
		if err != nil {
			return nil, err
		}
		logger.Warn("recovered stale case", "case_id", id)
	}
	return ids, nil
}
