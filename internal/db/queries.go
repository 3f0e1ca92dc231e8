package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hpungsan/brief/internal/cases"
	"github.com/hpungsan/brief/internal/errors"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// EnsureUser returns the ID of the user with the given open ID, creating it if needed.
func EnsureUser(ctx context.Context, db *sql.DB, openID, name string) (string, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, open_id, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(open_id) DO NOTHING
	`, NewID(), openID, name, Now())
	if err != nil {
		return "", errors.NewInternal(err)
	}

	var id string
	if err := db.QueryRowContext(ctx, `SELECT id FROM users WHERE open_id = ?`, openID).Scan(&id); err != nil {
		return "", errors.NewInternal(err)
	}
	return id, nil
}

// InsertCase stores a new case.
func InsertCase(ctx context.Context, db *sql.DB, c *cases.Case) error {
	query := `
		INSERT INTO cases (id, user_id, title, description, query, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		c.ID, c.UserID, c.Title, toNullString(c.Description), c.Query,
		string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

const caseColumns = `id, user_id, title, description, query, status, created_at, updated_at`

// GetCase retrieves a case by its ULID.
func GetCase(ctx context.Context, db *sql.DB, id string) (*cases.Case, error) {
	row := db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	c, err := scanCase(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("case", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return c, nil
}

// ListCases returns a user's cases newest first, plus the total count.
func ListCases(ctx context.Context, db *sql.DB, userID string, limit, offset int) ([]cases.Case, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cases WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+caseColumns+`
		FROM cases
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var items []cases.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return items, total, nil
}

// UpdateCaseStatus sets a case's status and bumps updated_at.
func UpdateCaseStatus(ctx context.Context, db *sql.DB, id string, status cases.Status) error {
	return updateStatus(ctx, db, id, status)
}

func updateStatus(ctx context.Context, ex execer, id string, status cases.Status) error {
	if !status.Valid() {
		return errors.NewInvalidRequest("unknown status: " + string(status))
	}
	result, err := ex.ExecContext(ctx,
		`UPDATE cases SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), Now(), id,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("case", id)
	}
	return nil
}

// ClaimCase atomically moves a case into processing and returns the claim
// token the run must present to finish it.
// Returns a CONFLICT error if the case is already processing, NOT_FOUND if it doesn't exist.
func ClaimCase(ctx context.Context, db *sql.DB, id string) (string, error) {
	claim := NewID()
	result, err := db.ExecContext(ctx, `
		UPDATE cases SET status = 'processing', claim_id = ?, updated_at = ?
		WHERE id = ? AND status <> 'processing'
	`, claim, Now(), id)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if rowsAffected == 1 {
		return claim, nil
	}

	// Distinguish a missing case from one that is busy
	if _, err := GetCase(ctx, db, id); err != nil {
		return "", err
	}
	return "", errors.NewCaseBusy(id)
}

// finishClaim moves a claimed case out of processing. A 0-row update means
// the claim was taken away (stale recovery) and is reported as CONFLICT.
func finishClaim(ctx context.Context, ex execer, id, claim string, status cases.Status) error {
	result, err := ex.ExecContext(ctx, `
		UPDATE cases SET status = ?, claim_id = NULL, updated_at = ?
		WHERE id = ? AND status = 'processing' AND claim_id = ?
	`, string(status), Now(), id, claim)
	if err != nil {
		return errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewConflict(fmt.Sprintf("claim on case %s was lost", id))
	}
	return nil
}

// ReleaseCase ends a claimed run with the given terminal status.
// Returns CONFLICT if the claim no longer holds.
func ReleaseCase(ctx context.Context, db *sql.DB, id, claim string, status cases.Status) error {
	if !status.Valid() || status == cases.StatusProcessing {
		return errors.NewInvalidRequest("invalid terminal status: " + string(status))
	}
	return finishClaim(ctx, db, id, claim, status)
}

// CompleteCase inserts the run's result and marks the case completed in one
// transaction. Nothing is written if the claim no longer holds.
func CompleteCase(ctx context.Context, db *sql.DB, claim string, r *cases.Result) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if err := finishClaim(ctx, tx, r.CaseID, claim, cases.StatusCompleted); err != nil {
		return err
	}
	if err := insertResult(ctx, tx, r); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// FailStaleProcessing marks cases claimed before cutoff (Unix ms) and still
// processing as failed, and returns their IDs. Claims newer than cutoff may
// belong to a live run in another process and are left alone.
func FailStaleProcessing(ctx context.Context, db *sql.DB, cutoff int64) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id FROM cases WHERE status = 'processing' AND updated_at < ? ORDER BY id`, cutoff)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.NewInternal(err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	var failed []string
	for _, id := range ids {
		result, err := db.ExecContext(ctx, `
			UPDATE cases SET status = 'failed', claim_id = NULL, updated_at = ?
			WHERE id = ? AND status = 'processing' AND updated_at < ?
		`, Now(), id, cutoff)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 1 {
			failed = append(failed, id)
		}
	}
	return failed, nil
}

// InsertLog appends an entry to a case's execution trace.
func InsertLog(ctx context.Context, db *sql.DB, e *cases.AgentLogEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO agent_logs (id, case_id, agent_name, action, input, output, reasoning, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.CaseID, string(e.AgentName), string(e.Action),
		toNullString(e.Input), toNullString(e.Output), toNullString(e.Reasoning),
		e.Timestamp,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListLogs returns a case's execution trace in order.
func ListLogs(ctx context.Context, db *sql.DB, caseID string) ([]cases.AgentLogEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, case_id, agent_name, action, input, output, reasoning, timestamp
		FROM agent_logs
		WHERE case_id = ?
		ORDER BY timestamp ASC, id ASC
	`, caseID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var entries []cases.AgentLogEntry
	for rows.Next() {
		var (
			e                        cases.AgentLogEntry
			agent, action            string
			input, output, reasoning sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.CaseID, &agent, &action, &input, &output, &reasoning, &e.Timestamp); err != nil {
			return nil, errors.NewInternal(err)
		}
		e.AgentName = cases.AgentName(agent)
		e.Action = cases.Action(action)
		e.Input = fromNullString(input)
		e.Output = fromNullString(output)
		e.Reasoning = fromNullString(reasoning)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

// InsertResult stores a result without touching the case status.
func InsertResult(ctx context.Context, db *sql.DB, r *cases.Result) error {
	return insertResult(ctx, db, r)
}

func insertResult(ctx context.Context, ex execer, r *cases.Result) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO results (id, case_id, summary, findings, precedents, statutes, recommendation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.CaseID, toNullString(r.Summary), toNullString(r.Findings),
		toNullString(r.Precedents), toNullString(r.Statutes), toNullString(r.Recommendation),
		r.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// LatestResult returns the canonical (most recent) result for a case.
func LatestResult(ctx context.Context, db *sql.DB, caseID string) (*cases.Result, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, case_id, summary, findings, precedents, statutes, recommendation, created_at
		FROM results
		WHERE case_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, caseID)

	var (
		r                                   cases.Result
		summary, findings, prec, stat, reco sql.NullString
	)
	err := row.Scan(&r.ID, &r.CaseID, &summary, &findings, &prec, &stat, &reco, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("result", caseID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	r.Summary = fromNullString(summary)
	r.Findings = fromNullString(findings)
	r.Precedents = fromNullString(prec)
	r.Statutes = fromNullString(stat)
	r.Recommendation = fromNullString(reco)
	return &r, nil
}

// CountResults returns how many results were ever stored for a case.
func CountResults(ctx context.Context, db *sql.DB, caseID string) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE case_id = ?`, caseID).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCase scans a single row into a Case struct.
func scanCase(row rowScanner) (*cases.Case, error) {
	var (
		c           cases.Case
		description sql.NullString
		status      string
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &description, &c.Query, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Description = fromNullString(description)
	c.Status = cases.Status(status)
	return &c, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
