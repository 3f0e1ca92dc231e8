package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hpungsan/brief/internal/cases"
	"github.com/hpungsan/brief/internal/errors"
)

func stringPtr(s string) *string {
	return &s
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedCase inserts a user and a pending case, returning the case.
func seedCase(t *testing.T, db *sql.DB, title string) *cases.Case {
	t.Helper()
	ctx := context.Background()
	userID, err := EnsureUser(ctx, db, "demo@local", "Demo")
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	now := Now()
	c := &cases.Case{
		ID:        NewID(),
		UserID:    userID,
		Title:     title,
		Query:     "Is a verbal lease enforceable?",
		Status:    cases.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := InsertCase(ctx, db, c); err != nil {
		t.Fatalf("InsertCase failed: %v", err)
	}
	return c
}

func TestEnsureUser_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id1, err := EnsureUser(ctx, db, "demo@local", "Demo")
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	id2, err := EnsureUser(ctx, db, "demo@local", "Someone Else")
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("EnsureUser returned %s then %s, want same id", id1, id2)
	}
}

func TestInsertAndGetCase(t *testing.T) {
	db := openTestDB(t)
	c := seedCase(t, db, "Lease")

	got, err := GetCase(context.Background(), db, c.ID)
	if err != nil {
		t.Fatalf("GetCase failed: %v", err)
	}
	if got.Title != "Lease" || got.Query != c.Query {
		t.Errorf("GetCase = %+v", got)
	}
	if got.Status != cases.StatusPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if got.Description != nil {
		t.Errorf("Description = %v, want nil", *got.Description)
	}
}

func TestGetCase_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetCase(context.Background(), db, "01NOPE")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetCase error = %v, want NOT_FOUND", err)
	}
}

func TestListCases_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	first := seedCase(t, db, "First")
	second := seedCase(t, db, "Second")

	items, total, err := ListCases(context.Background(), db, first.UserID, 10, 0)
	if err != nil {
		t.Fatalf("ListCases failed: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("ListCases returned %d items, total %d", len(items), total)
	}
	if items[0].ID != second.ID {
		t.Errorf("items[0] = %s, want newest %s", items[0].ID, second.ID)
	}

	page, total, err := ListCases(context.Background(), db, first.UserID, 1, 1)
	if err != nil {
		t.Fatalf("ListCases failed: %v", err)
	}
	if total != 2 || len(page) != 1 || page[0].ID != first.ID {
		t.Errorf("second page = %+v (total %d)", page, total)
	}
}

func TestClaimCase(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c := seedCase(t, db, "Claim")

	claim, err := ClaimCase(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("first ClaimCase failed: %v", err)
	}
	if claim == "" {
		t.Error("ClaimCase returned an empty claim")
	}
	got, _ := GetCase(ctx, db, c.ID)
	if got.Status != cases.StatusProcessing {
		t.Errorf("Status = %s, want processing", got.Status)
	}

	_, err = ClaimCase(ctx, db, c.ID)
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("second ClaimCase error = %v, want CONFLICT", err)
	}

	_, err = ClaimCase(ctx, db, "01MISSING")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("ClaimCase(missing) error = %v, want NOT_FOUND", err)
	}
}

func TestClaimCase_AfterTerminal(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c := seedCase(t, db, "Rerun")

	if err := UpdateCaseStatus(ctx, db, c.ID, cases.StatusFailed); err != nil {
		t.Fatalf("UpdateCaseStatus failed: %v", err)
	}
	if _, err := ClaimCase(ctx, db, c.ID); err != nil {
		t.Errorf("ClaimCase after failed = %v, want nil", err)
	}
}

func TestUpdateCaseStatus_Invalid(t *testing.T) {
	db := openTestDB(t)
	c := seedCase(t, db, "Bad")

	err := UpdateCaseStatus(context.Background(), db, c.ID, cases.Status("archived"))
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("error = %v, want INVALID_REQUEST", err)
	}
}

func TestCompleteCase(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c := seedCase(t, db, "Complete")
	claim, err := ClaimCase(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("ClaimCase failed: %v", err)
	}

	r := &cases.Result{
		ID:        NewID(),
		CaseID:    c.ID,
		Summary:   stringPtr("Enforceable under one year"),
		Findings:  stringPtr(`{"summary":"Enforceable under one year"}`),
		CreatedAt: Now(),
	}
	if err := CompleteCase(ctx, db, claim, r); err != nil {
		t.Fatalf("CompleteCase failed: %v", err)
	}

	got, _ := GetCase(ctx, db, c.ID)
	if got.Status != cases.StatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	latest, err := LatestResult(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("LatestResult failed: %v", err)
	}
	if latest.ID != r.ID || *latest.Summary != *r.Summary {
		t.Errorf("LatestResult = %+v", latest)
	}
	if latest.Statutes != nil {
		t.Errorf("Statutes = %v, want nil", *latest.Statutes)
	}
}

func TestCompleteCase_MissingCaseRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := &cases.Result{ID: NewID(), CaseID: "01MISSING", CreatedAt: Now()}
	if err := CompleteCase(ctx, db, NewID(), r); err == nil {
		t.Fatal("CompleteCase on missing case succeeded")
	}
	n, err := CountResults(ctx, db, "01MISSING")
	if err != nil {
		t.Fatalf("CountResults failed: %v", err)
	}
	if n != 0 {
		t.Errorf("CountResults = %d, want 0 after rollback", n)
	}
}

func TestLatestResult_KeepsNewest(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c := seedCase(t, db, "Twice")

	older := &cases.Result{ID: NewID(), CaseID: c.ID, Summary: stringPtr("old"), CreatedAt: 1000}
	newer := &cases.Result{ID: NewID(), CaseID: c.ID, Summary: stringPtr("new"), CreatedAt: 2000}
	if err := InsertResult(ctx, db, older); err != nil {
		t.Fatalf("InsertResult failed: %v", err)
	}
	if err := InsertResult(ctx, db, newer); err != nil {
		t.Fatalf("InsertResult failed: %v", err)
	}

	latest, err := LatestResult(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("LatestResult failed: %v", err)
	}
	if *latest.Summary != "new" {
		t.Errorf("LatestResult summary = %s, want new", *latest.Summary)
	}
	n, _ := CountResults(ctx, db, c.ID)
	if n != 2 {
		t.Errorf("CountResults = %d, want 2", n)
	}
}

func TestLatestResult_NotFound(t *testing.T) {
	db := openTestDB(t)
	c := seedCase(t, db, "Nothing")

	_, err := LatestResult(context.Background(), db, c.ID)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestListLogs_OrderedByTimestampThenID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c := seedCase(t, db, "Logs")

	entries := []cases.AgentLogEntry{
		{ID: NewID(), CaseID: c.ID, AgentName: cases.AgentLawyer, Action: cases.ActionInitiated, Input: stringPtr(c.Query), Timestamp: 100},
		{ID: NewID(), CaseID: c.ID, AgentName: cases.AgentWebResearcher, Action: cases.ActionStarted, Timestamp: 100},
		{ID: NewID(), CaseID: c.ID, AgentName: cases.AgentWebResearcher, Action: cases.ActionCompleted, Output: stringPtr("ok"), Timestamp: 90},
	}
	for i := range entries {
		if err := InsertLog(ctx, db, &entries[i]); err != nil {
			t.Fatalf("InsertLog failed: %v", err)
		}
	}

	got, err := ListLogs(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("ListLogs failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListLogs returned %d entries, want 3", len(got))
	}
	wantOrder := []string{entries[2].ID, entries[0].ID, entries[1].ID}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
	if got[1].Input == nil || *got[1].Input != c.Query {
		t.Errorf("initiated entry input = %v", got[1].Input)
	}
	if got[2].Output != nil {
		t.Errorf("started entry output = %v, want nil", *got[2].Output)
	}
}

// ageClaim backdates a case's updated_at so its claim looks old.
func ageClaim(t *testing.T, db *sql.DB, id string, by time.Duration) {
	t.Helper()
	if _, err := db.Exec(`UPDATE cases SET updated_at = updated_at - ? WHERE id = ?`, by.Milliseconds(), id); err != nil {
		t.Fatalf("age claim: %v", err)
	}
}

func TestFailStaleProcessing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	stale := seedCase(t, db, "Stale")
	live := seedCase(t, db, "Live")
	idle := seedCase(t, db, "Idle")

	for _, id := range []string{stale.ID, live.ID} {
		if _, err := ClaimCase(ctx, db, id); err != nil {
			t.Fatalf("ClaimCase failed: %v", err)
		}
	}
	ageClaim(t, db, stale.ID, time.Hour)

	ids, err := FailStaleProcessing(ctx, db, Now()-time.Minute.Milliseconds())
	if err != nil {
		t.Fatalf("FailStaleProcessing failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != stale.ID {
		t.Errorf("FailStaleProcessing = %v, want [%s]", ids, stale.ID)
	}

	for id, want := range map[string]cases.Status{
		stale.ID: cases.StatusFailed,
		live.ID:  cases.StatusProcessing,
		idle.ID:  cases.StatusPending,
	} {
		got, _ := GetCase(ctx, db, id)
		if got.Status != want {
			t.Errorf("case %s status = %s, want %s", got.Title, got.Status, want)
		}
	}
}

func TestCompleteCase_LostClaim(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c := seedCase(t, db, "Reclaimed")

	claim, err := ClaimCase(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("ClaimCase failed: %v", err)
	}
	ageClaim(t, db, c.ID, time.Hour)
	if _, err := FailStaleProcessing(ctx, db, Now()); err != nil {
		t.Fatalf("FailStaleProcessing failed: %v", err)
	}

	r := &cases.Result{ID: NewID(), CaseID: c.ID, CreatedAt: Now()}
	if err := CompleteCase(ctx, db, claim, r); !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("CompleteCase error = %v, want CONFLICT", err)
	}
	if err := ReleaseCase(ctx, db, c.ID, claim, cases.StatusFailed); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("ReleaseCase error = %v, want CONFLICT", err)
	}

	got, _ := GetCase(ctx, db, c.ID)
	if got.Status != cases.StatusFailed {
		t.Errorf("Status = %s, want failed", got.Status)
	}
	if n, _ := CountResults(ctx, db, c.ID); n != 0 {
		t.Errorf("CountResults = %d, want 0", n)
	}

	// A newer claim is not satisfied by the old token
	if _, err := ClaimCase(ctx, db, c.ID); err != nil {
		t.Fatalf("reclaim failed: %v", err)
	}
	if err := CompleteCase(ctx, db, claim, r); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("CompleteCase with old claim = %v, want CONFLICT", err)
	}
}

func TestReleaseCase(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c := seedCase(t, db, "Release")

	claim, err := ClaimCase(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("ClaimCase failed: %v", err)
	}
	if err := ReleaseCase(ctx, db, c.ID, claim, cases.StatusProcessing); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("ReleaseCase(processing) = %v, want INVALID_REQUEST", err)
	}
	if err := ReleaseCase(ctx, db, c.ID, claim, cases.StatusFailed); err != nil {
		t.Fatalf("ReleaseCase failed: %v", err)
	}
	got, _ := GetCase(ctx, db, c.ID)
	if got.Status != cases.StatusFailed {
		t.Errorf("Status = %s, want failed", got.Status)
	}
}

func TestLogSink_Append(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c := seedCase(t, db, "Sink")
	sink := &LogSink{DB: db}

	first, err := sink.Append(ctx, cases.AgentLogEntry{CaseID: c.ID, AgentName: cases.AgentLawyer, Action: cases.ActionInitiated})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	second, err := sink.Append(ctx, cases.AgentLogEntry{CaseID: c.ID, AgentName: cases.AgentWebResearcher, Action: cases.ActionStarted})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if first.ID == "" || first.Timestamp == 0 {
		t.Errorf("Append did not fill id/timestamp: %+v", first)
	}
	if second.Timestamp < first.Timestamp {
		t.Errorf("timestamps decreased: %d then %d", first.Timestamp, second.Timestamp)
	}

	got, _ := ListLogs(ctx, db, c.ID)
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Errorf("ListLogs = %+v", got)
	}

	_, err = sink.Append(ctx, cases.AgentLogEntry{CaseID: "01MISSING", AgentName: cases.AgentLawyer, Action: cases.ActionFailed})
	if err == nil {
		t.Error("Append for missing case succeeded, want foreign key error")
	}
}
