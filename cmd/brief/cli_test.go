package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/brief/internal/agents"
	"github.com/hpungsan/brief/internal/cases"
	"github.com/hpungsan/brief/internal/config"
	"github.com/hpungsan/brief/internal/db"
	"github.com/hpungsan/brief/internal/ops"
)

const verdictJSON = `{"summary":"Likely enforceable","analysis":"Oral leases under a year are valid.","recommendation":"Document payments.","riskAssessment":"Low","citations":["Statute of Frauds s.4"]}`

// runnerFunc adapts a function to ops.Runner.
type runnerFunc func(ctx context.Context, in agents.RunInput) agents.RunOutput

func (f runnerFunc) Run(ctx context.Context, in agents.RunInput) agents.RunOutput {
	return f(ctx, in)
}

func succeed(context.Context, agents.RunInput) agents.RunOutput {
	return agents.RunOutput{Success: true, Result: verdictJSON}
}

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// runCLI runs the app with args and returns what it wrote to stdout.
func runCLI(t *testing.T, database *sql.DB, runner ops.Runner, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(database, config.DefaultConfig(), runner)
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"brief"}, args...))
	return out.String(), err
}

// submit creates a case through the CLI and returns its ID.
func submit(t *testing.T, database *sql.DB, title string) string {
	t.Helper()
	out, err := runCLI(t, database, runnerFunc(succeed),
		"submit", "--title", title, "--query", "Is a verbal lease enforceable?")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	var output ops.SubmitOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	return output.ID
}

func TestCLISubmit(t *testing.T) {
	database := setupTestDB(t)

	out, err := runCLI(t, database, runnerFunc(succeed),
		"submit", "-t", "Lease", "-d", "Paid for 8 months", "-q", "Is it enforceable?")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	var output ops.SubmitOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.ID == "" {
		t.Error("expected non-empty ID")
	}
	if output.Status != cases.StatusPending {
		t.Errorf("status = %q, want pending", output.Status)
	}

	c, err := db.GetCase(context.Background(), database, output.ID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if c.DescriptionText() != "Paid for 8 months" {
		t.Errorf("description = %q", c.DescriptionText())
	}
}

func TestCLISubmit_QueryFromStdin(t *testing.T) {
	database := setupTestDB(t)

	oldStdin := os.Stdin
	stdinR, stdinW, _ := os.Pipe()
	os.Stdin = stdinR
	defer func() { os.Stdin = oldStdin }()

	go func() {
		_, _ = stdinW.WriteString("  Can my landlord keep the deposit?\n")
		stdinW.Close()
	}()

	out, err := runCLI(t, database, runnerFunc(succeed), "submit", "--title", "Deposit")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	var output ops.SubmitOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}

	c, err := db.GetCase(context.Background(), database, output.ID)
	if err != nil {
		t.Fatalf("GetCase: %v", err)
	}
	if c.Query != "Can my landlord keep the deposit?" {
		t.Errorf("query = %q", c.Query)
	}
}

func TestCLIList(t *testing.T) {
	database := setupTestDB(t)
	submit(t, database, "first")
	submit(t, database, "second")

	out, err := runCLI(t, database, runnerFunc(succeed), "list", "--limit", "1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	var output ops.ListOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}
	if len(output.Items) != 1 || output.Items[0].Title != "second" {
		t.Errorf("items = %+v", output.Items)
	}
	if !output.Pagination.HasMore {
		t.Error("expected has_more")
	}
}

func TestCLIRunShowLogsResult(t *testing.T) {
	database := setupTestDB(t)
	id := submit(t, database, "Lease")

	out, err := runCLI(t, database, runnerFunc(succeed), "run", id)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var exec ops.ExecuteOutput
	if err := json.Unmarshal([]byte(out), &exec); err != nil {
		t.Fatalf("failed to parse run output: %v", err)
	}
	if !exec.Success || exec.Status != cases.StatusCompleted {
		t.Errorf("run output = %+v", exec)
	}

	out, err = runCLI(t, database, runnerFunc(succeed), "show", id)
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	var shown map[string]any
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("failed to parse show output: %v", err)
	}
	if shown["status"] != "completed" || shown["result"] == nil {
		t.Errorf("show output = %v", shown)
	}

	out, err = runCLI(t, database, runnerFunc(succeed), "logs", id)
	if err != nil {
		t.Fatalf("logs failed: %v", err)
	}
	if !strings.Contains(out, `"case_id": "`+id+`"`) {
		t.Errorf("logs output = %s", out)
	}

	out, err = runCLI(t, database, runnerFunc(succeed), "result", id)
	if err != nil {
		t.Fatalf("result failed: %v", err)
	}
	var res ops.ResultOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("failed to parse result output: %v", err)
	}
	if res.Verdict == nil || res.Verdict.Summary != "Likely enforceable" {
		t.Errorf("verdict = %+v", res.Verdict)
	}
}

func TestCLIRun_FailureExitsNonZero(t *testing.T) {
	database := setupTestDB(t)
	id := submit(t, database, "Lease")

	fail := runnerFunc(func(context.Context, agents.RunInput) agents.RunOutput {
		return agents.RunOutput{Error: "upstream unavailable"}
	})
	out, err := runCLI(t, database, fail, "run", id)
	if err == nil {
		t.Fatal("expected error for failed run")
	}
	if !strings.Contains(err.Error(), "upstream unavailable") {
		t.Errorf("error = %v", err)
	}
	// The outcome is still printed
	if !strings.Contains(out, `"status": "failed"`) {
		t.Errorf("output = %s", out)
	}
}

func TestCLIExport(t *testing.T) {
	database := setupTestDB(t)
	id := submit(t, database, "Lease")
	if _, err := runCLI(t, database, runnerFunc(succeed), "run", id); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	t.Run("markdown to stdout", func(t *testing.T) {
		out, err := runCLI(t, database, runnerFunc(succeed), "export", id)
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if !strings.HasPrefix(out, "# Research Results: Lease") {
			t.Errorf("output = %s", out)
		}
	})

	t.Run("json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "verdict.json")
		if _, err := runCLI(t, database, runnerFunc(succeed), "export", "--format", "json", "-o", path, id); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read export: %v", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("export is not JSON: %v", err)
		}
		if doc["riskAssessment"] != "Low" {
			t.Errorf("doc = %v", doc)
		}
	})
}

func TestCLIErrorHandling(t *testing.T) {
	database := setupTestDB(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"show not found", []string{"show", "01NOPE"}, "[NOT_FOUND]"},
		{"show without id", []string{"show"}, "[INVALID_REQUEST]"},
		{"run not found", []string{"run", "01NOPE"}, "[NOT_FOUND]"},
		{"result not found", []string{"result", "01NOPE"}, "[NOT_FOUND]"},
		{"submit blank query", []string{"submit", "--title", "x", "--query", " "}, "[INVALID_REQUEST]"},
		{"serve bad port", []string{"serve", "--port", "70000"}, "[INVALID_REQUEST]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, database, runnerFunc(succeed), tt.args...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want %s", err.Error(), tt.want)
			}
		})
	}
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"brief"}, false},
		{"submit command", []string{"brief", "submit"}, true},
		{"serve command", []string{"brief", "serve"}, true},
		{"help flag", []string{"brief", "--help"}, true},
		{"short version flag", []string{"brief", "-v"}, true},
		{"unknown arg defaults to MCP", []string{"brief", "--unknown"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"brief"}, false},
		{"help flag", []string{"brief", "--help"}, true},
		{"version flag", []string{"brief", "--version"}, true},
		{"help subcommand", []string{"brief", "help"}, true},
		{"run command is not help", []string{"brief", "run"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestReadStdinWithLimit tests the readStdin function respects size limits.
func TestReadStdinWithLimit(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatalf("Failed to create pipe: %v", err)
		}
		go func() {
			_, _ = w.WriteString("small content")
			w.Close()
		}()

		oldStdin := os.Stdin
		os.Stdin = r
		defer func() { os.Stdin = oldStdin }()

		result, err := readStdin(1000)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "small content" {
			t.Errorf("expected %q, got %q", "small content", result)
		}
	})

	t.Run("exceeds limit", func(t *testing.T) {
		r, w, err := os.Pipe()
		if err != nil {
			t.Fatalf("Failed to create pipe: %v", err)
		}
		go func() {
			_, _ = w.WriteString(strings.Repeat("x", 100))
			w.Close()
		}()

		oldStdin := os.Stdin
		os.Stdin = r
		defer func() { os.Stdin = oldStdin }()

		if _, err := readStdin(50); err == nil {
			t.Error("expected error for content exceeding limit, got nil")
		}
	})
}

func TestNewRunner_MissingPromptsFileUsesDefaults(t *testing.T) {
	database := setupTestDB(t)

	cfg := config.DefaultConfig()
	cfg.LLMProvider = "demo"
	runner, err := newRunner(database, cfg, t.TempDir())
	if err != nil {
		t.Fatalf("newRunner: %v", err)
	}

	id := submit(t, database, "Lease")
	out, err := ops.Execute(context.Background(), database, runner, cfg, ops.ExecuteInput{ID: id})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.Success {
		t.Fatalf("demo run failed: %s", out.Error)
	}
	if len(out.Logs) == 0 {
		t.Error("expected persisted trace entries")
	}
}

func TestNewRunner_BadPromptsFile(t *testing.T) {
	database := setupTestDB(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "prompts.yaml"), []byte("search: \"{{.Count\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := newRunner(database, config.DefaultConfig(), dir); err == nil {
		t.Error("expected error for invalid search template")
	}
}
