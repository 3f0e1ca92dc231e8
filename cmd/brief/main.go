package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/brief/internal/agents"
	"github.com/hpungsan/brief/internal/config"
	"github.com/hpungsan/brief/internal/db"
	"github.com/hpungsan/brief/internal/llm"
	"github.com/hpungsan/brief/internal/logging"
	"github.com/hpungsan/brief/internal/mcp"
	"github.com/hpungsan/brief/internal/ops"
	"github.com/hpungsan/brief/internal/search"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"submit": true, "list": true, "show": true, "run": true,
	"logs": true, "result": true, "export": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _          _       __
  | |__  _ __(_) ___ / _|
  | '_ \| '__| |/ _ \ |_
  | |_) | |  | |  __/  _|
  |_.__/|_|  |_|\___|_|

  Multi-agent legal research

  Usage: brief <command> [options]
         brief --help

  MCP server mode requires piped input.`)
}

// newRunner wires the research pipeline: model gateway, web search and the
// database-backed trace sink. Prompt overrides come from baseDir/prompts.yaml.
func newRunner(database *sql.DB, cfg *config.Config, baseDir string) (*agents.Pipeline, error) {
	prompts, err := agents.LoadPrompts(filepath.Join(baseDir, "prompts.yaml"))
	if err != nil {
		return nil, err
	}

	gateway := llm.New(llm.ConfigFrom(cfg))
	searcher := search.New(search.Config{
		APIKey:        cfg.TavilyAPIKey,
		RatePerSecond: cfg.SearchRatePerSecond,
	})

	return agents.New(gateway, searcher, &db.LogSink{DB: database}, prompts, agents.LimitsFrom(cfg)), nil
}

// recoverStale fails cases left processing by a run that can no longer be alive.
func recoverStale(database *sql.DB, cfg *config.Config) {
	logger := logging.New("main")
	ids, err := ops.RecoverStale(context.Background(), database, cfg.StaleClaimAge())
	if err != nil {
		logger.Warn("stale case recovery failed", "error", err)
		return
	}
	if len(ids) > 0 {
		logger.Info("marked interrupted cases failed", "count", len(ids), "case_ids", ids)
	}
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".brief")

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logs always go to stderr; stdout carries CLI output and the MCP stream
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logging.New("main").Warn("unknown tools in disabled_tools", "tools", unknown)
	}

	runner, err := newRunner(database, cfg, baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		if os.Args[1] == "serve" {
			recoverStale(database, cfg)
		}
		app := newCLIApp(database, cfg, runner)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'brief --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	recoverStale(database, cfg)
	if err := mcp.Run(database, cfg, runner, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
