package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/brief/internal/config"
	"github.com/hpungsan/brief/internal/errors"
	"github.com/hpungsan/brief/internal/ops"
	"github.com/hpungsan/brief/internal/web"
)

// maxStdinBytes bounds a query piped on stdin.
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, runner ops.Runner) *cli.App {
	app := &cli.App{
		Name:    "brief",
		Usage:   "Multi-agent legal research",
		Version: Version,
		Commands: []*cli.Command{
			submitCmd(db),
			listCmd(db),
			showCmd(db),
			runCmd(db, cfg, runner),
			logsCmd(db),
			resultCmd(db),
			exportCmd(db),
			serveCmd(db, cfg, runner),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// submitCmd creates the submit command.
func submitCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Submit a new case (the query may be piped via stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Usage: "Case title"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Background facts"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Legal question (default: stdin)"},
		},
		Action: func(c *cli.Context) error {
			query := c.String("query")
			if query == "" && stdinHasData() {
				text, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				query = text
			}

			input := ops.SubmitInput{
				Title: c.String("title"),
				Query: query,
			}
			if c.IsSet("description") {
				description := c.String("description")
				input.Description = &description
			}

			output, err := ops.Submit(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List cases, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max items"},
			&cli.IntFlag{Name: "offset", Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, db, ops.ListInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// showCmd creates the show command.
func showCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a case with its latest result",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Get(c.Context, db, ops.GetInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// runCmd creates the run command. A failed pipeline run prints its
// outcome and exits non-zero.
func runCmd(db *sql.DB, cfg *config.Config, runner ops.Runner) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run the research pipeline for a case and wait for the verdict",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Execute(c.Context, db, runner, cfg, ops.ExecuteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			if err := outputJSON(c.App.Writer, output); err != nil {
				return err
			}
			if !output.Success {
				return cli.Exit(fmt.Sprintf("run failed: %s", output.Error), 1)
			}
			return nil
		},
	}
}

// logsCmd creates the logs command.
func logsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "logs",
		Usage:     "Show the execution trace of a case",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Logs(c.Context, db, ops.LogsInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// resultCmd creates the result command.
func resultCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "result",
		Usage:     "Show the latest result of a case",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Result(c.Context, db, ops.ResultInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export the latest result as Markdown or JSON",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "markdown", Usage: "markdown|json"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write to this file instead of stdout (\"-\" uses the suggested filename)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, ops.ExportInput{
				ID:     c.Args().First(),
				Format: c.String("format"),
			})
			if err != nil {
				return outputError(err)
			}

			path := c.String("output")
			if path == "" {
				_, err := io.WriteString(c.App.Writer, output.Content)
				return err
			}
			if path == "-" {
				path = output.Filename
			}
			if err := os.WriteFile(path, []byte(output.Content), 0600); err != nil {
				return outputError(errors.NewInternal(err))
			}
			fmt.Fprintln(c.App.ErrWriter, path)
			return nil
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config, runner ops.Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI and JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			bind, port := cfg.WebBind, cfg.WebPort
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			if c.IsSet("port") {
				port = c.Int("port")
			}
			if port <= 0 || port > 65535 {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid port %d", port)))
			}

			srv, err := web.NewServer(db, cfg, runner, Version, bind, port)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	bErr := errors.From(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", bErr.Code, bErr.Message), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}
