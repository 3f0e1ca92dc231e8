package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/brief/internal/cases"
	"github.com/hpungsan/brief/internal/db"
	"github.com/hpungsan/brief/internal/errors"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	ID     string
	Format string // "json" or "markdown" (default); anything else is markdown
}

// ExportOutput is a downloadable rendering of a case result.
type ExportOutput struct {
	Filename string `json:"filename"`
	Mime     string `json:"mime"`
	Content  string `json:"content"`
}

// Export renders the latest result of a case as Markdown or JSON.
// A case without a result still exports: "{}" for JSON, a bare heading for Markdown.
func Export(ctx context.Context, database *sql.DB, input ExportInput) (*ExportOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}

	c, err := db.GetCase(ctx, database, id)
	if err != nil {
		return nil, err
	}

	r, err := db.LatestResult(ctx, database, id)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	format := NormalizeFormat(input.Format)
	if format == cases.FormatJSON {
		content := r.FindingsText()
		if content == "" {
			content = "{}"
		}
		return &ExportOutput{
			Filename: cases.ExportFilename(c.Title, c.ID, cases.FormatJSON),
			Mime:     "application/json",
			Content:  content,
		}, nil
	}

	return &ExportOutput{
		Filename: cases.ExportFilename(c.Title, c.ID, cases.FormatMarkdown),
		Mime:     "text/markdown",
		Content:  cases.RenderMarkdown(c.Title, r),
	}, nil
}

// NormalizeFormat maps a requested export format onto json or markdown.
func NormalizeFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), cases.FormatJSON) {
		return cases.FormatJSON
	}
	return cases.FormatMarkdown
}
