package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/brief/internal/config"
	"github.com/hpungsan/brief/internal/errors"
	"github.com/hpungsan/brief/internal/logging"
	"github.com/hpungsan/brief/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	runner ops.Runner
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, runner ops.Runner) *Handlers {
	return &Handlers{db: db, cfg: cfg, runner: runner}
}

// Request types for each tool

// CreateRequest represents the arguments for case_create.
type CreateRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Query       string  `json:"query"`
}

// IDRequest represents the arguments for tools addressing a single case.
type IDRequest struct {
	ID string `json:"id"`
}

// ListRequest represents the arguments for case_list.
type ListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ExportRequest represents the arguments for case_export.
type ExportRequest struct {
	ID     string `json:"id"`
	Format string `json:"format,omitempty"`
}

// HandleCreate handles the case_create tool call.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Submit(ctx, h.db, ops.SubmitInput{
		Title:       input.Title,
		Description: input.Description,
		Query:       input.Query,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the case_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.db, ops.ListInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGet handles the case_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Get(ctx, h.db, ops.GetInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExecute handles the case_execute tool call.
// A run that fails inside the pipeline is a successful call with success=false;
// only a case that cannot be run at all is a tool error.
func (h *Handlers) HandleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Execute(ctx, h.db, h.runner, h.cfg, ops.ExecuteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLogs handles the case_logs tool call.
func (h *Handlers) HandleLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Logs(ctx, h.db, ops.LogsInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleResult handles the case_result tool call.
func (h *Handlers) HandleResult(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Result(ctx, h.db, ops.ResultInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the case_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, ops.ExportInput{
		ID:     input.ID,
		Format: input.Format,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are logged, never returned to the client.
func errorResult(err error) *mcp.CallToolResult {
	bErr := errors.From(err)

	errorObj := map[string]any{
		"code":    bErr.Code,
		"message": bErr.Message,
		"status":  bErr.Status,
	}
	if bErr.Code == errors.ErrInternal {
		logging.New("mcp").Error("tool call failed", "error", err)
		errorObj["message"] = "an internal error occurred"
	} else if bErr.Details != nil {
		errorObj["details"] = bErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
