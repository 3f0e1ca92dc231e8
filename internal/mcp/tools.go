package mcp

import "github.com/mark3labs/mcp-go/mcp"

var createToolDef = mcp.NewTool("case_create",
	mcp.WithDescription("Submit a new legal research case. The case starts pending; run case_execute to research it."),
	mcp.WithString("title", mcp.Required(), mcp.Description("Short case title (max 500 characters)")),
	mcp.WithString("query", mcp.Required(), mcp.Description("The legal question to research")),
	mcp.WithString("description", mcp.Description("Optional background facts for the question")),
)

var listToolDef = mcp.NewTool("case_list",
	mcp.WithDescription("List cases newest first."),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var getToolDef = mcp.NewTool("case_get",
	mcp.WithDescription("Get a case with its status and latest result."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Case ID")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var executeToolDef = mcp.NewTool("case_execute",
	mcp.WithDescription("Run the research pipeline (web research, associate synthesis, lawyer verdict) for a case and wait for it to finish. Fails with CONFLICT if the case is already processing."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Case ID")),
)

var logsToolDef = mcp.NewTool("case_logs",
	mcp.WithDescription("Get the ordered execution trace of a case."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Case ID")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var resultToolDef = mcp.NewTool("case_result",
	mcp.WithDescription("Get the latest result of a case with its decoded verdict."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Case ID")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var exportToolDef = mcp.NewTool("case_export",
	mcp.WithDescription("Render the latest result of a case as Markdown or JSON."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Case ID")),
	mcp.WithString("format", mcp.Description("markdown (default) or json"), mcp.Enum("markdown", "json")),
	mcp.WithReadOnlyHintAnnotation(true),
)
