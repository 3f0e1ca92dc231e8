// Package cases holds the research case domain: cases, their execution
// trace, verdict results, and export rendering.
package cases

// Status is the lifecycle state of a case.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends a run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AgentName identifies the pipeline stage that wrote a log entry.
type AgentName string

const (
	AgentWebResearcher AgentName = "WebResearcher"
	AgentAssociate     AgentName = "Associate"
	AgentLawyer        AgentName = "Lawyer"
)

// Action is what a stage reported in a log entry.
type Action string

const (
	ActionInitiated Action = "initiated"
	ActionStarted   Action = "started"
	ActionCompleted Action = "completed"
	ActionFailed    Action = "failed"
)

// Case is a submitted research query.
type Case struct {
	// ID is a ULID that uniquely identifies this case
	ID string `json:"id"`

	// UserID is the owning user
	UserID string `json:"user_id"`

	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Query       string  `json:"query"`
	Status      Status  `json:"status"`

	// CreatedAt and UpdatedAt are Unix milliseconds
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// DescriptionText returns the description or "" when absent.
func (c *Case) DescriptionText() string {
	if c.Description == nil {
		return ""
	}
	return *c.Description
}

// AgentLogEntry is one append-only row of a case's execution trace.
type AgentLogEntry struct {
	ID        string    `json:"id"`
	CaseID    string    `json:"case_id"`
	AgentName AgentName `json:"agent_name"`
	Action    Action    `json:"action"`
	Input     *string   `json:"input,omitempty"`
	Output    *string   `json:"output,omitempty"`
	Reasoning *string   `json:"reasoning,omitempty"`

	// Timestamp is Unix milliseconds; (Timestamp, ID) orders the trace
	Timestamp int64 `json:"timestamp"`
}

// Result is the persisted outcome of a successful run.
// The latest Result by CreatedAt is canonical for a case.
type Result struct {
	ID     string `json:"id"`
	CaseID string `json:"case_id"`

	Summary *string `json:"summary,omitempty"`

	// Findings is the JSON-encoded verdict object
	Findings *string `json:"findings,omitempty"`

	// Precedents and Statutes are JSON arrays of citation strings
	Precedents     *string `json:"precedents,omitempty"`
	Statutes       *string `json:"statutes,omitempty"`
	Recommendation *string `json:"recommendation,omitempty"`

	CreatedAt int64 `json:"created_at"`
}

// FindingsText returns the findings or "" when absent.
func (r *Result) FindingsText() string {
	if r == nil || r.Findings == nil {
		return ""
	}
	return *r.Findings
}
