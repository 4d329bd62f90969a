package models

import "time"

// Status is the outcome class of a module run.
type Status string

const (
	StatusOK        Status = "ok"
	StatusPartial   Status = "partial"
	StatusAuthError Status = "auth_error"
	StatusNetError  Status = "net_error"
	StatusToolError Status = "tool_error"
)

// ModuleResult is what every module run returns.
type ModuleResult struct {
	RunID      string    `json:"run_id"`
	Module     string    `json:"module"`
	Tool       string    `json:"tool"`
	Target     string    `json:"target"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	StdoutPath string    `json:"stdout_path,omitempty"`
	StderrPath string    `json:"stderr_path,omitempty"`
	Artifacts  []string  `json:"artifacts"`
	Nodes      []Node    `json:"nodes"`
	Edges      []Edge    `json:"edges"`
	ExitCode   int       `json:"exit_code"`
	TimedOut   bool      `json:"timed_out,omitempty"`
	Error      string    `json:"error,omitempty"`
	Cached     bool      `json:"cached,omitempty"`
}

// Batch returns the result's nodes and edges as a mergeable batch.
func (r ModuleResult) Batch() Batch {
	return Batch{Nodes: r.Nodes, Edges: r.Edges}
}

// ResultSummary is the compact record written to result sinks.
type ResultSummary struct {
	RunID     string    `json:"run_id"`
	Module    string    `json:"module"`
	Tool      string    `json:"tool"`
	Target    string    `json:"target"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Nodes     int       `json:"nodes"`
	Edges     int       `json:"edges"`
	Artifacts []string  `json:"artifacts,omitempty"`
	TimedOut  bool      `json:"timed_out,omitempty"`
	Cached    bool      `json:"cached,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Summary builds the sink record for r.
func (r ModuleResult) Summary() ResultSummary {
	return ResultSummary{
		RunID:     r.RunID,
		Module:    r.Module,
		Tool:      r.Tool,
		Target:    r.Target,
		Status:    r.Status,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Nodes:     len(r.Nodes),
		Edges:     len(r.Edges),
		Artifacts: r.Artifacts,
		TimedOut:  r.TimedOut,
		Cached:    r.Cached,
		Error:     r.Error,
	}
}

// RuleTag represents a tagging-rule match on a node.
type RuleTag struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Tactic    string `json:"tactic,omitempty"`
	Technique string `json:"technique,omitempty"`
}

// JobRequest is one queued module invocation.
type JobRequest struct {
	ID     string `json:"id,omitempty"`
	Module string `json:"module"`
	Target Target `json:"target"`
}
