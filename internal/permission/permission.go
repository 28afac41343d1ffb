// Package permission implements the permission protocol (spec §4.4, §4.6):
// deterministic inference of an operation from a tool call's kind/name, and
// the outcome mapping from a client's grant/deny response.
//
// Grounded in the teacher's onRequestPermission handler plumbing
// (internal/acp/client.go's RequestPermissionParams/Result), generalized
// with the inference heuristic the distilled spec names explicitly.
package permission

import "strings"

// Operation is the inferred category of access a tool call is requesting.
type Operation string

const (
	OpFileRead       Operation = "file_read"
	OpFileWrite      Operation = "file_write"
	OpFileDelete     Operation = "file_delete"
	OpTerminalExec   Operation = "terminal_execute"
	OpNetworkAccess  Operation = "network_access"
	OpMCPTool        Operation = "mcp_tool"
	OpOther          Operation = "other"
)

// InferOperation implements the deterministic rule from spec §4.4:
//  1. kind-based mapping when kind is one of edit/read/delete/execute/fetch;
//  2. else a case-insensitive substring match against the tool name;
//  3. else Other.
func InferOperation(kind, name string) Operation {
	switch kind {
	case "edit":
		return OpFileWrite
	case "read":
		return OpFileRead
	case "delete":
		return OpFileDelete
	case "execute":
		return OpTerminalExec
	case "fetch":
		return OpNetworkAccess
	}

	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "mcp"):
		return OpMCPTool
	case strings.Contains(lower, "delete"):
		return OpFileDelete
	case strings.Contains(lower, "write"), strings.Contains(lower, "edit"):
		return OpFileWrite
	case strings.Contains(lower, "read"), strings.Contains(lower, "list"), strings.Contains(lower, "cat"):
		return OpFileRead
	case strings.Contains(lower, "run"), strings.Contains(lower, "exec"), strings.Contains(lower, "shell"):
		return OpTerminalExec
	}
	return OpOther
}

// InferResource extracts the path a permission request concerns, from the
// tool call's input map ("path" key) or, failing that, its location. Empty
// string is a valid result (spec §4.4 allows resource to be empty).
func InferResource(input map[string]any, locationPath string) string {
	if input != nil {
		if p, ok := input["path"].(string); ok && p != "" {
			return p
		}
	}
	return locationPath
}

// Outcome is the resolved result of a permission request, after mapping
// the client's raw response per spec §4.4.
type Outcome string

const (
	OutcomeGranted       Outcome = "granted"
	OutcomeGrantedAlways Outcome = "granted_always"
	OutcomeDenied        Outcome = "denied"
	OutcomeDeniedAlways  Outcome = "denied_always"
	OutcomeTimeout       Outcome = "timeout"
)

// Scope of a remembered decision.
type Scope string

const (
	ScopeOnce      Scope = "once"
	ScopeSession   Scope = "session"
	ScopeWorkspace Scope = "workspace"
	ScopeAlways    Scope = "always"
)

// Option is a single choice offered to the user (spec §3's PermissionOption).
type Option struct {
	ID          string
	Kind        string // allow_once|allow_always|reject_once|reject_always
	Label       string
	Description string
	IsDefault   bool
}

// Decision is a client's raw response to a permission request.
type Decision struct {
	Granted          bool
	Remember         bool
	Scope            Scope
	SelectedOptionID string
	Reason           string
	TimedOut         bool
}

// Result is the mapped outcome the session runtime hands back to the
// prompt handler.
type Result struct {
	Outcome          Outcome
	Granted          bool
	Remember         bool
	Scope            Scope
	SelectedOptionID string
	Reason           string
}

// MapDecision applies spec §4.4's outcome-mapping table: granted+remember
// -> granted_always; granted+!remember -> granted; analogous for denied;
// a timeout is treated as denied and never remembered.
func MapDecision(d Decision) Result {
	if d.TimedOut {
		return Result{Outcome: OutcomeTimeout, Granted: false, Remember: false, Reason: d.Reason}
	}

	var outcome Outcome
	switch {
	case d.Granted && d.Remember:
		outcome = OutcomeGrantedAlways
	case d.Granted && !d.Remember:
		outcome = OutcomeGranted
	case !d.Granted && d.Remember:
		outcome = OutcomeDeniedAlways
	default:
		outcome = OutcomeDenied
	}

	return Result{
		Outcome:          outcome,
		Granted:          d.Granted,
		Remember:         d.Remember,
		Scope:            d.Scope,
		SelectedOptionID: d.SelectedOptionID,
		Reason:           d.Reason,
	}
}
