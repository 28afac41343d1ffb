// Package terminal implements the agent-side terminal lifecycle (spec
// §4.7): a handle wrapping the terminal/* reverse RPCs, enforcing the
// released-state invariants the spec requires of every operation.
//
// Grounded in the teacher's internal/terminal.Provider, viewed from the
// opposite side of the wire: where Provider answers terminal/* requests,
// Handle issues them and owns the client-visible lifecycle contract.
package terminal

import (
	"context"
	"fmt"
	"sync"

	"acpcore/internal/acperrors"
)

// Caller abstracts the engine's outbound Call, so Handle doesn't need to
// import the acp package directly.
type Caller interface {
	Call(ctx context.Context, method string, params, result any) error
}

// ExitStatus mirrors spec §3/§4.7: exitCode is nil iff the process was
// terminated by signal or timed out.
type ExitStatus struct {
	ExitCode *int
	Signal   string
	TimedOut bool
}

// Output is the result of an Output() call.
type Output struct {
	Output     string
	Truncated  bool
	ExitStatus *ExitStatus
}

// Handle is an opaque, RPC-driven terminal resource. Every method fails
// once the terminal has been released.
type Handle struct {
	id        string
	sessionID string
	caller    Caller

	mu       sync.Mutex
	released bool
}

// NewHandle wraps a terminal id returned by a prior terminal/create call.
func NewHandle(sessionID, id string, caller Caller) *Handle {
	return &Handle{id: id, sessionID: sessionID, caller: caller}
}

// ID returns the terminal's opaque identifier.
func (h *Handle) ID() string { return h.id }

func (h *Handle) checkReleased() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return acperrors.InvalidSessionState(fmt.Sprintf("terminal %s: released", h.id))
	}
	return nil
}

type terminalIDParams struct {
	SessionID  string `json:"sessionId"`
	TerminalID string `json:"terminalId"`
}

// Output issues terminal/output.
func (h *Handle) Output(ctx context.Context) (*Output, error) {
	if err := h.checkReleased(); err != nil {
		return nil, err
	}
	var result struct {
		Output     string `json:"output"`
		Truncated  bool   `json:"truncated"`
		ExitStatus *struct {
			ExitCode *int   `json:"exitCode"`
			Signal   string `json:"signal,omitempty"`
		} `json:"exitStatus,omitempty"`
	}
	if err := h.caller.Call(ctx, "terminal/output", terminalIDParams{h.sessionID, h.id}, &result); err != nil {
		return nil, err
	}
	out := &Output{Output: result.Output, Truncated: result.Truncated}
	if result.ExitStatus != nil {
		out.ExitStatus = &ExitStatus{ExitCode: result.ExitStatus.ExitCode, Signal: result.ExitStatus.Signal}
	}
	return out, nil
}

// WaitForExit issues terminal/wait_for_exit, optionally bounded by
// timeoutMS (0 means no client-enforced timeout beyond ctx).
func (h *Handle) WaitForExit(ctx context.Context, timeoutMS int) (*ExitStatus, error) {
	if err := h.checkReleased(); err != nil {
		return nil, err
	}
	params := struct {
		SessionID  string `json:"sessionId"`
		TerminalID string `json:"terminalId"`
		Timeout    int    `json:"timeout,omitempty"`
	}{h.sessionID, h.id, timeoutMS}

	var result struct {
		ExitCode *int   `json:"exitCode"`
		Signal   string `json:"signal,omitempty"`
		TimedOut bool   `json:"timedOut,omitempty"`
	}
	if err := h.caller.Call(ctx, "terminal/wait_for_exit", params, &result); err != nil {
		return nil, err
	}
	return &ExitStatus{ExitCode: result.ExitCode, Signal: result.Signal, TimedOut: result.TimedOut}, nil
}

// Kill issues terminal/kill with the given signal (defaults to SIGTERM
// when empty, per spec §4.7).
func (h *Handle) Kill(ctx context.Context, signal string) error {
	if err := h.checkReleased(); err != nil {
		return err
	}
	if signal == "" {
		signal = "SIGTERM"
	}
	params := struct {
		SessionID  string `json:"sessionId"`
		TerminalID string `json:"terminalId"`
		Signal     string `json:"signal,omitempty"`
	}{h.sessionID, h.id, signal}
	return h.caller.Call(ctx, "terminal/kill", params, nil)
}

// Release issues terminal/release. Idempotent: a second call is a no-op
// and returns nil, per spec §4.7.
func (h *Handle) Release(ctx context.Context) error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	var result struct {
		Released bool `json:"released"`
	}
	if err := h.caller.Call(ctx, "terminal/release", terminalIDParams{h.sessionID, h.id}, &result); err != nil {
		return err
	}

	h.mu.Lock()
	h.released = true
	h.mu.Unlock()
	return nil
}
