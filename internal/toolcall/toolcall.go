// Package toolcall implements the tool-call state machine described in
// spec §3/§4.3: a monotone status lifecycle, content accumulation, and the
// "first send is a full object, subsequent sends are updates" framing
// rule. It is grounded in the teacher's session.ToolCallRecord
// (internal/session/store.go), generalized from a flat status/content pair
// into the full status machine, content variants, and a fluent builder.
package toolcall

import (
	"fmt"
	"sync"
	"time"
)

// Status is a tool call's lifecycle state (spec §3).
type Status string

const (
	StatusPending            Status = "pending"
	StatusAwaitingPermission Status = "awaiting_permission"
	StatusInProgress         Status = "in_progress"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
	StatusDenied             Status = "denied"
	StatusCancelled          Status = "cancelled"
)

// terminal reports whether a status is absorbing.
func (s Status) terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusDenied, StatusCancelled:
		return true
	default:
		return false
	}
}

// validTransitions encodes the diagram in spec §4.3.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusAwaitingPermission: true,
		StatusInProgress:         true,
		StatusCancelled:          true,
	},
	StatusAwaitingPermission: {
		StatusInProgress: true,
		StatusDenied:     true,
		StatusCancelled:  true,
	},
	StatusInProgress: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// CanTransition reports whether moving from 'from' to 'to' is an allowed
// edge of the state machine. Terminal states allow no further transitions.
func CanTransition(from, to Status) bool {
	if from.terminal() {
		return false
	}
	return validTransitions[from][to]
}

// Kind classifies what a tool call does, feeding permission-operation
// inference (spec §4.4).
type Kind string

const (
	KindRead    Kind = "read"
	KindEdit    Kind = "edit"
	KindExecute Kind = "execute"
	KindFetch   Kind = "fetch"
	KindOther   Kind = "other"
)

// Location points at a place in a file the tool call concerns.
type Location struct {
	Path      string
	Line      *int
	Column    *int
	EndLine   *int
	EndColumn *int
}

// ContentType discriminates ToolCall output Content.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentDiff     ContentType = "diff"
	ContentTerminal ContentType = "terminal"
)

// Hunk is one diff hunk; line numbers are 1-indexed, counts nonnegative.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Content  string
}

// Content is a tool call's output payload (spec §3's tool-call content
// union). Only the fields relevant to Type are populated.
type Content struct {
	Type       ContentType
	Text       string
	Path       string
	Hunks      []Hunk
	TerminalID string
	Command    string
	ExitCode   *int
	Stdout     string
	Stderr     string
}

// ToolCall is the immutable-by-convention record a Builder mutates and
// sends. Callers observe it only through Builder.Snapshot.
type ToolCall struct {
	ID                 string
	Name               string
	Input              map[string]any
	Status             Status
	Kind               Kind
	Location           *Location
	Reason             string
	Output             *Content
	Err                string
	DurationMS         int64
	RequiresPermission bool
}

// Update is what subsequent (non-first) sends carry: id, new status, and
// optional output/error/duration. Tool name and input are never re-sent
// (spec §4.3).
type Update struct {
	ID         string
	Status     Status
	Output     *Content
	Err        string
	DurationMS int64
}

// Sink receives the full object on the first send and Updates thereafter.
// Implementations typically marshal these onto session/update
// notifications (UpdateTypeToolCall / UpdateTypeToolCallUpdate).
type Sink interface {
	SendFull(tc ToolCall) error
	SendUpdate(u Update) error
}

// Builder drives a single tool call through its lifecycle. The zero value
// is not usable; construct with NewBuilder.
type Builder struct {
	mu    sync.Mutex
	tc    ToolCall
	sink  Sink
	sent  bool
	start time.Time
}

// Options seed a new tool call's immutable fields.
type Options struct {
	Name               string
	Input              map[string]any
	Kind               Kind
	Location           *Location
	Reason             string
	RequiresPermission bool
}

// NewBuilder allocates a builder for a fresh tool call. id must already be
// unique within the owning session (the session runtime's counter/uuid is
// responsible for that).
func NewBuilder(id string, opts Options, sink Sink) *Builder {
	return &Builder{
		tc: ToolCall{
			ID:                 id,
			Name:               opts.Name,
			Input:              opts.Input,
			Status:             StatusPending,
			Kind:               opts.Kind,
			Location:           opts.Location,
			Reason:             opts.Reason,
			RequiresPermission: opts.RequiresPermission,
		},
		sink:  sink,
		start: time.Now(),
	}
}

// Snapshot returns a copy of the current tool-call state.
func (b *Builder) Snapshot() ToolCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tc
}

// SetOutput stages output content for the next send. It may only be called
// while the call is non-terminal; replacing earlier content before the
// terminal send is permitted.
func (b *Builder) SetOutput(c Content) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tc.Status.terminal() {
		return fmt.Errorf("toolcall %s: cannot set output after terminal status %s", b.tc.ID, b.tc.Status)
	}
	b.tc.Output = &c
	return nil
}

// Send transitions the tool call to status and emits either the full
// object (first send) or an update (subsequent sends). errMsg is forwarded
// as the update's Err when non-empty; duration is computed from the
// builder's creation time when the target status is terminal.
func (b *Builder) Send(status Status, errMsg string) error {
	b.mu.Lock()
	current := b.tc.Status
	// The first send establishes the tool call's initial announced status
	// and is exempt from transition validation; every later send must obey
	// the state machine, except that a non-terminal status may be re-sent
	// unchanged. Terminal states are absorbing even against themselves.
	if b.sent {
		if current.terminal() {
			b.mu.Unlock()
			return fmt.Errorf("toolcall %s: cannot send from terminal status %s", b.tc.ID, current)
		}
		if status != current && !CanTransition(current, status) {
			b.mu.Unlock()
			return fmt.Errorf("toolcall %s: invalid transition %s -> %s", b.tc.ID, current, status)
		}
	}
	b.tc.Status = status
	b.tc.Err = errMsg
	var duration int64
	if status.terminal() {
		duration = time.Since(b.start).Milliseconds()
		b.tc.DurationMS = duration
	}

	first := !b.sent
	b.sent = true
	snapshot := b.tc
	b.mu.Unlock()

	if first {
		return b.sink.SendFull(snapshot)
	}
	return b.sink.SendUpdate(Update{
		ID:         snapshot.ID,
		Status:     snapshot.Status,
		Output:     snapshot.Output,
		Err:        snapshot.Err,
		DurationMS: snapshot.DurationMS,
	})
}

// CancelIfPending transitions a not-yet-terminal call to cancelled and
// sends it, per spec §4.3's "cancelled session" rule: a tool call in a
// cancelled session transitions to cancelled on its next send, with no
// further updates following. It is a no-op if already terminal.
func (b *Builder) CancelIfPending() error {
	b.mu.Lock()
	terminal := b.tc.Status.terminal()
	b.mu.Unlock()
	if terminal {
		return nil
	}
	return b.Send(StatusCancelled, "")
}
