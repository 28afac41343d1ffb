package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"acpcore/internal/acperrors"
)

// Registry manages the set of live sessions (spec §4.5): create, load,
// cancel, teardown. Grounded in the teacher's session.Store map+mutex.
type Registry struct {
	log *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Data
}

// NewRegistry constructs an empty, in-memory registry. logger may be nil.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{log: logger, sessions: make(map[string]*Data)}
}

// NewOptions configures session creation.
type NewOptions struct {
	WorkingDirectory string
	MCPServers       []MCPServer
	SystemPrompt     string
}

// Create generates an opaque, unique id and stores a fresh session record.
// No updates are emitted (spec §4.5).
func (r *Registry) Create(opts NewOptions) *Data {
	id := uuid.New().String()
	d := newData(id, opts.WorkingDirectory, opts.MCPServers, opts.SystemPrompt)

	r.mu.Lock()
	r.sessions[id] = d
	r.mu.Unlock()

	r.log.Debug("session created", zap.String("sessionId", id))
	return d
}

// Load retrieves a session by id, failing with session_not_found if
// absent (persistence across process restarts is out of scope; spec §1).
func (r *Registry) Load(id string) (*Data, error) {
	r.mu.RLock()
	d, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, acperrors.SessionNotFound(id)
	}
	return d, nil
}

// Cancel sets a session's cancellation flag. Runtime operations that check
// it (permission requests, fs and terminal calls, mode and config changes)
// then fail with cancelled. Message, thought, plan and tool-call sends do
// not check it, and tool calls are not moved to cancelled automatically: a
// caller that sees Data.Cancelled() ends them with Builder.CancelIfPending.
func (r *Registry) Cancel(id string) error {
	d, err := r.Load(id)
	if err != nil {
		return err
	}
	d.setCancelled()
	r.log.Debug("session cancelled", zap.String("sessionId", id))
	return nil
}

// TeardownAll cancels every session and drops all references.
func (r *Registry) TeardownAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.sessions {
		d.setCancelled()
	}
	r.sessions = make(map[string]*Data)
}

// List returns a snapshot of all live sessions.
func (r *Registry) List() []*Data {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Data, 0, len(r.sessions))
	for _, d := range r.sessions {
		out = append(out, d)
	}
	return out
}

// Delete removes a single session without cancelling others.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}
