// Package session implements the session registry and per-session runtime
// (spec §4.4, §4.5): session data, creation/load/cancel/teardown, and the
// operations a prompt handler uses to emit updates and invoke reverse RPCs.
//
// Grounded in the teacher's internal/session.Store (map + mutex shape,
// CreatedAt/UpdatedAt bookkeeping), generalized from a flat message/
// tool-call log into the full attribute set spec §3 names (mode,
// config-options, per-kind chunk counters, cancellation flag).
package session

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MCPServer is the part of an acp.MCPServer kept on a session record; the
// core stores it and does not interpret it. See acp.MCPServer for the wire
// shape.
type MCPServer struct {
	Name    string
	Command string
	Args    []string
	URL     string
}

// Data is a session's durable state (spec §3's Session type).
type Data struct {
	ID               string
	WorkingDirectory string
	MCPServers       []MCPServer
	SystemPrompt     string
	Mode             string
	ConfigOptions    map[string]any
	CreatedAt        time.Time

	mu sync.Mutex

	cancelled bool

	messageCounter      int
	agentChunkCounter   int
	userChunkCounter    int
	thoughtChunkCounter int
	toolCallCounter     int
}

const defaultMode = "default"

func newData(id, cwd string, servers []MCPServer, systemPrompt string) *Data {
	return &Data{
		ID:               id,
		WorkingDirectory: cwd,
		MCPServers:       servers,
		SystemPrompt:     systemPrompt,
		Mode:             defaultMode,
		ConfigOptions:    make(map[string]any),
		CreatedAt:        time.Now(),
	}
}

// Cancelled reports the session's cancellation flag.
func (d *Data) Cancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelled
}

func (d *Data) setCancelled() {
	d.mu.Lock()
	d.cancelled = true
	d.mu.Unlock()
}

// nextAgentChunkIndex allocates the next 0-based agent-message chunk index.
func (d *Data) nextAgentChunkIndex() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.agentChunkCounter
	d.agentChunkCounter++
	return i
}

func (d *Data) nextUserChunkIndex() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.userChunkCounter
	d.userChunkCounter++
	return i
}

func (d *Data) nextThoughtChunkIndex() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.thoughtChunkCounter
	d.thoughtChunkCounter++
	return i
}

func (d *Data) nextToolCallID() string {
	d.mu.Lock()
	d.toolCallCounter++
	n := d.toolCallCounter
	d.mu.Unlock()
	return uuid.New().String()[:8] + "-" + strconv.Itoa(n)
}

func (d *Data) nextMessageSeq() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.messageCounter
	d.messageCounter++
	return i
}

func (d *Data) setMode(mode string) {
	d.mu.Lock()
	d.Mode = mode
	d.mu.Unlock()
}

func (d *Data) setConfigOption(key string, value any) {
	d.mu.Lock()
	d.ConfigOptions[key] = value
	d.mu.Unlock()
}
