// Package terminalhost is a reference, test-exercised implementation of the
// client-side terminal/* reverse-RPC handlers, fulfilling
// terminal/create|output|wait_for_exit|kill|release with a real
// pseudo-terminal (github.com/creack/pty) rather than a bare exec.Cmd pipe,
// for closer-to-real line discipline and signal behavior.
//
// Grounded in the teacher's internal/terminal.Provider (same operations,
// same byte-limited output buffer with head-truncation), adapted to back
// each subprocess with a pty instead of a plain stdout pipe.
package terminalhost

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultByteLimit = 1024 * 1024

// ExitStatus mirrors the wire shape returned by terminal/wait_for_exit.
type ExitStatus struct {
	ExitCode *int
	Signal   string
}

type session struct {
	id        string
	cmd       *exec.Cmd
	pty       *os.File
	output    bytes.Buffer
	truncated bool
	byteLimit int
	exit      *ExitStatus
	released  bool
	done      chan struct{}
	mu        sync.Mutex
}

// Host manages pty-backed terminal sessions created on behalf of an agent.
type Host struct {
	log *zap.Logger

	mu        sync.RWMutex
	terminals map[string]*session
	onOutput  func(terminalID, data string)
}

// NewHost constructs an empty Host. logger may be nil.
func NewHost(logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{log: logger, terminals: make(map[string]*session)}
}

// OnOutput registers a callback invoked whenever new output is read from
// any terminal.
func (h *Host) OnOutput(handler func(terminalID, data string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onOutput = handler
}

// Create spawns command under a pty and returns its terminal id.
func (h *Host) Create(command string, args []string, cwd string, env []string, byteLimit int) (string, error) {
	id := uuid.New().String()

	cmd := exec.Command(command, args...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	if len(env) > 0 {
		cmd.Env = env
	}

	f, err := pty.Start(cmd)
	if err != nil {
		return "", fmt.Errorf("terminalhost: start %q under pty: %w", command, err)
	}

	if byteLimit <= 0 {
		byteLimit = defaultByteLimit
	}

	s := &session{id: id, cmd: cmd, pty: f, byteLimit: byteLimit, done: make(chan struct{})}

	h.mu.Lock()
	h.terminals[id] = s
	h.mu.Unlock()

	go h.readOutput(s)
	go h.waitForProcess(s)

	return id, nil
}

func (h *Host) readOutput(s *session) {
	buf := make([]byte, 4096)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)

			s.mu.Lock()
			s.output.Write(chunk)
			if s.output.Len() > s.byteLimit {
				data := s.output.Bytes()
				excess := len(data) - s.byteLimit
				s.output.Reset()
				s.output.Write(data[excess:])
				s.truncated = true
			}
			s.mu.Unlock()

			h.mu.RLock()
			handler := h.onOutput
			h.mu.RUnlock()
			if handler != nil {
				handler(s.id, string(chunk))
			}
		}
		if err != nil {
			return
		}
	}
}

func (h *Host) waitForProcess(s *session) {
	err := s.cmd.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	status := ExitStatus{}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code := exitErr.ExitCode()
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				status.Signal = ws.Signal().String()
			} else {
				status.ExitCode = &code
			}
		} else {
			code := -1
			status.ExitCode = &code
		}
	} else {
		code := 0
		status.ExitCode = &code
	}
	s.exit = &status
	close(s.done)
	_ = s.pty.Close()
}

func (h *Host) get(id string) (*session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.terminals[id]
	if !ok {
		return nil, fmt.Errorf("terminalhost: terminal %q not found", id)
	}
	return s, nil
}

// liveSession returns the session for id, failing with an error naming id
// and "released" once it has been released (spec §4.7's released-state
// invariant: every other operation must fail this way after Release).
func (h *Host) liveSession(id string) (*session, error) {
	s, err := h.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	released := s.released
	s.mu.Unlock()
	if released {
		return nil, fmt.Errorf("terminalhost: terminal %q is released", id)
	}
	return s, nil
}

// Output returns buffered output and exit status (nil if still running).
func (h *Host) Output(id string) (output string, truncated bool, exit *ExitStatus, err error) {
	s, err := h.liveSession(id)
	if err != nil {
		return "", false, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output.String(), s.truncated, s.exit, nil
}

// WaitForExit blocks until the process exits or timeout elapses (0 means
// wait indefinitely), returning TimedOut when the deadline passed first.
func (h *Host) WaitForExit(id string, timeout time.Duration) (exit *ExitStatus, timedOut bool, err error) {
	s, err := h.liveSession(id)
	if err != nil {
		return nil, false, err
	}

	if timeout <= 0 {
		<-s.done
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.exit, false, nil
	}

	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.exit, false, nil
	case <-time.After(timeout):
		return nil, true, nil
	}
}

// Kill sends SIGTERM, escalating to SIGKILL after 5s if the process hasn't
// exited, mirroring the teacher's Provider.HandleKill.
func (h *Host) Kill(id string) error {
	s, err := h.liveSession(id)
	if err != nil {
		return err
	}
	return h.killSession(s)
}

func (h *Host) killSession(s *session) error {
	s.mu.Lock()
	alreadyExited := s.exit != nil
	process := s.cmd.Process
	s.mu.Unlock()
	if alreadyExited || process == nil {
		return nil
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-time.After(5 * time.Second):
		_ = process.Signal(syscall.SIGKILL)
		<-s.done
		return nil
	}
}

// Release kills the session if still running and marks it released.
// Idempotent: a second call on an already-released (or unknown) id is a
// no-op, matching spec §4.7. The session stays in the map, tombstoned, so
// later operations can report "released" rather than "not found".
func (h *Host) Release(id string) error {
	s, err := h.get(id)
	if err != nil {
		return nil // unknown: idempotent no-op
	}

	s.mu.Lock()
	alreadyReleased := s.released
	s.released = true
	s.mu.Unlock()
	if alreadyReleased {
		return nil
	}

	_ = h.killSession(s)
	return nil
}

// CloseAll releases every terminal, e.g. on session teardown.
func (h *Host) CloseAll() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.terminals))
	for id := range h.terminals {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		_ = h.Release(id)
	}
}
