package acp

import (
	"bufio"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// StdioTransport delivers newline-delimited JSON-RPC messages (spec §6)
// over an arbitrary duplex byte pair. Unlike the teacher's transport of the
// same name, it does not spawn a subprocess itself — subprocess lifecycle
// is an external collaborator (spec §1) — it is handed an already-open
// io.Reader/io.WriteCloser pair, which callers may back with os.Stdin/
// os.Stdout, a pipe, or a spawned process's own pipes.
type StdioTransport struct {
	r   io.Reader
	w   io.WriteCloser
	log *zap.Logger

	handler   func(*Message)
	handlerMu sync.RWMutex

	writeMu sync.Mutex

	done      chan struct{}
	running   atomic.Bool
	closeOnce sync.Once
}

// NewStdioTransport wraps an already-open duplex pair. logger may be nil.
func NewStdioTransport(r io.Reader, w io.WriteCloser, logger *zap.Logger) *StdioTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StdioTransport{r: r, w: w, log: logger, done: make(chan struct{})}
}

func (t *StdioTransport) SetHandler(h func(*Message)) {
	t.handlerMu.Lock()
	t.handler = h
	t.handlerMu.Unlock()
}

// Start begins the read loop on a dedicated goroutine. It returns
// immediately; inbound messages are delivered asynchronously to the
// handler installed via SetHandler.
func (t *StdioTransport) Start() error {
	t.running.Store(true)
	go t.readLoop()
	return nil
}

// Send marshals msg and writes it as a single newline-terminated JSON line.
// Safe for concurrent use.
func (t *StdioTransport) Send(msg *Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if !t.running.Load() {
		return io.ErrClosedPipe
	}
	if _, err := t.w.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func (t *StdioTransport) Done() <-chan struct{} { return t.done }

func (t *StdioTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.running.Store(false)
		err = t.w.Close()
	})
	return err
}

// readLoop reads newline-delimited JSON-RPC messages and dispatches each to
// the registered handler. Empty lines are ignored per the transport
// contract. A malformed line is logged and skipped rather than tearing down
// the whole connection, matching the teacher's tolerant read loop.
func (t *StdioTransport) readLoop() {
	defer func() {
		t.running.Store(false)
		close(t.done)
	}()

	scanner := bufio.NewScanner(t.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := Parse(line)
		if err != nil {
			t.log.Warn("acp: invalid JSON on transport", zap.Error(err), zap.ByteString("line", line))
			continue
		}

		t.handlerMu.RLock()
		h := t.handler
		t.handlerMu.RUnlock()

		if h != nil {
			h(msg)
		}
	}

	if err := scanner.Err(); err != nil && t.running.Load() {
		t.log.Warn("acp: transport read error", zap.Error(err))
	}
}
