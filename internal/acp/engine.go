package acp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"acpcore/internal/acperrors"
)

// DefaultRequestTimeout mirrors the teacher's client.go default; applies to
// outbound Call when the caller's context carries no earlier deadline.
const DefaultRequestTimeout = 30 * time.Second

// RequestHandler answers an inbound request and returns its result (or a
// structured error, classified via acperrors.Classify before being put on
// the wire).
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, error)

// NotificationHandler reacts to an inbound notification. It returns nothing,
// and nothing is ever sent back to the peer (spec §4.2).
type NotificationHandler func(params json.RawMessage)

// Engine is the bidirectional JSON-RPC 2.0 protocol engine described in
// spec §4.2: two inbound registries (requests, notifications) keyed by
// method name, and one outbound pending-request table keyed by id. It is
// role-agnostic — the same Engine type backs both the Agent side (serving
// initialize/session/* and calling back fs/terminal/permission methods) and
// a Client side (the mirror image), generalizing the teacher's Client.
type Engine struct {
	transport Transport
	log       *zap.Logger

	nextID atomic.Int64

	pending   map[int64]chan *Message
	pendingMu sync.Mutex

	requestHandlers   map[string]RequestHandler
	notificationHandlers map[string]NotificationHandler
	handlersMu        sync.RWMutex

	// RequestTimeout bounds outbound Call when ctx has no deadline.
	RequestTimeout time.Duration

	closeOnce sync.Once
}

// NewEngine binds an Engine to transport. The transport must not be started
// yet; call Start to begin processing. logger may be nil (defaults to a
// no-op logger).
func NewEngine(transport Transport, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		transport:            transport,
		log:                  logger,
		pending:              make(map[int64]chan *Message),
		requestHandlers:      make(map[string]RequestHandler),
		notificationHandlers: make(map[string]NotificationHandler),
		RequestTimeout:       DefaultRequestTimeout,
	}
	transport.SetHandler(e.dispatch)
	return e
}

// Start begins reading from the transport.
func (e *Engine) Start() error {
	return e.transport.Start()
}

// Close fails every pending outbound request and shuts the transport down.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.pendingMu.Lock()
		for id, ch := range e.pending {
			close(ch)
			delete(e.pending, id)
		}
		e.pendingMu.Unlock()
		err = e.transport.Close()
	})
	return err
}

// Done reports transport shutdown.
func (e *Engine) Done() <-chan struct{} { return e.transport.Done() }

// OnRequest registers (or overwrites) the handler for an inbound request
// method. Passing a nil handler removes any existing registration.
func (e *Engine) OnRequest(method string, handler RequestHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	if handler == nil {
		delete(e.requestHandlers, method)
		return
	}
	e.requestHandlers[method] = handler
}

// OnNotification registers (or overwrites) the handler for an inbound
// notification method.
func (e *Engine) OnNotification(method string, handler NotificationHandler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	if handler == nil {
		delete(e.notificationHandlers, method)
		return
	}
	e.notificationHandlers[method] = handler
}

// Call sends an outbound request, assigning a fresh monotonic id, and
// blocks until the correlated response arrives, the context is done, the
// request timeout elapses, or the transport closes. result, if non-nil, is
// populated by unmarshaling the response's result field.
func (e *Engine) Call(ctx context.Context, method string, params any, result any) error {
	id := e.nextID.Add(1)

	req, err := NewRequest(id, method, params)
	if err != nil {
		return err
	}

	ch := make(chan *Message, 1)
	e.pendingMu.Lock()
	e.pending[id] = ch
	e.pendingMu.Unlock()

	if err := e.transport.Send(req); err != nil {
		e.pendingMu.Lock()
		delete(e.pending, id)
		e.pendingMu.Unlock()
		return fmt.Errorf("acp: send %s: %w", method, err)
	}

	timeout := e.RequestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("acp: request %s (id=%d) cancelled: engine closing", method, id)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && resp.Result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("acp: unmarshal %s result: %w", method, err)
			}
		}
		return nil

	case <-timer.C:
		e.pendingMu.Lock()
		delete(e.pending, id)
		e.pendingMu.Unlock()
		return &Error{Code: int(acperrors.CodeTimeout), Message: fmt.Sprintf("request %s (id=%d) timed out after %v", method, id, timeout)}

	case <-e.transport.Done():
		e.pendingMu.Lock()
		delete(e.pending, id)
		e.pendingMu.Unlock()
		return fmt.Errorf("acp: request %s (id=%d) cancelled: transport closed", method, id)

	case <-ctx.Done():
		e.pendingMu.Lock()
		delete(e.pending, id)
		e.pendingMu.Unlock()
		return ctx.Err()
	}
}

// Notify sends a fire-and-forget outbound notification.
func (e *Engine) Notify(method string, params any) error {
	msg, err := NewNotification(method, params)
	if err != nil {
		return err
	}
	return e.transport.Send(msg)
}

// dispatch is the Transport's inbound handler; it classifies and routes
// each incoming envelope (spec §4.1/§4.2).
func (e *Engine) dispatch(msg *Message) {
	switch msg.Classify() {
	case KindResponse:
		e.handleResponse(msg)
	case KindNotification:
		e.handleNotification(msg)
	case KindRequest:
		e.handleRequest(msg)
	default:
		e.log.Warn("acp: received unclassifiable message", zap.Any("message", msg))
	}
}

func (e *Engine) handleResponse(msg *Message) {
	id, ok := msg.IDAsInt64()
	if !ok {
		e.log.Warn("acp: response with non-numeric id")
		return
	}

	e.pendingMu.Lock()
	ch, ok := e.pending[id]
	if ok {
		delete(e.pending, id)
	}
	e.pendingMu.Unlock()

	if !ok {
		e.log.Debug("acp: response for unknown request id, ignored", zap.Int64("id", id))
		return
	}
	ch <- msg
}

func (e *Engine) handleNotification(msg *Message) {
	e.handlersMu.RLock()
	h := e.notificationHandlers[msg.Method]
	e.handlersMu.RUnlock()

	if h == nil {
		e.log.Debug("acp: no handler for notification, ignored", zap.String("method", msg.Method))
		return
	}
	h(msg.Params)
}

func (e *Engine) handleRequest(msg *Message) {
	e.handlersMu.RLock()
	h := e.requestHandlers[msg.Method]
	e.handlersMu.RUnlock()

	if h == nil {
		e.replyError(msg.ID, acperrors.MethodNotFound(msg.Method))
		return
	}

	result, err := h(context.Background(), msg.Params)
	if err != nil {
		e.replyError(msg.ID, acperrors.Classify(err))
		return
	}
	e.replyResult(msg.ID, result)
}

func (e *Engine) replyResult(id *json.RawMessage, result any) {
	if result == nil {
		result = struct{}{}
	}
	resp, err := NewResult(id, result)
	if err != nil {
		e.log.Error("acp: marshal result failed", zap.Error(err))
		e.replyError(id, acperrors.Internal("failed to marshal result"))
		return
	}
	if err := e.transport.Send(resp); err != nil {
		e.log.Error("acp: send response failed", zap.Error(err))
	}
}

func (e *Engine) replyError(id *json.RawMessage, aerr *acperrors.Error) {
	resp := NewErrorResponse(id, int(aerr.Code), aerr.Message, aerr.Data)
	if err := e.transport.Send(resp); err != nil {
		e.log.Error("acp: send error response failed", zap.Error(err))
	}
}
