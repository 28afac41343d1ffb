package acp

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HTTPTransport implements the HTTP-POST delivery mode from spec §6: a
// single envelope per POST to a configurable path. Requests reply with the
// envelope JSON on 200, 204 for notifications (no response body), 400 for
// parse errors, and 404 for any other path or non-POST method. Unlike
// StdioTransport this transport is inherently request/response per HTTP
// call: Send only appends to pendingOutbound, and a POST's reply is the
// queued envelope whose id matches that request. Queued envelopes with no
// matching id (e.g. unsolicited notifications) stay in pendingOutbound and
// are never delivered by this transport.
//
// Grounded in houzhh15-mote's gorilla/mux-based gateway handlers, adapted
// to the single-path JSON-RPC-over-HTTP contract this spec describes.
type HTTPTransport struct {
	path string
	log  *zap.Logger

	handler   func(*Message)
	handlerMu sync.RWMutex

	server *http.Server
	router *mux.Router

	done chan struct{}

	mu              sync.Mutex
	pendingOutbound []*Message
}

// NewHTTPTransport builds a transport that will serve JSON-RPC envelopes at
// path on addr once Start is called.
func NewHTTPTransport(addr, path string, logger *zap.Logger) *HTTPTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &HTTPTransport{path: path, log: logger, done: make(chan struct{})}
	r := mux.NewRouter()
	r.HandleFunc(path, t.serveEnvelope).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	t.router = r
	t.server = &http.Server{Addr: addr, Handler: r}
	return t
}

func (t *HTTPTransport) SetHandler(h func(*Message)) {
	t.handlerMu.Lock()
	t.handler = h
	t.handlerMu.Unlock()
}

func (t *HTTPTransport) Start() error {
	ln, err := net.Listen("tcp", t.server.Addr)
	if err != nil {
		return err
	}
	go func() {
		defer close(t.done)
		if err := t.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			t.log.Warn("acp: http transport serve error", zap.Error(err))
		}
	}()
	return nil
}

func (t *HTTPTransport) Close() error {
	return t.server.Close()
}

func (t *HTTPTransport) Done() <-chan struct{} { return t.done }

// Send queues an outbound envelope. Responses to the currently-dispatched
// request are matched by serveEnvelope directly; anything else (proactive
// notifications) stays queued and is not written to any HTTP response.
func (t *HTTPTransport) Send(msg *Message) error {
	t.mu.Lock()
	t.pendingOutbound = append(t.pendingOutbound, msg)
	t.mu.Unlock()
	return nil
}

func (t *HTTPTransport) serveEnvelope(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	msg, err := Parse(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	t.handlerMu.RLock()
	h := t.handler
	t.handlerMu.RUnlock()

	if msg.IsNotification() {
		if h != nil {
			h(msg)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// Request: dispatch synchronously and reply with whatever response the
	// engine queued for this id via Send.
	if h != nil {
		h(msg)
	}

	reply := t.takeReplyFor(msg.ID)
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	data, err := Encode(reply)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (t *HTTPTransport) takeReplyFor(id *json.RawMessage) *Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, m := range t.pendingOutbound {
		if sameID(m.ID, id) {
			t.pendingOutbound = append(t.pendingOutbound[:i], t.pendingOutbound[i+1:]...)
			return m
		}
	}
	return nil
}

func sameID(a, b *json.RawMessage) bool {
	if a == nil || b == nil {
		return false
	}
	return string(*a) == string(*b)
}
