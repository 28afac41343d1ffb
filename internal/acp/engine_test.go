package acp

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeTransport is an in-memory Transport pair for exercising the engine
// without any real byte-framing, letting two engines talk directly.
type pipeTransport struct {
	peer *pipeTransport

	handler   func(*Message)
	handlerMu sync.RWMutex

	done      chan struct{}
	closeOnce sync.Once
}

func newPipePair() (*pipeTransport, *pipeTransport) {
	a := &pipeTransport{done: make(chan struct{})}
	b := &pipeTransport{done: make(chan struct{})}
	a.peer = b
	b.peer = a
	return a, b
}

func (t *pipeTransport) SetHandler(h func(*Message)) {
	t.handlerMu.Lock()
	t.handler = h
	t.handlerMu.Unlock()
}

func (t *pipeTransport) Start() error { return nil }

func (t *pipeTransport) Send(msg *Message) error {
	t.peer.handlerMu.RLock()
	h := t.peer.handler
	t.peer.handlerMu.RUnlock()
	if h != nil {
		go h(msg)
	}
	return nil
}

func (t *pipeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

func (t *pipeTransport) Done() <-chan struct{} { return t.done }

func newEnginePair() (*Engine, *Engine) {
	ta, tb := newPipePair()
	return NewEngine(ta, nil), NewEngine(tb, nil)
}

func TestEngine_RequestResponseRoundTrip(t *testing.T) {
	client, server := newEnginePair()
	defer client.Close()
	defer server.Close()

	server.OnRequest("echo", func(_ context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.Unmarshal(params, &p))
		return map[string]string{"text": p.Text}, nil
	})

	var result struct {
		Text string `json:"text"`
	}
	err := client.Call(context.Background(), "echo", map[string]string{"text": "hi"}, &result)
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Text)
}

func TestEngine_UnregisteredMethod_MethodNotFound(t *testing.T) {
	client, server := newEnginePair()
	defer client.Close()
	defer server.Close()

	err := client.Call(context.Background(), "no/such", nil, nil)
	require.Error(t, err)

	rpcErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, -32601, rpcErr.Code)

	var data map[string]string
	require.NoError(t, json.Unmarshal(rpcErr.Data, &data))
	assert.Equal(t, "no/such", data["method"])
}

func TestEngine_HandlerError_BecomesStructuredResponse(t *testing.T) {
	client, server := newEnginePair()
	defer client.Close()
	defer server.Close()

	server.OnRequest("fails", func(_ context.Context, _ json.RawMessage) (any, error) {
		return nil, assertErr{}
	})

	err := client.Call(context.Background(), "fails", nil, nil)
	require.Error(t, err)
	rpcErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, -32603, rpcErr.Code)
	assert.Equal(t, "boom", rpcErr.Message)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestEngine_Notification_NoResponseExpected(t *testing.T) {
	client, server := newEnginePair()
	defer client.Close()
	defer server.Close()

	received := make(chan string, 1)
	server.OnNotification("ping", func(params json.RawMessage) {
		var p struct {
			Msg string `json:"msg"`
		}
		_ = json.Unmarshal(params, &p)
		received <- p.Msg
	})

	require.NoError(t, client.Notify("ping", map[string]string{"msg": "hello"}))

	select {
	case msg := <-received:
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestEngine_UnknownNotification_SilentlyIgnored(t *testing.T) {
	client, server := newEnginePair()
	defer client.Close()
	defer server.Close()

	assert.NotPanics(t, func() {
		require.NoError(t, client.Notify("nobody/listens", nil))
		time.Sleep(10 * time.Millisecond)
	})
}

func TestEngine_OutboundIDs_MonotoneAndUnique(t *testing.T) {
	client, server := newEnginePair()
	defer client.Close()
	defer server.Close()

	server.OnRequest("noop", func(_ context.Context, _ json.RawMessage) (any, error) {
		return struct{}{}, nil
	})

	seen := map[int64]bool{}
	var lastID int64
	for i := 0; i < 5; i++ {
		id := client.nextID.Add(1)
		assert.False(t, seen[id])
		seen[id] = true
		assert.Greater(t, id, lastID)
		lastID = id
	}
}

func TestEngine_CallTimeout(t *testing.T) {
	client, server := newEnginePair()
	defer client.Close()
	defer server.Close()
	client.RequestTimeout = 20 * time.Millisecond

	server.OnRequest("slow", func(ctx context.Context, _ json.RawMessage) (any, error) {
		time.Sleep(200 * time.Millisecond)
		return struct{}{}, nil
	})

	err := client.Call(context.Background(), "slow", nil, nil)
	require.Error(t, err)
	rpcErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, -32009, rpcErr.Code)
}

func TestEngine_Close_RejectsPendingWaiters(t *testing.T) {
	client, server := newEnginePair()
	defer server.Close()

	server.OnRequest("never_replies", func(ctx context.Context, _ json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Call(context.Background(), "never_replies", nil, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, client.Close())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Call did not unblock after Close")
	}
}

func TestEngine_OnRequest_NilRemovesHandler(t *testing.T) {
	client, server := newEnginePair()
	defer client.Close()
	defer server.Close()

	server.OnRequest("temp", func(_ context.Context, _ json.RawMessage) (any, error) {
		return struct{}{}, nil
	})
	require.NoError(t, client.Call(context.Background(), "temp", nil, nil))

	server.OnRequest("temp", nil)
	err := client.Call(context.Background(), "temp", nil, nil)
	require.Error(t, err)
	rpcErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, -32601, rpcErr.Code)
}
