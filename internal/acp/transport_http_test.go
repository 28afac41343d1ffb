package acp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHTTPTransport(t *testing.T, addr, path string) *HTTPTransport {
	t.Helper()
	tr := NewHTTPTransport(addr, path, nil)
	t.Cleanup(func() { _ = tr.Close() })
	require.NoError(t, tr.Start())
	time.Sleep(20 * time.Millisecond)
	return tr
}

func TestHTTPTransport_RequestGets200WithEnvelope(t *testing.T) {
	tr := startHTTPTransport(t, "127.0.0.1:18881", "/acp")
	tr.SetHandler(func(m *Message) {
		resp, err := NewResult(m.ID, map[string]string{"ok": "yes"})
		require.NoError(t, err)
		require.NoError(t, tr.Send(resp))
	})

	body, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": "ping"})
	resp, err := http.Post("http://127.0.0.1:18881/acp", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPTransport_Notification204(t *testing.T) {
	tr := startHTTPTransport(t, "127.0.0.1:18882", "/acp")
	received := make(chan struct{}, 1)
	tr.SetHandler(func(m *Message) {
		if m.IsNotification() {
			received <- struct{}{}
		}
	})

	body, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "method": "session/cancel"})
	resp, err := http.Post("http://127.0.0.1:18882/acp", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("notification not dispatched")
	}
}

func TestHTTPTransport_ParseError400(t *testing.T) {
	tr := startHTTPTransport(t, "127.0.0.1:18883", "/acp")
	tr.SetHandler(func(*Message) {})

	resp, err := http.Post("http://127.0.0.1:18883/acp", "application/json", bytes.NewReader([]byte("not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPTransport_WrongPathOr404(t *testing.T) {
	tr := startHTTPTransport(t, "127.0.0.1:18884", "/acp")
	tr.SetHandler(func(*Message) {})

	resp, err := http.Get("http://127.0.0.1:18884/other")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp2, err := http.Get("http://127.0.0.1:18884/acp")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}
