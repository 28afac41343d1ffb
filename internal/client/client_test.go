package client

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acpcore/internal/acp"
)

// noopTransport satisfies acp.Transport well enough to back an Engine in
// tests that only exercise handler functions directly, never Start/Send.
type noopTransport struct{ done chan struct{} }

func newNoopTransport() *noopTransport { return &noopTransport{done: make(chan struct{})} }

func (t *noopTransport) Start() error                    { return nil }
func (t *noopTransport) SetHandler(func(*acp.Message))   {}
func (t *noopTransport) Send(*acp.Message) error         { return nil }
func (t *noopTransport) Close() error                    { close(t.done); return nil }
func (t *noopTransport) Done() <-chan struct{}           { return t.done }

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	engine := acp.NewEngine(newNoopTransport(), nil)
	return New(engine, opts)
}

func TestAutoGrant_PrefersDefaultOption(t *testing.T) {
	result := AutoGrant(acp.RequestPermissionParams{
		Options: []acp.PermissionOption{
			{ID: "a", Label: "Allow once"},
			{ID: "b", Label: "Allow always", IsDefault: true},
		},
	})
	assert.True(t, result.Granted)
	assert.Equal(t, "b", result.SelectedOptionID)
}

func TestAutoGrant_NoOptionsStillGrants(t *testing.T) {
	result := AutoGrant(acp.RequestPermissionParams{})
	assert.True(t, result.Granted)
}

func TestClient_HandleFSReadAndWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("line1\nline2\nline3"), 0o644))

	c := newTestClient(t, Options{})

	readParams, err := json.Marshal(acp.FSReadTextFileParams{Path: path, StartLine: intPtr(2), EndLine: intPtr(3)})
	require.NoError(t, err)
	result, err := c.handleFSRead(context.Background(), readParams)
	require.NoError(t, err)
	readResult := result.(acp.FSReadTextFileResult)
	assert.Equal(t, "line2\nline3", readResult.Content)
	assert.True(t, readResult.Truncated)

	writePath := filepath.Join(dir, "new.txt")
	writeParams, err := json.Marshal(acp.FSWriteTextFileParams{Path: writePath, Content: "hello"})
	require.NoError(t, err)
	writeResultAny, err := c.handleFSWrite(context.Background(), writeParams)
	require.NoError(t, err)
	writeResult := writeResultAny.(acp.FSWriteTextFileResult)
	assert.True(t, writeResult.Created)
	assert.Equal(t, 5, writeResult.BytesWritten)
}

func TestClient_HandleRequestPermission_UsesPolicy(t *testing.T) {
	c := newTestClient(t, Options{Policy: func(p acp.RequestPermissionParams) acp.RequestPermissionResult {
		return acp.RequestPermissionResult{Granted: false}
	}})

	params, err := json.Marshal(acp.RequestPermissionParams{SessionID: "s1", Operation: "file_write"})
	require.NoError(t, err)
	result, err := c.handleRequestPermission(context.Background(), params)
	require.NoError(t, err)
	assert.False(t, result.(acp.RequestPermissionResult).Granted)
}

func TestClient_HandleFSRead_InvalidParams(t *testing.T) {
	c := newTestClient(t, Options{})
	_, err := c.handleFSRead(context.Background(), json.RawMessage(`{not json`))
	assert.Error(t, err)
}

func TestClient_OnSessionUpdate_ReceivesNotification(t *testing.T) {
	c := newTestClient(t, Options{})

	received := make(chan acp.SessionUpdateParams, 1)
	c.OnSessionUpdate(func(p acp.SessionUpdateParams) { received <- p })

	raw, err := json.Marshal(acp.SessionUpdateParams{
		SessionID: "s1",
		Update:    acp.SessionUpdate{Type: acp.UpdateTypeAgentMessageChunk, Data: json.RawMessage(`{"content":"hi","index":0}`)},
	})
	require.NoError(t, err)
	c.handleSessionUpdate(raw)

	select {
	case p := <-received:
		assert.Equal(t, "s1", p.SessionID)
	default:
		t.Fatal("handler not invoked")
	}
}

func intPtr(i int) *int { return &i }
