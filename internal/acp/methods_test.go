package acp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCapabilities_FSTakesPrecedenceOverFileSystemAlias(t *testing.T) {
	var caps ClientCapabilities
	err := json.Unmarshal([]byte(`{"fs":{"read":true,"write":false},"fileSystem":{"read":false,"write":true}}`), &caps)
	require.NoError(t, err)
	require.NotNil(t, caps.FS)
	assert.True(t, caps.FS.Read)
	assert.False(t, caps.FS.Write)
}

func TestClientCapabilities_FileSystemAliasAcceptedWhenFSAbsent(t *testing.T) {
	var caps ClientCapabilities
	err := json.Unmarshal([]byte(`{"fileSystem":{"read":true,"write":true}}`), &caps)
	require.NoError(t, err)
	require.NotNil(t, caps.FS)
	assert.True(t, caps.FS.Read)
	assert.True(t, caps.FS.Write)
}

func TestClientCapabilities_NeverEmitsFileSystemAlias(t *testing.T) {
	caps := ClientCapabilities{FS: &FSCapabilities{Read: true}}
	data, err := json.Marshal(caps)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "fileSystem")
	assert.Contains(t, string(data), `"fs"`)
}

func TestSessionUpdateParams_RoundTrip(t *testing.T) {
	p := SessionUpdateParams{
		SessionID: "s1",
		Update: SessionUpdate{
			Type:      UpdateTypeAgentMessageChunk,
			Timestamp: "2026-07-29T00:00:00Z",
			Data:      json.RawMessage(`{"content":"hi","index":0}`),
		},
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded SessionUpdateParams
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, p.SessionID, decoded.SessionID)
	assert.Equal(t, p.Update.Type, decoded.Update.Type)
	assert.JSONEq(t, string(p.Update.Data), string(decoded.Update.Data))
}
