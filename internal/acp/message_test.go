package acp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`, KindRequest},
		{"request string id", `{"jsonrpc":"2.0","id":"a","method":"initialize"}`, KindRequest},
		{"notification", `{"jsonrpc":"2.0","method":"session/cancel","params":{}}`, KindNotification},
		{"response result", `{"jsonrpc":"2.0","id":1,"result":{}}`, KindResponse},
		{"response error", `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"x"}}`, KindResponse},
		{"response null id is valid (parse error reply)", `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"x"}}`, KindResponse},
		{"invalid: id but no method/result/error", `{"jsonrpc":"2.0","id":1}`, KindInvalid},
		{"invalid: neither id nor method", `{"jsonrpc":"2.0"}`, KindInvalid},
		{"invalid: both result and error", `{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":1,"message":"x"}}`, KindInvalid},
		{"invalid: request id is null", `{"jsonrpc":"2.0","id":null,"method":"x"}`, KindInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Classify())
		})
	}
}

func TestClassify_ExclusiveAcrossClassifiers(t *testing.T) {
	raws := []string{
		`{"jsonrpc":"2.0","id":1,"method":"x"}`,
		`{"jsonrpc":"2.0","method":"x"}`,
		`{"jsonrpc":"2.0","id":1,"result":1}`,
		`{"jsonrpc":"2.0","id":1}`,
	}
	for _, raw := range raws {
		m, err := Parse([]byte(raw))
		require.NoError(t, err)
		count := 0
		for _, v := range []bool{m.IsRequest(), m.IsResponse(), m.IsNotification()} {
			if v {
				count++
			}
		}
		assert.LessOrEqual(t, count, 1, "raw=%s", raw)
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	assert.Error(t, err)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	raw := `{"jsonrpc":"2.0","id":7,"method":"initialize","params":{"protocolVersion":1}}`
	m, err := Parse([]byte(raw))
	require.NoError(t, err)

	out, err := Encode(m)
	require.NoError(t, err)

	var want, got map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &want))
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, want, got)
}

func TestNewRequest_NewResult_NewErrorResponse(t *testing.T) {
	req, err := NewRequest(5, "initialize", map[string]int{"protocolVersion": 1})
	require.NoError(t, err)
	assert.Equal(t, KindRequest, req.Classify())

	id, ok := req.IDAsInt64()
	require.True(t, ok)
	assert.Equal(t, int64(5), id)

	resp, err := NewResult(req.ID, map[string]string{"ok": "yes"})
	require.NoError(t, err)
	assert.Equal(t, KindResponse, resp.Classify())

	errResp := NewErrorResponse(req.ID, -32601, "Method not found: x", map[string]string{"method": "x"})
	assert.Equal(t, KindResponse, errResp.Classify())
	assert.Equal(t, -32601, errResp.Error.Code)
}

func TestNewErrorResponse_NullIDForParseError(t *testing.T) {
	resp := NewErrorResponse(nil, -32700, "parse error", nil)
	require.NotNil(t, resp.ID)
	assert.Equal(t, "null", string(*resp.ID))
	assert.Equal(t, KindResponse, resp.Classify())
}

func TestNewNotification_HasNoID(t *testing.T) {
	n, err := NewNotification("session/cancel", map[string]string{"sessionId": "s1"})
	require.NoError(t, err)
	assert.Equal(t, KindNotification, n.Classify())
	assert.Nil(t, n.ID)
}

func TestIDAsInt64_NonNumeric(t *testing.T) {
	m, err := Parse([]byte(`{"jsonrpc":"2.0","id":"abc","method":"x"}`))
	require.NoError(t, err)
	_, ok := m.IDAsInt64()
	assert.False(t, ok)
}

func TestRawID(t *testing.T) {
	raw, err := RawID(int64(42))
	require.NoError(t, err)
	assert.Equal(t, "42", string(*raw))

	raw, err = RawID("s1")
	require.NoError(t, err)
	assert.Equal(t, `"s1"`, string(*raw))
}
