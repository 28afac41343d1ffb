package acperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodNotFound_CarriesMethodData(t *testing.T) {
	err := MethodNotFound("no/such")
	assert.Equal(t, CodeMethodNotFound, err.Code)
	assert.Equal(t, "Method not found: no/such", err.Message)
	data, ok := err.Data.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "no/such", data["method"])
}

func TestClassify(t *testing.T) {
	structured := SessionNotFound("s1")
	assert.Same(t, structured, Classify(structured))

	plain := errors.New("boom")
	classified := Classify(plain)
	assert.Equal(t, CodeInternal, classified.Code)
	assert.Equal(t, "boom", classified.Message)

	assert.Nil(t, Classify(nil))
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(Cancelled()))
	assert.False(t, IsCancelled(Internal("nope")))
	assert.False(t, IsCancelled(errors.New("plain")))
}

func TestRateLimited_OptionalRetryAfter(t *testing.T) {
	withRetry := RateLimited(30)
	data, ok := withRetry.Data.(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 30, data["retryAfter"])

	noRetry := RateLimited(0)
	assert.Nil(t, noRetry.Data)
}

func TestErrorImplementsErrorInterface(t *testing.T) {
	var err error = Internal("oops")
	assert.Contains(t, err.Error(), "oops")
	assert.Contains(t, err.Error(), "-32603")
}

func TestAllCodesMatchSpecTable(t *testing.T) {
	cases := map[Code]*Error{
		CodeParseError:             ParseError("x"),
		CodeInvalidRequest:         InvalidRequest("x"),
		CodeMethodNotFound:         MethodNotFound("x"),
		CodeInvalidParams:          InvalidParams("x"),
		CodeInternal:               Internal("x"),
		CodeSessionNotFound:        SessionNotFound("x"),
		CodeAuthRequired:           AuthRequired("x"),
		CodePermissionDenied:       PermissionDenied("x"),
		CodeCancelled:              Cancelled(),
		CodeResourceNotFound:       ResourceNotFound("x"),
		CodeResourceAccessDenied:   ResourceAccessDenied("x"),
		CodeInvalidSessionState:    InvalidSessionState("x"),
		CodeCapabilityNotSupported: CapabilityNotSupported("x"),
		CodeRateLimited:            RateLimited(1),
		CodeTimeout:                Timeout("x"),
	}
	for code, err := range cases {
		assert.Equal(t, code, err.Code)
	}
}
