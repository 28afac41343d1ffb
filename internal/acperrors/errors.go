// Package acperrors implements the ACP structured error taxonomy and its
// mapping to JSON-RPC error objects.
package acperrors

import (
	"errors"
	"fmt"
)

// Code is a signed JSON-RPC / ACP error code.
type Code int

// Standard JSON-RPC 2.0 codes.
const (
	CodeParseError     Code = -32700
	CodeInvalidRequest Code = -32600
	CodeMethodNotFound Code = -32601
	CodeInvalidParams  Code = -32602
	CodeInternal       Code = -32603
)

// ACP-specific codes.
const (
	CodeSessionNotFound       Code = -32000
	CodeAuthRequired          Code = -32001
	CodePermissionDenied      Code = -32002
	CodeCancelled             Code = -32003
	CodeResourceNotFound      Code = -32004
	CodeResourceAccessDenied Code = -32005
	CodeInvalidSessionState   Code = -32006
	CodeCapabilityNotSupported Code = -32007
	CodeRateLimited           Code = -32008
	CodeTimeout               Code = -32009
)

// Error is a structured ACP error: a numeric code, a human message, and
// optional arbitrary data. It implements the standard error interface; the
// engine copies Code, Message and Data unchanged onto the JSON-RPC error
// object it sends. No conversion from a received JSON-RPC error back to an
// Error is provided.
type Error struct {
	Code    Code
	Message string
	Data    any
}

func (e *Error) Error() string {
	return fmt.Sprintf("acp error %d: %s", e.Code, e.Message)
}

// New builds a structured error with optional data (the first extra
// argument, if any, becomes Data; any further arguments are ignored).
func New(code Code, message string, data ...any) *Error {
	e := &Error{Code: code, Message: message}
	if len(data) > 0 {
		e.Data = data[0]
	}
	return e
}

// Constructors for the named ACP error kinds, one per row of spec §7.

func ParseError(msg string) *Error { return New(CodeParseError, msg) }

func InvalidRequest(msg string) *Error { return New(CodeInvalidRequest, msg) }

// MethodNotFound carries data.method per the tested scenario in spec §8.
func MethodNotFound(method string) *Error {
	return New(CodeMethodNotFound, "Method not found: "+method, map[string]string{"method": method})
}

func InvalidParams(msg string) *Error { return New(CodeInvalidParams, msg) }

// Internal wraps an unclassified failure; message text is mandatory.
func Internal(msg string) *Error { return New(CodeInternal, msg) }

func SessionNotFound(sessionID string) *Error {
	return New(CodeSessionNotFound, "session not found: "+sessionID, map[string]string{"sessionId": sessionID})
}

func AuthRequired(msg string) *Error { return New(CodeAuthRequired, msg) }

func PermissionDenied(msg string) *Error { return New(CodePermissionDenied, msg) }

func Cancelled() *Error { return New(CodeCancelled, "operation cancelled") }

func ResourceNotFound(msg string) *Error { return New(CodeResourceNotFound, msg) }

func ResourceAccessDenied(msg string) *Error { return New(CodeResourceAccessDenied, msg) }

func InvalidSessionState(msg string) *Error { return New(CodeInvalidSessionState, msg) }

func CapabilityNotSupported(capability string) *Error {
	return New(CodeCapabilityNotSupported, "capability not supported: "+capability, map[string]string{"capability": capability})
}

// RateLimited optionally carries a retryAfter (seconds).
func RateLimited(retryAfterSeconds int) *Error {
	var data any
	if retryAfterSeconds > 0 {
		data = map[string]int{"retryAfter": retryAfterSeconds}
	}
	return &Error{Code: CodeRateLimited, Message: "rate limited", Data: data}
}

func Timeout(msg string) *Error { return New(CodeTimeout, msg) }

// IsCancelled reports whether err is (or wraps) a cancellation error.
func IsCancelled(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeCancelled
}

// Classify wraps any plain (unclassified) error as Internal,
// leaving *Error values untouched so handler-thrown structured errors pass
// through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return Internal(err.Error())
}
