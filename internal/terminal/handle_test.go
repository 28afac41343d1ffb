package terminal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller records which reverse RPCs were issued; it never populates
// result fields, which is enough to exercise the released-state gate
// without a real transport.
type fakeCaller struct {
	calls []string
}

func newFakeCaller() *fakeCaller { return &fakeCaller{} }

func (f *fakeCaller) Call(_ context.Context, method string, _ any, _ any) error {
	f.calls = append(f.calls, method)
	return nil
}

func TestHandle_OperationsDelegateToCaller(t *testing.T) {
	caller := newFakeCaller()
	h := NewHandle("s1", "t1", caller)

	_, err := h.Output(context.Background())
	require.NoError(t, err)
	assert.Contains(t, caller.calls, "terminal/output")

	_, err = h.WaitForExit(context.Background(), 0)
	require.NoError(t, err)
	assert.Contains(t, caller.calls, "terminal/wait_for_exit")

	require.NoError(t, h.Kill(context.Background(), ""))
	assert.Contains(t, caller.calls, "terminal/kill")
}

func TestHandle_ReleasedStateRejectsAllOperations(t *testing.T) {
	caller := newFakeCaller()
	h := NewHandle("s1", "t1", caller)

	require.NoError(t, h.Release(context.Background()))

	_, err := h.Output(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "t1")
	assert.Contains(t, err.Error(), "released")

	_, err = h.WaitForExit(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "released")

	err = h.Kill(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "released")
}

func TestHandle_ReleaseIsIdempotent(t *testing.T) {
	caller := newFakeCaller()
	h := NewHandle("s1", "t1", caller)

	require.NoError(t, h.Release(context.Background()))
	require.NoError(t, h.Release(context.Background()))

	releaseCalls := 0
	for _, c := range caller.calls {
		if c == "terminal/release" {
			releaseCalls++
		}
	}
	assert.Equal(t, 1, releaseCalls, "second Release must not re-issue the RPC")
}

func TestHandle_KillDefaultsToSIGTERM(t *testing.T) {
	caller := newFakeCaller()
	h := NewHandle("s1", "t1", caller)
	require.NoError(t, h.Kill(context.Background(), ""))
	assert.Contains(t, caller.calls, "terminal/kill")
}
