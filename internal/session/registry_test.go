package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acpcore/internal/acperrors"
)

func TestRegistry_CreateAssignsUniqueIDsAndDefaultMode(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Create(NewOptions{WorkingDirectory: "/w1"})
	b := r.Create(NewOptions{WorkingDirectory: "/w2"})

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "default", a.Mode)
	assert.Equal(t, "/w1", a.WorkingDirectory)
	assert.False(t, a.Cancelled())
}

func TestRegistry_LoadUnknownSessionFails(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Load("does-not-exist")
	require.Error(t, err)
	aerr, ok := err.(*acperrors.Error)
	require.True(t, ok)
	assert.Equal(t, acperrors.CodeSessionNotFound, aerr.Code)
}

func TestRegistry_LoadReturnsSameRecordCreated(t *testing.T) {
	r := NewRegistry(nil)
	created := r.Create(NewOptions{WorkingDirectory: "/w"})
	loaded, err := r.Load(created.ID)
	require.NoError(t, err)
	assert.Same(t, created, loaded)
}

func TestRegistry_Cancel(t *testing.T) {
	r := NewRegistry(nil)
	d := r.Create(NewOptions{WorkingDirectory: "/w"})
	require.NoError(t, r.Cancel(d.ID))
	assert.True(t, d.Cancelled())
}

func TestRegistry_Cancel_Idempotent(t *testing.T) {
	r := NewRegistry(nil)
	d := r.Create(NewOptions{WorkingDirectory: "/w"})
	require.NoError(t, r.Cancel(d.ID))
	require.NoError(t, r.Cancel(d.ID))
	assert.True(t, d.Cancelled())
}

func TestRegistry_Cancel_UnknownSessionFails(t *testing.T) {
	r := NewRegistry(nil)
	err := r.Cancel("nope")
	assert.Error(t, err)
}

func TestRegistry_TeardownAll_CancelsAndDropsSessions(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Create(NewOptions{WorkingDirectory: "/a"})
	b := r.Create(NewOptions{WorkingDirectory: "/b"})

	r.TeardownAll()

	assert.True(t, a.Cancelled())
	assert.True(t, b.Cancelled())
	assert.Empty(t, r.List())

	_, err := r.Load(a.ID)
	assert.Error(t, err)
}

func TestRegistry_Delete_OnlyRemovesOneSession(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Create(NewOptions{WorkingDirectory: "/a"})
	b := r.Create(NewOptions{WorkingDirectory: "/b"})

	r.Delete(a.ID)

	_, err := r.Load(a.ID)
	assert.Error(t, err)
	assert.False(t, b.Cancelled())
	_, err = r.Load(b.ID)
	assert.NoError(t, err)
}
