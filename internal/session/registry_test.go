package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateOverwrites(t *testing.T) {
	r := NewRegistry(nil)

	first := r.Create("s1", "conn-a")
	second := r.Create("s1", "conn-b")

	assert.Equal(t, 1, r.Count(), "same id must not create a second entry")
	assert.Equal(t, "conn-a", first.ConnectionID)
	assert.Equal(t, "conn-b", second.ConnectionID)

	got, ok := r.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "conn-b", got.ConnectionID, "overwrite must win")
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry(nil)

	_, ok := r.Get("nope")
	assert.False(t, ok)
}

func TestRegistry_RemoveIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("s1", "")

	assert.True(t, r.Remove("s1"), "first remove reports removal")
	assert.False(t, r.Remove("s1"), "second remove is a no-op")
	assert.False(t, r.Remove("never-existed"))
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("b", "")
	r.Create("a", "")
	r.Create("c", "")

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "c", list[2].ID)
}

func TestRegistry_RegisterCancelOnMissingSession(t *testing.T) {
	r := NewRegistry(nil)

	// Must be silently ignored.
	gen := r.RegisterCancel("ghost", func(context.Context) error { return nil })
	assert.Zero(t, gen)

	cancelled, err := r.Cancel(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestRegistry_CancelIdleSession(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("s1", "")

	cancelled, err := r.Cancel(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, cancelled, "idle session has nothing to cancel")
}

func TestRegistry_CancelInvokesHandleOnce(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("s1", "")

	calls := 0
	r.RegisterCancel("s1", func(context.Context) error {
		calls++
		return nil
	})

	sess, ok := r.Get("s1")
	require.True(t, ok)
	assert.True(t, sess.Active)

	cancelled, err := r.Cancel(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.Equal(t, 1, calls)

	// Handle is disarmed until a new operation registers one.
	cancelled, err = r.Cancel(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, 1, calls)

	sess, ok = r.Get("s1")
	require.True(t, ok)
	assert.False(t, sess.Active)
}

func TestRegistry_CancelErrorDoesNotCorruptState(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("s1", "")

	boom := errors.New("admin connection refused")
	r.RegisterCancel("s1", func(context.Context) error { return boom })

	cancelled, err := r.Cancel(context.Background(), "s1")
	assert.True(t, cancelled, "a live operation existed")
	assert.ErrorIs(t, err, boom)

	// Entry is still present and considered cancel-attempted.
	_, ok := r.Get("s1")
	assert.True(t, ok)

	cancelled, err = r.Cancel(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestRegistry_StaleClearCancelKeepsNewHandle(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("s1", "")

	var secondCalled bool
	first := r.RegisterCancel("s1", func(context.Context) error { return nil })
	second := r.RegisterCancel("s1", func(context.Context) error { secondCalled = true; return nil })
	require.NotEqual(t, first, second)

	// A finished run clearing up after itself must not disarm the handle a
	// newer run has since registered.
	r.ClearCancel("s1", first)

	cancelled, err := r.Cancel(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.True(t, secondCalled)
}

func TestRegistry_ClearCancelWithCurrentToken(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("s1", "")

	gen := r.RegisterCancel("s1", func(context.Context) error { return nil })
	r.ClearCancel("s1", gen)

	cancelled, err := r.Cancel(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, cancelled, "the current token disarms the handle")

	sess, ok := r.Get("s1")
	require.True(t, ok)
	assert.False(t, sess.Active)
}

func TestRegistry_RegisterCancelReplacesHandle(t *testing.T) {
	r := NewRegistry(nil)
	r.Create("s1", "")

	var firstCalled, secondCalled bool
	r.RegisterCancel("s1", func(context.Context) error { firstCalled = true; return nil })
	r.RegisterCancel("s1", func(context.Context) error { secondCalled = true; return nil })

	cancelled, err := r.Cancel(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.False(t, firstCalled, "replaced handle must never fire")
	assert.True(t, secondCalled)
}
