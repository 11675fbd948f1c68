package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeemasters/authcore/core"
)

func TestMemorySessionsPutGet(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "s1", "acct-1", time.Minute))

	accountID, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", accountID)
}

func TestMemorySessionsGetAbsent(t *testing.T) {
	s := NewMemorySessionStore()

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestMemorySessionsExpiry(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "s1", "acct-1", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := s.Get(ctx, "s1")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestMemorySessionsDeleteIdempotent(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "s1", "acct-1", time.Minute))
	require.NoError(t, s.Delete(ctx, "s1"))

	_, err := s.Get(ctx, "s1")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	assert.NoError(t, s.Delete(ctx, "s1"))
	assert.NoError(t, s.Delete(ctx, "never-existed"))
}
