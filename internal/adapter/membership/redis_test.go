package membership

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, DefaultKeys(), 0), srv
}

func TestRedisStoreMembership(t *testing.T) {
	ctx := context.Background()
	s, srv := newRedisStore(t)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }

	ok, err := s.IsMember(ctx, "7", "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.AddMember(ctx, "7", "alice"))
	require.NoError(t, s.AddMember(ctx, "7", "alice"))
	require.NoError(t, s.AddMember(ctx, "7", "bob"))

	ok, err = s.IsMember(ctx, "7", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	members, err := s.Members(ctx, "7")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, members)

	assert.Equal(t, "1700000000000", srv.HGet("user:alice:room", "7"))

	rooms, err := s.UserRooms(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, rooms)
}

func TestRedisStoreTouch(t *testing.T) {
	ctx := context.Background()
	s, srv := newRedisStore(t)

	// Users without an index stay without one.
	require.NoError(t, s.Touch(ctx, "ghost"))
	assert.False(t, srv.Exists("user:ghost:room"))

	require.NoError(t, s.AddMember(ctx, "7", "alice"))
	assert.Zero(t, srv.TTL("user:alice:room"))

	require.NoError(t, s.Touch(ctx, "alice"))
	assert.Equal(t, DefaultUserRoomsTTL, srv.TTL("user:alice:room"))

	srv.FastForward(DefaultUserRoomsTTL + time.Second)
	rooms, err := s.UserRooms(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, rooms)
}
