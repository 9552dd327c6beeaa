package redis_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/dkeye/chatrelay/internal/adapters/store/redis"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only against a real server: CHAT_TEST_REDIS_ADDR=localhost:6379
func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("CHAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHAT_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	st, err := redis.Open(ctx, redis.Config{Addr: addr, MaxLen: 1000})
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	room := domain.RoomID("test-" + uuid.NewString()[:8])
	ok, err := st.Exists(ctx, room)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = st.Append(ctx, room, "alice", "too early")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	require.NoError(t, st.EnsureRoom(ctx, domain.Room{ID: room}))
	for i := 0; i < 5; i++ {
		_, err := st.Append(ctx, room, "alice", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	_, err = st.Append(ctx, room, "", "anon")
	require.NoError(t, err)

	got, err := st.Recent(ctx, room, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "m3", got[0].Content)
	assert.Equal(t, "anon", got[2].Content)
	assert.Nil(t, got[2].SentByID)
	assert.True(t, got[0].Before(got[1]))

	empty, err := st.Recent(ctx, "never-used-"+room, 50)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
