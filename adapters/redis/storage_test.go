package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listenquest/core"
)

// newTestClient spins up a miniredis server and returns a client plus cleanup.
func newTestClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return client, cleanup
}

func TestStore_LoadAbsent(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	_, found, err := store.Load(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()

	st := core.NewState("alice", time.Now().UTC())
	st.Experience = 1200
	st.FocusPoints = 340
	st.TotalFocusPointsEarned = 6340
	st.Achievements["hour_one"] = struct{}{}
	st.ActivityMinutes["deep_focus"] = 42
	require.NoError(t, store.Save(ctx, "alice", st))

	got, found, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1200), got.Experience)
	assert.Equal(t, int64(340), got.FocusPoints)
	assert.Contains(t, got.Achievements, core.AchievementID("hour_one"))
	assert.Equal(t, int64(42), got.ActivityMinutes["deep_focus"])
}

func TestStore_SaveUpdatesLeaderboard(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	ctx := context.Background()
	now := time.Now().UTC()

	alice := core.NewState("alice", now)
	alice.TotalFocusPointsEarned = 5000
	require.NoError(t, store.Save(ctx, "alice", alice))

	bob := core.NewState("bob", now)
	bob.TotalFocusPointsEarned = 9000
	require.NoError(t, store.Save(ctx, "bob", bob))

	top, err := store.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, core.PlayerID("bob"), top[0].Player)
	assert.Equal(t, int64(9000), top[0].Score)
	assert.Equal(t, core.PlayerID("alice"), top[1].Player)

	// Re-saving with a higher lifetime total moves the entry, not duplicates it.
	alice.TotalFocusPointsEarned = 12000
	require.NoError(t, store.Save(ctx, "alice", alice))
	top, err = store.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, core.PlayerID("alice"), top[0].Player)
}

func TestStore_TopZero(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client)
	top, err := store.Top(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, top)
}
