package tilestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestClaimTileIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.ClaimTile(ctx, "svc", "alice", 4, [2]int{0, 1}, [2]int{0, 1})
	require.NoError(t, err)

	second, err := store.ClaimTile(ctx, "svc", "alice", 4, [2]int{0, 1}, [2]int{0, 1})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestClaimTileExhaustsGrid(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// A 1x1 grid has exactly one candidate tile.
	_, err := store.ClaimTile(ctx, "svc", "alice", 4, [2]int{0, 0}, [2]int{0, 0})
	require.NoError(t, err)

	_, err = store.ClaimTile(ctx, "svc", "bob", 4, [2]int{0, 0}, [2]int{0, 0})
	require.Error(t, err)
}

func TestReleaseThenClaimAgain(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	claimed, err := store.ClaimTile(ctx, "svc", "alice", 4, [2]int{0, 0}, [2]int{0, 0})
	require.NoError(t, err)

	released, err := store.ReleaseTile(ctx, "svc", "alice")
	require.NoError(t, err)
	require.Equal(t, "released", released.Stage)
	require.Equal(t, claimed.X, released.X)

	_, ok, err := store.GetUserTile(ctx, "svc", "alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSubmitThenReleaseIsLocked(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.ClaimTile(ctx, "svc", "alice", 4, [2]int{0, 0}, [2]int{0, 0})
	require.NoError(t, err)

	submitted, err := store.SubmitTile(ctx, "svc", "alice")
	require.NoError(t, err)
	require.Equal(t, "submitted", submitted.Stage)

	_, err = store.ReleaseTile(ctx, "svc", "alice")
	require.Error(t, err)
}

func TestReleaseWithoutClaimIsNotAssigned(t *testing.T) {
	store := openTestStore(t)
	_, err := store.ReleaseTile(context.Background(), "svc", "ghost")
	require.Error(t, err)
}

func TestUpdateTileMergesData(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	claimed, err := store.ClaimTile(ctx, "svc", "alice", 4, [2]int{0, 0}, [2]int{0, 0})
	require.NoError(t, err)
	require.Equal(t, "claimed", claimed.Stage)

	updated, err := store.UpdateTile(ctx, "svc", "alice", map[string]any{"note": "first pass"})
	require.NoError(t, err)
	require.Equal(t, "claimed", updated.Stage)
	require.Equal(t, "first pass", updated.Data["note"])

	merged, err := store.UpdateTile(ctx, "svc", "alice", map[string]any{"reviewed": true})
	require.NoError(t, err)
	require.Equal(t, "first pass", merged.Data["note"])
	require.Equal(t, true, merged.Data["reviewed"])

	fromDB, ok, err := store.GetUserTile(ctx, "svc", "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first pass", fromDB.Data["note"])
	require.Equal(t, true, fromDB.Data["reviewed"])
}

func TestUpdateTileWithoutClaimIsNotAssigned(t *testing.T) {
	store := openTestStore(t)
	_, err := store.UpdateTile(context.Background(), "svc", "ghost", map[string]any{"x": 1})
	require.Error(t, err)
}

func TestClaimTileSkipsOtherUsersClaims(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Fill every candidate but one in a 2x2 grid, then confirm the last
	// remaining coordinate is still reachable (each claim's candidate set
	// excludes the tiles already assigned to other users), and that a fifth
	// claimant finds no tile left.
	_, err := store.ClaimTile(ctx, "svc", "u1", 4, [2]int{0, 1}, [2]int{0, 1})
	require.NoError(t, err)
	_, err = store.ClaimTile(ctx, "svc", "u2", 4, [2]int{0, 1}, [2]int{0, 1})
	require.NoError(t, err)
	_, err = store.ClaimTile(ctx, "svc", "u3", 4, [2]int{0, 1}, [2]int{0, 1})
	require.NoError(t, err)

	last, err := store.ClaimTile(ctx, "svc", "u4", 4, [2]int{0, 1}, [2]int{0, 1})
	require.NoError(t, err)
	require.Equal(t, "claimed", last.Stage)

	_, err = store.ClaimTile(ctx, "svc", "u5", 4, [2]int{0, 1}, [2]int{0, 1})
	require.Error(t, err)
}

func TestForceReleaseByCoordinates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	claimed, err := store.ClaimTile(ctx, "svc", "alice", 4, [2]int{0, 0}, [2]int{0, 0})
	require.NoError(t, err)

	released, err := store.ForceReleaseTile(ctx, "svc", claimed.X, claimed.Y, claimed.Z)
	require.NoError(t, err)
	require.Equal(t, "released", released.Stage)

	_, ok, err := store.GetUserTile(ctx, "svc", "alice")
	require.NoError(t, err)
	require.False(t, ok)
}
