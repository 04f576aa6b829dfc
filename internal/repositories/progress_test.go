package repositories_test

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/orb/internal/repositories"
	"github.com/myrjola/orb/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func TestProgressRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repositories.NewProgressRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	progress, err := repo.Get(ctx, "player-1")
	require.NoError(t, err)
	require.Equal(t, []int{1}, progress.Unlocked)
	require.Empty(t, progress.Completed)
	require.True(t, progress.IsUnlocked(1))
	require.False(t, progress.IsUnlocked(2))

	require.NoError(t, repo.Complete(ctx, "player-1", 1, 2))
	// Completing twice keeps the state stable.
	require.NoError(t, repo.Complete(ctx, "player-1", 1, 2))

	progress, err = repo.Get(ctx, "player-1")
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, progress.Unlocked)
	require.Equal(t, []int{1}, progress.Completed)
	require.True(t, progress.IsUnlocked(2))
	require.False(t, progress.IsCompleted(2))

	// Solving the last level unlocks nothing new.
	require.NoError(t, repo.Complete(ctx, "player-1", 2, 0))
	progress, err = repo.Get(ctx, "player-1")
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, progress.Unlocked)
	require.Equal(t, []int{1, 2}, progress.Completed)

	other, err := repo.Get(ctx, "player-2")
	require.NoError(t, err)
	require.Equal(t, []int{1}, other.Unlocked)
}
