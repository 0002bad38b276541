package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hookah/internal/hookah"
)

// TestFullWorkflow: user U misses and generates; user V asks for the same
// tastes in a different order, hits the cache and shares the record.
func TestFullWorkflow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 1. U misses, generation runs, record is stored under H
	outU, err := env.svc.Suggest(ctx, SuggestInput{
		Token:       env.token(t, "U"),
		Preferences: hookah.Preferences{Name: "Uma", Tastes: []string{"mint", "citrus"}, Intensity: "medium"},
	})
	require.NoError(t, err)
	require.False(t, outU.Cached)
	require.Len(t, outU.Suggestions, 3)
	require.Equal(t, "Uma", outU.UserName)
	require.Equal(t, int32(1), env.gen.calls.Load())

	_, hash := hookah.Normalize(hookah.Preferences{Tastes: []string{"citrus", "mint"}, Intensity: "medium"})
	require.Equal(t, hash, outU.Hash)

	record, err := env.store.GetSuggestion(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, []string{"citrus", "mint"}, record.Preferences.Tastes)

	// 2. V hits H, no second generation
	outV, err := env.svc.Suggest(ctx, SuggestInput{
		Token:       env.token(t, "V"),
		Preferences: hookah.Preferences{Name: "Vic", Tastes: []string{"citrus", "mint"}, Intensity: "medium"},
	})
	require.NoError(t, err)
	require.True(t, outV.Cached)
	require.Equal(t, hash, outV.Hash)
	require.Equal(t, "Vic", outV.UserName)
	require.Equal(t, outU.Suggestions, outV.Suggestions)
	require.Equal(t, int32(1), env.gen.calls.Load())

	// 3. Each user has one history entry referencing the same record
	for _, user := range []string{"U", "V"} {
		rows, err := env.store.ListHistory(ctx, user)
		require.NoError(t, err)
		require.Len(t, rows, 1, "user %s", user)
		require.Equal(t, hash, rows[0].Entry.Hash)
		require.NotNil(t, rows[0].Record)
		require.Equal(t, record.ID, rows[0].Record.ID)
	}

	// 4. History operation returns the joined record
	hist, err := env.svc.History(ctx, HistoryInput{Token: env.token(t, "V")})
	require.NoError(t, err)
	require.Len(t, hist.History, 1)
	require.Equal(t, record.Analysis, hist.History[0].Analysis)
	require.Equal(t, outU.Suggestions, hist.History[0].Suggestions)
}
