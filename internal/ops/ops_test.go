package ops

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hookah/internal/auth"
	"github.com/hpungsan/hookah/internal/cache"
	"github.com/hpungsan/hookah/internal/db"
	"github.com/hpungsan/hookah/internal/errors"
	"github.com/hpungsan/hookah/internal/generate"
	"github.com/hpungsan/hookah/internal/history"
	"github.com/hpungsan/hookah/internal/hookah"
	"github.com/hpungsan/hookah/internal/logging"
	"github.com/hpungsan/hookah/internal/ratelimit"
)

const testSecret = "test-secret"

var threeSuggestions = []hookah.Suggestion{
	{Name: "Citrus Chill", Ingredients: []string{"lemon", "mint"}, Reasoning: "Bright."},
	{Name: "Orange Breeze", Ingredients: []string{"orange", "mint", "ice"}, Reasoning: "Fresh."},
	{Name: "Lime Garden", Ingredients: []string{"lime", "basil", "mint"}, Reasoning: "Herbal."},
}

// fakeGenerator counts calls and returns a fixed payload or error.
// When honorCtx is set it fails once ctx is done, like a retry loop checking between attempts.
type fakeGenerator struct {
	calls    atomic.Int32
	err      error
	release  chan struct{}
	honorCtx bool
}

func (g *fakeGenerator) Generate(ctx context.Context, _ hookah.NormalizedPreferences) (*generate.Payload, error) {
	g.calls.Add(1)
	if g.release != nil {
		<-g.release
	}
	if g.honorCtx && ctx.Err() != nil {
		return nil, errors.NewGenerationFailed(1, ctx.Err())
	}
	if g.err != nil {
		return nil, g.err
	}
	return &generate.Payload{Suggestions: threeSuggestions, Analysis: "You enjoy fresh, citrus-forward mixes."}, nil
}

// spyCache counts lookups on top of a real cache.
type spyCache struct {
	SuggestionCache
	finds atomic.Int32
}

func (s *spyCache) Find(ctx context.Context, hash string) (*hookah.Record, error) {
	s.finds.Add(1)
	return s.SuggestionCache.Find(ctx, hash)
}

// failingHistory fails every append.
type failingHistory struct {
	HistoryRecorder
}

func (failingHistory) Append(context.Context, string, string) (*hookah.HistoryEntry, error) {
	return nil, fmt.Errorf("history store down")
}

type testEnv struct {
	svc      *Service
	gen      *fakeGenerator
	cache    *spyCache
	store    *db.Store
	recorder *history.Recorder
	signer   *auth.JWTVerifier
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	sqlDB, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store := db.NewStore(sqlDB)
	log := logging.Discard()
	env := &testEnv{
		gen:      &fakeGenerator{},
		cache:    &spyCache{SuggestionCache: cache.New(store, log)},
		store:    store,
		recorder: history.New(store, log),
		signer:   auth.NewJWTVerifier(testSecret),
	}

	deps := Deps{
		Verifier:   env.signer,
		Limiter:    ratelimit.NewFixedWindow(10, time.Minute),
		Cache:      env.cache,
		Generator:  env.gen,
		History:    env.recorder,
		Log:        log,
		RetryAfter: time.Minute,
	}
	for _, m := range mutate {
		m(&deps)
	}
	env.svc = New(deps)
	return env
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.signer.Sign(userID, time.Hour)
	require.NoError(t, err)
	return tok
}
