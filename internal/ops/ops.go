// Package ops implements the suggestion and history operations.
package ops

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/hpungsan/hookah/internal/auth"
	"github.com/hpungsan/hookah/internal/errors"
	"github.com/hpungsan/hookah/internal/generate"
	"github.com/hpungsan/hookah/internal/hookah"
	"github.com/hpungsan/hookah/internal/ratelimit"
)

// SuggestionCache looks up and stores generated records by hash.
type SuggestionCache interface {
	Find(ctx context.Context, hash string) (*hookah.Record, error)
	Insert(ctx context.Context, hash string, prefs hookah.NormalizedPreferences, suggestions []hookah.Suggestion, analysis string) (*hookah.Record, error)
}

// Generator produces suggestions for normalized preferences.
type Generator interface {
	Generate(ctx context.Context, p hookah.NormalizedPreferences) (*generate.Payload, error)
}

// HistoryRecorder appends and lists per-user history.
type HistoryRecorder interface {
	Append(ctx context.Context, userID, hash string) (*hookah.HistoryEntry, error)
	List(ctx context.Context, userID string) ([]hookah.HistoryItem, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Verifier  auth.Verifier
	Limiter   ratelimit.Limiter
	Cache     SuggestionCache
	Generator Generator
	History   HistoryRecorder
	Log       logrus.FieldLogger

	// RetryAfter is reported to rate-limited callers.
	RetryAfter time.Duration
}

// Service runs the suggestion pipeline.
type Service struct {
	verifier   auth.Verifier
	limiter    ratelimit.Limiter
	cache      SuggestionCache
	generator  Generator
	history    HistoryRecorder
	log        logrus.FieldLogger
	retryAfter time.Duration

	// inflight coalesces concurrent misses for the same hash in this process.
	inflight singleflight.Group
}

// New creates a Service.
func New(d Deps) *Service {
	if d.RetryAfter <= 0 {
		d.RetryAfter = time.Minute
	}
	return &Service{
		verifier:   d.Verifier,
		limiter:    d.Limiter,
		cache:      d.Cache,
		generator:  d.Generator,
		history:    d.History,
		log:        d.Log,
		retryAfter: d.RetryAfter,
	}
}

// authenticate maps a token to a user id. Any failure is UNAUTHORIZED.
func (s *Service) authenticate(ctx context.Context, token string) (string, error) {
	userID, err := s.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, errors.ErrUnauthorized) {
			return "", err
		}
		return "", errors.NewUnauthorized("Invalid token", err)
	}
	return userID, nil
}
