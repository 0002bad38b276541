package ops

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/hookah/internal/errors"
	"github.com/hpungsan/hookah/internal/hookah"
	"github.com/hpungsan/hookah/internal/metrics"
)

// SuggestInput contains parameters for the Suggest operation.
type SuggestInput struct {
	Token       string
	Preferences hookah.Preferences

	// BodyErr is set by adapters whose request body failed to decode.
	// It is reported as INVALID_REQUEST after authentication and admission.
	BodyErr error
}

// SuggestOutput contains the result of the Suggest operation.
type SuggestOutput struct {
	Suggestions []hookah.Suggestion `json:"suggestions"`
	Analysis    string              `json:"analysis"`
	UserName    string              `json:"userName"`

	// Hash is the cache key the result is stored under.
	Hash string `json:"-"`

	// Cached is true when the result came from the store without generation.
	Cached bool `json:"-"`
}

// Suggest authenticates, rate limits and validates the request, then serves
// suggestions from the cache or generates and caches them. Every success
// appends a history entry; a failed history write is logged, not returned.
func (s *Service) Suggest(ctx context.Context, input SuggestInput) (*SuggestOutput, error) {
	userID, err := s.authenticate(ctx, input.Token)
	if err != nil {
		return nil, err
	}

	if !s.limiter.Admit(ctx, userID) {
		metrics.RateLimitRejects.Inc()
		s.log.WithField("user_id", userID).Info("rate limit exceeded")
		return nil, errors.NewRateLimited(int(s.retryAfter.Seconds()))
	}

	if input.BodyErr != nil {
		return nil, errors.NewInvalidRequest("Invalid request body")
	}
	if !hookah.HasPreference(input.Preferences) {
		return nil, errors.NewInvalidRequest("Please select at least one preference")
	}

	prefs, hash := hookah.Normalize(input.Preferences)

	cached := true
	record, err := s.cache.Find(ctx, hash)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		cached = false
		record, err = s.generateAndStore(ctx, prefs, hash)
		if err != nil {
			return nil, err
		}
	}

	if _, err := s.history.Append(ctx, userID, record.Hash); err != nil {
		metrics.HistoryWriteFailures.Inc()
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"hash":    record.Hash,
		}).Error("history write failed; entry lost")
	}

	return &SuggestOutput{
		Suggestions: record.Suggestions,
		Analysis:    record.Analysis,
		UserName:    input.Preferences.Name,
		Hash:        record.Hash,
		Cached:      cached,
	}, nil
}

// generateAndStore runs one generation per hash at a time within this process.
// Cross-process duplicates are resolved by the cache's insert. The flight is
// shared by every waiting caller, so it runs detached from any one caller's
// cancellation; the retry budget bounds it.
func (s *Service) generateAndStore(ctx context.Context, prefs hookah.NormalizedPreferences, hash string) (*hookah.Record, error) {
	ctx = context.WithoutCancel(ctx)
	v, err, _ := s.inflight.Do(hash, func() (any, error) {
		payload, err := s.generator.Generate(ctx, prefs)
		if err != nil {
			return nil, err
		}
		return s.cache.Insert(ctx, hash, prefs, payload.Suggestions, payload.Analysis)
	})
	if err != nil {
		return nil, err
	}
	return v.(*hookah.Record), nil
}
