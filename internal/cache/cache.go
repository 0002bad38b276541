// Package cache stores generated suggestion sets by preference hash.
package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/hookah/internal/errors"
	"github.com/hpungsan/hookah/internal/hookah"
	"github.com/hpungsan/hookah/internal/metrics"
)

// Store is the document store behind the cache.
// InsertSuggestion must return ALREADY_EXISTS when a record with the same
// hash is present; the cache has no locking of its own.
type Store interface {
	GetSuggestion(ctx context.Context, hash string) (*hookah.Record, error)
	InsertSuggestion(ctx context.Context, r *hookah.Record) error
}

// Cache is the suggestion cache.
type Cache struct {
	store Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// New creates a Cache on store.
func New(store Store, log logrus.FieldLogger) *Cache {
	return &Cache{store: store, log: log, now: time.Now}
}

// Find returns the record for hash, or a NOT_FOUND error.
func (c *Cache) Find(ctx context.Context, hash string) (*hookah.Record, error) {
	r, err := c.store.GetSuggestion(ctx, hash)
	switch {
	case err == nil:
		metrics.CacheLookups.WithLabelValues(metrics.CacheHit).Inc()
		return r, nil
	case errors.Is(err, errors.ErrNotFound):
		metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
		return nil, err
	default:
		return nil, err
	}
}

// Insert stores a new record for hash and returns the authoritative record.
// If another writer stored hash first, its record is fetched and returned
// instead, so every caller ends up with the same record.
func (c *Cache) Insert(ctx context.Context, hash string, prefs hookah.NormalizedPreferences, suggestions []hookah.Suggestion, analysis string) (*hookah.Record, error) {
	r := &hookah.Record{
		ID:          hookah.NewID(),
		Hash:        hash,
		Preferences: prefs,
		Suggestions: suggestions,
		Analysis:    analysis,
		CreatedAt:   c.now().Unix(),
	}

	err := c.store.InsertSuggestion(ctx, r)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, errors.ErrAlreadyExists) {
		return nil, err
	}

	c.log.WithField("hash", hash).Info("suggestion insert lost race, using existing record")
	winner, err := c.store.GetSuggestion(ctx, hash)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			// The winner vanished between insert and fetch; only external cleanup does that.
			return nil, errors.NewStoreFailure("refetch suggestion", err)
		}
		return nil, err
	}
	return winner, nil
}
