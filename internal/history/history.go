// Package history records which suggestion set each request was served.
package history

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/hookah/internal/hookah"
)

// Store is the append-only history store.
type Store interface {
	InsertHistory(ctx context.Context, e *hookah.HistoryEntry) error
	ListHistory(ctx context.Context, userID string) ([]hookah.HistoryRow, error)
}

// Recorder appends and lists history entries.
type Recorder struct {
	store Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// New creates a Recorder on store.
func New(store Store, log logrus.FieldLogger) *Recorder {
	return &Recorder{store: store, log: log, now: time.Now}
}

// Append records that userID was served the record stored under hash.
// Store errors are returned unchanged.
func (r *Recorder) Append(ctx context.Context, userID, hash string) (*hookah.HistoryEntry, error) {
	e := &hookah.HistoryEntry{
		ID:        hookah.NewID(),
		UserID:    userID,
		Hash:      hash,
		CreatedAt: r.now().Unix(),
	}
	if err := r.store.InsertHistory(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns userID's history newest first, joined with each record.
// Entries whose record no longer exists are skipped.
func (r *Recorder) List(ctx context.Context, userID string) ([]hookah.HistoryItem, error) {
	rows, err := r.store.ListHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]hookah.HistoryItem, 0, len(rows))
	for _, row := range rows {
		if row.Record == nil {
			r.log.WithFields(logrus.Fields{
				"user_id":    userID,
				"history_id": row.Entry.ID,
				"hash":       row.Entry.Hash,
			}).Warn("history entry references missing suggestion record")
			continue
		}
		items = append(items, hookah.HistoryItem{
			ID:          row.Entry.ID,
			CreatedAt:   row.Entry.CreatedAt,
			Preferences: row.Record.Preferences,
			Suggestions: row.Record.Suggestions,
			Analysis:    row.Record.Analysis,
		})
	}
	return items, nil
}
