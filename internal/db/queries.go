package db

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/hpungsan/hookah/internal/errors"
	"github.com/hpungsan/hookah/internal/hookah"
)

// Store is the SQLite document store for suggestion records and history.
type Store struct {
	db *sql.DB
}

// NewStore wraps an initialized database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// GetSuggestion returns the record stored under hash, or NOT_FOUND.
func (s *Store) GetSuggestion(ctx context.Context, hash string) (*hookah.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT hash, id, preferences_json, suggestions_json, analysis, created_at
		FROM suggestions
		WHERE hash = ?
	`, hash)

	var (
		r        hookah.Record
		prefJSON string
		sugJSON  string
	)
	if err := row.Scan(&r.Hash, &r.ID, &prefJSON, &sugJSON, &r.Analysis, &r.CreatedAt); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound(hash)
		}
		return nil, errors.NewStoreFailure("get suggestion", err)
	}
	if err := decodeRecord(&r, prefJSON, sugJSON); err != nil {
		return nil, errors.NewStoreFailure("decode suggestion", err)
	}
	return &r, nil
}

// InsertSuggestion stores r. A record already stored under r.Hash yields ALREADY_EXISTS.
func (s *Store) InsertSuggestion(ctx context.Context, r *hookah.Record) error {
	prefJSON, sugJSON, err := encodeRecord(r)
	if err != nil {
		return errors.NewInternal(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO suggestions (hash, id, preferences_json, suggestions_json, analysis, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.Hash, r.ID, prefJSON, sugJSON, r.Analysis, r.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewAlreadyExists(r.Hash)
		}
		return errors.NewStoreFailure("insert suggestion", err)
	}
	return nil
}

// InsertHistory appends e. History has no uniqueness beyond its id.
func (s *Store) InsertHistory(ctx context.Context, e *hookah.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (id, user_id, suggestion_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, e.ID, e.UserID, e.Hash, e.CreatedAt)
	if err != nil {
		return errors.NewStoreFailure("insert history", err)
	}
	return nil
}

// ListHistory returns userID's entries newest first, each with its record.
// Record is nil when the referenced suggestion row is missing.
func (s *Store) ListHistory(ctx context.Context, userID string) ([]hookah.HistoryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.user_id, h.suggestion_hash, h.created_at,
			s.id, s.preferences_json, s.suggestions_json, s.analysis, s.created_at
		FROM history h
		LEFT JOIN suggestions s ON s.hash = h.suggestion_hash
		WHERE h.user_id = ?
		ORDER BY h.created_at DESC, h.id DESC
	`, userID)
	if err != nil {
		return nil, errors.NewStoreFailure("list history", err)
	}
	defer rows.Close()

	var out []hookah.HistoryRow
	for rows.Next() {
		var (
			e         hookah.HistoryEntry
			recID     sql.NullString
			prefJSON  sql.NullString
			sugJSON   sql.NullString
			analysis  sql.NullString
			createdAt sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Hash, &e.CreatedAt,
			&recID, &prefJSON, &sugJSON, &analysis, &createdAt); err != nil {
			return nil, errors.NewStoreFailure("scan history", err)
		}

		row := hookah.HistoryRow{Entry: e}
		if recID.Valid {
			r := &hookah.Record{
				ID:        recID.String,
				Hash:      e.Hash,
				Analysis:  analysis.String,
				CreatedAt: createdAt.Int64,
			}
			if err := decodeRecord(r, prefJSON.String, sugJSON.String); err != nil {
				return nil, errors.NewStoreFailure("decode history", err)
			}
			row.Record = r
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreFailure("list history", err)
	}
	return out, nil
}

func encodeRecord(r *hookah.Record) (string, string, error) {
	prefJSON, err := json.Marshal(r.Preferences)
	if err != nil {
		return "", "", err
	}
	sugJSON, err := json.Marshal(r.Suggestions)
	if err != nil {
		return "", "", err
	}
	return string(prefJSON), string(sugJSON), nil
}

func decodeRecord(r *hookah.Record, prefJSON, sugJSON string) error {
	if err := json.Unmarshal([]byte(prefJSON), &r.Preferences); err != nil {
		return err
	}
	return json.Unmarshal([]byte(sugJSON), &r.Suggestions)
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite reports "UNIQUE constraint failed: ..." for both UNIQUE and PRIMARY KEY
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
