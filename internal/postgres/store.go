// Package postgres is the PostgreSQL document store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hpungsan/hookah/internal/config"
	"github.com/hpungsan/hookah/internal/errors"
	"github.com/hpungsan/hookah/internal/hookah"
)

// uniqueViolation is the SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS suggestions (
		hash             TEXT PRIMARY KEY,
		id               TEXT NOT NULL,
		preferences_json JSONB NOT NULL,
		suggestions_json JSONB NOT NULL,
		analysis         TEXT NOT NULL,
		created_at       BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS history (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		suggestion_hash TEXT NOT NULL,
		created_at      BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_user_created ON history (user_id, created_at DESC)`,
}

// Store implements the suggestion and history stores on PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn, applies migrations and returns a Store.
func Open(ctx context.Context, dsn string, cfg *config.Config) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.NewStoreFailure("connect", err)
	}
	if cfg != nil {
		if cfg.DBMaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		}
		if cfg.DBMaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.DBMaxIdleConns)
		}
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.NewStoreFailure("migrate", err)
		}
	}
	return nil
}

type suggestionRow struct {
	Hash            string `db:"hash"`
	ID              string `db:"id"`
	PreferencesJSON []byte `db:"preferences_json"`
	SuggestionsJSON []byte `db:"suggestions_json"`
	Analysis        string `db:"analysis"`
	CreatedAt       int64  `db:"created_at"`
}

type historyRow struct {
	ID              string         `db:"id"`
	UserID          string         `db:"user_id"`
	Hash            string         `db:"suggestion_hash"`
	CreatedAt       int64          `db:"created_at"`
	RecordID        sql.NullString `db:"record_id"`
	PreferencesJSON []byte         `db:"preferences_json"`
	SuggestionsJSON []byte         `db:"suggestions_json"`
	Analysis        sql.NullString `db:"analysis"`
	RecordCreatedAt sql.NullInt64  `db:"record_created_at"`
}

// GetSuggestion returns the record stored under hash, or NOT_FOUND.
func (s *Store) GetSuggestion(ctx context.Context, hash string) (*hookah.Record, error) {
	var row suggestionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT hash, id, preferences_json, suggestions_json, analysis, created_at
		FROM suggestions
		WHERE hash = $1
	`, hash)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound(hash)
		}
		return nil, errors.NewStoreFailure("get suggestion", err)
	}

	r := &hookah.Record{Hash: row.Hash, ID: row.ID, Analysis: row.Analysis, CreatedAt: row.CreatedAt}
	if err := decode(r, row.PreferencesJSON, row.SuggestionsJSON); err != nil {
		return nil, errors.NewStoreFailure("decode suggestion", err)
	}
	return r, nil
}

// InsertSuggestion stores r. A record already stored under r.Hash yields ALREADY_EXISTS.
func (s *Store) InsertSuggestion(ctx context.Context, r *hookah.Record) error {
	prefJSON, err := json.Marshal(r.Preferences)
	if err != nil {
		return errors.NewInternal(err)
	}
	sugJSON, err := json.Marshal(r.Suggestions)
	if err != nil {
		return errors.NewInternal(err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO suggestions (hash, id, preferences_json, suggestions_json, analysis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO NOTHING
	`, r.Hash, r.ID, string(prefJSON), string(sugJSON), r.Analysis, r.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return errors.NewAlreadyExists(r.Hash)
		}
		return errors.NewStoreFailure("insert suggestion", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewStoreFailure("insert suggestion", err)
	}
	if n == 0 {
		return errors.NewAlreadyExists(r.Hash)
	}
	return nil
}

// InsertHistory appends e.
func (s *Store) InsertHistory(ctx context.Context, e *hookah.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (id, user_id, suggestion_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, e.ID, e.UserID, e.Hash, e.CreatedAt)
	if err != nil {
		return errors.NewStoreFailure("insert history", err)
	}
	return nil
}

// ListHistory returns userID's entries newest first, each with its record.
func (s *Store) ListHistory(ctx context.Context, userID string) ([]hookah.HistoryRow, error) {
	var rows []historyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT h.id, h.user_id, h.suggestion_hash, h.created_at,
			s.id AS record_id, s.preferences_json, s.suggestions_json, s.analysis,
			s.created_at AS record_created_at
		FROM history h
		LEFT JOIN suggestions s ON s.hash = h.suggestion_hash
		WHERE h.user_id = $1
		ORDER BY h.created_at DESC, h.id DESC
	`, userID)
	if err != nil {
		return nil, errors.NewStoreFailure("list history", err)
	}

	out := make([]hookah.HistoryRow, 0, len(rows))
	for _, row := range rows {
		hr := hookah.HistoryRow{Entry: hookah.HistoryEntry{
			ID:        row.ID,
			UserID:    row.UserID,
			Hash:      row.Hash,
			CreatedAt: row.CreatedAt,
		}}
		if row.RecordID.Valid {
			r := &hookah.Record{
				ID:        row.RecordID.String,
				Hash:      row.Hash,
				Analysis:  row.Analysis.String,
				CreatedAt: row.RecordCreatedAt.Int64,
			}
			if err := decode(r, row.PreferencesJSON, row.SuggestionsJSON); err != nil {
				return nil, errors.NewStoreFailure("decode history", err)
			}
			hr.Record = r
		}
		out = append(out, hr)
	}
	return out, nil
}

func decode(r *hookah.Record, prefJSON, sugJSON []byte) error {
	if err := json.Unmarshal(prefJSON, &r.Preferences); err != nil {
		return err
	}
	return json.Unmarshal(sugJSON, &r.Suggestions)
}
