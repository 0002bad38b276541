// Package hookah holds the suggestion data model and preference normalization.
package hookah

// Preferences is the raw questionnaire input.
// Name is display-only: it is never hashed, cached or sent to the generator.
type Preferences struct {
	Name       string   `json:"name,omitempty"`
	Tastes     []string `json:"tastes,omitempty"`
	ZodiacSign string   `json:"zodiacSign,omitempty"`
	Moods      []string `json:"moods,omitempty"`
	Intensity  string   `json:"intensity,omitempty"`
	Occasion   string   `json:"occasion,omitempty"`
}

// NormalizedPreferences is the canonical hashing input.
// Field order is fixed; it determines the serialized form and therefore the hash.
type NormalizedPreferences struct {
	Tastes     []string `json:"tastes"`
	ZodiacSign string   `json:"zodiacSign"`
	Moods      []string `json:"moods"`
	Intensity  string   `json:"intensity"`
	Occasion   string   `json:"occasion"`
}

// Suggestion is a single generated hookah mix.
type Suggestion struct {
	Name        string   `json:"name"`
	Ingredients []string `json:"ingredients"`
	Reasoning   string   `json:"reasoning"`
}

// Record is a cached generation result, keyed by Hash.
// Records are immutable once inserted.
type Record struct {
	// ID is a ULID assigned at insert time
	ID string

	// Hash is the normalized-preferences digest; unique per store
	Hash string

	Preferences NormalizedPreferences
	Suggestions []Suggestion
	Analysis    string

	// CreatedAt is the Unix timestamp when the record was inserted
	CreatedAt int64
}

// HistoryEntry links a user to the record served for one request.
type HistoryEntry struct {
	ID        string
	UserID    string
	Hash      string
	CreatedAt int64
}

// HistoryItem is a history entry joined with its record, as returned to clients.
type HistoryItem struct {
	ID          string                `json:"id"`
	CreatedAt   int64                 `json:"createdAt"`
	Preferences NormalizedPreferences `json:"preferences"`
	Suggestions []Suggestion          `json:"suggestions"`
	Analysis    string                `json:"analysis"`
}

// HistoryRow is a stored history entry with the record it references.
// Record is nil if the referenced record is missing from the store.
type HistoryRow struct {
	Entry  HistoryEntry
	Record *Record
}
