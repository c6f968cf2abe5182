// Package usage persists per-compaction usage statistics in SQLite.
//
// DESIGN: One row per compaction. Aggregates are computed in SQL on read.
// The database is opened with a single connection; SQLite serialises writes
// anyway and this keeps ":memory:" databases coherent.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_events (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id       TEXT    NOT NULL DEFAULT '',
	source           TEXT    NOT NULL DEFAULT '',
	strategy         TEXT    NOT NULL DEFAULT '',
	model            TEXT    NOT NULL DEFAULT '',
	original_size    INTEGER NOT NULL,
	compacted_size   INTEGER NOT NULL,
	original_tokens  INTEGER NOT NULL DEFAULT 0,
	compacted_tokens INTEGER NOT NULL DEFAULT 0,
	fallback         INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_events_created_at ON usage_events(created_at);
`

// Config controls usage persistence.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // SQLite file, or ":memory:"
}

// Validate checks the usage config.
func (c *Config) Validate() error {
	if c.Enabled && c.Path == "" {
		return fmt.Errorf("usage.path is required when usage is enabled")
	}
	return nil
}

// Event is one recorded compaction.
type Event struct {
	RequestID       string    `json:"request_id,omitempty"`
	Source          string    `json:"source"` // http, websocket, cli
	Strategy        string    `json:"strategy"`
	Model           string    `json:"model,omitempty"`
	OriginalSize    int       `json:"original_size"`
	CompactedSize   int       `json:"compacted_size"`
	OriginalTokens  int       `json:"original_tokens"`
	CompactedTokens int       `json:"compacted_tokens"`
	Fallback        bool      `json:"fallback"`
	CreatedAt       time.Time `json:"created_at"`
}

// Summary aggregates all recorded events.
type Summary struct {
	Compactions int64 `json:"compactions"`
	CharsIn     int64 `json:"chars_in"`
	CharsOut    int64 `json:"chars_out"`
	TokensSaved int64 `json:"tokens_saved"`
	Fallbacks   int64 `json:"fallbacks"`
}

// Store records usage events.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the usage database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("usage database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage database '%s': %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure usage database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create usage schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record inserts one event. A zero CreatedAt is set to now.
func (s *Store) Record(ctx context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	fallback := 0
	if e.Fallback {
		fallback = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_events
			(request_id, source, strategy, model, original_size, compacted_size,
			 original_tokens, compacted_tokens, fallback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Source, e.Strategy, e.Model, e.OriginalSize, e.CompactedSize,
		e.OriginalTokens, e.CompactedTokens, fallback, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record usage event: %w", err)
	}
	return nil
}

// Summary aggregates every recorded event.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(original_size), 0),
		       COALESCE(SUM(compacted_size), 0),
		       COALESCE(SUM(original_tokens - compacted_tokens), 0),
		       COALESCE(SUM(fallback), 0)
		FROM usage_events`,
	).Scan(&sum.Compactions, &sum.CharsIn, &sum.CharsOut, &sum.TokensSaved, &sum.Fallbacks)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarise usage: %w", err)
	}
	return sum, nil
}

// Recent returns up to n events, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		n = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, source, strategy, model, original_size, compacted_size,
		       original_tokens, compacted_tokens, fallback, created_at
		FROM usage_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e        Event
			fallback int
			created  int64
		)
		if err := rows.Scan(&e.RequestID, &e.Source, &e.Strategy, &e.Model,
			&e.OriginalSize, &e.CompactedSize, &e.OriginalTokens, &e.CompactedTokens,
			&fallback, &created); err != nil {
			return nil, fmt.Errorf("failed to scan usage event: %w", err)
		}
		e.Fallback = fallback != 0
		e.CreatedAt = time.Unix(0, created)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
