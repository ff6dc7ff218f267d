package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/consumer"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS consumer_state (
	key             TEXT PRIMARY KEY,
	last_fetched_at INTEGER NOT NULL,
	body            BLOB
)`

// StateStore persists consumer state in a SQLite database file.
type StateStore struct {
	db *sql.DB
}

var _ consumer.StateStore = (*StateStore)(nil)

// Open opens (or creates) the database at path. Use ":memory:" for a
// throwaway store.
func Open(path string) (*StateStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init state schema: %w", err)
	}
	return &StateStore{db: db}, nil
}

func (s *StateStore) Close() error {
	return s.db.Close()
}

func (s *StateStore) Load(ctx context.Context, key string) (consumer.State, bool, error) {
	var ms int64
	var body []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT last_fetched_at, body FROM consumer_state WHERE key = ?", key,
	).Scan(&ms, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return consumer.State{}, false, nil
	}
	if err != nil {
		return consumer.State{}, false, fmt.Errorf("load state: %w", err)
	}

	st := consumer.State{Body: body}
	if ms > 0 {
		st.LastFetchedAt = time.UnixMilli(ms).UTC()
	}
	return st, true, nil
}

func (s *StateStore) Save(ctx context.Context, key string, st consumer.State) error {
	var ms int64
	if !st.LastFetchedAt.IsZero() {
		ms = st.LastFetchedAt.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consumer_state (key, last_fetched_at, body) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET last_fetched_at = excluded.last_fetched_at, body = excluded.body`,
		key, ms, st.Body,
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
