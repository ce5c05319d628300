package correlation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the keyed thread → ticket mapping table. Unlike the
// thread-embedded store it is read-after-write consistent, so Resolve
// never needs to retry.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the mapping database and runs
// migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("correlation store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("correlation store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS thread_tickets (
			thread_id  TEXT PRIMARY KEY,
			ticket_id  TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("correlation store: migrate: %w", err)
	}
	return nil
}

// Record upserts the mapping for a thread.
func (s *SQLiteStore) Record(ctx context.Context, threadID, ticketID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thread_tickets (thread_id, ticket_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET ticket_id=excluded.ticket_id
	`, threadID, ticketID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("correlation store: record %s: %w", threadID, err)
	}
	return nil
}

// Resolve returns the ticket id mapped to a thread, or ErrNotFound.
func (s *SQLiteStore) Resolve(ctx context.Context, threadID string) (string, error) {
	var ticketID string
	err := s.db.QueryRowContext(ctx,
		`SELECT ticket_id FROM thread_tickets WHERE thread_id = ?`, threadID,
	).Scan(&ticketID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("correlation store: resolve %s: %w", threadID, err)
	}
	return ticketID, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
