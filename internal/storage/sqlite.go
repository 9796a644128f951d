package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrNotFound is returned when an interaction does not exist.
var ErrNotFound = errors.New("interaction not found")

// Store is the SQLite-backed interaction log.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies migrations. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	files, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		script, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", file, err)
		}
		if _, err := db.Exec(string(script)); err != nil {
			return fmt.Errorf("applying migration %s: %w", file, err)
		}
	}
	return nil
}

// SaveInteraction records an exchange. A zero ID or CreatedAt is filled in.
func (s *Store) SaveInteraction(ctx context.Context, in Interaction) (Interaction, error) {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, query, answer, outcome, context_used, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Query, in.Answer, in.Outcome, in.ContextUsed, in.DurationMS, in.CreatedAt,
	)
	if err != nil {
		return Interaction{}, fmt.Errorf("saving interaction: %w", err)
	}
	return in, nil
}

// ListInteractions returns up to limit interactions, newest first.
func (s *Store) ListInteractions(ctx context.Context, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, answer, outcome, context_used, duration_ms, created_at
		FROM interactions
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		if err := rows.Scan(&in.ID, &in.Query, &in.Answer, &in.Outcome, &in.ContextUsed, &in.DurationMS, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// GetInteraction fetches one interaction by ID.
func (s *Store) GetInteraction(ctx context.Context, id string) (Interaction, error) {
	var in Interaction
	err := s.db.QueryRowContext(ctx, `
		SELECT id, query, answer, outcome, context_used, duration_ms, created_at
		FROM interactions WHERE id = ?`, id,
	).Scan(&in.ID, &in.Query, &in.Answer, &in.Outcome, &in.ContextUsed, &in.DurationMS, &in.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Interaction{}, ErrNotFound
	}
	if err != nil {
		return Interaction{}, fmt.Errorf("fetching interaction %s: %w", id, err)
	}
	return in, nil
}

// DeleteInteraction removes one interaction by ID.
func (s *Store) DeleteInteraction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting interaction %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountInteractions reports the total number of logged interactions.
func (s *Store) CountInteractions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting interactions: %w", err)
	}
	return n, nil
}
