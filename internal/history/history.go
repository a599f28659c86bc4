// Package history keeps a local record of texts read in the app, so a
// recent story can be reopened without retyping it.
//
// Records live in their own SQLite database (history.db). Re-adding a text
// that is already present bumps its read count and last-read time instead of
// inserting a duplicate row. The store is a local convenience only; nothing
// syncs anywhere.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by [Store.Delete] when no record has the given ID.
var ErrNotFound = errors.New("history record not found")

// defaultRecentLimit is used when Recent is called with a non-positive limit.
const defaultRecentLimit = 20

// Record is one previously read text.
type Record struct {
	ID         int64
	Text       string
	CreatedAt  time.Time
	LastReadAt time.Time
	ReadCount  int
}

// Config configures [Open].
type Config struct {
	// Dir is the directory holding the database file. Created if missing.
	Dir string

	// Logger receives prune diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Clock is injectable for tests. Default: time.Now.
	Clock func() time.Time
}

// Store is the reading-history database. All methods are safe for concurrent
// use.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// Open opens (creating if necessary) the history database under cfg.Dir.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}

	path := filepath.Join(cfg.Dir, "history.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping sqlite: %w", err)
	}

	s := &Store{db: db, log: cfg.Logger, clock: cfg.Clock}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS story_history (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    text         TEXT NOT NULL UNIQUE,
    created_at   TIMESTAMP NOT NULL,
    last_read_at TIMESTAMP NOT NULL,
    read_count   INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_story_history_last_read ON story_history(last_read_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Add records that text was read now. Texts are deduplicated exactly: adding
// one already present bumps its read count and last-read time. Leading and
// trailing whitespace is trimmed before storing. Returns the stored record.
func (s *Store) Add(ctx context.Context, text string) (Record, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Record{}, errors.New("history: empty text")
	}

	now := s.clock().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO story_history (text, created_at, last_read_at, read_count)
VALUES (?, ?, ?, 1)
ON CONFLICT (text) DO UPDATE SET
    last_read_at = excluded.last_read_at,
    read_count = story_history.read_count + 1`,
		trimmed, now, now,
	)
	if err != nil {
		return Record{}, fmt.Errorf("history: add: %w", err)
	}

	rec, err := s.byText(ctx, trimmed)
	if err != nil {
		return Record{}, fmt.Errorf("history: add: %w", err)
	}
	return rec, nil
}

func (s *Store) byText(ctx context.Context, text string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, text, created_at, last_read_at, read_count
FROM story_history WHERE text = ?`, text)
	return scanRecord(row)
}

// Recent returns the most recently read records, newest first. A
// non-positive limit defaults to 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, text, created_at, last_read_at, read_count
FROM story_history ORDER BY last_read_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("history: recent: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	return records, nil
}

// Delete removes the record with the given ID. Returns [ErrNotFound] when no
// record has that ID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM story_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("history: delete %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("history: delete %d: %w", id, ErrNotFound)
	}
	return nil
}

// Prune deletes all but the keep most recently read records and reports how
// many were removed. A non-positive keep disables pruning.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM story_history WHERE id IN (
    SELECT id FROM story_history ORDER BY last_read_at DESC, id DESC LIMIT -1 OFFSET ?
)`, keep)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	if n > 0 {
		s.log.Info("pruned reading history", "removed", n, "kept", keep)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec      Record
		created  string
		lastRead string
	)
	if err := row.Scan(&rec.ID, &rec.Text, &created, &lastRead, &rec.ReadCount); err != nil {
		return Record{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		rec.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, lastRead); err == nil {
		rec.LastReadAt = ts
	}
	return rec, nil
}
