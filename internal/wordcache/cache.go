// Package wordcache stores per-word audio clips for the lifetime of one
// session, so a word synthesized once is never requested from the provider
// again while the app runs.
//
// Entries live in a small SQLite database keyed by (session ID, lowercased
// word), with an in-memory LRU in front of the hot rows. Rows from previous
// sessions are purged when the cache opens: a stale entry could carry audio
// synthesized under a different voice or output format, which must never be
// served.
//
// Storage is strictly optional. When the database cannot be opened the
// constructor hands back a degraded cache on which every lookup misses and
// every write is dropped, alongside an error wrapping
// [ErrStorageUnavailable] so the caller can log the downgrade.
package wordcache

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

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/brianfoody/woodpecker-reading-app/internal/observe"
	"github.com/brianfoody/woodpecker-reading-app/internal/session"
)

// ErrNotFound is returned by [Cache.Get] when the word has no entry in the
// current session.
var ErrNotFound = errors.New("word not cached")

// ErrStorageUnavailable is wrapped by [Open] when the backing database
// cannot be used. The returned cache still works, it just never hits.
var ErrStorageUnavailable = errors.New("word cache storage unavailable")

// defaultMaxHot is the default size of the in-memory front.
const defaultMaxHot = 256

// Entry is one word's cached audio.
type Entry struct {
	// Word is the lowercased clean word the entry is keyed by.
	Word string

	// Audio is the clip exactly as the provider returned it. Nil for a
	// zero-length placeholder written after a synthesis failure.
	Audio []byte

	// Duration is the probed playing time of Audio. Zero for placeholders.
	Duration time.Duration
}

// Config configures [Open].
type Config struct {
	// Dir is the directory holding the database file. Created if missing.
	Dir string

	// SessionID scopes every row written by this cache instance.
	SessionID session.ID

	// MaxHot bounds the in-memory LRU front. Default: 256 entries.
	MaxHot int

	// Logger receives open/purge diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Clock is injectable for tests. Default: time.Now.
	Clock func() time.Time
}

// Cache is a session-scoped word → audio store. All methods are safe for
// concurrent use; writes for the same word are idempotent upserts, so racing
// writers settle on last-write-wins without corruption.
type Cache struct {
	db        *sql.DB // nil in degraded mode
	sessionID session.ID
	hot       *lru.Cache[string, Entry]
	log       *slog.Logger
	clock     func() time.Time
}

// Open opens (creating if necessary) the cache database under cfg.Dir and
// purges every row that does not belong to cfg.SessionID.
//
// On storage failure Open returns a degraded, always-missing cache together
// with an error wrapping [ErrStorageUnavailable]. Callers should log the
// error and keep the returned cache; it is never nil.
func Open(ctx context.Context, cfg Config) (*Cache, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.MaxHot <= 0 {
		cfg.MaxHot = defaultMaxHot
	}

	hot, err := lru.New[string, Entry](cfg.MaxHot)
	if err != nil {
		// Only fails for a non-positive size, which defaulting rules out.
		return degraded(cfg), fmt.Errorf("wordcache: lru: %w: %w", err, ErrStorageUnavailable)
	}

	c := &Cache{
		sessionID: cfg.SessionID,
		hot:       hot,
		log:       cfg.Logger,
		clock:     cfg.Clock,
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return degraded(cfg), fmt.Errorf("wordcache: create dir: %w: %w", err, ErrStorageUnavailable)
	}

	path := filepath.Join(cfg.Dir, "wordcache.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return degraded(cfg), fmt.Errorf("wordcache: open sqlite: %w: %w", err, ErrStorageUnavailable)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return degraded(cfg), fmt.Errorf("wordcache: ping sqlite: %w: %w", err, ErrStorageUnavailable)
	}
	c.db = db

	if err := c.initSchema(ctx); err != nil {
		db.Close()
		c.db = nil
		return degraded(cfg), fmt.Errorf("wordcache: init schema: %w: %w", err, ErrStorageUnavailable)
	}

	if err := c.purgeStale(ctx); err != nil {
		// The cache still works with stale rows present; they can never be
		// read because every lookup is keyed by the current session.
		c.log.Warn("word cache stale purge failed", "error", err)
	}

	return c, nil
}

// degraded builds the always-missing fallback cache.
func degraded(cfg Config) *Cache {
	return &Cache{
		sessionID: cfg.SessionID,
		log:       cfg.Logger,
		clock:     cfg.Clock,
	}
}

func (c *Cache) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS word_audio (
    session_id  TEXT NOT NULL,
    word        TEXT NOT NULL,
    audio       BLOB NOT NULL,
    duration_ms INTEGER NOT NULL,
    created_at  TIMESTAMP NOT NULL,
    PRIMARY KEY (session_id, word)
);
`
	_, err := c.db.ExecContext(ctx, ddl)
	return err
}

// purgeStale removes every row belonging to a different session.
func (c *Cache) purgeStale(ctx context.Context) error {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM word_audio WHERE session_id != ?`, c.sessionID.String())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		c.log.Info("purged stale word cache entries", "rows", n)
	}
	return nil
}

// Degraded reports whether the cache is running without storage.
func (c *Cache) Degraded() bool { return c.db == nil }

// Get returns the current session's entry for word, keyed by its lowercase
// form. Returns [ErrNotFound] on a miss and in degraded mode. Get never
// touches the network.
func (c *Cache) Get(ctx context.Context, word string) (Entry, error) {
	key := strings.ToLower(word)

	if c.db == nil {
		observe.DefaultMetrics().RecordCacheLookup(ctx, "bypass")
		return Entry{}, fmt.Errorf("wordcache: get %q: %w", key, ErrNotFound)
	}

	if e, ok := c.hot.Get(key); ok {
		observe.DefaultMetrics().RecordCacheLookup(ctx, "hit")
		return e, nil
	}

	var (
		audio      []byte
		durationMS int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT audio, duration_ms FROM word_audio WHERE session_id = ? AND word = ?`,
		c.sessionID.String(), key,
	).Scan(&audio, &durationMS)
	if errors.Is(err, sql.ErrNoRows) {
		observe.DefaultMetrics().RecordCacheLookup(ctx, "miss")
		return Entry{}, fmt.Errorf("wordcache: get %q: %w", key, ErrNotFound)
	}
	if err != nil {
		observe.DefaultMetrics().RecordCacheLookup(ctx, "miss")
		return Entry{}, fmt.Errorf("wordcache: get %q: %w", key, err)
	}

	e := Entry{Word: key, Audio: audio, Duration: time.Duration(durationMS) * time.Millisecond}
	c.hot.Add(key, e)
	observe.DefaultMetrics().RecordCacheLookup(ctx, "hit")
	return e, nil
}

// Put upserts word's audio for the current session. Writing the same word
// again silently overwrites. In degraded mode Put drops the entry and
// returns nil.
func (c *Cache) Put(ctx context.Context, word string, audio []byte, duration time.Duration) error {
	if c.db == nil {
		return nil
	}
	key := strings.ToLower(word)

	_, err := c.db.ExecContext(ctx, `
INSERT INTO word_audio (session_id, word, audio, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (session_id, word) DO UPDATE SET
    audio = excluded.audio,
    duration_ms = excluded.duration_ms,
    created_at = excluded.created_at`,
		c.sessionID.String(), key, audio, duration.Milliseconds(), c.clock().UTC(),
	)
	if err != nil {
		return fmt.Errorf("wordcache: put %q: %w", key, err)
	}

	c.hot.Add(key, Entry{Word: key, Audio: audio, Duration: duration})
	return nil
}

// Clear removes only the current session's entries. Rows from other sessions
// are left alone; the next process to open the cache purges them.
func (c *Cache) Clear(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM word_audio WHERE session_id = ?`, c.sessionID.String()); err != nil {
		return fmt.Errorf("wordcache: clear: %w", err)
	}
	c.hot.Purge()
	return nil
}

// Len returns the number of entries stored for the current session.
func (c *Cache) Len(ctx context.Context) (int, error) {
	if c.db == nil {
		return 0, nil
	}
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM word_audio WHERE session_id = ?`, c.sessionID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("wordcache: len: %w", err)
	}
	return n, nil
}

// Close releases the database handle. Safe on a degraded cache.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
