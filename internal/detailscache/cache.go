// Package detailscache is a small SQLite-backed read-through cache for
// metadata lookup payloads. Entries are keyed by normalized title and
// expire after a TTL; the cache never stores resolution results, only the
// raw per-title lookup records.
package detailscache

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const DefaultTTL = 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS details (
	title_key  TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	stored_at  TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
`

type Cache struct {
	db  *sqlx.DB
	ttl time.Duration
	mu  sync.Mutex

	now func() time.Time
}

func Open(path string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open details cache: %w", err)
	}
	// modernc sqlite serializes writes itself but rejects concurrent
	// writers at the connection level.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init details cache schema: %w", err)
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

func titleKey(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

// Get returns the cached payload for title, or ok=false when absent or
// expired. Expired rows are deleted on read.
func (c *Cache) Get(title string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := titleKey(title)
	var row struct {
		Payload   []byte `db:"payload"`
		ExpiresAt string `db:"expires_at"`
	}
	err := c.db.Get(&row, `SELECT payload, expires_at FROM details WHERE title_key = ?`, key)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("details cache get: %w", err)
	}
	expires, err := time.Parse(time.RFC3339Nano, row.ExpiresAt)
	if err != nil || !c.now().Before(expires) {
		_, _ = c.db.Exec(`DELETE FROM details WHERE title_key = ?`, key)
		return nil, false, nil
	}
	return row.Payload, true, nil
}

func (c *Cache) Put(title string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	_, err := c.db.Exec(
		`INSERT INTO details (title_key, payload, stored_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(title_key) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at, expires_at = excluded.expires_at`,
		titleKey(title),
		payload,
		now.Format(time.RFC3339Nano),
		now.Add(c.ttl).Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("details cache put: %w", err)
	}
	return nil
}

// Prune removes all expired rows and reports how many were deleted.
func (c *Cache) Prune() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec(`DELETE FROM details WHERE expires_at <= ?`, c.now().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("details cache prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
