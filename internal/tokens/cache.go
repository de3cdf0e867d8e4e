package tokens

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"odinbots/internal/domain"
)

// DefaultCacheTTL bounds how long a cached API search result is served
// without refreshing.
const DefaultCacheTTL = 24 * time.Hour

// Cache stores trading-API search results in a local sqlite database so
// repeated lookups for the same reference skip the network.
type Cache struct {
	db    *sql.DB
	ttl   time.Duration
	clock domain.Clock
}

const schema = `
CREATE TABLE IF NOT EXISTS token_lookup (
	query     TEXT NOT NULL,
	token_id  TEXT NOT NULL,
	name      TEXT NOT NULL,
	ticker    TEXT NOT NULL,
	marketcap INTEGER NOT NULL,
	bonded    INTEGER NOT NULL,
	cached_at INTEGER NOT NULL,
	PRIMARY KEY (query, token_id)
);
CREATE INDEX IF NOT EXISTS idx_token_lookup_cached_at ON token_lookup(cached_at);
`

// OpenCache opens (creating if needed) the cache database at path.
// ttl <= 0 uses DefaultCacheTTL.
func OpenCache(path string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open token cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate token cache: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{db: db, ttl: ttl, clock: time.Now}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Fresh returns the cached results for query that are still within the
// TTL. An empty slice means a miss (or everything expired).
func (c *Cache) Fresh(query string) ([]domain.TokenInfo, error) {
	cutoff := c.clock().Add(-c.ttl).Unix()
	rows, err := c.db.Query(
		`SELECT token_id, name, ticker, marketcap, bonded
		 FROM token_lookup WHERE query = ? AND cached_at > ?`,
		query, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query token cache: %w", err)
	}
	defer rows.Close()

	var out []domain.TokenInfo
	for rows.Next() {
		var t domain.TokenInfo
		var bonded int
		if err := rows.Scan(&t.ID, &t.Name, &t.Ticker, &t.Marketcap, &bonded); err != nil {
			return nil, fmt.Errorf("scan token cache row: %w", err)
		}
		t.Bonded = bonded != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// Put replaces the cached results for query.
func (c *Cache) Put(query string, results []domain.TokenInfo) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin token cache write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM token_lookup WHERE query = ?`, query); err != nil {
		return fmt.Errorf("clear token cache entry: %w", err)
	}
	now := c.clock().Unix()
	for _, t := range results {
		bonded := 0
		if t.Bonded {
			bonded = 1
		}
		_, err := tx.Exec(
			`INSERT INTO token_lookup (query, token_id, name, ticker, marketcap, bonded, cached_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			query, t.ID, t.Name, t.Ticker, t.Marketcap, bonded, now,
		)
		if err != nil {
			return fmt.Errorf("insert token cache row: %w", err)
		}
	}
	return tx.Commit()
}

// Prune drops every entry older than the TTL.
func (c *Cache) Prune() error {
	cutoff := c.clock().Add(-c.ttl).Unix()
	_, err := c.db.Exec(`DELETE FROM token_lookup WHERE cached_at <= ?`, cutoff)
	return err
}
