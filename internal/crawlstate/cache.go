package crawlstate

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/terrencegiggy/content-pipeline/internal/types"
)

// Cache is an optional local SQLite mirror of crawl-state checkpoints
// (§4.D): a read-through cache for fast Load calls that avoids
// re-reading every checkpoint file from the durable backend. The
// backend remains the source of truth — Cache is safe to delete at
// any time and is repopulated lazily as checkpoints are read and
// written.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if absent) a SQLite cache at path.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create crawl-state cache directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open crawl-state cache %s: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS crawl_state (
		source_url TEXT PRIMARY KEY,
		payload    BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init crawl-state cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the cache's database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached checkpoint for sourceURL, or ok=false on a
// cache miss (caller falls back to the durable backend and
// repopulates via Put).
func (c *Cache) Get(sourceURL string) (*types.CrawlState, bool, error) {
	var payload []byte
	err := c.db.QueryRow(`SELECT payload FROM crawl_state WHERE source_url = ?`, sourceURL).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read crawl-state cache for %s: %w", sourceURL, err)
	}
	var state types.CrawlState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, false, fmt.Errorf("decode cached crawl-state for %s: %w", sourceURL, err)
	}
	return &state, true, nil
}

// Put mirrors state into the cache, overwriting any prior entry. A
// failure here never blocks the caller's own write to the durable
// backend — Store ignores the error and does not return it.
func (c *Cache) Put(state *types.CrawlState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode crawl-state for cache: %w", err)
	}
	_, err = c.db.Exec(`INSERT INTO crawl_state (source_url, payload) VALUES (?, ?)
		ON CONFLICT(source_url) DO UPDATE SET payload = excluded.payload`, state.SourceURL, payload)
	if err != nil {
		return fmt.Errorf("write crawl-state cache for %s: %w", state.SourceURL, err)
	}
	return nil
}
