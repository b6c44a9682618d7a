// Package cache keeps downloaded archives on disk so repeated searches do
// not refetch them. Files live under data/ keyed by the BLAKE3 hash of
// their URL; a SQLite index tracks size, URL and write time for listing and
// least-recently-written purging.
package cache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"

	"github.com/migadu/listsearch/consts"
	"github.com/migadu/listsearch/logger"
	"github.com/migadu/listsearch/pkg/metrics"
)

const DataDir = "data"
const IndexDB = "cache_index.db"

// Entry describes one cached archive.
type Entry struct {
	URL     string
	Path    string
	Size    int64
	ModTime time.Time
}

type Cache struct {
	basePath      string
	capacity      int64
	maxObjectSize int64
	db            *sql.DB
	mu            sync.Mutex

	cacheHits   int64
	cacheMisses int64
	startTime   time.Time
}

// KeyForURL returns the hex BLAKE3 digest identifying url in the cache.
func KeyForURL(url string) string {
	sum := blake3.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func New(basePath string, capacity int64, maxObjectSize int64) (*Cache, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, fmt.Errorf("cache base path cannot be empty")
	}
	basePath = filepath.Clean(basePath)

	dataDir := filepath.Join(basePath, DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache data path %s: %w", dataDir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(basePath, IndexDB))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index DB: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		logger.Warn("Cache: failed to enable WAL journal", "error", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS cache_index (
		path TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		size INTEGER NOT NULL,
		mod_time TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_mod_time ON cache_index(mod_time);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Cache{
		basePath:      basePath,
		capacity:      capacity,
		maxObjectSize: maxObjectSize,
		db:            db,
		startTime:     time.Now(),
	}, nil
}

// Close closes the cache index
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// PathForURL is where the archive at url is stored, whether or not it is
// cached yet.
func (c *Cache) PathForURL(url string) string {
	key := KeyForURL(url)
	return filepath.Join(c.basePath, DataDir, key[:2], key[2:4], key[4:])
}

func (c *Cache) Get(url string) ([]byte, error) {
	data, err := os.ReadFile(c.PathForURL(url))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			atomic.AddInt64(&c.cacheMisses, 1)
			metrics.CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
			return nil, fmt.Errorf("%s: %w", url, consts.ErrNotCached)
		}
		return nil, err
	}
	atomic.AddInt64(&c.cacheHits, 1)
	metrics.CacheOperationsTotal.WithLabelValues("get", "hit").Inc()
	return data, nil
}

// Stat returns the index entry for url, or consts.ErrNotCached.
func (c *Cache) Stat(url string) (Entry, error) {
	path := c.PathForURL(url)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entry{}, fmt.Errorf("%s: %w", url, consts.ErrNotCached)
		}
		return Entry{}, err
	}
	return Entry{URL: url, Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (c *Cache) Put(url string, data []byte) error {
	if c.maxObjectSize > 0 && int64(len(data)) > c.maxObjectSize {
		return fmt.Errorf("%s: %d bytes exceeds limit %d: %w", url, len(data), c.maxObjectSize, consts.ErrObjectTooLarge)
	}

	path := c.PathForURL(url)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Readers never observe a partially written archive.
	tempFile, err := os.CreateTemp(dir, "put-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write to temporary cache file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary cache file: %w", err)
	}
	if err := os.Rename(tempFile.Name(), path); err != nil {
		return fmt.Errorf("failed to move temporary file to %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.trackFile(url, path); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("failed to track cache file %s: %w", path, err)
	}
	metrics.CacheOperationsTotal.WithLabelValues("put", "success").Inc()
	logger.Debug("Cache: stored archive", "url", url, "path", path, "bytes", len(data))
	return nil
}

func (c *Cache) Exists(url string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM cache_index WHERE path = ?`, c.PathForURL(url)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query cache index: %w", err)
	}
	return count > 0, nil
}

// Delete removes the cached copy of url. Deleting an uncached URL is not an
// error.
func (c *Cache) Delete(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.PathForURL(url)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cache file %s: %w", path, err)
	}
	removeEmptyParents(path, filepath.Join(c.basePath, DataDir))

	if _, err := c.db.Exec(`DELETE FROM cache_index WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to remove index entry for path %s: %w", path, err)
	}
	return nil
}

// Entries lists the indexed archives, oldest first.
func (c *Cache) Entries(ctx context.Context) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx, `SELECT url, path, size, mod_time FROM cache_index ORDER BY mod_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache index: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.URL, &e.Path, &e.Size, &e.ModTime); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (c *Cache) trackFile(url, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`INSERT OR REPLACE INTO cache_index (path, url, size, mod_time) VALUES (?, ?, ?, ?)`,
		path, url, info.Size(), info.ModTime())
	return err
}

func removeEmptyParents(path string, stopAt string) {
	for {
		dir := filepath.Dir(path)
		if dir == stopAt || dir == "." || dir == "/" {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		path = dir
	}
}

// PurgeIfNeeded removes the least recently written archives until the
// cache is back within capacity.
func (c *Cache) PurgeIfNeeded(ctx context.Context) error {
	paths, err := c.getPurgeCandidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to get purge candidates: %w", err)
	}
	if len(paths) == 0 {
		return nil
	}

	dataDir := filepath.Join(c.basePath, DataDir)
	var removed []string
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("Cache: failed to remove file during purge", "path", path, "error", err)
			continue
		}
		removed = append(removed, path)
		removeEmptyParents(path, dataDir)
	}
	if len(removed) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeIndexEntries(ctx, removed)
}

func (c *Cache) getPurgeCandidates(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var totalSize int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM cache_index`).Scan(&totalSize); err != nil {
		return nil, fmt.Errorf("failed to get total cache size: %w", err)
	}
	if c.capacity <= 0 || totalSize <= c.capacity {
		return nil, nil
	}
	amountToFree := totalSize - c.capacity

	rows, err := c.db.QueryContext(ctx, `SELECT path, size FROM cache_index ORDER BY mod_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query for purge candidates: %w", err)
	}
	defer rows.Close()

	var paths []string
	var freed int64
	for rows.Next() && freed < amountToFree {
		var path string
		var size int64
		if err := rows.Scan(&path, &size); err != nil {
			return nil, fmt.Errorf("failed to scan purge candidate: %w", err)
		}
		paths = append(paths, path)
		freed += size
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purge candidates: %w", err)
	}

	logger.Info("Cache: purging to stay within capacity", "size", totalSize, "capacity", c.capacity, "files", len(paths))
	return paths, nil
}

// removeIndexEntries must be called with c.mu held.
func (c *Cache) removeIndexEntries(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for index removal: %w", err)
	}
	defer tx.Rollback()

	query := `DELETE FROM cache_index WHERE path IN (?` + strings.Repeat(",?", len(paths)-1) + `)`
	args := make([]any, len(paths))
	for i, p := range paths {
		args[i] = p
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to batch delete from index: %w", err)
	}
	return tx.Commit()
}

// RemoveStaleDBEntries drops index rows whose files have disappeared.
func (c *Cache) RemoveStaleDBEntries(ctx context.Context) error {
	entries, err := c.Entries(ctx)
	if err != nil {
		return err
	}

	var stale []string
	for _, e := range entries {
		if _, err := os.Stat(e.Path); errors.Is(err, fs.ErrNotExist) {
			stale = append(stale, e.Path)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.removeIndexEntries(ctx, stale); err != nil {
		return err
	}
	logger.Info("Cache: removed stale index entries", "count", len(stale))
	metrics.CacheOperationsTotal.WithLabelValues("stale", "success").Add(float64(len(stale)))
	return nil
}

// PurgeAll removes all cached archives and clears the index.
func (c *Cache) PurgeAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dataDir := filepath.Join(c.basePath, DataDir)
	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("failed to remove cache data directory %s: %w", dataDir, err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to recreate cache data directory %s: %w", dataDir, err)
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_index`); err != nil {
		return fmt.Errorf("failed to clear cache index: %w", err)
	}
	metrics.CacheSizeBytes.Set(0)
	return nil
}

// CacheStats holds cache statistics
type CacheStats struct {
	ObjectCount int64
	TotalSize   int64
}

// CacheMetrics holds cache hit/miss metrics
type CacheMetrics struct {
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	HitRate   float64   `json:"hit_rate"`
	TotalOps  int64     `json:"total_ops"`
	StartTime time.Time `json:"start_time"`
	Uptime    string    `json:"uptime"`
}

// GetStats returns current cache statistics
func (c *Cache) GetStats() (*CacheStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stats CacheStats
	row := c.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM cache_index`)
	if err := row.Scan(&stats.ObjectCount, &stats.TotalSize); err != nil {
		return nil, fmt.Errorf("failed to query cache statistics: %w", err)
	}
	metrics.CacheSizeBytes.Set(float64(stats.TotalSize))
	return &stats, nil
}

// GetMetrics returns hit/miss counters since the cache was opened.
func (c *Cache) GetMetrics() *CacheMetrics {
	hits := atomic.LoadInt64(&c.cacheHits)
	misses := atomic.LoadInt64(&c.cacheMisses)
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return &CacheMetrics{
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
		TotalOps:  total,
		StartTime: c.startTime,
		Uptime:    time.Since(c.startTime).String(),
	}
}
