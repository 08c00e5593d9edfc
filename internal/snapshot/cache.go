// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

// Package snapshot is the Query Snapshot Cache (C3): a tiered memory+disk
// mapping from a query fingerprint to an immutable, numbered list of reduced
// rows that a client can page against while the underlying index keeps
// evolving.
package snapshot

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/gallery/internal/metrics"
	"github.com/tomtom215/gallery/internal/models"
)

// Prefetch is the result of a query submission: a snapshot timestamp, its
// row-list length, and an optional index locating a requested hash within it.
type Prefetch struct {
	Timestamp    int64
	Length       int
	LocateIndex  *int
	IndexVersion uint64
	// ExpiresAt is the Unix millisecond deadline after which this entry is
	// soft-expired; zero means it never expires on its own (current version).
	ExpiresAt int64
}

func (p Prefetch) expired(nowMillis int64) bool {
	return p.ExpiresAt != 0 && p.ExpiresAt <= nowMillis
}

// Cache implements the query fingerprint -> prefetch and timestamp -> rows
// indirection layers described in the data model, each tiered memory+disk.
type Cache struct {
	cfg Config

	disk *badger.DB

	mu            sync.RWMutex
	prefetches    map[string]Prefetch
	rows          map[int64][]models.ReducedRow
	nextTimestamp int64

	builds singleflight.Group
}

// Config configures the cache's disk tier and grace period.
type Config struct {
	DiskPath       string
	GracePeriod    time.Duration
	MemoryCapacity int
}

// Open opens (or creates) the Badger disk tier at cfg.DiskPath.
func Open(cfg Config) (*Cache, error) {
	opts := badger.DefaultOptions(cfg.DiskPath).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot disk tier: %w", err)
	}
	return &Cache{
		cfg:        cfg,
		disk:       db,
		prefetches: make(map[string]Prefetch),
		rows:       make(map[int64][]models.ReducedRow),
	}, nil
}

// Close releases the disk tier.
func (c *Cache) Close() error {
	return c.disk.Close()
}

// Fingerprint derives the cache key for a query: it incorporates the filter
// expression's serialized form, the index version the query was evaluated
// against, and an optional locate hash. Two different expressions that
// happen to produce identical rows are treated as independent keys, per the
// spec's Open Question on this point.
func Fingerprint(exprJSON []byte, indexVersion uint64, locateHash string) string {
	return fmt.Sprintf("%x:%d:%s", exprJSON, indexVersion, locateHash)
}

// Lookup checks the memory tier, then the disk tier, for fp. A disk hit is
// promoted into memory. Expired entries are treated as misses.
func (c *Cache) Lookup(fp string, nowMillis int64) (Prefetch, bool) {
	c.mu.RLock()
	p, ok := c.prefetches[fp]
	c.mu.RUnlock()
	if ok {
		if p.expired(nowMillis) {
			return Prefetch{}, false
		}
		metrics.SnapshotCacheHits.WithLabelValues("memory").Inc()
		return p, true
	}

	p, ok = c.lookupDisk(fp)
	if !ok || p.expired(nowMillis) {
		return Prefetch{}, false
	}
	metrics.SnapshotCacheHits.WithLabelValues("disk").Inc()

	c.mu.Lock()
	c.prefetches[fp] = p
	c.mu.Unlock()
	return p, true
}

func (c *Cache) lookupDisk(fp string) (Prefetch, bool) {
	var p Prefetch
	err := c.disk.View(func(txn *badger.Txn) error {
		item, err := txn.Get(prefetchKey(fp))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	return p, err == nil
}

// Store allocates a monotonic timestamp for rows, records the prefetch entry
// for fp, and writes both to the memory tier. expiresAt is 0 for the current
// index version (never self-expires).
func (c *Cache) Store(fp string, rows []models.ReducedRow, indexVersion uint64, locateIndex *int, expiresAt int64) Prefetch {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.nextTimestamp
	c.nextTimestamp++

	p := Prefetch{
		Timestamp: ts, Length: len(rows), LocateIndex: locateIndex,
		IndexVersion: indexVersion, ExpiresAt: expiresAt,
	}
	c.prefetches[fp] = p
	c.rows[ts] = rows
	metrics.SnapshotEntries.Set(float64(len(c.prefetches)))
	return p
}

// BuildOnce runs build at most once concurrently for a given fingerprint;
// concurrent callers share the in-flight build and its result. This
// implements the "at most one active rebuild per fingerprint" contract.
func (c *Cache) BuildOnce(fp string, build func() (Prefetch, error)) (Prefetch, error) {
	v, err, _ := c.builds.Do(fp, func() (any, error) {
		metrics.SnapshotCacheMisses.Inc()
		started := time.Now()
		p, err := build()
		metrics.SnapshotBuildDuration.Observe(time.Since(started).Seconds())
		return p, err
	})
	if err != nil {
		return Prefetch{}, err
	}
	return v.(Prefetch), nil
}

// ReadRows returns rows[start:end), clamping end to the row list's length
// and returning an empty slice (never an error) when start is out of range.
func (c *Cache) ReadRows(timestamp int64, start, end int) []models.ReducedRow {
	c.mu.RLock()
	rows, ok := c.rows[timestamp]
	c.mu.RUnlock()
	if !ok {
		rows = c.readRowsDisk(timestamp)
	}

	if start >= len(rows) || start < 0 {
		return nil
	}
	if end > len(rows) {
		end = len(rows)
	}
	if end < start {
		end = start
	}
	out := make([]models.ReducedRow, end-start)
	copy(out, rows[start:end])
	return out
}

func (c *Cache) readRowsDisk(timestamp int64) []models.ReducedRow {
	var rows []models.ReducedRow
	_ = c.disk.View(func(txn *badger.Txn) error {
		item, err := txn.Get(rowsKey(timestamp))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rows)
		})
	})
	return rows
}

// ReadScrollbar produces a [(year, month, first_index)] scrollbar by a
// linear scan of the snapshot's rows in ascending index order, emitting one
// entry at each month boundary.
func (c *Cache) ReadScrollbar(timestamp int64) []ScrollbarEntry {
	c.mu.RLock()
	rows, ok := c.rows[timestamp]
	c.mu.RUnlock()
	if !ok {
		rows = c.readRowsDisk(timestamp)
	}

	var out []ScrollbarEntry
	var lastYear, lastMonth int = -1, -1
	for i, r := range rows {
		t := time.UnixMilli(r.DateMillis).UTC()
		y, m := t.Year(), int(t.Month())
		if y != lastYear || m != lastMonth {
			out = append(out, ScrollbarEntry{Year: y, Month: m, FirstIndex: i})
			lastYear, lastMonth = y, m
		}
	}
	return out
}

// ScrollbarEntry marks the first row index at which a (year, month) begins.
type ScrollbarEntry struct {
	Year       int
	Month      int
	FirstIndex int
}

func prefetchKey(fp string) []byte {
	return []byte("pf:" + fp)
}

func rowsKey(timestamp int64) []byte {
	return []byte(fmt.Sprintf("rows:%d", timestamp))
}
