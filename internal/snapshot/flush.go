// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package snapshot

import (
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/gallery/internal/metrics"
	"github.com/tomtom215/gallery/internal/models"
)

// Flush migrates the current memory-tier entries to the disk tier and
// evicts them from memory, exactly the teacher's pattern of serializing
// cache entries with goccy/go-json before storing them. It is not registered
// on the task coordinators, and cmd/server does not call it.
func (c *Cache) Flush() error {
	c.mu.Lock()
	prefetches := c.prefetches
	rows := c.rows
	c.prefetches = make(map[string]Prefetch)
	c.rows = make(map[int64][]models.ReducedRow)
	c.mu.Unlock()

	return c.disk.Update(func(txn *badger.Txn) error {
		for fp, p := range prefetches {
			data, err := json.Marshal(p)
			if err != nil {
				return err
			}
			entry := badger.NewEntry(prefetchKey(fp), data)
			if p.ExpiresAt != 0 {
				ttl := time.Until(time.UnixMilli(p.ExpiresAt))
				if ttl > 0 {
					entry = entry.WithTTL(ttl)
				}
			}
			if err := txn.SetEntry(entry); err != nil {
				return err
			}
		}
		for ts, r := range rows {
			data, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if err := txn.Set(rowsKey(ts), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// InvalidateVersion marks every in-memory prefetch entry still pointing at a
// superseded index version as soft-expired: it remains servable until
// nowMillis+GracePeriod, giving in-flight clients time to finish paging.
func (c *Cache) InvalidateVersion(currentVersion uint64, nowMillis int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := nowMillis + c.cfg.GracePeriod.Milliseconds()
	for fp, p := range c.prefetches {
		if p.IndexVersion != currentVersion && p.ExpiresAt == 0 {
			p.ExpiresAt = deadline
			c.prefetches[fp] = p
		}
	}
}

// Sweep deletes row-lists whose every referencing prefetch is expired or
// absent. It works on the memory tier only: flushed prefetch entries lapse
// through their Badger TTL, and row-lists already on disk are not removed.
// It never removes an entry whose expires_at is still in the future,
// satisfying the grace-period invariant.
func (c *Cache) Sweep(nowMillis int64) {
	c.mu.Lock()
	referenced := make(map[int64]bool)
	for fp, p := range c.prefetches {
		if p.expired(nowMillis) {
			delete(c.prefetches, fp)
			continue
		}
		referenced[p.Timestamp] = true
	}
	var evicted int
	for ts := range c.rows {
		if !referenced[ts] {
			delete(c.rows, ts)
			evicted++
		}
	}
	c.mu.Unlock()

	if evicted > 0 {
		metrics.SnapshotSweepEvictions.Add(float64(evicted))
	}
}
