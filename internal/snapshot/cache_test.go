// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package snapshot

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/gallery/internal/models"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(Config{
		DiskPath:       t.TempDir(),
		GracePeriod:    time.Hour,
		MemoryCapacity: 64,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStoreAndLookup(t *testing.T) {
	c := newTestCache(t)
	rows := []models.ReducedRow{{Hash: "a", Width: 1, Height: 1, DateMillis: 100}}
	p := c.Store("fp1", rows, 1, nil, 0)

	got, ok := c.Lookup("fp1", 0)
	require.True(t, ok)
	assert.Equal(t, p.Timestamp, got.Timestamp)
	assert.Equal(t, 1, got.Length)
}

func TestLookupMissReturnsFalse(t *testing.T) {
	c := newTestCache(t)
	_, ok := c.Lookup("missing", 0)
	assert.False(t, ok)
}

func TestReadRowsClampsEnd(t *testing.T) {
	c := newTestCache(t)
	rows := []models.ReducedRow{{Hash: "a"}, {Hash: "b"}, {Hash: "c"}}
	p := c.Store("fp", rows, 1, nil, 0)

	page := c.ReadRows(p.Timestamp, 0, 100)
	assert.Len(t, page, 3)

	empty := c.ReadRows(p.Timestamp, 10, 20)
	assert.Empty(t, empty)
}

func TestGracePeriodKeepsEntryUntilExpiry(t *testing.T) {
	c := newTestCache(t)
	rows := []models.ReducedRow{{Hash: "a"}}
	p := c.Store("fp", rows, 1, nil, 1000)

	_, ok := c.Lookup("fp", 500)
	assert.True(t, ok, "must be visible before expiry")

	_, ok = c.Lookup("fp", 1500)
	assert.False(t, ok, "must be invisible after expiry")
	_ = p
}

func TestSweepNeverRemovesUnexpiredEntries(t *testing.T) {
	c := newTestCache(t)
	rows := []models.ReducedRow{{Hash: "a"}}
	p := c.Store("fp", rows, 1, nil, 0) // never expires

	c.Sweep(time.Now().UnixMilli())
	got := c.ReadRows(p.Timestamp, 0, 10)
	assert.Len(t, got, 1)
}

func TestBuildOnceCoalescesConcurrentCallers(t *testing.T) {
	c := newTestCache(t)
	var calls atomic.Int32

	build := func() (Prefetch, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return Prefetch{Timestamp: 1, Length: 5}, nil
	}

	done := make(chan Prefetch, 4)
	for i := 0; i < 4; i++ {
		go func() {
			p, err := c.BuildOnce("shared-fp", build)
			require.NoError(t, err)
			done <- p
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestScrollbarMarksMonthBoundaries(t *testing.T) {
	c := newTestCache(t)
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC).UnixMilli()
	feb := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	rows := []models.ReducedRow{
		{Hash: "a", DateMillis: jan},
		{Hash: "b", DateMillis: jan},
		{Hash: "c", DateMillis: feb},
	}
	p := c.Store("fp", rows, 1, nil, 0)

	scroll := c.ReadScrollbar(p.Timestamp)
	require.Len(t, scroll, 2)
	assert.Equal(t, 0, scroll[0].FirstIndex)
	assert.Equal(t, 2, scroll[1].FirstIndex)
}
