// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package index

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/gallery/internal/metrics"
	"github.com/tomtom215/gallery/internal/models"
)

// Store is the subset of the Content Store the index rebuilds itself from.
type Store interface {
	LoadAllOfType(ctx context.Context, t models.ObjType) ([]models.Entity, error)
}

// Index holds a sorted, read-mostly snapshot of every entity in the Content
// Store. Readers take a short read lock and iterate under it; the writer
// holds the lock only for the atomic slice swap.
type Index struct {
	store Store

	mu      sync.RWMutex
	entries []models.Entity

	version atomic.Uint64
}

// New creates an empty Index backed by store. Call Update to populate it.
func New(store Store) *Index {
	return &Index{store: store}
}

// Update rebuilds the index by scanning the Content Store for every entity
// type, projecting EXIF rows to the allow-list, and atomically swapping the
// sorted slice in. Only the allow-listed EXIF subset from models.ExifAllowed
// is retained, to bound memory.
func (idx *Index) Update(ctx context.Context) error {
	started := time.Now()
	defer func() { metrics.IndexUpdateDuration.Observe(time.Since(started).Seconds()) }()

	var all []models.Entity
	for _, t := range []models.ObjType{models.ObjTypeImage, models.ObjTypeVideo, models.ObjTypeAlbum} {
		entities, err := idx.store.LoadAllOfType(ctx, t)
		if err != nil {
			return err
		}
		all = append(all, entities...)
	}

	for i := range all {
		all[i].Exif = projectExif(all[i].Exif)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedTime > all[j].CreatedTime
	})

	idx.mu.Lock()
	idx.entries = all
	idx.mu.Unlock()

	newVersion := idx.version.Add(1)
	metrics.IndexVersion.Set(float64(newVersion))
	metrics.IndexSize.Set(float64(len(all)))
	return nil
}

func projectExif(rows []models.ObjectExif) []models.ObjectExif {
	out := make([]models.ObjectExif, 0, len(rows))
	for _, r := range rows {
		if models.ExifAllowed(r.Tag) {
			out = append(out, r)
		}
	}
	return out
}

// Version returns the monotonic counter bumped on every successful Update;
// C3 uses it to invalidate fingerprints from a superseded index generation.
func (idx *Index) Version() uint64 {
	return idx.version.Load()
}

// Evaluator evaluates expr over a single entity; Eval and ShareFilter.Eval
// both satisfy it.
type Evaluator func(expr Expr, e *models.Entity) bool

// Filter evaluates expr over the current snapshot in parallel and projects
// matches to ReducedRow, preserving the snapshot's created_time-descending
// order. eval is Eval for an unrestricted caller, or a ShareFilter's Eval
// method for a share-scoped caller.
func (idx *Index) Filter(expr Expr, eval Evaluator) []models.ReducedRow {
	started := time.Now()
	defer func() { metrics.IndexFilterDuration.Observe(time.Since(started).Seconds()) }()

	idx.mu.RLock()
	snapshot := idx.entries
	idx.mu.RUnlock()

	if len(snapshot) == 0 {
		return nil
	}

	shardCount := runtime.GOMAXPROCS(0)
	if shardCount > len(snapshot) {
		shardCount = len(snapshot)
	}
	if shardCount < 1 {
		shardCount = 1
	}
	shardSize := (len(snapshot) + shardCount - 1) / shardCount

	results := make([][]models.ReducedRow, shardCount)
	var g errgroup.Group
	for s := 0; s < shardCount; s++ {
		s := s
		start := s * shardSize
		end := start + shardSize
		if end > len(snapshot) {
			end = len(snapshot)
		}
		if start >= end {
			continue
		}
		g.Go(func() error {
			var rows []models.ReducedRow
			for i := start; i < end; i++ {
				e := &snapshot[i]
				if e.Album != nil {
					continue // ReducedRow projects media entities only
				}
				if eval(expr, e) {
					w, h := e.Dimensions()
					rows = append(rows, models.ReducedRow{
						Hash: e.ID, Width: w, Height: h, DateMillis: e.CreatedTime,
					})
				}
			}
			results[s] = rows
			return nil
		})
	}
	_ = g.Wait()

	var out []models.ReducedRow
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// Snapshot returns a copy of the current entity slice, for callers (like
// hydration) that need full Entity records rather than reduced rows.
func (idx *Index) Snapshot() []models.Entity {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]models.Entity, len(idx.entries))
	copy(out, idx.entries)
	return out
}
