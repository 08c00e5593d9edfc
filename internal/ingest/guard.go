// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

// Package ingest implements the per-file ingest pipeline (C4): open, hash,
// dedupe, copy, derive, persist and optionally compress video, directly
// adapted from the teacher's and the original's orchestration pattern for
// an index_workflow-equivalent sequence of coordinator calls.
package ingest

import "sync"

// Guard is a concurrent set of content hashes currently being processed. It
// guarantees at-most-one active ingest per hash (spec §5), directly
// modeled on the original's try_acquire/ProcessingGuard pair: acquisition
// returns a release closure instead of a Drop impl, since Go has no RAII,
// but the call-site discipline is the same - release is always deferred at
// the point of acquisition.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewGuard creates an empty Guard.
func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// TryAcquire attempts to claim hash for the calling ingest. ok is false if
// another ingest already holds it; release must be called exactly once,
// normally via defer, when ok is true.
func (g *Guard) TryAcquire(hash string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[hash]; busy {
		return nil, false
	}
	g.inFlight[hash] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, hash)
			g.mu.Unlock()
		})
	}, true
}

// InFlight reports whether hash currently holds the guard; for tests and
// diagnostics only.
func (g *Guard) InFlight(hash string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[hash]
	return busy
}
