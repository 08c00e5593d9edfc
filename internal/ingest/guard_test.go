// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuardTryAcquireRejectsSecondHolder(t *testing.T) {
	g := NewGuard()

	release, ok := g.TryAcquire("hash1")
	require.True(t, ok)
	require.True(t, g.InFlight("hash1"))

	_, ok = g.TryAcquire("hash1")
	require.False(t, ok)

	release()
	require.False(t, g.InFlight("hash1"))

	_, ok = g.TryAcquire("hash1")
	require.True(t, ok)
}

func TestGuardReleaseIsIdempotent(t *testing.T) {
	g := NewGuard()
	release, ok := g.TryAcquire("hash2")
	require.True(t, ok)

	release()
	release() // must not panic or double-delete another holder's entry

	_, ok = g.TryAcquire("hash2")
	require.True(t, ok)
}

func TestGuardIndependentHashesDoNotContend(t *testing.T) {
	g := NewGuard()
	var wg sync.WaitGroup
	results := make([]bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok := g.TryAcquire(string(rune('a' + i)))
			results[i] = ok
		}(i)
	}
	wg.Wait()
	for _, ok := range results {
		require.True(t, ok)
	}
}
