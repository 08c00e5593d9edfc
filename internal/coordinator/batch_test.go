// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBatchTask struct {
	key string
	id  int
}

func (f fakeBatchTask) Key() string { return f.key }

func TestBatchExecutorRunsSingleSubmission(t *testing.T) {
	e := NewBatchExecutor(2)
	var gotSizes []int
	var mu sync.Mutex
	done := make(chan struct{})

	e.Register("flush", func(_ context.Context, tasks []BatchTask) error {
		mu.Lock()
		gotSizes = append(gotSizes, len(tasks))
		mu.Unlock()
		close(done)
		return nil
	})

	e.Submit(fakeBatchTask{key: "flush", id: 1})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("batch handler never ran")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, gotSizes, 1)
	assert.Equal(t, 1, gotSizes[0])
}

func TestBatchExecutorCoalescesConcurrentSubmissions(t *testing.T) {
	e := NewBatchExecutor(2)
	var calls atomic.Int32
	var totalSeen atomic.Int32
	release := make(chan struct{})
	firstCallStarted := make(chan struct{})

	var once sync.Once
	e.Register("flush", func(_ context.Context, tasks []BatchTask) error {
		n := calls.Add(1)
		totalSeen.Add(int32(len(tasks)))
		if n == 1 {
			once.Do(func() { close(firstCallStarted) })
			<-release // hold the first invocation open so later Submits coalesce
		}
		return nil
	})

	e.Submit(fakeBatchTask{key: "flush", id: 1})
	<-firstCallStarted

	// These submissions arrive while the first invocation is in flight; they
	// must be merged into the next invocation, not spawn a second run.
	e.Submit(fakeBatchTask{key: "flush", id: 2})
	e.Submit(fakeBatchTask{key: "flush", id: 3})

	close(release)
	e.Wait()

	assert.Equal(t, int32(2), calls.Load(), "coalesced submissions should produce exactly 2 invocations")
	assert.Equal(t, int32(3), totalSeen.Load(), "every submitted task must eventually be seen")
}

func TestBatchExecutorIndependentKeysRunIndependently(t *testing.T) {
	e := NewBatchExecutor(4)
	var a, b atomic.Int32
	doneA := make(chan struct{})
	doneB := make(chan struct{})

	e.Register("a", func(_ context.Context, tasks []BatchTask) error {
		a.Add(int32(len(tasks)))
		close(doneA)
		return nil
	})
	e.Register("b", func(_ context.Context, tasks []BatchTask) error {
		b.Add(int32(len(tasks)))
		close(doneB)
		return nil
	})

	e.Submit(fakeBatchTask{key: "a", id: 1})
	e.Submit(fakeBatchTask{key: "b", id: 1})

	<-doneA
	<-doneB
	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(1), b.Load())
}

func TestBatchExecutorServeWaitsForDrain(t *testing.T) {
	e := NewBatchExecutor(1)
	started := make(chan struct{})
	finish := make(chan struct{})
	e.Register("slow", func(_ context.Context, _ []BatchTask) error {
		close(started)
		<-finish
		return nil
	})
	e.Submit(fakeBatchTask{key: "slow", id: 1})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- e.Serve(ctx) }()
	cancel()

	select {
	case <-serveDone:
		t.Fatal("Serve returned before the in-flight batch drained")
	case <-time.After(50 * time.Millisecond):
	}

	close(finish)
	select {
	case <-serveDone:
	case <-time.After(time.Second):
		t.Fatal("Serve never returned after drain completed")
	}
}
