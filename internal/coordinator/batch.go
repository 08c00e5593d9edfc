// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

// Package coordinator implements the two task coordinators (C5): a batch
// executor that coalesces concurrent submissions of the same task type into
// one invocation, and an index executor that runs single-shot tasks with
// waiting or detached semantics. Both run as suture.Service implementations
// under a SupervisorTree.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/gallery/internal/logging"
	"github.com/tomtom215/gallery/internal/metrics"
)

// BatchTask is a unit of work submitted to the BatchExecutor. Key identifies
// the coalescing group: concurrent submissions that share a Key are merged
// into the next invocation of that key's handler.
type BatchTask interface {
	Key() string
}

// BatchRun processes every task accumulated for one key since the handler's
// previous invocation.
type BatchRun func(ctx context.Context, tasks []BatchTask) error

// BatchExecutor coalesces submissions by key: a key with a batch already in
// flight accumulates further submissions into a pending queue, consumed by
// the next invocation, rather than starting a second concurrent run for that
// key. Modeled on the teacher's WAL compaction loop, which merges pending
// writes into one compaction pass instead of running one per write.
type BatchExecutor struct {
	workers chan struct{}

	mu       sync.Mutex
	handlers map[string]BatchRun
	pending  map[string][]BatchTask
	inFlight map[string]bool

	wg sync.WaitGroup
}

// NewBatchExecutor creates a BatchExecutor with a worker pool sized workers.
func NewBatchExecutor(workers int) *BatchExecutor {
	if workers < 1 {
		workers = 1
	}
	return &BatchExecutor{
		workers:  make(chan struct{}, workers),
		handlers: make(map[string]BatchRun),
		pending:  make(map[string][]BatchTask),
		inFlight: make(map[string]bool),
	}
}

// Register associates a coalescing key with the handler invoked for every
// batch accumulated under that key. Call before Submit; not safe to call
// concurrently with Submit for the same key.
func (e *BatchExecutor) Register(key string, run BatchRun) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[key] = run
}

// Submit enqueues task under its Key. If no batch is currently in flight for
// that key, a new run starts immediately; otherwise task is merged into the
// batch the in-flight run will pick up next.
func (e *BatchExecutor) Submit(task BatchTask) {
	key := task.Key()
	metrics.CoordinatorTasksSubmitted.WithLabelValues("batch", key).Inc()

	e.mu.Lock()
	e.pending[key] = append(e.pending[key], task)
	alreadyRunning := e.inFlight[key]
	if alreadyRunning {
		metrics.CoordinatorCoalescedSubmissions.WithLabelValues(key).Inc()
	} else {
		e.inFlight[key] = true
	}
	e.mu.Unlock()

	if !alreadyRunning {
		e.wg.Add(1)
		go e.drain(key)
	}
}

// drain repeatedly runs the handler for key against whatever has accumulated
// in pending, stopping once a pass finds nothing left to run.
func (e *BatchExecutor) drain(key string) {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		batch := e.pending[key]
		e.pending[key] = nil
		handler := e.handlers[key]
		if len(batch) == 0 {
			e.inFlight[key] = false
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		e.workers <- struct{}{}
		started := time.Now()
		var err error
		if handler != nil {
			err = handler(context.Background(), batch)
		}
		<-e.workers

		metrics.ObserveCoordinatorTask("batch", key, time.Since(started), err)
		if err != nil {
			logging.Error().Err(err).Str("key", key).Int("batch_size", len(batch)).
				Msg("batch task handler failed")
		}
	}
}

// Wait blocks until every in-flight and pending batch has drained. Intended
// for graceful shutdown, after the supervisor tree has stopped accepting new
// submissions.
func (e *BatchExecutor) Wait() {
	e.wg.Wait()
}

// Serve implements suture.Service: the executor has no independent loop of
// its own (work is driven by Submit), so Serve simply blocks until the
// context is canceled, then waits for in-flight batches to drain.
func (e *BatchExecutor) Serve(ctx context.Context) error {
	<-ctx.Done()
	e.Wait()
	return ctx.Err()
}

// String implements fmt.Stringer so suture can identify this service in logs.
func (e *BatchExecutor) String() string {
	return "batch-executor"
}
