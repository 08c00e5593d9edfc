// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/gallery/internal/logging"
	"github.com/tomtom215/gallery/internal/metrics"
)

// Task is a single-shot unit of work run by the IndexExecutor.
type Task interface {
	// Kind labels the task for metrics and logging; it need not be unique per
	// instance.
	Kind() string
	Run(ctx context.Context) (any, error)
}

// IndexExecutor runs non-coalescing tasks on a bounded worker pool, with two
// submission modes: ExecuteWaiting awaits completion, ExecuteDetached is
// fire-and-forget with errors logged rather than dropped.
type IndexExecutor struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

// NewIndexExecutor creates an IndexExecutor with a worker pool sized workers.
func NewIndexExecutor(workers int) *IndexExecutor {
	if workers < 1 {
		workers = 1
	}
	return &IndexExecutor{sem: make(chan struct{}, workers)}
}

// ExecuteWaiting runs t on the worker pool and blocks until it completes or
// ctx is canceled.
func (e *IndexExecutor) ExecuteWaiting(ctx context.Context, t Task) (any, error) {
	metrics.CoordinatorTasksSubmitted.WithLabelValues("index", t.Kind()).Inc()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.sem }()

	started := time.Now()
	result, err := t.Run(ctx)
	metrics.ObserveCoordinatorTask("index", t.Kind(), time.Since(started), err)
	return result, err
}

// ExecuteDetached submits t to run on the worker pool without waiting for
// completion. Errors are logged, never silently dropped.
func (e *IndexExecutor) ExecuteDetached(t Task) {
	metrics.CoordinatorTasksSubmitted.WithLabelValues("index", t.Kind()).Inc()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sem <- struct{}{}
		defer func() { <-e.sem }()

		started := time.Now()
		_, err := t.Run(context.Background())
		metrics.ObserveCoordinatorTask("index", t.Kind(), time.Since(started), err)
		if err != nil {
			logging.Error().Err(err).Str("kind", t.Kind()).Msg("detached task failed")
		}
	}()
}

// Wait blocks until every detached task submitted so far has completed.
func (e *IndexExecutor) Wait() {
	e.wg.Wait()
}

// Serve implements suture.Service.
func (e *IndexExecutor) Serve(ctx context.Context) error {
	<-ctx.Done()
	e.Wait()
	return ctx.Err()
}

// String implements fmt.Stringer so suture can identify this service in logs.
func (e *IndexExecutor) String() string {
	return "index-executor"
}
