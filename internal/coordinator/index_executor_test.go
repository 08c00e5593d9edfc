// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTask struct {
	kind string
	fn   func(ctx context.Context) (any, error)
}

func (f fakeTask) Kind() string                        { return f.kind }
func (f fakeTask) Run(ctx context.Context) (any, error) { return f.fn(ctx) }

func TestExecuteWaitingReturnsResult(t *testing.T) {
	e := NewIndexExecutor(2)
	result, err := e.ExecuteWaiting(context.Background(), fakeTask{
		kind: "rebuild-index",
		fn:   func(_ context.Context) (any, error) { return 42, nil },
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestExecuteWaitingPropagatesError(t *testing.T) {
	e := NewIndexExecutor(2)
	boom := errors.New("boom")
	_, err := e.ExecuteWaiting(context.Background(), fakeTask{
		kind: "derive",
		fn:   func(_ context.Context) (any, error) { return nil, boom },
	})
	assert.ErrorIs(t, err, boom)
}

func TestExecuteWaitingRespectsWorkerPoolBound(t *testing.T) {
	e := NewIndexExecutor(1)
	var inFlight atomic.Int32
	var maxInFlight atomic.Int32
	release := make(chan struct{})

	run := func(_ context.Context) (any, error) {
		n := inFlight.Add(1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		<-release
		inFlight.Add(-1)
		return nil, nil
	}

	done := make(chan struct{}, 2)
	go func() {
		_, _ = e.ExecuteWaiting(context.Background(), fakeTask{kind: "a", fn: run})
		done <- struct{}{}
	}()
	go func() {
		_, _ = e.ExecuteWaiting(context.Background(), fakeTask{kind: "b", fn: run})
		done <- struct{}{}
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	<-done
	<-done

	assert.Equal(t, int32(1), maxInFlight.Load(), "worker pool of size 1 must serialize execution")
}

func TestExecuteDetachedDoesNotBlockAndCompletes(t *testing.T) {
	e := NewIndexExecutor(2)
	ran := make(chan struct{})
	e.ExecuteDetached(fakeTask{
		kind: "compress",
		fn: func(_ context.Context) (any, error) {
			close(ran)
			return nil, errors.New("expected failure, must still be logged not dropped")
		},
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("detached task never ran")
	}
	e.Wait()
}
