// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package coordinator

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/gallery/internal/logging"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay, in seconds.
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's own built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// SupervisorTree manages the hierarchical supervisor structure for the
// gallery engine.
//
// The tree is organized into three layers:
//   - store: Content Store maintenance (batch flush, album recompute retries)
//   - ingest: the ingest pipeline's coordinators and file watcher
//   - snapshot: query snapshot cache flush/invalidate/sweep
//
// A crash in one layer doesn't take down the others - ingest failures don't
// stop already-cached queries from being served, and vice versa.
type SupervisorTree struct {
	root     *suture.Supervisor
	store    *suture.Supervisor
	ingest   *suture.Supervisor
	snapshot *suture.Supervisor
	config   TreeConfig
}

// NewSupervisorTree creates a new supervisor tree with the given
// configuration. The root supervisor's lifecycle events go through
// sutureslog to logging.NewSlogLogger, the same zerolog sink as the rest of
// the engine.
func NewSupervisorTree(config TreeConfig) (*SupervisorTree, error) {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("gallery", rootSpec)
	store := suture.New("store-layer", childSpec)
	ingest := suture.New("ingest-layer", childSpec)
	snapshot := suture.New("snapshot-layer", childSpec)

	root.Add(store)
	root.Add(ingest)
	root.Add(snapshot)

	return &SupervisorTree{
		root:     root,
		store:    store,
		ingest:   ingest,
		snapshot: snapshot,
		config:   config,
	}, nil
}

// Root returns the root supervisor for direct access if needed.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// AddStoreService adds a service to the store layer supervisor. Use this for
// the batch executor's FlushContentStore/RebuildIndex handlers.
func (t *SupervisorTree) AddStoreService(svc suture.Service) suture.ServiceToken {
	return t.store.Add(svc)
}

// AddIngestService adds a service to the ingest layer supervisor. Use this
// for the directory watcher and the index executor driving pipeline stages.
func (t *SupervisorTree) AddIngestService(svc suture.Service) suture.ServiceToken {
	return t.ingest.Add(svc)
}

// AddSnapshotService adds a service to the snapshot layer supervisor. Use
// this for the cache's flush/invalidate/sweep batch tasks.
func (t *SupervisorTree) AddSnapshotService(svc suture.Service) suture.ServiceToken {
	return t.snapshot.Add(svc)
}

// Serve starts the supervisor tree and blocks until the context is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the supervisor tree in a background goroutine.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport returns information about services that failed to
// stop within the configured shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

// Remove removes a service from the tree by its token.
func (t *SupervisorTree) Remove(token suture.ServiceToken) error {
	return t.root.Remove(token)
}
