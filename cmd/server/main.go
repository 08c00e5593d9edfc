// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/gallery/internal/config"
	"github.com/tomtom215/gallery/internal/coordinator"
	"github.com/tomtom215/gallery/internal/index"
	"github.com/tomtom215/gallery/internal/ingest"
	"github.com/tomtom215/gallery/internal/logging"
	"github.com/tomtom215/gallery/internal/snapshot"
	"github.com/tomtom215/gallery/internal/store"
	"github.com/tomtom215/gallery/internal/watch"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("starting gallery with supervisor tree")

	if err := clearStaleCacheFiles("./db"); err != nil {
		logging.Fatal().Err(err).Msg("failed to clear stale cache files")
	}

	db, err := store.Open(cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open content store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing content store")
		}
	}()
	logging.Info().Str("path", cfg.Store.Path).Msg("content store opened")

	idx := index.New(db)
	if err := idx.Update(context.Background()); err != nil {
		logging.Fatal().Err(err).Msg("failed initial index build")
	}
	logging.Info().Uint64("version", idx.Version()).Msg("index built")

	cache, err := snapshot.Open(snapshot.Config{
		DiskPath:       cfg.Snapshot.DiskPath,
		GracePeriod:    cfg.Snapshot.GracePeriod,
		MemoryCapacity: cfg.Snapshot.MemoryCapacity,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open query snapshot cache")
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing query snapshot cache")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := coordinator.NewSupervisorTree(coordinator.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create supervisor tree")
	}

	batch := coordinator.NewBatchExecutor(cfg.Coordinator.BatchWorkers)
	detached := coordinator.NewIndexExecutor(cfg.Coordinator.IndexWorkers)
	pipeline := ingest.NewPipeline(cfg.Ingest, cfg.Watch, db, idx, batch, detached, nil)

	watcher, err := watch.New(cfg.Watch, pipeline)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to start file watcher")
	}

	sweepInterval := cfg.Snapshot.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	sweeper := coordinator.NewTickerService("snapshot-sweep", sweepInterval, func(context.Context) {
		cache.Sweep(time.Now().UnixMilli())
	})

	tree.AddStoreService(batch)
	tree.AddIngestService(detached)
	tree.AddIngestService(watcher)
	tree.AddSnapshotService(sweeper)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logging.Info().Str("addr", cfg.Metrics.Addr).Str("path", cfg.Metrics.Path).Msg("metrics endpoint listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("error shutting down metrics server")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service failed to stop")
		}
	}

	logging.Info().Msg("gallery stopped gracefully")
}

// clearStaleCacheFiles removes any tree_snapshot, query_snapshot, or expire
// artifact files left over in dir from a previous run, before the Content
// Store or Query Snapshot Cache opens (spec §6). The Go rewrite keeps its
// own state under cfg.Store.Path/cfg.Snapshot.DiskPath, but a prior run (or
// one of the original Rust binary's legacy data directories sharing dir)
// may still have left these globs behind, so the sweep runs unconditionally
// on every startup.
func clearStaleCacheFiles(dir string) error {
	patterns := []string{"tree_snapshot.*", "query_snapshot.*", "expire.*"}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := os.RemoveAll(m); err != nil {
				return err
			}
		}
	}
	return nil
}
