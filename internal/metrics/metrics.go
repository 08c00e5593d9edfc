// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

// Package metrics exposes Prometheus instrumentation for the Content Store,
// the in-memory index, the query snapshot cache and the ingest pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Content Store (C1)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_store_query_duration_seconds",
			Help:    "Duration of Content Store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreApplyErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_store_apply_errors_total",
			Help: "Total number of failed apply() batches, by op type at fault",
		},
		[]string{"op"},
	)

	StoreConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_store_connections_in_use",
			Help: "Current number of DuckDB connections in use",
		},
	)

	// In-Memory Index (C2)

	IndexVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_index_version",
			Help: "Current in-memory index version",
		},
	)

	IndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_index_entities",
			Help: "Number of entities held in the in-memory index",
		},
	)

	IndexUpdateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_index_update_duration_seconds",
			Help:    "Duration of an index rebuild (Update)",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexFilterDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_index_filter_duration_seconds",
			Help:    "Duration of a Filter() evaluation",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Query Snapshot Cache (C3)

	SnapshotCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_snapshot_cache_hits_total",
			Help: "Total snapshot cache lookups served from a tier",
		},
		[]string{"tier"}, // "memory", "disk"
	)

	SnapshotCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_snapshot_cache_misses_total",
			Help: "Total snapshot cache lookups that required a fresh build",
		},
	)

	SnapshotBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_snapshot_build_duration_seconds",
			Help:    "Duration of a fresh snapshot build (on cache miss)",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotSweepEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_snapshot_sweep_evictions_total",
			Help: "Total snapshot row-lists removed by sweep()",
		},
	)

	SnapshotEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_snapshot_entries",
			Help: "Number of prefetch entries in the memory tier, as of the last Store",
		},
	)

	// Ingest Pipeline (C4)

	IngestStageCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_ingest_stage_completed_total",
			Help: "Total ingest state-machine transitions completed",
		},
		[]string{"stage"}, // opened, hashed, copied, derived, persisted, compressed, rebuild-index, converted_to_image
	)

	IngestStageFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_ingest_stage_failed_total",
			Help: "Total ingest state-machine stage failures",
		},
		[]string{"stage", "reason"},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_ingest_duration_seconds",
			Help:    "End-to-end duration of one ingest run",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	IngestGuardRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gallery_ingest_guard_rejections_total",
			Help: "Total ingest attempts rejected because the hash was already in flight",
		},
	)

	VideoBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_video_breaker_state",
			Help: "ffmpeg/ffprobe circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Task Coordinators (C5)

	CoordinatorTasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_coordinator_tasks_submitted_total",
			Help: "Total tasks submitted to a coordinator",
		},
		[]string{"coordinator", "kind"}, // coordinator: batch|index; kind: task key or type name
	)

	CoordinatorTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_coordinator_task_duration_seconds",
			Help:    "Duration of a coordinator task run",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"coordinator", "kind"},
	)

	CoordinatorTaskErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_coordinator_task_errors_total",
			Help: "Total coordinator task failures",
		},
		[]string{"coordinator", "kind"},
	)

	CoordinatorCoalescedSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_coordinator_coalesced_submissions_total",
			Help: "Total submissions merged into an already in-flight batch for their key",
		},
		[]string{"kind"},
	)
)

// ObserveStoreQuery records the duration of a Content Store operation.
func ObserveStoreQuery(operation string, d time.Duration) {
	StoreQueryDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveIngestStage records a completed or failed ingest stage transition.
func ObserveIngestStage(stage string, err error) {
	if err != nil {
		IngestStageFailed.WithLabelValues(stage, errorReason(err)).Inc()
		return
	}
	IngestStageCompleted.WithLabelValues(stage).Inc()
}

func errorReason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ObserveCoordinatorTask records a coordinator task's outcome and duration.
func ObserveCoordinatorTask(coordinator, kind string, d time.Duration, err error) {
	CoordinatorTaskDuration.WithLabelValues(coordinator, kind).Observe(d.Seconds())
	if err != nil {
		CoordinatorTaskErrors.WithLabelValues(coordinator, kind).Inc()
	}
}
