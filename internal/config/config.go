// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

// Package config loads and validates gallery configuration from defaults, an
// optional YAML file, and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration for the gallery engine.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all settings
//  2. Config File: optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: override any setting via environment variables
type Config struct {
	Watch       WatchConfig       `koanf:"watch"`
	Store       StoreConfig       `koanf:"store"`
	Snapshot    SnapshotConfig    `koanf:"snapshot"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Coordinator CoordinatorConfig `koanf:"coordinator"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// WatchConfig controls which directories are scanned for new media and which
// extensions are accepted as ingest candidates.
type WatchConfig struct {
	// Roots lists directories watched for new files. The canonical upload
	// directory ("./upload") is always included and need not be listed here.
	Roots []string `koanf:"roots"`

	// ImageExtensions are file extensions (lowercase, no dot) treated as images.
	ImageExtensions []string `koanf:"image_extensions"`

	// VideoExtensions are file extensions (lowercase, no dot) treated as videos.
	VideoExtensions []string `koanf:"video_extensions"`

	// SettleDelay is how long a file must go without a further create or write
	// event before ingest picks it up, to avoid reading a file that is still
	// being written. The file's mtime is not checked.
	SettleDelay time.Duration `koanf:"settle_delay"`
}

// StoreConfig configures the embedded DuckDB content store (C1).
type StoreConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"` // 0 = runtime.NumCPU()
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
	StatementCacheSize     int    `koanf:"statement_cache_size"`
}

// SnapshotConfig configures the tiered query snapshot cache (C3).
type SnapshotConfig struct {
	// DiskPath is the Badger directory backing the disk tier.
	DiskPath string `koanf:"disk_path"`

	// GracePeriod is how long a snapshot remains servable after the index
	// version it was built from is superseded, before it is evicted.
	GracePeriod time.Duration `koanf:"grace_period"`

	// SweepInterval is how often cmd/server runs the cache's Sweep, which
	// removes expired entries from the memory tier only.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// MemoryCapacity is passed to snapshot.Config and must be positive to
	// validate; the cache does not use it to bound the memory tier.
	MemoryCapacity int `koanf:"memory_capacity"`
}

// IngestConfig configures the per-file ingest pipeline (C4).
type IngestConfig struct {
	// ObjectRoot is the directory content-addressed blobs are written under:
	// ObjectRoot/object/imported/<hash[0:2]>/<hash>.<ext> and
	// ObjectRoot/object/compressed/<hash[0:2]>/<hash>.<jpg|mp4>.
	ObjectRoot string `koanf:"object_root"`

	// ThumbnailMaxSide is the longest side, in pixels, of generated thumbnails.
	ThumbnailMaxSide int `koanf:"thumbnail_max_side"`

	// CompressionMaxHeight bounds the height of the compressed video rendition.
	CompressionMaxHeight int `koanf:"compression_max_height"`

	// OpenRetries bounds retries of the initial file-open step.
	OpenRetries int `koanf:"open_retries"`

	// CopyRetries bounds retries of the content-addressed copy step.
	CopyRetries int `koanf:"copy_retries"`

	// DeleteRetries bounds retries of cleaning up the source file after ingest.
	DeleteRetries int `koanf:"delete_retries"`

	// RetryBaseDelay is the base delay for the exponential backoff applied to
	// the retryable steps above.
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// FFmpegPath and FFprobePath locate the subprocess binaries used to probe,
	// derive and compress video.
	FFmpegPath  string `koanf:"ffmpeg_path"`
	FFprobePath string `koanf:"ffprobe_path"`

	// VideoBreakerMaxFailures trips the ffmpeg/ffprobe circuit breaker after
	// this many consecutive subprocess failures.
	VideoBreakerMaxFailures uint32 `koanf:"video_breaker_max_failures"`

	// VideoBreakerCooldown is how long the breaker stays open before probing
	// the subprocess again.
	VideoBreakerCooldown time.Duration `koanf:"video_breaker_cooldown"`
}

// CoordinatorConfig sizes the task coordinator worker pools (C5).
type CoordinatorConfig struct {
	// BatchWorkers is the number of concurrent batch (coalescing) executors.
	BatchWorkers int `koanf:"batch_workers"`

	// IndexWorkers is the number of concurrent index (waiting/detached) executors.
	IndexWorkers int `koanf:"index_workers"`

	// QueueCapacity must be positive to pass validation. Neither coordinator
	// reads it: pending tasks are not bounded and Submit never blocks.
	QueueCapacity int `koanf:"queue_capacity"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	Path    string `koanf:"path"`
}

// LoggingConfig mirrors internal/logging.Config for koanf-driven loading.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for internal consistency, returning the
// first error encountered.
func (c *Config) Validate() error {
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateSnapshot(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateCoordinator(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWatch() error {
	if len(c.Watch.ImageExtensions) == 0 {
		return fmt.Errorf("watch.image_extensions: at least one extension required")
	}
	if len(c.Watch.VideoExtensions) == 0 {
		return fmt.Errorf("watch.video_extensions: at least one extension required")
	}
	if c.Watch.SettleDelay < 0 {
		return fmt.Errorf("watch.settle_delay: must not be negative")
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path: required")
	}
	if c.Store.Threads < 0 {
		return fmt.Errorf("store.threads: must not be negative")
	}
	if c.Store.StatementCacheSize <= 0 {
		return fmt.Errorf("store.statement_cache_size: must be positive")
	}
	return nil
}

func (c *Config) validateSnapshot() error {
	if c.Snapshot.DiskPath == "" {
		return fmt.Errorf("snapshot.disk_path: required")
	}
	if c.Snapshot.GracePeriod < 0 {
		return fmt.Errorf("snapshot.grace_period: must not be negative")
	}
	if c.Snapshot.SweepInterval <= 0 {
		return fmt.Errorf("snapshot.sweep_interval: must be positive")
	}
	if c.Snapshot.MemoryCapacity <= 0 {
		return fmt.Errorf("snapshot.memory_capacity: must be positive")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.ObjectRoot == "" {
		return fmt.Errorf("ingest.object_root: required")
	}
	if c.Ingest.ThumbnailMaxSide <= 0 {
		return fmt.Errorf("ingest.thumbnail_max_side: must be positive")
	}
	if c.Ingest.CompressionMaxHeight <= 0 {
		return fmt.Errorf("ingest.compression_max_height: must be positive")
	}
	if c.Ingest.OpenRetries < 0 || c.Ingest.CopyRetries < 0 || c.Ingest.DeleteRetries < 0 {
		return fmt.Errorf("ingest: retry counts must not be negative")
	}
	if c.Ingest.RetryBaseDelay <= 0 {
		return fmt.Errorf("ingest.retry_base_delay: must be positive")
	}
	if c.Ingest.FFmpegPath == "" || c.Ingest.FFprobePath == "" {
		return fmt.Errorf("ingest: ffmpeg_path and ffprobe_path are required")
	}
	return nil
}

func (c *Config) validateCoordinator() error {
	if c.Coordinator.BatchWorkers <= 0 {
		return fmt.Errorf("coordinator.batch_workers: must be positive")
	}
	if c.Coordinator.IndexWorkers <= 0 {
		return fmt.Errorf("coordinator.index_workers: must be positive")
	}
	if c.Coordinator.QueueCapacity <= 0 {
		return fmt.Errorf("coordinator.queue_capacity: must be positive")
	}
	return nil
}
