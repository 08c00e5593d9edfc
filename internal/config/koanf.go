// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where a config file is searched for, in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/gallery/config.yaml",
	"/etc/gallery/config.yml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with sensible defaults for every field.
// Defaults are applied first, then overridden by the config file and
// environment variables.
func defaultConfig() *Config {
	return &Config{
		Watch: WatchConfig{
			Roots:           []string{},
			ImageExtensions: []string{"jpg", "jpeg", "png", "webp", "heic", "heif", "bmp", "tiff"},
			VideoExtensions: []string{"gif", "mp4", "mov", "mkv", "webm", "avi", "m4v"},
			SettleDelay:     2 * time.Second,
		},
		Store: StoreConfig{
			Path:                   "/data/gallery.duckdb",
			MaxMemory:              "2GB",
			Threads:                0,
			PreserveInsertionOrder: true,
			StatementCacheSize:     64,
		},
		Snapshot: SnapshotConfig{
			DiskPath:       "/data/snapshot-cache",
			GracePeriod:    30 * time.Second,
			SweepInterval:  1 * time.Minute,
			MemoryCapacity: 256,
		},
		Ingest: IngestConfig{
			ObjectRoot:              "/data/object",
			ThumbnailMaxSide:        1280,
			CompressionMaxHeight:    720,
			OpenRetries:             3,
			CopyRetries:             3,
			DeleteRetries:           5,
			RetryBaseDelay:          100 * time.Millisecond,
			FFmpegPath:              "ffmpeg",
			FFprobePath:             "ffprobe",
			VideoBreakerMaxFailures: 5,
			VideoBreakerCooldown:    30 * time.Second,
		},
		Coordinator: CoordinatorConfig{
			BatchWorkers:  4,
			IndexWorkers:  4,
			QueueCapacity: 256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration in three layers, in order of precedence:
//  1. Defaults: built-in sensible defaults
//  2. Config File: optional YAML config file (if found)
//  3. Environment Variables: override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// GALLERY_WATCH_ROOTS -> watch.roots, GALLERY_STORE_PATH -> store.path, ...
	envProvider := env.Provider("GALLERY_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists koanf paths that must be parsed as comma-separated
// slices when they arrive from an environment variable.
var sliceConfigPaths = []string{
	"watch.roots",
	"watch.image_extensions",
	"watch.video_extensions",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc strips the GALLERY_ prefix applied by env.Provider and
// lowercases the remainder, turning GALLERY_STORE_PATH into store.path and
// GALLERY_INGEST_THUMBNAIL_MAX_SIDE into ingest.thumbnail_max_side.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	key = strings.TrimPrefix(key, "gallery_")

	// Known two-level sections; everything after the section name maps to a
	// single nested field name joined by underscores.
	sections := []string{"watch", "store", "snapshot", "ingest", "coordinator", "metrics", "logging"}
	for _, section := range sections {
		prefix := section + "_"
		if strings.HasPrefix(key, prefix) {
			return section + "." + strings.TrimPrefix(key, prefix)
		}
	}
	return key
}

// GetKoanfInstance builds and returns the koanf instance used to load the
// configuration, primarily so callers can introspect raw values for
// diagnostics without re-unmarshaling into Config.
func GetKoanfInstance() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, err
	}
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// WatchConfigFile watches the given YAML config file for changes and invokes
// callback on every write, so an operator can adjust watch roots or
// coordinator pool sizes without restarting the process.
func WatchConfigFile(path string, callback func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					callback()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", path, err)
	}
	return nil
}
