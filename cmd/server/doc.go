// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

/*
Package main is the entry point for the gallery server.

Gallery is a self-hosted media gallery engine: it ingests images and videos
dropped into a watched directory, content-addresses and deduplicates them,
derives thumbnails/perceptual hashes/compressed renditions, and serves
filtered, sorted, paginated query snapshots from an in-memory index backed
by a tiered disk cache. Route handlers, authentication, and any dashboard UI
are out of scope; this binary wires the pipeline and its supporting
services only.

# Application Architecture

The server runs a Suture v4 supervisor tree with three layers:

	RootSupervisor ("gallery")
	├── store layer ("store-layer")
	│   └── BatchExecutor (coalesced Content Store flushes and index rebuilds)
	├── ingest layer ("ingest-layer")
	│   ├── IndexExecutor (detached post-ingest tasks: source-file deletion)
	│   └── Watcher (fsnotify glue feeding the ingest pipeline)
	└── snapshot layer ("snapshot-layer")
	    └── TickerService (periodic query snapshot cache sweep)

Configuration loads via internal/config's koanf-based layered loader
(defaults → YAML file → environment variables). Logging runs through
internal/logging's zerolog wrapper. Metrics are exposed over HTTP via
internal/metrics's Prometheus collectors when enabled in config.
*/
package main
