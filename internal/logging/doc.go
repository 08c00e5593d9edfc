// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

// Package logging provides centralized zerolog-based structured logging for the
// gallery engine.
//
// The package provides:
//   - Zero-allocation structured logging via zerolog
//   - JSON output format for production (machine-parseable)
//   - Console output format for development (human-readable)
//   - Global logger configuration through Init(Config)
//   - Context-aware logging with correlation ID propagation
//   - slog adapter for Suture v4 integration (internal/coordinator)
//
// # Quick Start
//
//	import "github.com/tomtom215/gallery/internal/logging"
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Caller: false,
//	})
//
//	logging.Info().Str("hash", hash).Msg("ingest started")
//	logging.Error().Err(err).Str("stage", "derive").Msg("ingest failed")
//
// # Configuration
//
// This package reads no environment variables itself; the logger is configured
// only through Init(Config). cmd/server fills that Config from internal/config's
// logging section, which can be set with GALLERY_LOGGING_LEVEL (default: info),
// GALLERY_LOGGING_FORMAT (json or console, default: json) and
// GALLERY_LOGGING_CALLER (default: false).
//
// # Structured Logging Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// # Context-Aware Logging
//
// A caller can attach a correlation ID to a context; every line logged through
// Ctx(ctx) then carries it, so related log lines can be grouped together:
//
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Info().Msg("processing")
//
// # slog Adapter
//
// internal/coordinator's supervisor tree requires an slog.Logger; NewSlogLogger
// bridges it to the same zerolog sink as the rest of the process:
//
//	slogLogger := logging.NewSlogLogger()
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger is
// protected by sync.RWMutex for configuration changes.
package logging
