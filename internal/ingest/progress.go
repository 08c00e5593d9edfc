// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

// ProgressReporter receives ingest progress and failure notifications. The
// out-of-scope HTTP/dashboard layer implements it; the core only defines
// the interface it calls into (spec §1 Non-goals).
type ProgressReporter interface {
	// AdvanceStage reports that hash has completed the named pipeline stage.
	AdvanceStage(hash, stage string)

	// UpdateProgress reports percent completion (0-100) of a long-running
	// stage (video compression) for hash.
	UpdateProgress(hash string, percent float64)

	// MarkFailed reports that the ingest for hash has failed permanently.
	MarkFailed(hash string, err error)
}

// NoopProgressReporter discards every notification. Used when no dashboard
// is wired, and in tests.
type NoopProgressReporter struct{}

func (NoopProgressReporter) AdvanceStage(string, string)    {}
func (NoopProgressReporter) UpdateProgress(string, float64) {}
func (NoopProgressReporter) MarkFailed(string, error)       {}
