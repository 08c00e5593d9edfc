// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import "fmt"

// StageError wraps an error with the pipeline stage it occurred in, so
// failure reporting (metrics, ProgressReporter, logs) always has the stage
// name without re-deriving it from the call site.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingest stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// ErrUnsupportedExtension reports a file extension outside both the image
// and video allow-lists.
type ErrUnsupportedExtension struct {
	Ext string
}

func (e *ErrUnsupportedExtension) Error() string {
	return fmt.Sprintf("unsupported file extension %q", e.Ext)
}
