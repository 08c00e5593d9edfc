// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"lukechampine.com/blake3"

	"github.com/tomtom215/gallery/internal/config"
)

// openFile opens path with bounded retries (open_retries, base delay
// retry_base_delay), matching ingest step 1. A missing or momentarily
// locked file is retried; a genuinely absent path still fails after the
// last attempt.
func openFile(ctx context.Context, path string, cfg config.IngestConfig) (*os.File, error) {
	var f *os.File
	op := func() error {
		var err error
		f, err = os.Open(path)
		return err
	}

	b := backoff.WithContext(retryPolicy(cfg.OpenRetries, cfg.RetryBaseDelay), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// retryPolicy builds an exponential backoff that allows maxRetries retries
// after the first attempt (maxRetries+1 attempts in all).
func retryPolicy(maxRetries int, baseDelay time.Duration) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = baseDelay
	eb.MaxElapsedTime = 0
	return backoff.WithMaxRetries(eb, uint64(maxRetries))
}

// hashFile computes the 64-hex BLAKE3-256 content hash of an already-opened
// file, matching ingest step 2. The caller owns closing f.
func hashFile(f *os.File) (string, int64, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", 0, err
	}
	h, err := blake3.New(32, nil)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
