// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/gallery/internal/config"
)

// copyPermit serializes disk writes for the content-addressed copy step
// (spec §4.4 step 4, §4.5 resource policy): a buffered channel of size 1
// acts as a global mutex any number of concurrent ingests contend for.
type copyPermit chan struct{}

func newCopyPermit() copyPermit {
	return make(copyPermit, 1)
}

func (p copyPermit) acquire(ctx context.Context) error {
	select {
	case p <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p copyPermit) release() {
	<-p
}

// importedPath returns ./object/imported/<hash[0:2]>/<hash>.<ext>.
func importedPath(root, hash, ext string) string {
	return filepath.Join(root, "object", "imported", hash[:2], hash+"."+ext)
}

// compressedPath returns ./object/compressed/<hash[0:2]>/<hash>.<jpg|mp4>.
func compressedPath(root, hash, ext string) string {
	return filepath.Join(root, "object", "compressed", hash[:2], hash+"."+ext)
}

// copyToImported copies src into the content-addressed imported tree, with
// up to cfg.CopyRetries retries, serialized by permit. It copies rather than
// renaming, since the source may live on a different filesystem (e.g.
// ./upload mounted separately from ./object); src itself is left in place
// and removed later by deleteSource.
func copyToImported(ctx context.Context, permit copyPermit, cfg config.IngestConfig, src, dst string) error {
	if err := permit.acquire(ctx); err != nil {
		return err
	}
	defer permit.release()

	op := func() error {
		return copyFile(src, dst)
	}
	b := backoff.WithContext(retryPolicy(cfg.CopyRetries, cfg.RetryBaseDelay), ctx)
	return backoff.Retry(op, b)
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create imported dir: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// deleteSource removes path with up to cfg.DeleteRetries retries (spec §4.4
// "source file is deleted after step 6"). It removes whatever path it is
// given: no check is made that path resolves under the upload directory or
// a watched root. A path that no longer exists counts as removed.
func deleteSource(ctx context.Context, cfg config.IngestConfig, path string) error {
	op := func() error {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	b := backoff.WithContext(retryPolicy(cfg.DeleteRetries, cfg.RetryBaseDelay), ctx)
	return backoff.Retry(op, b)
}
