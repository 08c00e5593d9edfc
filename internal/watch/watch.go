// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

// Package watch is the minimal filesystem-watch glue feeding the ingest
// pipeline (C4) a real event source: it watches the configured root
// directories plus the canonical "./upload" directory (spec §6) for new
// files, waits until each file has had no further create or write event for
// the settle delay, then hands the path to a
// Runner. Route handlers, auth and the dashboard TUI are out of scope
// (spec §1); this package exists only far enough to drive C4 in a real
// deployment instead of requiring every caller to hand-roll fsnotify glue.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tomtom215/gallery/internal/config"
	"github.com/tomtom215/gallery/internal/ingest"
	"github.com/tomtom215/gallery/internal/logging"
)

// canonicalUploadRoot is always watched in addition to config.WatchConfig.Roots.
const canonicalUploadRoot = "./upload"

// Runner ingests one settled file. Satisfied by *ingest.Pipeline.
type Runner interface {
	Run(ctx context.Context, path string, presignedAlbum string) error
}

// Watcher watches a set of directories and hands settled files to a Runner.
type Watcher struct {
	cfg        config.WatchConfig
	classifier *ingest.Classifier
	runner     Runner
	fsw        *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a Watcher over cfg.Roots plus the canonical upload directory.
func New(cfg config.WatchConfig, runner Runner) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		cfg:        cfg,
		classifier: ingest.NewClassifier(cfg),
		runner:     runner,
		fsw:        fsw,
		pending:    make(map[string]*time.Timer),
	}

	for _, root := range w.roots() {
		if err := os.MkdirAll(root, 0o755); err != nil {
			fsw.Close()
			return nil, err
		}
		if err := fsw.Add(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// roots returns the configured watch roots plus the canonical upload
// directory, deduplicated.
func (w *Watcher) roots() []string {
	seen := make(map[string]struct{}, len(w.cfg.Roots)+1)
	roots := make([]string, 0, len(w.cfg.Roots)+1)
	for _, r := range append([]string{canonicalUploadRoot}, w.cfg.Roots...) {
		clean := filepath.Clean(r)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		roots = append(roots, clean)
	}
	return roots
}

// Serve processes fsnotify events until ctx is canceled or the underlying
// watcher errors out. Each eligible file (classifiable by extension) gets
// a settle timer that resets on every further write, firing the Runner only
// once the file has been quiet for cfg.SettleDelay - this avoids picking up
// a file still being written. Implements suture.Service.
func (w *Watcher) Serve(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn().Err(err).Msg("filesystem watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return
	}
	if _, err := w.classifier.Classify(event.Name); err != nil {
		return
	}
	w.scheduleSettleCheck(event.Name)
}

// scheduleSettleCheck (re)starts path's settle timer. When it fires, the
// path goes to the Runner without any mtime check; a file written to again
// during the wait restarts its timer through the fresh Write event instead.
func (w *Watcher) scheduleSettleCheck(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.cfg.SettleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(path)
	})
}

// ingest runs a filesystem-watched file through the Runner. Watched files
// never carry a presigned album - that only applies to the out-of-scope
// HTTP upload flow (spec §4.4 step 3), so presignedAlbum is always empty
// here.
func (w *Watcher) ingest(path string) {
	if err := w.runner.Run(context.Background(), path, ""); err != nil {
		logging.Error().Err(err).Str("path", path).Msg("watch-triggered ingest failed")
	}
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// String implements fmt.Stringer so suture can identify this service in logs.
func (w *Watcher) String() string {
	return "file-watcher"
}
