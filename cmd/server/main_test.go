// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClearStaleCacheFiles(t *testing.T) {
	dir := t.TempDir()

	stale := []string{
		"tree_snapshot.bin",
		"query_snapshot.idx",
		"expire.log",
	}
	for _, name := range stale {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed stale file %s: %v", name, err)
		}
	}
	keep := filepath.Join(dir, "content_store.duckdb")
	if err := os.WriteFile(keep, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed kept file: %v", err)
	}

	if err := clearStaleCacheFiles(dir); err != nil {
		t.Fatalf("clearStaleCacheFiles: %v", err)
	}

	for _, name := range stale {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed, stat err = %v", name, err)
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("expected unrelated file to survive: %v", err)
	}
}

func TestClearStaleCacheFilesMissingDir(t *testing.T) {
	if err := clearStaleCacheFiles(filepath.Join(t.TempDir(), "does-not-exist")); err != nil {
		t.Errorf("expected no error for a missing directory, got %v", err)
	}
}
