// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

// Package store is the Content Store (C1): a single embedded transactional
// relational database over DuckDB, giving ACID write transactions and MVCC
// reads for objects, their type metadata, and every relation in the data
// model.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/gallery/internal/config"
	"github.com/tomtom215/gallery/internal/metrics"
)

// DB wraps the DuckDB connection backing the Content Store.
type DB struct {
	conn *sql.DB
	cfg  config.StoreConfig

	stmtCache   map[string]*sql.Stmt
	stmtCacheMu sync.RWMutex
}

// Open creates the database connection (creating the parent directory and
// schema if needed).
func Open(cfg config.StoreConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dbDir, err)
		}
	}

	preserveOrder := "true"
	if !cfg.PreserveInsertionOrder {
		preserveOrder = "false"
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s",
		cfg.Path, numThreads, cfg.MaxMemory, preserveOrder)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}

	db := &DB{
		conn:      conn,
		cfg:       cfg,
		stmtCache: make(map[string]*sql.Stmt),
	}

	if err := db.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close releases the prepared-statement cache and the underlying connection.
func (db *DB) Close() error {
	db.stmtCacheMu.Lock()
	for _, stmt := range db.stmtCache {
		_ = stmt.Close()
	}
	db.stmtCache = make(map[string]*sql.Stmt)
	db.stmtCacheMu.Unlock()
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// prepared returns a cached prepared statement for query, preparing and
// caching it on first use. Callers must not close the returned statement.
func (db *DB) prepared(ctx context.Context, query string) (*sql.Stmt, error) {
	db.stmtCacheMu.RLock()
	stmt, ok := db.stmtCache[query]
	db.stmtCacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	db.stmtCacheMu.Lock()
	defer db.stmtCacheMu.Unlock()
	if stmt, ok := db.stmtCache[query]; ok {
		return stmt, nil
	}

	cap := db.cfg.StatementCacheSize
	if cap > 0 && len(db.stmtCache) >= cap {
		for k, s := range db.stmtCache {
			_ = s.Close()
			delete(db.stmtCache, k)
			break
		}
	}

	stmt, err := db.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	db.stmtCache[query] = stmt
	return stmt, nil
}

// ReadTxn is an MVCC read-only transaction handle.
type ReadTxn struct {
	tx *sql.Tx
}

// WriteTxn is a single-writer write transaction handle.
type WriteTxn struct {
	tx *sql.Tx
}

// BeginRead opens a read-only transaction.
func (db *DB) BeginRead(ctx context.Context) (*ReadTxn, error) {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin_read: %w", err)
	}
	return &ReadTxn{tx: tx}, nil
}

// Rollback releases the read transaction's resources.
func (r *ReadTxn) Rollback() error {
	return r.tx.Rollback()
}

// BeginWrite opens a write transaction. DuckDB serializes writers itself,
// which gives the single-writer invariant without extra application locking.
func (db *DB) BeginWrite(ctx context.Context) (*WriteTxn, error) {
	started := time.Now()
	tx, err := db.conn.BeginTx(ctx, nil)
	metrics.ObserveStoreQuery("begin_write", time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("begin_write: %w", err)
	}
	return &WriteTxn{tx: tx}, nil
}

// Commit commits the write transaction.
func (db *DB) Commit(w *WriteTxn) error {
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the write transaction.
func (w *WriteTxn) Rollback() error {
	return w.tx.Rollback()
}
