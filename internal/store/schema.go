// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

/*
schema.go - Content Store schema management.

Tables:
  - object: shared header row for every entity (image/video/album)
  - image_meta, video_meta, album_meta: per-variant metadata, one row per object
  - album_member, object_tag, object_exif, object_alias, album_share: relations

DuckDB has no row-level triggers, so the album aggregates the data model
calls "trigger-maintained" are instead recomputed inside the same write
transaction as every album_member insert/remove (see recomputeAlbumAggregate
in apply.go).
*/
package store

import (
	"context"
	"fmt"
	"time"
)

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) initSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	for _, query := range indexCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute index statement: %w", err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS object (
			id           VARCHAR PRIMARY KEY,
			obj_type     VARCHAR NOT NULL,
			created_time BIGINT NOT NULL,
			pending      BOOLEAN NOT NULL DEFAULT false,
			thumbhash    BLOB
		)`,

		`CREATE TABLE IF NOT EXISTS image_meta (
			id     VARCHAR PRIMARY KEY REFERENCES object(id),
			size   BIGINT NOT NULL,
			width  INTEGER NOT NULL,
			height INTEGER NOT NULL,
			ext    VARCHAR NOT NULL,
			phash  UBIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS video_meta (
			id       VARCHAR PRIMARY KEY REFERENCES object(id),
			size     BIGINT NOT NULL,
			width    INTEGER NOT NULL,
			height   INTEGER NOT NULL,
			ext      VARCHAR NOT NULL,
			duration DOUBLE NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS album_meta (
			id                  VARCHAR PRIMARY KEY REFERENCES object(id),
			title               VARCHAR,
			start_time          BIGINT,
			end_time            BIGINT,
			last_modified_time  BIGINT NOT NULL,
			cover               VARCHAR,
			item_count          INTEGER NOT NULL DEFAULT 0,
			item_size           BIGINT NOT NULL DEFAULT 0,
			user_meta           JSON
		)`,

		// Many-to-many, composite PK, bidirectional index needed (see
		// indexCreationQueries for the reverse direction).
		`CREATE TABLE IF NOT EXISTS album_member (
			album_id  VARCHAR NOT NULL REFERENCES album_meta(id),
			object_id VARCHAR NOT NULL REFERENCES object(id),
			PRIMARY KEY (album_id, object_id)
		)`,

		`CREATE TABLE IF NOT EXISTS object_tag (
			object_id VARCHAR NOT NULL REFERENCES object(id),
			tag       VARCHAR NOT NULL,
			PRIMARY KEY (object_id, tag)
		)`,

		`CREATE TABLE IF NOT EXISTS object_exif (
			object_id VARCHAR NOT NULL REFERENCES object(id),
			tag       VARCHAR NOT NULL,
			value     VARCHAR NOT NULL,
			PRIMARY KEY (object_id, tag)
		)`,

		`CREATE TABLE IF NOT EXISTS object_alias (
			object_id VARCHAR NOT NULL REFERENCES object(id),
			file      VARCHAR NOT NULL,
			modified  BIGINT NOT NULL,
			scan_time BIGINT NOT NULL,
			PRIMARY KEY (object_id, scan_time)
		)`,

		`CREATE TABLE IF NOT EXISTS album_share (
			album_id      VARCHAR NOT NULL REFERENCES album_meta(id),
			share_url     VARCHAR PRIMARY KEY,
			description   VARCHAR NOT NULL DEFAULT '',
			password      BLOB,
			show_metadata BOOLEAN NOT NULL DEFAULT false,
			show_download BOOLEAN NOT NULL DEFAULT false,
			show_upload   BOOLEAN NOT NULL DEFAULT false,
			exp           BIGINT NOT NULL DEFAULT 0
		)`,
	}
}

func indexCreationQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_object_created_time ON object(created_time DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_album_member_object ON album_member(object_id)`,
		`CREATE INDEX IF NOT EXISTS idx_object_tag_tag ON object_tag(tag)`,
		`CREATE INDEX IF NOT EXISTS idx_object_exif_tag ON object_exif(tag)`,
		`CREATE INDEX IF NOT EXISTS idx_object_alias_object ON object_alias(object_id)`,
		`CREATE INDEX IF NOT EXISTS idx_album_share_album ON album_share(album_id)`,
	}
}
