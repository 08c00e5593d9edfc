// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tomtom215/gallery/internal/metrics"
	"github.com/tomtom215/gallery/internal/models"
)

// Apply executes ops as one write transaction: either all operations commit
// or none do. On failure it returns a *BatchError carrying the index of the
// operation at fault.
func (db *DB) Apply(ctx context.Context, ops []models.Op) error {
	started := time.Now()
	w, err := db.BeginWrite(ctx)
	if err != nil {
		return err
	}

	for i, op := range ops {
		if err := db.applyOne(ctx, w.tx, op); err != nil {
			_ = w.Rollback()
			batchErr := &BatchError{OpIndex: i, Op: opName(op), Err: err}
			metrics.StoreApplyErrors.WithLabelValues(batchErr.Op).Inc()
			return batchErr
		}
	}

	if err := db.Commit(w); err != nil {
		return err
	}
	metrics.ObserveStoreQuery("apply", time.Since(started))
	return nil
}

func opName(op models.Op) string {
	switch op.(type) {
	case models.InsertEntity:
		return "InsertEntity"
	case models.RemoveEntity:
		return "RemoveEntity"
	case models.InsertTag:
		return "InsertTag"
	case models.RemoveTag:
		return "RemoveTag"
	case models.InsertAlias:
		return "InsertAlias"
	case models.InsertExif:
		return "InsertExif"
	case models.MarkReady:
		return "MarkReady"
	case models.ReclassifyVideoAsImage:
		return "ReclassifyVideoAsImage"
	case models.InsertAlbumMember:
		return "InsertAlbumMember"
	case models.RemoveAlbumMember:
		return "RemoveAlbumMember"
	default:
		return "Unknown"
	}
}

func (db *DB) applyOne(ctx context.Context, tx *sql.Tx, op models.Op) error {
	switch v := op.(type) {
	case models.InsertEntity:
		return applyInsertEntity(ctx, tx, v)
	case models.RemoveEntity:
		return applyRemoveEntity(ctx, tx, v)
	case models.InsertTag:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO object_tag (object_id, tag) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			v.ObjectID, v.Tag)
		return err
	case models.RemoveTag:
		_, err := tx.ExecContext(ctx,
			`DELETE FROM object_tag WHERE object_id = ? AND tag = ?`, v.ObjectID, v.Tag)
		return err
	case models.InsertAlias:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO object_alias (object_id, file, modified, scan_time) VALUES (?, ?, ?, ?)
			 ON CONFLICT (object_id, scan_time) DO UPDATE SET file = excluded.file, modified = excluded.modified`,
			v.Alias.ObjectID, v.Alias.File, v.Alias.Modified, v.Alias.ScanTime)
		return err
	case models.InsertExif:
		_, err := tx.ExecContext(ctx,
			`INSERT INTO object_exif (object_id, tag, value) VALUES (?, ?, ?)
			 ON CONFLICT (object_id, tag) DO UPDATE SET value = excluded.value`,
			v.Exif.ObjectID, v.Exif.Tag, v.Exif.Value)
		return err
	case models.MarkReady:
		_, err := tx.ExecContext(ctx, `UPDATE object SET pending = false WHERE id = ?`, v.ObjectID)
		return err
	case models.ReclassifyVideoAsImage:
		return applyReclassifyVideoAsImage(ctx, tx, v)
	case models.InsertAlbumMember:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO album_member (album_id, object_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			v.AlbumID, v.ObjectID); err != nil {
			return err
		}
		return recomputeAlbumAggregate(ctx, tx, v.AlbumID)
	case models.RemoveAlbumMember:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM album_member WHERE album_id = ? AND object_id = ?`,
			v.AlbumID, v.ObjectID); err != nil {
			return err
		}
		return recomputeAlbumAggregate(ctx, tx, v.AlbumID)
	default:
		return fmt.Errorf("store: unknown op type %T", op)
	}
}

func applyInsertEntity(ctx context.Context, tx *sql.Tx, v models.InsertEntity) error {
	obj := v.Object
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO object (id, obj_type, created_time, pending, thumbhash) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET pending = excluded.pending, thumbhash = excluded.thumbhash`,
		obj.ID, string(obj.Type), obj.CreatedTime, obj.Pending, obj.Thumbhash); err != nil {
		return fmt.Errorf("insert object: %w", err)
	}

	switch {
	case v.Image != nil:
		img := v.Image
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO image_meta (id, size, width, height, ext, phash) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET size = excluded.size, width = excluded.width,
				height = excluded.height, ext = excluded.ext, phash = excluded.phash`,
			img.ID, img.Size, img.Width, img.Height, img.Ext, img.PHash); err != nil {
			return fmt.Errorf("insert image_meta: %w", err)
		}
	case v.Video != nil:
		vid := v.Video
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO video_meta (id, size, width, height, ext, duration) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET size = excluded.size, width = excluded.width,
				height = excluded.height, ext = excluded.ext, duration = excluded.duration`,
			vid.ID, vid.Size, vid.Width, vid.Height, vid.Ext, vid.Duration); err != nil {
			return fmt.Errorf("insert video_meta: %w", err)
		}
	case v.Album != nil:
		alb := v.Album
		userMeta, err := json.Marshal(alb.UserMeta)
		if err != nil {
			return fmt.Errorf("marshal album user_meta: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO album_meta (id, title, start_time, end_time, last_modified_time, cover,
				item_count, item_size, user_meta) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET title = excluded.title, start_time = excluded.start_time,
				end_time = excluded.end_time, last_modified_time = excluded.last_modified_time,
				cover = excluded.cover, item_count = excluded.item_count, item_size = excluded.item_size,
				user_meta = excluded.user_meta`,
			alb.ID, alb.Title, alb.StartTime, alb.EndTime, alb.LastModifiedTime, alb.Cover,
			alb.ItemCount, alb.ItemSize, string(userMeta)); err != nil {
			return fmt.Errorf("insert album_meta: %w", err)
		}
	default:
		return fmt.Errorf("InsertEntity: exactly one of Image/Video/Album must be set")
	}
	return nil
}

// applyReclassifyVideoAsImage implements the static-GIF reclassification
// rule (spec §4.4 edge case: a "video" whose duration is a single frame is
// really an image): drop the video_meta row, write an image_meta row in its
// place, and flip obj_type, all inside the caller's transaction.
func applyReclassifyVideoAsImage(ctx context.Context, tx *sql.Tx, v models.ReclassifyVideoAsImage) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM video_meta WHERE id = ?`, v.ObjectID); err != nil {
		return fmt.Errorf("reclassify: remove video_meta: %w", err)
	}
	img := v.Image
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO image_meta (id, size, width, height, ext, phash) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET size = excluded.size, width = excluded.width,
			height = excluded.height, ext = excluded.ext, phash = excluded.phash`,
		img.ID, img.Size, img.Width, img.Height, img.Ext, img.PHash); err != nil {
		return fmt.Errorf("reclassify: insert image_meta: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE object SET obj_type = ? WHERE id = ?`, string(models.ObjTypeImage), v.ObjectID); err != nil {
		return fmt.Errorf("reclassify: update obj_type: %w", err)
	}
	return nil
}

func applyRemoveEntity(ctx context.Context, tx *sql.Tx, v models.RemoveEntity) error {
	// Cascade manually: DuckDB's FK support does not enforce ON DELETE CASCADE.
	statements := []string{
		`DELETE FROM album_share WHERE album_id = ?`,
		`DELETE FROM album_member WHERE album_id = ? OR object_id = ?`,
		`DELETE FROM object_tag WHERE object_id = ?`,
		`DELETE FROM object_exif WHERE object_id = ?`,
		`DELETE FROM object_alias WHERE object_id = ?`,
		`DELETE FROM image_meta WHERE id = ?`,
		`DELETE FROM video_meta WHERE id = ?`,
		`DELETE FROM album_meta WHERE id = ?`,
		`DELETE FROM object WHERE id = ?`,
	}
	args := [][]any{
		{v.ID},
		{v.ID, v.ID},
		{v.ID},
		{v.ID},
		{v.ID},
		{v.ID},
		{v.ID},
		{v.ID},
		{v.ID},
	}
	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, args[i]...); err != nil {
			return fmt.Errorf("remove entity: %w", err)
		}
	}
	return nil
}

// recomputeAlbumAggregate recomputes item_count, item_size, start_time,
// end_time, last_modified_time and cover for albumID, inside the same
// transaction as the membership change that triggered it. This is the
// DuckDB-native substitute for the data model's "trigger-maintained
// aggregates", since DuckDB has no row-level triggers.
func recomputeAlbumAggregate(ctx context.Context, tx *sql.Tx, albumID string) error {
	var (
		count            int
		size             sql.NullInt64
		minCreated       sql.NullInt64
		maxCreated       sql.NullInt64
		currentCover     sql.NullString
		currentCoverSeen bool
	)

	row := tx.QueryRowContext(ctx, `
		SELECT count(*), coalesce(sum(coalesce(i.size, v.size)), 0),
		       min(o.created_time), max(o.created_time)
		FROM album_member m
		JOIN object o ON o.id = m.object_id
		LEFT JOIN image_meta i ON i.id = o.id
		LEFT JOIN video_meta v ON v.id = o.id
		WHERE m.album_id = ?`, albumID)
	if err := row.Scan(&count, &size, &minCreated, &maxCreated); err != nil {
		return fmt.Errorf("recompute album aggregate: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT cover FROM album_meta WHERE id = ?`, albumID).
		Scan(&currentCover); err == nil {
		currentCoverSeen = currentCover.Valid
	}

	cover := sql.NullString{}
	if currentCoverSeen {
		var stillMember bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM album_member WHERE album_id = ? AND object_id = ?)`,
			albumID, currentCover.String).Scan(&stillMember); err != nil {
			return fmt.Errorf("recompute album aggregate: check cover membership: %w", err)
		}
		if stillMember {
			cover = currentCover
		}
	}
	if !cover.Valid && count > 0 {
		// Pick the member with the smallest created_time; ties are
		// implementation-defined (per spec Open Questions).
		if err := tx.QueryRowContext(ctx, `
			SELECT m.object_id FROM album_member m
			JOIN object o ON o.id = m.object_id
			WHERE m.album_id = ?
			ORDER BY o.created_time ASC, m.object_id ASC
			LIMIT 1`, albumID).Scan(&cover.String); err != nil {
			return fmt.Errorf("recompute album aggregate: pick cover: %w", err)
		}
		cover.Valid = true
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE album_meta SET
			item_count = ?, item_size = ?, start_time = ?, end_time = ?,
			cover = ?, last_modified_time = ?
		WHERE id = ?`,
		count, size.Int64, nullableInt64(minCreated), nullableInt64(maxCreated),
		nullableString(cover), nowMillis(), albumID)
	if err != nil {
		return fmt.Errorf("recompute album aggregate: update: %w", err)
	}
	return nil
}

func nullableInt64(v sql.NullInt64) any {
	if !v.Valid {
		return nil
	}
	return v.Int64
}

func nullableString(v sql.NullString) any {
	if !v.Valid {
		return nil
	}
	return v.String
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
