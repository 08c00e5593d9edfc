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

// Load reads one composed Entity by id, joining the object header, its
// type-specific metadata and every relation.
func (db *DB) Load(ctx context.Context, id string) (*models.Entity, error) {
	started := time.Now()
	defer func() { metrics.ObserveStoreQuery("load", time.Since(started)) }()

	entities, err := db.loadEntities(ctx, `WHERE o.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, &ErrNotFound{ID: id}
	}
	return &entities[0], nil
}

// LoadAllOfType batch-fetches every entity of the given type, joining
// relation tables with a single `WHERE object_id IN (...)` query each rather
// than querying per-object, so an index rebuild never pays an N+1 cost.
func (db *DB) LoadAllOfType(ctx context.Context, t models.ObjType) ([]models.Entity, error) {
	started := time.Now()
	defer func() { metrics.ObserveStoreQuery("load_all_of_type", time.Since(started)) }()

	return db.loadEntities(ctx, `WHERE o.obj_type = ?`, string(t))
}

func (db *DB) loadEntities(ctx context.Context, where string, arg any) ([]models.Entity, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT o.id, o.obj_type, o.created_time, o.pending, o.thumbhash
		FROM object o `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.Entity)
	var order []string
	for rows.Next() {
		var (
			id, objType        string
			createdTime        int64
			pending             bool
			thumbhash           []byte
		)
		if err := rows.Scan(&id, &objType, &createdTime, &pending, &thumbhash); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		e := &models.Entity{Object: models.Object{
			ID: id, Type: models.ObjType(objType), CreatedTime: createdTime,
			Pending: pending, Thumbhash: thumbhash,
		}}
		byID[id] = e
		order = append(order, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, nil
	}

	if err := db.hydrateTypeMetadata(ctx, byID, order); err != nil {
		return nil, err
	}
	if err := db.hydrateRelations(ctx, byID, order); err != nil {
		return nil, err
	}

	out := make([]models.Entity, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

func idList(ids []string) (placeholders string, args []any) {
	args = make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}
	return placeholders, args
}

func (db *DB) hydrateTypeMetadata(ctx context.Context, byID map[string]*models.Entity, ids []string) error {
	ph, args := idList(ids)

	imgRows, err := db.conn.QueryContext(ctx,
		`SELECT id, size, width, height, ext, phash FROM image_meta WHERE id IN (`+ph+`)`, args...)
	if err != nil {
		return fmt.Errorf("hydrate image_meta: %w", err)
	}
	for imgRows.Next() {
		var m models.ImageMeta
		var phash sql.NullInt64
		if err := imgRows.Scan(&m.ID, &m.Size, &m.Width, &m.Height, &m.Ext, &phash); err != nil {
			imgRows.Close()
			return fmt.Errorf("scan image_meta: %w", err)
		}
		if phash.Valid {
			v := uint64(phash.Int64)
			m.PHash = &v
		}
		byID[m.ID].Image = &m
	}
	imgRows.Close()
	if err := imgRows.Err(); err != nil {
		return err
	}

	vidRows, err := db.conn.QueryContext(ctx,
		`SELECT id, size, width, height, ext, duration FROM video_meta WHERE id IN (`+ph+`)`, args...)
	if err != nil {
		return fmt.Errorf("hydrate video_meta: %w", err)
	}
	for vidRows.Next() {
		var m models.VideoMeta
		if err := vidRows.Scan(&m.ID, &m.Size, &m.Width, &m.Height, &m.Ext, &m.Duration); err != nil {
			vidRows.Close()
			return fmt.Errorf("scan video_meta: %w", err)
		}
		byID[m.ID].Video = &m
	}
	vidRows.Close()
	if err := vidRows.Err(); err != nil {
		return err
	}

	albRows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, start_time, end_time, last_modified_time, cover, item_count, item_size, user_meta
		 FROM album_meta WHERE id IN (`+ph+`)`, args...)
	if err != nil {
		return fmt.Errorf("hydrate album_meta: %w", err)
	}
	for albRows.Next() {
		var m models.AlbumMeta
		var userMeta sql.NullString
		if err := albRows.Scan(&m.ID, &m.Title, &m.StartTime, &m.EndTime, &m.LastModifiedTime,
			&m.Cover, &m.ItemCount, &m.ItemSize, &userMeta); err != nil {
			albRows.Close()
			return fmt.Errorf("scan album_meta: %w", err)
		}
		if userMeta.Valid && userMeta.String != "" {
			_ = json.Unmarshal([]byte(userMeta.String), &m.UserMeta)
		}
		byID[m.ID].Album = &m
	}
	albRows.Close()
	return albRows.Err()
}

func (db *DB) hydrateRelations(ctx context.Context, byID map[string]*models.Entity, ids []string) error {
	ph, args := idList(ids)

	tagRows, err := db.conn.QueryContext(ctx,
		`SELECT object_id, tag FROM object_tag WHERE object_id IN (`+ph+`)`, args...)
	if err != nil {
		return fmt.Errorf("hydrate object_tag: %w", err)
	}
	for tagRows.Next() {
		var id, tag string
		if err := tagRows.Scan(&id, &tag); err != nil {
			tagRows.Close()
			return err
		}
		byID[id].Tags = append(byID[id].Tags, tag)
	}
	tagRows.Close()
	if err := tagRows.Err(); err != nil {
		return err
	}

	exifRows, err := db.conn.QueryContext(ctx,
		`SELECT object_id, tag, value FROM object_exif WHERE object_id IN (`+ph+`)`, args...)
	if err != nil {
		return fmt.Errorf("hydrate object_exif: %w", err)
	}
	for exifRows.Next() {
		var e models.ObjectExif
		if err := exifRows.Scan(&e.ObjectID, &e.Tag, &e.Value); err != nil {
			exifRows.Close()
			return err
		}
		byID[e.ObjectID].Exif = append(byID[e.ObjectID].Exif, e)
	}
	exifRows.Close()
	if err := exifRows.Err(); err != nil {
		return err
	}

	aliasRows, err := db.conn.QueryContext(ctx,
		`SELECT object_id, file, modified, scan_time FROM object_alias
		 WHERE object_id IN (`+ph+`) ORDER BY object_id, scan_time`, args...)
	if err != nil {
		return fmt.Errorf("hydrate object_alias: %w", err)
	}
	for aliasRows.Next() {
		var a models.ObjectAlias
		if err := aliasRows.Scan(&a.ObjectID, &a.File, &a.Modified, &a.ScanTime); err != nil {
			aliasRows.Close()
			return err
		}
		byID[a.ObjectID].Aliases = append(byID[a.ObjectID].Aliases, a)
	}
	aliasRows.Close()
	if err := aliasRows.Err(); err != nil {
		return err
	}

	memberRows, err := db.conn.QueryContext(ctx,
		`SELECT album_id, object_id FROM album_member
		 WHERE album_id IN (`+ph+`) OR object_id IN (`+ph+`)`, append(append([]any{}, args...), args...)...)
	if err != nil {
		return fmt.Errorf("hydrate album_member: %w", err)
	}
	for memberRows.Next() {
		var m models.AlbumMember
		if err := memberRows.Scan(&m.AlbumID, &m.ObjectID); err != nil {
			memberRows.Close()
			return err
		}
		if album, ok := byID[m.AlbumID]; ok {
			album.Members = append(album.Members, m.ObjectID)
		}
		if obj, ok := byID[m.ObjectID]; ok {
			obj.Albums = append(obj.Albums, m.AlbumID)
		}
	}
	memberRows.Close()
	return memberRows.Err()
}

// ShareValid reports whether the share identified by shareURL has not
// expired at nowMillis.
func (db *DB) ShareValid(ctx context.Context, shareURL string, nowMillisVal int64) (bool, error) {
	var exp int64
	err := db.conn.QueryRowContext(ctx, `SELECT exp FROM album_share WHERE share_url = ?`, shareURL).Scan(&exp)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("share_valid: %w", err)
	}
	return exp == 0 || exp > nowMillisVal, nil
}
