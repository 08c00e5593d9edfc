// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package models

// Op is a single mutation submitted to the Content Store's apply batch. All
// operations in one batch execute inside one write transaction; partial
// failure aborts the whole batch.
type Op interface {
	opMarker()
}

// InsertEntity creates the Object row plus its type-specific metadata row in
// one operation.
type InsertEntity struct {
	Object Object
	Image  *ImageMeta
	Video  *VideoMeta
	Album  *AlbumMeta
}

// RemoveEntity deletes an object and cascades to every relation row and the
// two on-disk blobs it owns (caller deletes the blobs; the store only clears
// rows).
type RemoveEntity struct {
	ID string
}

// InsertTag adds a row to object_tag.
type InsertTag struct {
	ObjectID string
	Tag      string
}

// RemoveTag removes a row from object_tag.
type RemoveTag struct {
	ObjectID string
	Tag      string
}

// InsertAlias appends a row to object_alias. Duplicates on
// (object_id, scan_time) are idempotent upserts.
type InsertAlias struct {
	Alias ObjectAlias
}

// InsertExif adds a row to object_exif.
type InsertExif struct {
	Exif ObjectExif
}

// MarkReady clears an object's Pending flag, once its compressed rendition
// has landed on disk (videos only; spec §4.4 step 7-8).
type MarkReady struct {
	ObjectID string
}

// ReclassifyVideoAsImage rewrites a static-GIF entity that was opened as a
// video (duration indistinguishable from a single frame) into an image:
// swaps the video_meta row for an image_meta row and updates obj_type,
// preserving the object's id, created_time and thumbhash.
type ReclassifyVideoAsImage struct {
	ObjectID string
	Image    ImageMeta
}

// InsertAlbumMember adds a row to album_member and triggers a same-transaction
// recompute of the album's derived aggregates.
type InsertAlbumMember struct {
	AlbumID  string
	ObjectID string
}

// RemoveAlbumMember removes a row from album_member and triggers a
// same-transaction recompute of the album's derived aggregates.
type RemoveAlbumMember struct {
	AlbumID  string
	ObjectID string
}

func (InsertEntity) opMarker()           {}
func (RemoveEntity) opMarker()           {}
func (InsertTag) opMarker()              {}
func (RemoveTag) opMarker()              {}
func (InsertAlias) opMarker()            {}
func (InsertExif) opMarker()             {}
func (MarkReady) opMarker()              {}
func (ReclassifyVideoAsImage) opMarker() {}
func (InsertAlbumMember) opMarker()      {}
func (RemoveAlbumMember) opMarker()      {}

// ReducedRow is the compact 4-tuple snapshot pages are built from.
type ReducedRow struct {
	Hash   string
	Width  int
	Height int
	// DateMillis is the entity's created_time, milliseconds since epoch.
	DateMillis int64
}
