// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

// Package models defines the gallery's entity data model: the tagged-variant
// Entity composed of a shared Object header and per-type metadata, plus the
// relation rows and reduced projections the rest of the engine operates on.
package models

// ObjType identifies which variant of metadata an Entity carries.
type ObjType string

const (
	ObjTypeImage ObjType = "image"
	ObjTypeVideo ObjType = "video"
	ObjTypeAlbum ObjType = "album"
)

// Object is the shared header present on every entity, regardless of variant.
type Object struct {
	// ID is the 64-character lowercase hex object id: the BLAKE3 content hash
	// for images/videos, a random id for albums.
	ID string

	Type ObjType

	// CreatedTime is milliseconds since epoch.
	CreatedTime int64

	// Pending is true while derivations are incomplete (video compression in
	// flight); always false for images and albums.
	Pending bool

	// Thumbhash is the optional compact perceptual thumbnail digest; the ingest
	// encoder writes 52 bytes.
	Thumbhash []byte
}

// ImageMeta is the per-variant metadata for obj_type=image.
type ImageMeta struct {
	ID     string
	Size   int64
	Width  int
	Height int
	Ext    string
	// PHash is the perceptual hash; nil until derivation completes.
	PHash *uint64
}

// VideoMeta is the per-variant metadata for obj_type=video.
type VideoMeta struct {
	ID     string
	Size   int64
	Width  int
	Height int
	Ext    string
	// Duration is in seconds.
	Duration float64
}

// AlbumMeta is the per-variant metadata for obj_type=album.
type AlbumMeta struct {
	ID    string
	Title *string

	StartTime *int64
	EndTime   *int64

	LastModifiedTime int64

	// Cover references a member object id, or nil if the album has no members.
	Cover *string

	ItemCount int
	ItemSize  int64

	// UserMeta is arbitrary user-defined key/value metadata.
	UserMeta map[string]string
}

// AlbumMember is a row of the album_member relation.
type AlbumMember struct {
	AlbumID  string
	ObjectID string
}

// ObjectTag is a row of the object_tag relation.
type ObjectTag struct {
	ObjectID string
	Tag      string
}

// allowedExifTags is the EXIF allow-list projected into the in-memory index,
// per the data model's memory-bounding rule.
var allowedExifTags = map[string]struct{}{
	"Make":                    {},
	"Model":                   {},
	"FNumber":                 {},
	"ExposureTime":            {},
	"FocalLength":             {},
	"PhotographicSensitivity": {},
	"DateTimeOriginal":        {},
	"duration":                {},
	"rotation":                {},
}

// ExifAllowed reports whether tag belongs to the allow-list the in-memory
// index is permitted to hold.
func ExifAllowed(tag string) bool {
	_, ok := allowedExifTags[tag]
	return ok
}

// ObjectExif is a row of the object_exif relation. The Content Store persists
// every tag the decoder found; only the allow-list subset is projected into
// the in-memory index (see internal/index).
type ObjectExif struct {
	ObjectID string
	Tag      string
	Value    string
}

// ObjectAlias is a row of the object_alias relation: a historical source path
// that produced this content hash.
type ObjectAlias struct {
	ObjectID string
	File     string
	Modified int64
	ScanTime int64
}

// AlbumShare is a row of the album_share relation.
type AlbumShare struct {
	AlbumID      string
	ShareURL     string
	Description  string
	PasswordHash []byte // optional bcrypt hash; core treats it as opaque bytes
	ShowMetadata bool
	ShowDownload bool
	ShowUpload   bool
	// Exp is the Unix millisecond deadline after which the share is invalid.
	Exp int64
}

// Valid reports whether the share has not yet expired at now (Unix ms).
func (s AlbumShare) Valid(nowMillis int64) bool {
	return s.Exp == 0 || s.Exp > nowMillis
}

// Entity is the composed record returned by Content-Store reads: an Object
// header plus exactly one of Image, Video or Album, plus its relations.
type Entity struct {
	Object

	Image *ImageMeta
	Video *VideoMeta
	Album *AlbumMeta

	Tags    []string
	Exif    []ObjectExif
	Aliases []ObjectAlias
	Albums  []string // album ids this object belongs to (for images/videos)
	Members []string // member object ids (for albums)
}

// Size returns the byte size of the underlying media, or 0 for albums.
func (e Entity) Size() int64 {
	switch {
	case e.Image != nil:
		return e.Image.Size
	case e.Video != nil:
		return e.Video.Size
	default:
		return 0
	}
}

// Dimensions returns width and height, or 0,0 for albums.
func (e Entity) Dimensions() (width, height int) {
	switch {
	case e.Image != nil:
		return e.Image.Width, e.Image.Height
	case e.Video != nil:
		return e.Video.Width, e.Video.Height
	default:
		return 0, 0
	}
}

// Ext returns the file extension, or "" for albums.
func (e Entity) Ext() string {
	switch {
	case e.Image != nil:
		return e.Image.Ext
	case e.Video != nil:
		return e.Video.Ext
	default:
		return ""
	}
}
