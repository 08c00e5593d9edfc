// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExifAllowed(t *testing.T) {
	assert.True(t, ExifAllowed("Make"))
	assert.True(t, ExifAllowed("rotation"))
	assert.False(t, ExifAllowed("GPSLatitude"))
}

func TestEntityDimensionsAndSize(t *testing.T) {
	e := Entity{
		Object: Object{Type: ObjTypeImage},
		Image:  &ImageMeta{Size: 1234, Width: 800, Height: 600, Ext: "jpg"},
	}
	w, h := e.Dimensions()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
	assert.Equal(t, int64(1234), e.Size())
	assert.Equal(t, "jpg", e.Ext())
}

func TestEntityDimensionsForAlbum(t *testing.T) {
	e := Entity{Object: Object{Type: ObjTypeAlbum}, Album: &AlbumMeta{}}
	w, h := e.Dimensions()
	assert.Equal(t, 0, w)
	assert.Equal(t, 0, h)
	assert.Equal(t, int64(0), e.Size())
}

func TestAlbumShareValid(t *testing.T) {
	neverExpires := AlbumShare{Exp: 0}
	assert.True(t, neverExpires.Valid(1_000_000))

	expired := AlbumShare{Exp: 100}
	assert.False(t, expired.Valid(200))

	stillValid := AlbumShare{Exp: 1000}
	assert.True(t, stillValid.Valid(500))
}
