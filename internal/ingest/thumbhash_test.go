// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerboard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestEncodeThumbhashIsDeterministic(t *testing.T) {
	img := checkerboard(32, 32)
	a := encodeThumbhash(img)
	b := encodeThumbhash(img)
	require.NotNil(t, a)
	assert.Equal(t, a, b)
}

func TestEncodeThumbhashHasFixedLength(t *testing.T) {
	small := encodeThumbhash(checkerboard(8, 8))
	large := encodeThumbhash(checkerboard(256, 128))
	require.NotNil(t, small)
	require.NotNil(t, large)
	assert.Equal(t, len(small), len(large))
	assert.Equal(t, 3+thumbhashGrid*thumbhashGrid, len(small))
}

func TestEncodeThumbhashDiffersForDistinctImages(t *testing.T) {
	solid := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			solid.Set(x, y, color.White)
		}
	}
	checkered := checkerboard(16, 16)

	assert.NotEqual(t, encodeThumbhash(solid), encodeThumbhash(checkered))
}

func TestEncodeThumbhashRejectsEmptyImage(t *testing.T) {
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	assert.Nil(t, encodeThumbhash(empty))
}

func TestQuantizeClampsToBitRange(t *testing.T) {
	assert.Equal(t, byte(0), quantize(-100, 4))
	assert.Equal(t, byte(15), quantize(100, 4))
	assert.Equal(t, byte(8), quantize(0, 4))
}
