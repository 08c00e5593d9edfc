// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDurationLooksStaticOnExact100ms(t *testing.T) {
	assert.True(t, durationLooksStatic("mp4", 100, nil))
	assert.True(t, durationLooksStatic("gif", 100, errors.New("anything")))
}

func TestDurationLooksStaticOnUnparsableGifDuration(t *testing.T) {
	err := errors.New("Fail to parse to f32")
	assert.True(t, durationLooksStatic("GIF", 4200, err))
	assert.True(t, durationLooksStatic("gif", 4200, err))
}

func TestDurationLooksStaticRejectsNonGifParseFailure(t *testing.T) {
	err := errors.New("fail to parse to f32")
	assert.False(t, durationLooksStatic("mp4", 4200, err))
}

func TestDurationLooksStaticRejectsUnrelatedGifError(t *testing.T) {
	err := errors.New("no such file or directory")
	assert.False(t, durationLooksStatic("gif", 4200, err))
}

func TestDurationLooksStaticRejectsNormalVideo(t *testing.T) {
	assert.False(t, durationLooksStatic("mp4", 4200, nil))
}

func TestReclassifyOpBuildsImageMetaFromVideoHash(t *testing.T) {
	phash := uint64(7)
	derived := imageDerived{Width: 320, Height: 240, PHash: &phash, Thumbhash: []byte{1, 2, 3}}

	op := reclassifyOp("deadbeef", 1024, "gif", derived)

	assert.Equal(t, "deadbeef", op.ObjectID)
	assert.Equal(t, "deadbeef", op.Image.ID)
	assert.Equal(t, int64(1024), op.Image.Size)
	assert.Equal(t, 320, op.Image.Width)
	assert.Equal(t, 240, op.Image.Height)
	assert.Equal(t, "gif", op.Image.Ext)
	assert.Equal(t, &phash, op.Image.PHash)
}
