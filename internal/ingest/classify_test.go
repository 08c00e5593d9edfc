// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/gallery/internal/config"
	"github.com/tomtom215/gallery/internal/models"
)

func testWatchConfig() config.WatchConfig {
	return config.WatchConfig{
		ImageExtensions: []string{"jpg", "jpeg", "png", "gif"},
		VideoExtensions: []string{"mp4", "mov"},
	}
}

func TestClassifyImageAndVideoExtensions(t *testing.T) {
	c := NewClassifier(testWatchConfig())

	typ, err := c.Classify("/uploads/photo.JPG")
	require.NoError(t, err)
	assert.Equal(t, models.ObjTypeImage, typ)

	typ, err = c.Classify("/uploads/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, models.ObjTypeVideo, typ)
}

func TestClassifyUnsupportedExtension(t *testing.T) {
	c := NewClassifier(testWatchConfig())

	_, err := c.Classify("/uploads/notes.txt")
	require.Error(t, err)
	var unsupported *ErrUnsupportedExtension
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "txt", unsupported.Ext)
}

func TestExtLowercasesAndStripsDot(t *testing.T) {
	assert.Equal(t, "jpg", Ext("/a/b/PHOTO.JPG"))
	assert.Equal(t, "", Ext("/a/b/noext"))
}
