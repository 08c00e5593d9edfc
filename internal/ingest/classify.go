// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"path/filepath"
	"strings"

	"github.com/tomtom215/gallery/internal/config"
	"github.com/tomtom215/gallery/internal/models"
)

// Classifier maps a file extension to the ObjType it should ingest as,
// driven by the configured image/video extension allow-lists (spec §6
// "Ingest CLI surface").
type Classifier struct {
	images map[string]struct{}
	videos map[string]struct{}
}

// NewClassifier builds a Classifier from the watch configuration.
func NewClassifier(cfg config.WatchConfig) *Classifier {
	c := &Classifier{images: make(map[string]struct{}), videos: make(map[string]struct{})}
	for _, ext := range cfg.ImageExtensions {
		c.images[strings.ToLower(ext)] = struct{}{}
	}
	for _, ext := range cfg.VideoExtensions {
		c.videos[strings.ToLower(ext)] = struct{}{}
	}
	return c
}

// Classify returns the ObjType for path's extension, or an error if it
// belongs to neither allow-list.
func (c *Classifier) Classify(path string) (models.ObjType, error) {
	ext := Ext(path)
	if _, ok := c.images[ext]; ok {
		return models.ObjTypeImage, nil
	}
	if _, ok := c.videos[ext]; ok {
		return models.ObjTypeVideo, nil
	}
	return "", &ErrUnsupportedExtension{Ext: ext}
}

// Ext returns path's lowercase extension without the leading dot.
func Ext(path string) string {
	ext := filepath.Ext(path)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
