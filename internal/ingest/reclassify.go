// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"strings"

	"github.com/tomtom215/gallery/internal/models"
)

// durationLooksStatic reports whether a probed video duration is
// indistinguishable from a single still frame, replicating the original
// pipeline's dual static-GIF detection rule: either the duration rounds to
// exactly 100ms, or the probe failed to parse a duration at all and the
// source file is a GIF (animated GIFs ffprobe can't time are almost always
// single-frame).
func durationLooksStatic(ext string, durationMillis int64, probeErr error) bool {
	if durationMillis == 100 {
		return true
	}
	if probeErr == nil {
		return false
	}
	return strings.EqualFold(ext, "gif") &&
		strings.Contains(strings.ToLower(probeErr.Error()), "fail to parse to f32")
}

// reclassifyOp builds the store mutation that rewrites hash from a video
// entity into an image entity, reusing the imported-file-derived pHash
// (recomputed from the single frame) while preserving size/ext/thumbhash.
func reclassifyOp(hash string, size int64, ext string, derived imageDerived) models.ReclassifyVideoAsImage {
	return models.ReclassifyVideoAsImage{
		ObjectID: hash,
		Image: models.ImageMeta{
			ID:     hash,
			Size:   size,
			Width:  derived.Width,
			Height: derived.Height,
			Ext:    ext,
			PHash:  derived.PHash,
		},
	}
}
