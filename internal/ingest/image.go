// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"fmt"
	"image"
	"os"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/tomtom215/gallery/internal/config"
	"github.com/tomtom215/gallery/internal/models"
)

// imageDerived holds every value the Derived stage computes for an image.
type imageDerived struct {
	Width, Height int
	PHash         *uint64
	Thumbhash     []byte
	Exif          []models.ObjectExif
}

// deriveImage implements ingest step 5 for images: decode, correct
// orientation from EXIF, compute dimensions, generate a JPEG thumbnail,
// derive thumbhash+pHash, and extract the full EXIF tag set.
func deriveImage(cfg config.IngestConfig, importedPath, compressedPath string) (imageDerived, error) {
	img, err := imaging.Open(importedPath)
	if err != nil {
		return imageDerived{}, fmt.Errorf("decode image: %w", err)
	}

	exifRows, orientation := extractImageExif(importedPath)
	img = correctOrientation(img, orientation)

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var derived imageDerived
	derived.Width, derived.Height = width, height
	derived.Exif = exifRows

	if hash, err := goimagehash.PerceptionHash(img); err == nil {
		v := hash.GetHash()
		derived.PHash = &v
	}
	derived.Thumbhash = encodeThumbhash(img)

	tw, th := thumbnailSize(width, height, cfg.ThumbnailMaxSide)
	thumb := imaging.Resize(img, tw, th, imaging.Lanczos)
	if err := os.MkdirAll(dirOf(compressedPath), 0o755); err != nil {
		return imageDerived{}, fmt.Errorf("create compressed dir: %w", err)
	}
	if err := imaging.Save(thumb, compressedPath); err != nil {
		return imageDerived{}, fmt.Errorf("save thumbnail: %w", err)
	}

	return derived, nil
}

// thumbnailSize implements the small-side resize rule: if the longer side
// is at least maxSide, scale so the longer side equals maxSide, preserving
// aspect; otherwise keep the original dimensions.
func thumbnailSize(w, h, maxSide int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	longer := w
	if h > longer {
		longer = h
	}
	if longer < maxSide {
		return w, h
	}
	if w >= h {
		return maxSide, h * maxSide / w
	}
	return w * maxSide / h, maxSide
}

// correctOrientation rotates/flips img per the standard EXIF Orientation
// tag (1-8), matching the teacher's orientation-correction switch but over
// the numeric tag goexif decodes rather than the textual form the original
// used.
func correctOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// exifCollector walks every decoded EXIF field into a flat tag->value map.
type exifCollector struct {
	rows []models.ObjectExif
}

func (c *exifCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	c.rows = append(c.rows, models.ObjectExif{Tag: string(name), Value: tag.String()})
	return nil
}

// extractImageExif extracts every EXIF tag from path (non-fallible: a
// missing or corrupt EXIF block yields no rows rather than failing the
// ingest, matching the original's generate_exif_for_image) plus the
// orientation value (0 if absent).
func extractImageExif(path string) ([]models.ObjectExif, int) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, 0
	}

	collector := &exifCollector{}
	_ = x.Walk(collector)

	orientation := 0
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			orientation = v
		}
	}
	return collector.rows, orientation
}
