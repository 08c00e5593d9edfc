// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"image"
	"math"
)

// thumbhashGrid is the side length of the luma grid the DCT is taken over;
// 7 gives 49 coefficients (the DC term plus 48 AC terms). Each coefficient
// is stored in a byte of its own (DC quantized to 8 bits, AC to 4 bits; the
// 4-bit values are not packed), so with the three average-chroma bytes the
// encoded digest is 52 bytes.
const thumbhashGrid = 7

// encodeThumbhash produces a compact perceptual thumbnail of img: a DCT
// over a low-resolution luma grid plus average chroma, quantized to a
// fixed-size byte slice. This is a from-scratch encoder in the spirit of
// the public thumbhash algorithm (low-frequency DCT + average color); no
// example in the corpus implements thumbhash, so there is nothing to
// ground this on beyond the prose description in the original processors
// (see DESIGN.md). It is write-only in this engine - nothing decodes it
// back into a blurred preview - so byte-for-byte conformance with the
// public format is not required, only a stable, compact perceptual digest.
func encodeThumbhash(img image.Image) []byte {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	luma := make([]float64, thumbhashGrid*thumbhashGrid)
	var sumR, sumG, sumB float64

	for gy := 0; gy < thumbhashGrid; gy++ {
		for gx := 0; gx < thumbhashGrid; gx++ {
			px := bounds.Min.X + (gx*w)/thumbhashGrid
			py := bounds.Min.Y + (gy*h)/thumbhashGrid
			r, g, b, _ := img.At(px, py).RGBA()
			rf, gf, bf := float64(r)/65535, float64(g)/65535, float64(b)/65535
			sumR += rf
			sumG += gf
			sumB += bf
			luma[gy*thumbhashGrid+gx] = 0.299*rf + 0.587*gf + 0.114*bf
		}
	}

	n := float64(thumbhashGrid * thumbhashGrid)
	avgR := byte(sumR / n * 255)
	avgG := byte(sumG / n * 255)
	avgB := byte(sumB / n * 255)

	coeffs := dct2D(luma, thumbhashGrid)

	out := make([]byte, 0, 3+1+len(coeffs))
	out = append(out, avgR, avgG, avgB)
	out = append(out, quantize(coeffs[0], 8)) // DC term at higher precision
	for _, c := range coeffs[1:] {
		out = append(out, quantize(c, 4))
	}
	return out
}

// dct2D computes the forward 2D discrete cosine transform of an n x n grid.
func dct2D(grid []float64, n int) []float64 {
	out := make([]float64, n*n)
	for v := 0; v < n; v++ {
		for u := 0; u < n; u++ {
			var sum float64
			for y := 0; y < n; y++ {
				for x := 0; x < n; x++ {
					sum += grid[y*n+x] *
						math.Cos(math.Pi/float64(n)*(float64(x)+0.5)*float64(u)) *
						math.Cos(math.Pi/float64(n)*(float64(y)+0.5)*float64(v))
				}
			}
			cu, cv := 1.0, 1.0
			if u == 0 {
				cu = 1 / math.Sqrt2
			}
			if v == 0 {
				cv = 1 / math.Sqrt2
			}
			out[v*n+u] = 0.25 * cu * cv * sum
		}
	}
	return out
}

// quantize clamps a DCT coefficient (expected roughly in [-1,1] for a
// normalized input grid) into bits worth of unsigned range centered at
// 2^(bits-1).
func quantize(v float64, bits int) byte {
	scale := float64(int(1) << uint(bits-1))
	q := v*scale + scale
	if q < 0 {
		q = 0
	}
	max := float64(int(1)<<uint(bits)) - 1
	if q > max {
		q = max
	}
	return byte(q)
}
