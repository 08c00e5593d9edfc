// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/sony/gobreaker/v2"
	ffmpeg_go "github.com/u2takey/ffmpeg-go"

	"github.com/tomtom215/gallery/internal/config"
	"github.com/tomtom215/gallery/internal/logging"
	"github.com/tomtom215/gallery/internal/metrics"
	"github.com/tomtom215/gallery/internal/models"
)

// shouldSwapRotation mirrors the original's SHOULD_SWAP_WIDTH_HEIGHT_ROTATION
// set: a video rotated a quarter-turn reports its unrotated stream
// dimensions, so width/height must be swapped to get the displayed size.
var shouldSwapRotation = map[int]bool{90: true, -90: true, 270: true, -270: true}

var outTimeUsRe = regexp.MustCompile(`out_time_us=(\d+)`)

// videoBreaker wraps every ffmpeg/ffprobe subprocess invocation in a
// circuit breaker, tripping after VideoBreakerMaxFailures consecutive
// subprocess failures and cooling down for VideoBreakerCooldown (spec
// expansion §(expansion) DOMAIN STACK).
type videoBreaker struct {
	cb *gobreaker.CircuitBreaker[[]byte]
}

func newVideoBreaker(cfg config.IngestConfig) *videoBreaker {
	settings := gobreaker.Settings{
		Name:        "video-subprocess",
		MaxRequests: 1,
		Timeout:     cfg.VideoBreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.VideoBreakerMaxFailures
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			metrics.VideoBreakerState.Set(breakerStateValue(to))
			logging.Warn().Str("from", from.String()).Str("to", to.String()).
				Msg("video subprocess circuit breaker state change")
		},
	}
	return &videoBreaker{cb: gobreaker.NewCircuitBreaker[[]byte](settings)}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

func (b *videoBreaker) run(fn func() ([]byte, error)) ([]byte, error) {
	return b.cb.Execute(fn)
}

// videoDerived holds every value the Derived stage computes for a video.
type videoDerived struct {
	Width, Height int
	Duration      float64
	// DurationErr is set when ffprobe could not parse a duration at all;
	// Duration is 0 in that case. Carried through rather than failing the
	// whole derivation, since an unparsable duration on a GIF source is one
	// half of the static-GIF reclassification rule (see reclassify.go),
	// not necessarily a fatal error.
	DurationErr error
	PHash       *uint64
	Thumbhash   []byte
	Exif        []models.ObjectExif
}

// deriveVideo implements ingest step 5 for videos: probe width/height/
// rotation/duration via ffprobe, swap dimensions for quarter-turn
// rotations, extract a first-frame thumbnail via ffmpeg, and derive
// thumbhash+pHash from that thumbnail.
func deriveVideo(ctx context.Context, cfg config.IngestConfig, br *videoBreaker, importedPath, thumbnailPath string) (videoDerived, error) {
	width, err := probeInt(ctx, br, cfg.FFprobePath, "stream=width", importedPath)
	if err != nil {
		return videoDerived{}, fmt.Errorf("probe width: %w", err)
	}
	height, err := probeInt(ctx, br, cfg.FFprobePath, "stream=height", importedPath)
	if err != nil {
		return videoDerived{}, fmt.Errorf("probe height: %w", err)
	}
	duration, durationErr := probeDuration(ctx, br, cfg.FFprobePath, importedPath)
	rotation := probeRotation(ctx, br, cfg.FFprobePath, importedPath)

	if shouldSwapRotation[rotation] {
		width, height = height, width
	}

	if err := extractThumbnailFrame(ctx, cfg, importedPath, thumbnailPath, width, height); err != nil {
		return videoDerived{}, fmt.Errorf("extract thumbnail frame: %w", err)
	}

	img, err := imaging.Open(thumbnailPath)
	if err != nil {
		return videoDerived{}, fmt.Errorf("decode thumbnail frame: %w", err)
	}

	derived := videoDerived{
		Width: width, Height: height, Duration: duration, DurationErr: durationErr,
		Exif: []models.ObjectExif{
			{Tag: "duration", Value: strconv.FormatFloat(duration, 'f', -1, 64)},
			{Tag: "rotation", Value: strconv.Itoa(rotation)},
		},
	}
	if hash, err := goimagehash.PerceptionHash(img); err == nil {
		v := hash.GetHash()
		derived.PHash = &v
	}
	derived.Thumbhash = encodeThumbhash(img)
	return derived, nil
}

func probeInt(ctx context.Context, br *videoBreaker, ffprobePath, entry, path string) (int, error) {
	out, err := runProbe(ctx, br, ffprobePath, entry, path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(out))
}

func probeDuration(ctx context.Context, br *videoBreaker, ffprobePath, path string) (float64, error) {
	out, err := runProbe(ctx, br, ffprobePath, "format=duration", path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("fail to parse to f32: %w", err)
	}
	return v, nil
}

func probeRotation(ctx context.Context, br *videoBreaker, ffprobePath, path string) int {
	out, err := runProbe(ctx, br, ffprobePath, "stream_tags=rotate", path)
	if err != nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0
	}
	return v
}

// runProbe shells out to ffprobe for a single numeric field, matching the
// spec's literal subprocess contract:
// ffprobe -show_entries <entry> -of default=noprint_wrappers=1:nokey=1 <file>
func runProbe(ctx context.Context, br *videoBreaker, ffprobePath, entry, path string) (string, error) {
	out, err := br.run(func() ([]byte, error) {
		cmd := exec.CommandContext(ctx, ffprobePath, "-v", "error", "-show_entries", entry,
			"-of", "default=noprint_wrappers=1:nokey=1", path)
		return cmd.Output()
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// extractThumbnailFrame extracts the first frame of path, scaled to the
// thumbnail size, via ffmpeg, invoked silently per the subprocess contract.
func extractThumbnailFrame(ctx context.Context, cfg config.IngestConfig, importedPath, thumbnailPath string, width, height int) error {
	tw, th := thumbnailSize(width, height, cfg.ThumbnailMaxSide)
	err := ffmpeg_go.Input(importedPath).
		Output(thumbnailPath, ffmpeg_go.KwArgs{
			"ss": "0", "vframes": 1,
			"vf": fmt.Sprintf("scale=%d:%d", tw, th),
		}).
		GlobalArgs("-v", "quiet", "-hide_banner", "-nostats", "-nostdin").
		OverWriteOutput().
		Run()
	if err != nil {
		return err
	}
	return nil
}

// compressProgressWriter parses ffmpeg's "-progress pipe:2" stderr stream
// for out_time_us=<µs> lines and reports percent of the declared duration.
type compressProgressWriter struct {
	hash     string
	duration float64
	reporter ProgressReporter
	buf      bytes.Buffer
}

func (w *compressProgressWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	scanner := bufio.NewScanner(bytes.NewReader(w.buf.Bytes()))
	for scanner.Scan() {
		line := scanner.Text()
		m := outTimeUsRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		microseconds, err := strconv.ParseFloat(m[1], 64)
		if err != nil || w.duration <= 0 {
			continue
		}
		percent := microseconds / 1_000_000 / w.duration * 100
		w.reporter.UpdateProgress(w.hash, percent)
	}
	w.buf.Reset()
	return len(p), nil
}

// compressVideo re-encodes importedPath to an H.264-compatible MP4 at
// outputPath, capping height at cfg.CompressionMaxHeight with even
// dimensions and +faststart, matching ingest step 7.
func compressVideo(cfg config.IngestConfig, reporter ProgressReporter, hash, importedPath, outputPath string, height int, duration float64) error {
	targetHeight := height
	if targetHeight > cfg.CompressionMaxHeight {
		targetHeight = cfg.CompressionMaxHeight
	}
	targetHeight = (targetHeight / 2) * 2

	progress := &compressProgressWriter{hash: hash, duration: duration, reporter: reporter}

	return ffmpeg_go.Input(importedPath).
		Output(outputPath, ffmpeg_go.KwArgs{
			"vf":       fmt.Sprintf("scale=trunc(oh*a/2)*2:%d", targetHeight),
			"movflags": "faststart",
			"progress": "pipe:2",
		}).
		GlobalArgs("-v", "quiet", "-hide_banner", "-nostats", "-nostdin").
		OverWriteOutput().
		WithErrorOutput(progress).
		Run()
}
