// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tomtom215/gallery/internal/config"
	"github.com/tomtom215/gallery/internal/coordinator"
	"github.com/tomtom215/gallery/internal/metrics"
	"github.com/tomtom215/gallery/internal/models"
	"github.com/tomtom215/gallery/internal/store"
)

// Store is the subset of the Content Store the pipeline needs: dedup lookup
// and the write-batch entry point. Satisfied by *store.DB.
type Store interface {
	Load(ctx context.Context, id string) (*models.Entity, error)
	Apply(ctx context.Context, ops []models.Op) error
}

// IndexUpdater is the subset of the in-memory index the pipeline triggers a
// rebuild on after every committed batch. Satisfied by *index.Index.
type IndexUpdater interface {
	Update(ctx context.Context) error
}

const (
	flushKey   = "flush-content-store"
	rebuildKey = "rebuild-index"
)

// flushTask carries one ingest's write batch into the coalescing flush
// handler; concurrent ingests completing around the same time land in the
// same Content Store transaction.
type flushTask struct {
	ops  []models.Op
	done chan error
}

func (t *flushTask) Key() string { return flushKey }

// rebuildTask triggers one index rebuild pass; concurrent triggers coalesce
// into a single Update call, matching the index's "rebuild from scratch"
// contract (spec §4.2).
type rebuildTask struct {
	done chan error
}

func (t *rebuildTask) Key() string { return rebuildKey }

// Pipeline implements the per-file ingest state machine (C4): open, hash,
// dedupe, copy, derive, persist, and (for video) compress, directly
// following the original's index_workflow orchestration.
type Pipeline struct {
	cfg        config.IngestConfig
	store      Store
	index      IndexUpdater
	classifier *Classifier
	guard      *Guard
	permit     copyPermit
	breaker    *videoBreaker
	batch      *coordinator.BatchExecutor
	detached   *coordinator.IndexExecutor
	progress   ProgressReporter
}

// NewPipeline wires a Pipeline and registers its flush/rebuild handlers on
// batch. Call before the supervisor tree starts serving batch.
func NewPipeline(
	cfg config.IngestConfig,
	watchCfg config.WatchConfig,
	st Store,
	idx IndexUpdater,
	batch *coordinator.BatchExecutor,
	detached *coordinator.IndexExecutor,
	progress ProgressReporter,
) *Pipeline {
	if progress == nil {
		progress = NoopProgressReporter{}
	}
	p := &Pipeline{
		cfg:        cfg,
		store:      st,
		index:      idx,
		classifier: NewClassifier(watchCfg),
		guard:      NewGuard(),
		permit:     newCopyPermit(),
		breaker:    newVideoBreaker(cfg),
		batch:      batch,
		detached:   detached,
		progress:   progress,
	}
	batch.Register(flushKey, p.runFlush)
	batch.Register(rebuildKey, p.runRebuild)
	return p
}

func (p *Pipeline) runFlush(ctx context.Context, tasks []coordinator.BatchTask) error {
	var ops []models.Op
	flushes := make([]*flushTask, 0, len(tasks))
	for _, t := range tasks {
		ft := t.(*flushTask)
		ops = append(ops, ft.ops...)
		flushes = append(flushes, ft)
	}
	err := p.store.Apply(ctx, ops)
	for _, ft := range flushes {
		ft.done <- err
	}
	return err
}

func (p *Pipeline) runRebuild(ctx context.Context, tasks []coordinator.BatchTask) error {
	err := p.index.Update(ctx)
	for _, t := range tasks {
		rt := t.(*rebuildTask)
		rt.done <- err
	}
	return err
}

// flush submits ops to the coalescing flush handler and waits for the batch
// they land in to commit.
func (p *Pipeline) flush(ctx context.Context, ops []models.Op) error {
	task := &flushTask{ops: ops, done: make(chan error, 1)}
	p.batch.Submit(task)
	select {
	case err := <-task.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rebuildIndex submits a rebuild trigger and waits for the next index
// update pass (which may cover this and other concurrent triggers) to
// complete.
func (p *Pipeline) rebuildIndex(ctx context.Context) error {
	task := &rebuildTask{done: make(chan error, 1)}
	p.batch.Submit(task)
	select {
	case err := <-task.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run ingests path through the full state machine: open, hash, dedupe,
// copy, derive, persist, optionally compress, reclassify if it turns out
// to be a static GIF, then trigger an index rebuild and delete the source.
// It is safe to call concurrently for different paths; of two concurrent
// Runs for the same content hash only one acquires the Guard, and the other
// removes its own source file and returns at once, without waiting for the
// winner's commit (spec §5 invariant 1: one ingest per hash).
//
// presignedAlbum, if non-empty, is the album the upload was presigned
// against; an album_member row is inserted in the same batch as the
// alias row regardless of whether this path turns out to be a dedup hit
// or a brand-new object, matching the original's index_workflow.
func (p *Pipeline) Run(ctx context.Context, path string, presignedAlbum string) (err error) {
	objType, err := p.classifier.Classify(path)
	if err != nil {
		return err
	}

	f, openErr := openFile(ctx, path, p.cfg)
	metrics.ObserveIngestStage("opened", openErr)
	if openErr != nil {
		return stageErr("open", openErr)
	}
	defer f.Close()
	p.progress.AdvanceStage(path, "opened")

	hash, size, hashErr := hashFile(f)
	metrics.ObserveIngestStage("hashed", hashErr)
	if hashErr != nil {
		return stageErr("hash", hashErr)
	}
	p.progress.AdvanceStage(hash, "hashed")

	release, ok := p.guard.TryAcquire(hash)
	if !ok {
		metrics.IngestGuardRejections.Inc()
		// Another ingest already owns this hash; this copy of the file is
		// redundant once that ingest completes. Just clean up the source.
		return p.removeDuplicateSource(ctx, path)
	}
	defer release()

	defer func() {
		if err != nil {
			p.progress.MarkFailed(hash, err)
		}
	}()

	if _, loadErr := p.store.Load(ctx, hash); loadErr == nil {
		p.progress.AdvanceStage(hash, "deduped-existing")
		aliasOps, aliasErr := p.aliasOps(f, path, hash, presignedAlbum)
		if aliasErr != nil {
			return stageErr("dedupe", aliasErr)
		}
		if flushErr := p.flush(ctx, aliasOps); flushErr != nil {
			return stageErr("dedupe", flushErr)
		}
		return p.removeDuplicateSource(ctx, path)
	} else {
		var notFound *store.ErrNotFound
		if !errors.As(loadErr, &notFound) {
			return stageErr("dedupe", loadErr)
		}
	}
	p.progress.AdvanceStage(hash, "deduped")

	ext := Ext(path)
	dst := importedPath(p.cfg.ObjectRoot, hash, ext)
	copyErr := copyToImported(ctx, p.permit, p.cfg, path, dst)
	metrics.ObserveIngestStage("copied", copyErr)
	if copyErr != nil {
		return stageErr("copy", copyErr)
	}
	p.progress.AdvanceStage(hash, "copied")

	var (
		op      models.InsertEntity
		exif    []models.ObjectExif
		derived videoDerived
	)
	switch objType {
	case models.ObjTypeImage:
		op, exif, err = p.deriveAndBuildImage(hash, size, ext, dst)
	case models.ObjTypeVideo:
		thumbFrame := compressedPath(p.cfg.ObjectRoot, hash, "frame.jpg")
		derived, err = deriveVideo(ctx, p.cfg, p.breaker, dst, thumbFrame)
		if err == nil {
			op, objType, err = p.buildVideoOrStaticImageEntity(hash, size, ext, derived)
			exif = derived.Exif
		}
	default:
		err = fmt.Errorf("unsupported object type %q", objType)
	}
	metrics.ObserveIngestStage("derived", err)
	if err != nil {
		return stageErr("derive", err)
	}
	p.progress.AdvanceStage(hash, "derived")

	ops := make([]models.Op, 0, 2+len(exif))
	ops = append(ops, op)
	for i := range exif {
		exif[i].ObjectID = hash
		ops = append(ops, models.InsertExif{Exif: exif[i]})
	}
	aliasOps, aliasErr := p.aliasOps(f, path, hash, presignedAlbum)
	if aliasErr != nil {
		return stageErr("persist", aliasErr)
	}
	ops = append(ops, aliasOps...)

	flushErr := p.flush(ctx, ops)
	metrics.ObserveIngestStage("persisted", flushErr)
	if flushErr != nil {
		return stageErr("persist", flushErr)
	}
	p.progress.AdvanceStage(hash, "persisted")

	if objType == models.ObjTypeVideo {
		if err := p.compressAndMarkReady(ctx, hash, size, ext, dst, derived); err != nil {
			metrics.ObserveIngestStage("compressed", err)
			return stageErr("compress", err)
		}
		metrics.ObserveIngestStage("compressed", nil)
		p.progress.AdvanceStage(hash, "compressed")
	}

	rebuildErr := p.rebuildIndex(ctx)
	metrics.ObserveIngestStage("rebuild-index", rebuildErr)
	if rebuildErr != nil {
		return stageErr("rebuild-index", rebuildErr)
	}

	p.detached.ExecuteDetached(deleteSourceTask{cfg: p.cfg, path: path})
	return nil
}

func (p *Pipeline) removeDuplicateSource(ctx context.Context, path string) error {
	if err := deleteSource(ctx, p.cfg, path); err != nil {
		return stageErr("dedupe-cleanup", err)
	}
	return nil
}

// aliasOps builds the alias row every ingest must produce (spec §4.4 step 3,
// invariant 2), plus an album_member row when the upload was presigned
// against an album. f is the still-open source file handle; its mtime
// becomes the alias's Modified field.
func (p *Pipeline) aliasOps(f *os.File, path, hash, presignedAlbum string) ([]models.Op, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	now := time.Now().UnixMilli()
	ops := []models.Op{models.InsertAlias{Alias: models.ObjectAlias{
		ObjectID: hash,
		File:     path,
		Modified: info.ModTime().UnixMilli(),
		ScanTime: now,
	}}}
	if presignedAlbum != "" {
		ops = append(ops, models.InsertAlbumMember{AlbumID: presignedAlbum, ObjectID: hash})
	}
	return ops, nil
}

func (p *Pipeline) deriveAndBuildImage(hash string, size int64, ext, importedFile string) (models.InsertEntity, []models.ObjectExif, error) {
	compressed := compressedPath(p.cfg.ObjectRoot, hash, "jpg")
	derived, err := deriveImage(p.cfg, importedFile, compressed)
	if err != nil {
		return models.InsertEntity{}, nil, err
	}
	entity := models.InsertEntity{
		Object: models.Object{
			ID:          hash,
			Type:        models.ObjTypeImage,
			CreatedTime: time.Now().UnixMilli(),
			Thumbhash:   derived.Thumbhash,
		},
		Image: &models.ImageMeta{
			ID: hash, Size: size, Width: derived.Width, Height: derived.Height,
			Ext: ext, PHash: derived.PHash,
		},
	}
	return entity, derived.Exif, nil
}

// buildVideoOrStaticImageEntity builds the InsertEntity for an already-
// derived video, unless the static-GIF heuristic already fires from the
// initial probe (duration==100ms, or an unparsable duration on a .gif
// source), in which case it builds an image InsertEntity instead,
// returning the corrected ObjType. This is the fast path: it never writes
// a video_meta row that would need undoing. compressAndMarkReady below
// covers the slower path, where the rule only fires once ffmpeg itself
// chokes on the file during compression.
func (p *Pipeline) buildVideoOrStaticImageEntity(hash string, size int64, ext string, derived videoDerived) (models.InsertEntity, models.ObjType, error) {
	durationMillis := int64(derived.Duration * 1000)

	if durationLooksStatic(ext, durationMillis, derived.DurationErr) {
		entity := models.InsertEntity{
			Object: models.Object{
				ID: hash, Type: models.ObjTypeImage,
				CreatedTime: time.Now().UnixMilli(), Thumbhash: derived.Thumbhash,
			},
			Image: &models.ImageMeta{
				ID: hash, Size: size, Width: derived.Width, Height: derived.Height,
				Ext: ext, PHash: derived.PHash,
			},
		}
		metrics.ObserveIngestStage("converted_to_image", nil)
		return entity, models.ObjTypeImage, nil
	}

	entity := models.InsertEntity{
		Object: models.Object{
			ID:          hash,
			Type:        models.ObjTypeVideo,
			CreatedTime: time.Now().UnixMilli(),
			Pending:     true,
			Thumbhash:   derived.Thumbhash,
		},
		Video: &models.VideoMeta{
			ID: hash, Size: size, Width: derived.Width, Height: derived.Height,
			Ext: ext, Duration: derived.Duration,
		},
	}
	return entity, models.ObjTypeVideo, nil
}

// compressAndMarkReady re-encodes the imported video and flips Pending back
// to false once the compressed rendition lands (spec §4.4 step 7-8). If
// ffmpeg itself fails in a way that matches the static-GIF signature (the
// original's actual detection point, inside the compression step), the
// already-persisted video row is rewritten into an image instead of
// propagating a compression failure.
func (p *Pipeline) compressAndMarkReady(ctx context.Context, hash string, size int64, ext, importedFile string, derived videoDerived) error {
	out := compressedPath(p.cfg.ObjectRoot, hash, "mp4")
	err := compressVideo(p.cfg, p.progress, hash, importedFile, out, derived.Height, derived.Duration)
	if err == nil {
		return p.flush(ctx, []models.Op{markVideoReady(hash)})
	}

	durationMillis := int64(derived.Duration * 1000)
	if !durationLooksStatic(ext, durationMillis, err) {
		return err
	}
	metrics.ObserveIngestStage("converted_to_image", nil)
	reclassify := reclassifyOp(hash, size, ext, imageDerived{
		Width: derived.Width, Height: derived.Height,
		PHash: derived.PHash, Thumbhash: derived.Thumbhash,
	})
	return p.flush(ctx, []models.Op{reclassify})
}

// markVideoReady clears the Pending flag; callers must have already
// persisted the full Video row.
func markVideoReady(hash string) models.Op {
	return models.MarkReady{ObjectID: hash}
}

// deleteSourceTask removes the original upload/watch-root file after a
// successful ingest, run detached so the caller doesn't wait on it.
type deleteSourceTask struct {
	cfg  config.IngestConfig
	path string
}

func (t deleteSourceTask) Kind() string { return "delete-source" }

func (t deleteSourceTask) Run(ctx context.Context) (any, error) {
	return nil, deleteSource(ctx, t.cfg, t.path)
}
