// Gallery - self-hosted media gallery engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gallery

package ingest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/gallery/internal/config"
	"github.com/tomtom215/gallery/internal/coordinator"
	"github.com/tomtom215/gallery/internal/models"
	"github.com/tomtom215/gallery/internal/store"
)

// fakeStore is a minimal in-memory Store double: enough to exercise the
// pipeline's dedupe check and persist step without a real DuckDB instance.
type fakeStore struct {
	mu       sync.Mutex
	entities map[string]*models.Entity
	applied  [][]models.Op
	aliases  []models.ObjectAlias
	exif     []models.ObjectExif
	members  []models.InsertAlbumMember
}

func newFakeStore() *fakeStore {
	return &fakeStore{entities: make(map[string]*models.Entity)}
}

func (s *fakeStore) Load(_ context.Context, id string) (*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, &store.ErrNotFound{ID: id}
	}
	return e, nil
}

func (s *fakeStore) Apply(_ context.Context, ops []models.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, ops)
	for _, op := range ops {
		switch v := op.(type) {
		case models.InsertEntity:
			e := v.Object
			entity := &models.Entity{Object: e, Image: v.Image, Video: v.Video, Album: v.Album}
			s.entities[e.ID] = entity
		case models.InsertAlias:
			s.aliases = append(s.aliases, v.Alias)
		case models.InsertExif:
			s.exif = append(s.exif, v.Exif)
		case models.InsertAlbumMember:
			s.members = append(s.members, v)
		}
	}
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entities)
}

// fakeIndex counts rebuild triggers without doing any real indexing work.
type fakeIndex struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeIndex) Update(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeIndex) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testIngestConfig(t *testing.T) config.IngestConfig {
	t.Helper()
	return config.IngestConfig{
		ObjectRoot:              t.TempDir(),
		ThumbnailMaxSide:        64,
		CompressionMaxHeight:    720,
		OpenRetries:             1,
		CopyRetries:             1,
		DeleteRetries:           1,
		RetryBaseDelay:          time.Millisecond,
		FFmpegPath:              "ffmpeg",
		FFprobePath:             "ffprobe",
		VideoBreakerMaxFailures: 3,
		VideoBreakerCooldown:    time.Second,
	}
}

// writeTestPNG writes a small solid-color PNG to path, returning its bytes.
func writeTestPNG(t *testing.T, path string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: byte(x * 16), G: byte(y * 16), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, st Store, idx IndexUpdater) *Pipeline {
	t.Helper()
	watchCfg := testWatchConfig()
	batch := coordinator.NewBatchExecutor(2)
	detached := coordinator.NewIndexExecutor(2)
	return NewPipeline(testIngestConfig(t), watchCfg, st, idx, batch, detached, nil)
}

func TestRunIngestsNewImageEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writeTestPNG(t, src)

	st := newFakeStore()
	idx := &fakeIndex{}
	p := newTestPipeline(t, st, idx)

	err := p.Run(context.Background(), src, "")
	require.NoError(t, err)

	assert.Equal(t, 1, st.count())
	assert.GreaterOrEqual(t, idx.callCount(), 1)
	require.Len(t, st.aliases, 1, "every ingest must record an alias row")
	assert.Equal(t, src, st.aliases[0].File)
	assert.Empty(t, st.members, "no album_member row without a presigned album")

	p.detached.Wait()
	_, statErr := os.Stat(src)
	assert.True(t, os.IsNotExist(statErr), "source file should be deleted after ingest")
}

func TestRunInsertsAlbumMemberForPresignedAlbum(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writeTestPNG(t, src)

	st := newFakeStore()
	idx := &fakeIndex{}
	p := newTestPipeline(t, st, idx)

	require.NoError(t, p.Run(context.Background(), src, "album-1"))

	require.Len(t, st.members, 1)
	assert.Equal(t, "album-1", st.members[0].AlbumID)
	require.Len(t, st.aliases, 1)
	assert.Equal(t, st.members[0].ObjectID, st.aliases[0].ObjectID)
}

func TestRunDedupesIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.png")
	second := filepath.Join(dir, "second.png")
	bytesContent := writeTestPNG(t, first)
	require.NoError(t, os.WriteFile(second, bytesContent, 0o644))

	st := newFakeStore()
	idx := &fakeIndex{}
	p := newTestPipeline(t, st, idx)

	require.NoError(t, p.Run(context.Background(), first, ""))
	p.detached.Wait()
	require.Equal(t, 1, st.count())
	callsAfterFirst := idx.callCount()

	require.NoError(t, p.Run(context.Background(), second, ""))
	p.detached.Wait()

	assert.Equal(t, 1, st.count(), "duplicate content must not create a second entity")
	assert.Equal(t, callsAfterFirst, idx.callCount(), "duplicate ingest must not trigger another index rebuild")
	require.Len(t, st.aliases, 2, "a dedup hit still records an alias row for the new source path")
	assert.Equal(t, second, st.aliases[1].File)

	_, statErr := os.Stat(second)
	assert.True(t, os.IsNotExist(statErr), "duplicate source file should still be cleaned up")
}

func TestRunRejectsUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	st := newFakeStore()
	idx := &fakeIndex{}
	p := newTestPipeline(t, st, idx)

	err := p.Run(context.Background(), src, "")
	require.Error(t, err)
	var unsupported *ErrUnsupportedExtension
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, 0, st.count())

	_, statErr := os.Stat(src)
	require.NoError(t, statErr, "rejected files are left in place, not deleted")
}

func TestRunFailsOnMissingSourceFile(t *testing.T) {
	st := newFakeStore()
	idx := &fakeIndex{}
	p := newTestPipeline(t, st, idx)

	err := p.Run(context.Background(), filepath.Join(t.TempDir(), "missing.png"), "")
	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "open", stageErr.Stage)
}
