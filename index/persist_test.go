package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civium/ragline/model"
)

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("Roundtrip preserves records and manifest", func(t *testing.T) {
		dir := t.TempDir()
		idx := NewMemory(testManifest())
		require.NoError(t, idx.Upsert(ctx, record("c1", []float32{1, 0, 0, 0})))
		require.NoError(t, idx.Upsert(ctx, record("c2", []float32{0, 1, 0, 0})))
		idx.SetCorpusChecksum("abc123")

		require.NoError(t, idx.Save(dir))

		loaded, err := Load(dir, testManifest())
		require.NoError(t, err)

		count, err := loaded.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		manifest := loaded.Manifest()
		assert.Equal(t, "word-hash-test-embedder", manifest.EmbeddingModel)
		assert.Equal(t, "abc123", manifest.CorpusChecksum)
		assert.Equal(t, 2, manifest.Records)

		results, err := loaded.Search(ctx, []float32{1, 0, 0, 0}, model.QueryConfig{TopK: 1, MinScore: 0.5})
		require.NoError(t, err)
		require.Equal(t, 1, len(results))
		assert.Equal(t, "c1", results[0].ChunkID)
		assert.Equal(t, "text of c1", results[0].Text)
	})

	t.Run("Different embedding model fails to load", func(t *testing.T) {
		dir := t.TempDir()
		idx := NewMemory(testManifest())
		require.NoError(t, idx.Upsert(ctx, record("c1", []float32{1, 0, 0, 0})))
		require.NoError(t, idx.Save(dir))

		expected := testManifest()
		expected.EmbeddingModel = "a-different-model"

		_, err := Load(dir, expected)
		assert.ErrorIs(t, err, model.ErrIndexModelMismatch)
	})

	t.Run("Tampered records fail the checksum", func(t *testing.T) {
		dir := t.TempDir()
		idx := NewMemory(testManifest())
		require.NoError(t, idx.Upsert(ctx, record("c1", []float32{1, 0, 0, 0})))
		require.NoError(t, idx.Save(dir))

		path := filepath.Join(dir, "records.gob")
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		data[len(data)-1] ^= 0xff
		require.NoError(t, os.WriteFile(path, data, 0640))

		_, err = Load(dir, testManifest())
		assert.ErrorIs(t, err, model.ErrIndexCorrupt)
	})

	t.Run("Unreadable manifest fails as corrupt", func(t *testing.T) {
		dir := t.TempDir()
		idx := NewMemory(testManifest())
		require.NoError(t, idx.Save(dir))

		require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{not json"), 0640))

		_, err := Load(dir, testManifest())
		assert.ErrorIs(t, err, model.ErrIndexCorrupt)
	})

	t.Run("Missing snapshot directory fails", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing"), testManifest())
		assert.Error(t, err)
	})

	t.Run("Empty index roundtrips", func(t *testing.T) {
		dir := t.TempDir()
		idx := NewMemory(testManifest())
		require.NoError(t, idx.Save(dir))

		loaded, err := Load(dir, testManifest())
		require.NoError(t, err)

		count, err := loaded.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}
