package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civium/ragline/core/pipeline"
	"github.com/civium/ragline/model"
)

const testDimension = 8

func testRecord(chunkID, documentID, text string, vector []float32) model.EmbeddingRecord {
	return model.EmbeddingRecord{
		ChunkID:    chunkID,
		DocumentID: documentID,
		Vector:     pipeline.Normalize(vector),
		Text:       text,
		Meta: model.ChunkMetadata{
			Title:    "Test document",
			URL:      "https://city.example/test",
			Section:  "general",
			Language: "en",
		},
	}
}

func axisVector(axis int) []float32 {
	v := make([]float32, testDimension)
	v[axis] = 1
	return v
}

func TestChunksNewChunksDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewChunksDBHandler", func(t *testing.T) {
		chunksDbHandler, err := NewChunksDBHandler(database, testDimension, true)
		assert.NoError(t, err, "Expected NewChunksDBHandler to not return an error")
		require.NotNil(t, chunksDbHandler, "Expected NewChunksDBHandler to return a non-nil instance")
		require.NotNil(t, chunksDbHandler.db, "Expected NewChunksDBHandler to have a non-nil database instance")
	})

	t.Run("Invalid call NewChunksDBHandler with nil database", func(t *testing.T) {
		_, err := NewChunksDBHandler(nil, testDimension, false)
		assert.Error(t, err, "Expected error when creating ChunksDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil")
	})

	t.Run("Invalid call NewChunksDBHandler with zero dimension", func(t *testing.T) {
		_, err := NewChunksDBHandler(database, 0, false)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "dimension must be positive")
	})
}

func TestChunksUpsert(t *testing.T) {
	ctx := context.Background()
	database := initDB(t)

	handler, err := NewChunksDBHandler(database, testDimension, true)
	require.NoError(t, err)
	require.NoError(t, handler.Truncate(ctx))

	t.Run("Upsert and count", func(t *testing.T) {
		err := handler.Upsert(ctx, testRecord("c1", "doc1", "first chunk", axisVector(0)))
		require.NoError(t, err)
		err = handler.Upsert(ctx, testRecord("c2", "doc1", "second chunk", axisVector(1)))
		require.NoError(t, err)

		count, err := handler.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("Upsert replaces an existing chunk id", func(t *testing.T) {
		rec := testRecord("c1", "doc1", "replaced text", axisVector(2))
		require.NoError(t, handler.Upsert(ctx, rec))

		count, err := handler.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		results, err := handler.Search(ctx, pipeline.Normalize(axisVector(2)), model.QueryConfig{TopK: 1, MinScore: 0.5})
		require.NoError(t, err)
		require.Equal(t, 1, len(results))
		assert.Equal(t, "replaced text", results[0].Text)
	})

	t.Run("Wrong dimension fails", func(t *testing.T) {
		err := handler.Upsert(ctx, testRecord("c3", "doc1", "bad", []float32{1, 0}))
		assert.ErrorIs(t, err, model.ErrIndexModelMismatch)
	})

	t.Run("Missing chunk id fails", func(t *testing.T) {
		err := handler.Upsert(ctx, testRecord("", "doc1", "bad", axisVector(0)))
		assert.Error(t, err)
	})

	t.Run("UpsertBatch inserts all records", func(t *testing.T) {
		require.NoError(t, handler.Truncate(ctx))

		records := []model.EmbeddingRecord{
			testRecord("b1", "doc1", "one", axisVector(0)),
			testRecord("b2", "doc1", "two", axisVector(1)),
			testRecord("b3", "doc2", "three", axisVector(2)),
		}
		require.NoError(t, handler.UpsertBatch(ctx, records))

		count, err := handler.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}

func TestChunksSearch(t *testing.T) {
	ctx := context.Background()
	database := initDB(t)

	handler, err := NewChunksDBHandler(database, testDimension, true)
	require.NoError(t, err)
	require.NoError(t, handler.Truncate(ctx))

	strong := testRecord("strong", "doc1", "strong match", axisVector(0))
	medium := testRecord("medium", "doc1", "medium match", pipeline.Normalize([]float32{0.8, 0.6, 0, 0, 0, 0, 0, 0}))
	medium.Meta.Section = "waste"
	weak := testRecord("weak", "doc2", "weak match", axisVector(1))
	weak.Meta.Language = "fr"
	require.NoError(t, handler.UpsertBatch(ctx, []model.EmbeddingRecord{strong, medium, weak}))

	query := pipeline.Normalize(axisVector(0))

	t.Run("Results ordered by descending score", func(t *testing.T) {
		results, err := handler.Search(ctx, query, model.QueryConfig{TopK: 3, MinScore: 0})
		require.NoError(t, err)

		require.Equal(t, 3, len(results))
		assert.Equal(t, "strong", results[0].ChunkID)
		assert.Equal(t, "medium", results[1].ChunkID)
		assert.Equal(t, "weak", results[2].ChunkID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-4)
		assert.InDelta(t, 0.8, results[1].Score, 1e-4)
	})

	t.Run("TopK caps the result count", func(t *testing.T) {
		results, err := handler.Search(ctx, query, model.QueryConfig{TopK: 1, MinScore: 0})
		require.NoError(t, err)
		require.Equal(t, 1, len(results))
		assert.Equal(t, "strong", results[0].ChunkID)
	})

	t.Run("MinScore excludes weak matches", func(t *testing.T) {
		results, err := handler.Search(ctx, query, model.QueryConfig{TopK: 5, MinScore: 0.9})
		require.NoError(t, err)
		require.Equal(t, 1, len(results))
		assert.Equal(t, "strong", results[0].ChunkID)
	})

	t.Run("Section filter applies before truncation", func(t *testing.T) {
		results, err := handler.Search(ctx, query, model.QueryConfig{
			TopK:     1,
			MinScore: 0,
			Filters:  map[string]string{model.FilterFieldSection: "waste"},
		})
		require.NoError(t, err)
		require.Equal(t, 1, len(results))
		assert.Equal(t, "medium", results[0].ChunkID)
	})

	t.Run("Language filter matches", func(t *testing.T) {
		results, err := handler.Search(ctx, query, model.QueryConfig{
			TopK:     5,
			MinScore: 0,
			Filters:  map[string]string{model.FilterFieldLanguage: "fr"},
		})
		require.NoError(t, err)
		require.Equal(t, 1, len(results))
		assert.Equal(t, "weak", results[0].ChunkID)
	})

	t.Run("Unknown filter field fails", func(t *testing.T) {
		_, err := handler.Search(ctx, query, model.QueryConfig{
			TopK:    5,
			Filters: map[string]string{"author": "x"},
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown filter field")
	})

	t.Run("Wrong query dimension fails", func(t *testing.T) {
		_, err := handler.Search(ctx, []float32{1, 0}, model.QueryConfig{TopK: 5})
		assert.ErrorIs(t, err, model.ErrIndexModelMismatch)
	})

	t.Run("Empty result is valid", func(t *testing.T) {
		results, err := handler.Search(ctx, pipeline.Normalize(axisVector(7)), model.QueryConfig{TopK: 5, MinScore: 0.9})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Metadata survives the roundtrip", func(t *testing.T) {
		results, err := handler.Search(ctx, query, model.QueryConfig{TopK: 1, MinScore: 0})
		require.NoError(t, err)
		require.Equal(t, 1, len(results))
		assert.Equal(t, "Test document", results[0].Meta.Title)
		assert.Equal(t, "https://city.example/test", results[0].Meta.URL)
	})
}

func TestChunksDeleteAndRebuild(t *testing.T) {
	ctx := context.Background()
	database := initDB(t)

	handler, err := NewChunksDBHandler(database, testDimension, true)
	require.NoError(t, err)

	t.Run("Delete removes a record", func(t *testing.T) {
		require.NoError(t, handler.Truncate(ctx))
		require.NoError(t, handler.Upsert(ctx, testRecord("c1", "doc1", "text", axisVector(0))))

		require.NoError(t, handler.Delete(ctx, "c1"))

		count, err := handler.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("Deleting an absent id is a no-op", func(t *testing.T) {
		require.NoError(t, handler.Delete(ctx, "missing"))
	})

	t.Run("DeleteByDocument removes all document chunks", func(t *testing.T) {
		require.NoError(t, handler.Truncate(ctx))
		require.NoError(t, handler.UpsertBatch(ctx, []model.EmbeddingRecord{
			testRecord("a1", "doc-a", "one", axisVector(0)),
			testRecord("a2", "doc-a", "two", axisVector(1)),
			testRecord("b1", "doc-b", "three", axisVector(2)),
		}))

		require.NoError(t, handler.DeleteByDocument(ctx, "doc-a"))

		count, err := handler.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Rebuild replaces the full record set", func(t *testing.T) {
		require.NoError(t, handler.Truncate(ctx))
		require.NoError(t, handler.Upsert(ctx, testRecord("old", "doc1", "old text", axisVector(0))))

		replacement := make([]model.EmbeddingRecord, 5)
		for i := range replacement {
			replacement[i] = testRecord(fmt.Sprintf("new%d", i), "doc2", "new text", axisVector(i))
		}
		require.NoError(t, handler.Rebuild(ctx, replacement))

		count, err := handler.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, count)

		results, err := handler.Search(ctx, pipeline.Normalize(axisVector(0)), model.QueryConfig{TopK: 10, MinScore: 0})
		require.NoError(t, err)
		for _, res := range results {
			assert.NotEqual(t, "old", res.ChunkID)
		}
	})

	t.Run("Rebuild with duplicate chunk ids fails", func(t *testing.T) {
		err := handler.Rebuild(ctx, []model.EmbeddingRecord{
			testRecord("dup", "doc1", "one", axisVector(0)),
			testRecord("dup", "doc1", "two", axisVector(1)),
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate chunk id")
	})
}

func TestChunksChangeIndexType(t *testing.T) {
	ctx := context.Background()
	database := initDB(t)

	handler, err := NewChunksDBHandler(database, testDimension, true)
	require.NoError(t, err)

	t.Run("Change to ivfflat and back to hnsw", func(t *testing.T) {
		require.NoError(t, handler.ChangeIndexType(ctx, "ivfflat", IndexParams{Lists: 10}))
		require.NoError(t, handler.ChangeIndexType(ctx, "hnsw", IndexParams{}))
	})

	t.Run("Unsupported index type fails", func(t *testing.T) {
		err := handler.ChangeIndexType(ctx, "btree", IndexParams{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported index type")
	})
}
