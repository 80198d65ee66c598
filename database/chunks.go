package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/civium/ragline/helper"
	"github.com/civium/ragline/index"
	"github.com/civium/ragline/model"
	loadSql "github.com/civium/ragline/sql"
)

// ChunksDBHandlerFunctions defines the interface for chunk database
// operations. It covers the index.VectorIndex contract plus a few
// batch and document-scoped helpers.
type ChunksDBHandlerFunctions interface {
	Upsert(ctx context.Context, rec model.EmbeddingRecord) error
	UpsertBatch(ctx context.Context, records []model.EmbeddingRecord) error
	Search(ctx context.Context, query []float32, cfg model.QueryConfig) ([]*model.RetrievalResult, error)
	Delete(ctx context.Context, chunkID string) error
	DeleteByDocument(ctx context.Context, documentID string) error
	Rebuild(ctx context.Context, records []model.EmbeddingRecord) error
	Truncate(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// ChunksDBHandler stores embedding records in a pgvector-backed table
// and serves cosine similarity search through it. It satisfies the
// index.VectorIndex interface.
type ChunksDBHandler struct {
	db        *helper.Database
	dimension int
}

// NewChunksDBHandler creates a new chunks database handler for vectors
// of the given dimension. If force is true, it reloads the SQL
// functions even if they exist.
func NewChunksDBHandler(db *helper.Database, dimension int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if dimension <= 0 {
		return nil, helper.NewError("dimension validation", fmt.Errorf("dimension must be positive, got %v", dimension))
	}

	handler := &ChunksDBHandler{db: db, dimension: dimension}

	if err := loadSql.LoadChunksSql(db.Instance, force); err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	if _, err := db.Instance.Exec(`SELECT init_chunks($1);`, dimension); err != nil {
		return nil, helper.NewError("create table chunks", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler", "dimension", dimension)

	return handler, nil
}

func (h *ChunksDBHandler) validate(rec model.EmbeddingRecord) error {
	if rec.ChunkID == "" {
		return helper.NewError("record validation", fmt.Errorf("embedding record without chunk id"))
	}
	if len(rec.Vector) != h.dimension {
		return helper.NewError(
			"record validation",
			fmt.Errorf("%w: vector dimension %v, index dimension %v",
				model.ErrIndexModelMismatch, len(rec.Vector), h.dimension),
		)
	}
	return nil
}

// Upsert inserts or replaces one embedding record.
func (h *ChunksDBHandler) Upsert(ctx context.Context, rec model.EmbeddingRecord) error {
	if err := h.validate(rec); err != nil {
		return err
	}

	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT upsert_chunk($1, $2, $3, $4, $5)`,
		rec.ChunkID, rec.DocumentID, rec.Text, pgvector.NewVector(rec.Vector), rec.Meta,
	)
	if err != nil {
		return helper.NewError("upsert chunk", err)
	}
	return nil
}

// UpsertBatch inserts or replaces the given records inside a single
// transaction.
func (h *ChunksDBHandler) UpsertBatch(ctx context.Context, records []model.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	if err := h.upsertTx(ctx, tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit transaction", err)
	}
	return nil
}

func (h *ChunksDBHandler) upsertTx(ctx context.Context, tx *sql.Tx, records []model.EmbeddingRecord) error {
	for _, rec := range records {
		if err := h.validate(rec); err != nil {
			return err
		}

		_, err := tx.ExecContext(
			ctx,
			`SELECT upsert_chunk($1, $2, $3, $4, $5)`,
			rec.ChunkID, rec.DocumentID, rec.Text, pgvector.NewVector(rec.Vector), rec.Meta,
		)
		if err != nil {
			return helper.NewError("upsert chunk", err)
		}
	}
	return nil
}

// Search returns at most cfg.TopK records ordered by descending cosine
// similarity, ties broken by ascending chunk id. Records below
// cfg.MinScore and records excluded by metadata filters do not count
// toward k. An empty result is valid.
func (h *ChunksDBHandler) Search(ctx context.Context, query []float32, cfg model.QueryConfig) ([]*model.RetrievalResult, error) {
	if len(query) != h.dimension {
		return nil, helper.NewError(
			"query validation",
			fmt.Errorf("%w: query dimension %v, index dimension %v",
				model.ErrIndexModelMismatch, len(query), h.dimension),
		)
	}
	if err := model.ValidateFilters(cfg.Filters); err != nil {
		return nil, err
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = model.DefaultQueryConfig().TopK
	}

	section := sql.NullString{String: cfg.Filters[model.FilterFieldSection], Valid: cfg.Filters[model.FilterFieldSection] != ""}
	language := sql.NullString{String: cfg.Filters[model.FilterFieldLanguage], Valid: cfg.Filters[model.FilterFieldLanguage] != ""}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT chunk_id, content, metadata, similarity
		 FROM select_chunks_by_similarity($1, $2, $3, $4, $5)`,
		pgvector.NewVector(query), topK, cfg.MinScore, section, language,
	)
	if err != nil {
		return nil, helper.NewError("query chunks by similarity", err)
	}
	defer rows.Close()

	results := []*model.RetrievalResult{}
	for rows.Next() {
		result := &model.RetrievalResult{}
		if err := rows.Scan(&result.ChunkID, &result.Text, &result.Meta, &result.Score); err != nil {
			return nil, helper.NewError("scan", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// Delete removes a record by chunk id. Deleting an absent id is a no-op.
func (h *ChunksDBHandler) Delete(ctx context.Context, chunkID string) error {
	if _, err := h.db.Instance.ExecContext(ctx, `SELECT delete_chunk($1)`, chunkID); err != nil {
		return helper.NewError("delete chunk", err)
	}
	return nil
}

// DeleteByDocument removes all records belonging to a document.
func (h *ChunksDBHandler) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := h.db.Instance.ExecContext(ctx, `SELECT delete_chunks_by_document($1)`, documentID); err != nil {
		return helper.NewError("delete chunks by document", err)
	}
	return nil
}

// Rebuild replaces all stored records with the given set inside a
// single transaction, so concurrent searches see either the old corpus
// or the new one, never a mix.
func (h *ChunksDBHandler) Rebuild(ctx context.Context, records []model.EmbeddingRecord) error {
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if seen[rec.ChunkID] {
			return helper.NewError("rebuild validation", fmt.Errorf("duplicate chunk id %q in rebuild", rec.ChunkID))
		}
		seen[rec.ChunkID] = true
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	// DELETE instead of TRUNCATE keeps the swap MVCC-safe for
	// concurrent readers.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return helper.NewError("clear chunks", err)
	}
	if err := h.upsertTx(ctx, tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit transaction", err)
	}
	return nil
}

// Truncate removes all stored records. It takes an exclusive lock, so
// it is meant for test cleanup rather than serving traffic.
func (h *ChunksDBHandler) Truncate(ctx context.Context) error {
	if _, err := h.db.Instance.ExecContext(ctx, `SELECT truncate_chunks()`); err != nil {
		return helper.NewError("truncate chunks", err)
	}
	return nil
}

// Count returns the number of stored records.
func (h *ChunksDBHandler) Count(ctx context.Context) (int, error) {
	var count int
	if err := h.db.Instance.QueryRowContext(ctx, `SELECT count_chunks()`).Scan(&count); err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// Compile-time check that the handler satisfies the shared index
// contract.
var _ index.VectorIndex = (*ChunksDBHandler)(nil)
