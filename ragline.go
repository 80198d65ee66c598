// Package ragline answers natural-language questions about municipal
// services from a corpus of scraped city web pages: documents are
// chunked, embedded and indexed, queries are answered from the top
// matching chunks with source attribution.
package ragline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/civium/ragline/core/assemble"
	"github.com/civium/ragline/core/pipeline"
	"github.com/civium/ragline/core/retrieval"
	"github.com/civium/ragline/database"
	"github.com/civium/ragline/helper"
	"github.com/civium/ragline/index"
	"github.com/civium/ragline/llm"
	"github.com/civium/ragline/model"
	loadSql "github.com/civium/ragline/sql"
)

// Ragline provides a unified interface to the whole pipeline: ingest,
// retrieval, context assembly and optional answer generation.
type Ragline struct {
	Config    model.PipelineConfig
	Pipeline  *pipeline.Pipeline
	Index     index.VectorIndex
	Engine    *retrieval.Engine
	Assembler *assemble.Assembler
	Generator llm.Generator
	// Postgres handlers, nil when running on the in-memory index.
	DB        *helper.Database
	Documents *database.DocumentsDBHandler
	Manifest  *database.ManifestDBHandler
	// Logging
	log *slog.Logger

	mu        sync.Mutex
	docChunks map[string][]string
}

// New creates a pipeline backed by the in-memory index, suitable for
// corpora that fit in memory. Use Save and Load for persistence across
// restarts.
func New(embedder pipeline.Embedder, config model.PipelineConfig) (*Ragline, error) {
	manifest := index.NewManifest(embedder.ModelName(), embedder.ModelVersion(), embedder.Dimension(), config.Chunking)
	return newWithIndex(embedder, index.NewMemory(manifest), config)
}

// NewWithIndex creates a pipeline on a caller-provided index, for
// callers that manage index construction themselves.
func NewWithIndex(embedder pipeline.Embedder, idx index.VectorIndex, config model.PipelineConfig) (*Ragline, error) {
	return newWithIndex(embedder, idx, config)
}

// NewPostgres creates a pipeline backed by a pgvector index. It fails
// with ErrIndexModelMismatch when the database already holds an index
// built with a different embedding model.
func NewPostgres(dbConfig *helper.DatabaseConfiguration, embedder pipeline.Embedder, config model.PipelineConfig) (*Ragline, error) {
	logger := newLogger()

	db := helper.NewDatabase("ragline", dbConfig, logger)
	if err := loadSql.Init(db.Instance); err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// force=false to not reload if functions already exist
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, embedder.Dimension(), false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	manifest, err := database.NewManifestDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create manifest handler", err)
	}

	expected := index.NewManifest(embedder.ModelName(), embedder.ModelVersion(), embedder.Dimension(), config.Chunking)
	if err := manifest.EnsureCompatible(&expected); err != nil {
		return nil, err
	}

	r, err := newWithIndex(embedder, chunks, config)
	if err != nil {
		return nil, err
	}
	r.DB = db
	r.Documents = documents
	r.Manifest = manifest
	r.log = logger

	return r, nil
}

func newWithIndex(embedder pipeline.Embedder, idx index.VectorIndex, config model.PipelineConfig) (*Ragline, error) {
	if embedder == nil {
		return nil, helper.NewError("pipeline configuration", fmt.Errorf("embedder is nil"))
	}

	chunker := pipeline.OverlapChunker(config.Chunking)

	queryEmbedder := embedder
	if config.QueryCacheSize > 0 {
		queryEmbedder = pipeline.NewCachedEmbedder(embedder, config.QueryCacheSize, config.QueryCacheTTL)
	}

	return &Ragline{
		Config:    config,
		Pipeline:  pipeline.NewPipeline(chunker, embedder),
		Index:     idx,
		Engine:    retrieval.NewEngine(idx, queryEmbedder, config.EmbedTimeout),
		Assembler: assemble.NewAssembler(config.ContextBudget),
		log:       newLogger(),
		docChunks: map[string][]string{},
	}, nil
}

func newLogger() *slog.Logger {
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	return slog.New(helper.NewPrettyHandler(os.Stdout, opts))
}

// SetGenerator configures the answer generator. Without one, Ask
// returns the assembled sources with an empty answer text.
func (r *Ragline) SetGenerator(generator llm.Generator) {
	r.Generator = generator
}

// IngestDocument chunks and embeds one document and upserts the
// resulting records into the index. Re-ingesting a document replaces
// its chunks. Returns the number of chunks indexed.
func (r *Ragline) IngestDocument(ctx context.Context, doc *model.Document) (int, error) {
	records, err := r.Pipeline.Process(ctx, doc)
	if err != nil {
		return 0, err
	}

	if r.Documents != nil {
		if err := r.Documents.UpsertDocument(doc); err != nil {
			return 0, helper.NewError("upsert document", err)
		}
	}

	// Chunks of a prior ingest that the new split no longer produces
	// must not linger in the index.
	if err := r.removeStaleChunks(ctx, doc.ID, records); err != nil {
		return 0, err
	}

	for i, rec := range records {
		if err := r.Index.Upsert(ctx, rec); err != nil {
			return i, helper.NewError(fmt.Sprintf("upsert chunk %d", i), err)
		}
	}

	chunkIDs := make([]string, len(records))
	for i, rec := range records {
		chunkIDs[i] = rec.ChunkID
	}
	r.mu.Lock()
	r.docChunks[doc.ID] = chunkIDs
	r.mu.Unlock()

	r.log.Info("Ingested document", slog.String("document_id", doc.ID), slog.Int("num_chunks", len(records)))

	return len(records), nil
}

// documentScopedIndex is satisfied by backends that track which chunks
// belong to a document across process restarts, like the Postgres
// index. For them document supersession must go through the backend,
// not the in-process docChunks map, which starts empty every run.
type documentScopedIndex interface {
	DeleteByDocument(ctx context.Context, documentID string) error
}

func (r *Ragline) removeStaleChunks(ctx context.Context, docID string, records []model.EmbeddingRecord) error {
	if idx, ok := r.Index.(documentScopedIndex); ok {
		return idx.DeleteByDocument(ctx, docID)
	}

	keep := make(map[string]bool, len(records))
	for _, rec := range records {
		keep[rec.ChunkID] = true
	}

	r.mu.Lock()
	prior := r.docChunks[docID]
	r.mu.Unlock()

	for _, id := range prior {
		if keep[id] {
			continue
		}
		if err := r.Index.Delete(ctx, id); err != nil {
			return helper.NewError("delete stale chunk", err)
		}
	}
	return nil
}

// IngestAll ingests a batch of documents. A document that fails to
// chunk or embed is skipped and logged; it never aborts the batch.
// Returns the total number of chunks indexed.
func (r *Ragline) IngestAll(ctx context.Context, docs []*model.Document) (int, error) {
	total := 0
	failed := 0
	for _, doc := range docs {
		n, err := r.IngestDocument(ctx, doc)
		if err != nil {
			failed++
			r.log.Warn("Skipping document", slog.String("document_id", doc.ID), slog.String("error", err.Error()))
			continue
		}
		total += n
	}

	r.log.Info("Ingested corpus", slog.Int("documents", len(docs)-failed), slog.Int("skipped", failed), slog.Int("chunks", total))

	return total, nil
}

// RemoveDocument deletes all chunks of a document from the index.
func (r *Ragline) RemoveDocument(ctx context.Context, docID string) error {
	r.mu.Lock()
	chunkIDs := r.docChunks[docID]
	delete(r.docChunks, docID)
	r.mu.Unlock()

	if idx, ok := r.Index.(documentScopedIndex); ok {
		if err := idx.DeleteByDocument(ctx, docID); err != nil {
			return err
		}
	} else {
		for _, id := range chunkIDs {
			if err := r.Index.Delete(ctx, id); err != nil {
				return helper.NewError("delete chunk", err)
			}
		}
	}

	if r.Documents != nil {
		if err := r.Documents.DeleteDocument(docID); err != nil {
			return helper.NewError("delete document", err)
		}
	}

	return nil
}

// Rebuild re-chunks and re-embeds the full corpus and atomically
// replaces the index contents. Concurrent searches keep serving the
// prior corpus until the swap. Documents that fail are skipped and
// logged, matching IngestAll.
func (r *Ragline) Rebuild(ctx context.Context, docs []*model.Document) (int, error) {
	var records []model.EmbeddingRecord
	docChunks := map[string][]string{}
	failed := 0

	for _, doc := range docs {
		recs, err := r.Pipeline.Process(ctx, doc)
		if err != nil {
			failed++
			r.log.Warn("Skipping document", slog.String("document_id", doc.ID), slog.String("error", err.Error()))
			continue
		}
		for _, rec := range recs {
			docChunks[doc.ID] = append(docChunks[doc.ID], rec.ChunkID)
		}
		records = append(records, recs...)
	}

	if err := r.Index.Rebuild(ctx, records); err != nil {
		return 0, helper.NewError("rebuild index", err)
	}

	checksum := corpusChecksum(docs)
	if mem, ok := r.Index.(*index.Memory); ok {
		mem.SetCorpusChecksum(checksum)
	}
	if r.Manifest != nil {
		manifest := index.NewManifest(
			r.Pipeline.Embedder.ModelName(), r.Pipeline.Embedder.ModelVersion(),
			r.Pipeline.Embedder.Dimension(), r.Config.Chunking,
		)
		manifest.CorpusChecksum = checksum
		if err := r.Manifest.SetManifest(&manifest); err != nil {
			return 0, helper.NewError("set manifest", err)
		}
	}
	if r.Documents != nil {
		for _, doc := range docs {
			if _, ok := docChunks[doc.ID]; !ok {
				continue
			}
			if err := r.Documents.UpsertDocument(doc); err != nil {
				return 0, helper.NewError("upsert document", err)
			}
		}
	}

	r.mu.Lock()
	r.docChunks = docChunks
	r.mu.Unlock()

	r.log.Info("Rebuilt index", slog.Int("documents", len(docs)-failed), slog.Int("skipped", failed), slog.Int("chunks", len(records)))

	return len(records), nil
}

// corpusChecksum fingerprints the corpus contents independent of
// document order.
func corpusChecksum(docs []*model.Document) string {
	ids := make([]string, 0, len(docs))
	byID := make(map[string]*model.Document, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
		byID[doc.ID] = doc
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(byID[id].Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Search embeds the query and returns the top matching chunks.
func (r *Ragline) Search(ctx context.Context, query string, cfg model.QueryConfig) ([]*model.RetrievalResult, error) {
	return r.Engine.Retrieve(ctx, query, cfg)
}

// Assemble retrieves for the query and builds the generation-ready
// prompt with source attribution.
func (r *Ragline) Assemble(ctx context.Context, query string, cfg model.QueryConfig) (*model.AnswerContext, error) {
	results, err := r.Engine.Retrieve(ctx, query, cfg)
	if err != nil {
		return nil, err
	}
	return r.Assembler.Assemble(query, results), nil
}

// Ask answers a question end to end: retrieve, assemble, generate.
// Without a configured generator the answer text stays empty and the
// caller works from the sources. When retrieval finds nothing the
// answer states so with zero confidence and no sources, never
// fabricated attribution.
func (r *Ragline) Ask(ctx context.Context, query string, cfg model.QueryConfig) (*model.Answer, error) {
	results, err := r.Engine.Retrieve(ctx, query, cfg)
	if err != nil {
		return nil, err
	}

	actx := r.Assembler.Assemble(query, results)

	answer := &model.Answer{
		Query:      query,
		Sources:    actx.Sources,
		ChunksUsed: len(actx.Sources),
		Confidence: meanScore(actx.Sources),
	}

	if r.Generator != nil {
		text, err := r.Generator.Generate(ctx, actx.Prompt)
		if err != nil {
			// Degrade to the explicit unable-to-answer response; the
			// retrieved sources stay attached so the caller can still
			// point at them.
			r.log.Warn("Answer generation failed", slog.String("error", err.Error()))
			answer.Text = unableToAnswer
			return answer, nil
		}
		answer.Text = text
	} else if actx.NoInformation {
		answer.Text = unableToAnswer
	}

	return answer, nil
}

const unableToAnswer = "I could not produce an answer to this question. Please try rephrasing it or consult the city's official website."

func meanScore(sources []model.Source) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sources {
		sum += s.Score
	}
	return sum / float64(len(sources))
}

// Save persists the in-memory index to a snapshot directory. It fails
// on the Postgres backend, which persists through the database.
func (r *Ragline) Save(dir string) error {
	mem, ok := r.Index.(*index.Memory)
	if !ok {
		return helper.NewError("save snapshot", fmt.Errorf("index backend does not use snapshot directories"))
	}
	return mem.Save(dir)
}

// Load creates a pipeline from a persisted snapshot directory. It fails
// with ErrIndexModelMismatch when the snapshot was built with a
// different embedding model than the given embedder, and with
// ErrIndexCorrupt when the snapshot fails its checksum.
func Load(dir string, embedder pipeline.Embedder, config model.PipelineConfig) (*Ragline, error) {
	expected := index.NewManifest(embedder.ModelName(), embedder.ModelVersion(), embedder.Dimension(), config.Chunking)
	mem, err := index.Load(dir, expected)
	if err != nil {
		return nil, err
	}

	r, err := newWithIndex(embedder, mem, config)
	if err != nil {
		return nil, err
	}

	// Rebuild the per-document chunk map from the loaded records, so
	// re-ingesting and removing documents keeps superseding their
	// chunks after a restart.
	for _, rec := range mem.Records() {
		r.docChunks[rec.DocumentID] = append(r.docChunks[rec.DocumentID], rec.ChunkID)
	}

	return r, nil
}

// Stats reports the current corpus and model state.
func (r *Ragline) Stats(ctx context.Context) (*model.Stats, error) {
	chunks, err := r.Index.Count(ctx)
	if err != nil {
		return nil, helper.NewError("count chunks", err)
	}

	documents := 0
	if r.Documents != nil {
		documents, err = r.Documents.CountDocuments()
		if err != nil {
			return nil, helper.NewError("count documents", err)
		}
	} else {
		r.mu.Lock()
		documents = len(r.docChunks)
		r.mu.Unlock()
	}

	return &model.Stats{
		Documents:      documents,
		Chunks:         chunks,
		EmbeddingModel: r.Pipeline.Embedder.ModelName(),
		ModelVersion:   r.Pipeline.Embedder.ModelVersion(),
		Dimension:      r.Pipeline.Embedder.Dimension(),
	}, nil
}

// Close releases the embedding session and, on the Postgres backend,
// the database connection.
func (r *Ragline) Close() error {
	if closer, ok := r.Pipeline.Embedder.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	if r.DB != nil && r.DB.Instance != nil {
		return r.DB.Instance.Close()
	}
	return nil
}
