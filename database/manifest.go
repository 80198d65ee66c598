package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civium/ragline/helper"
	"github.com/civium/ragline/index"
	"github.com/civium/ragline/model"
	loadSql "github.com/civium/ragline/sql"
)

// ManifestDBHandlerFunctions defines the interface for index manifest
// database operations.
type ManifestDBHandlerFunctions interface {
	SetManifest(manifest *index.Manifest) error
	GetManifest() (*index.Manifest, error)
	EnsureCompatible(expected *index.Manifest) error
}

// ManifestDBHandler records which embedding model and chunking
// parameters the stored index was built with.
type ManifestDBHandler struct {
	db *helper.Database
}

// NewManifestDBHandler creates a new manifest database handler.
// If force is true, it reloads the SQL functions even if they exist.
func NewManifestDBHandler(db *helper.Database, force bool) (*ManifestDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	handler := &ManifestDBHandler{db: db}

	if err := loadSql.LoadManifestSql(db.Instance, force); err != nil {
		return nil, helper.NewError("load manifest sql", err)
	}

	if _, err := db.Instance.Exec(`SELECT init_manifest();`); err != nil {
		return nil, helper.NewError("create table index_manifest", err)
	}

	db.Logger.Info("Initialized ManifestDBHandler")

	return handler, nil
}

// SetManifest writes the manifest row, regenerating its snapshot id.
func (h *ManifestDBHandler) SetManifest(manifest *index.Manifest) error {
	row := h.db.Instance.QueryRow(
		`SELECT snapshot_id, created_at FROM set_manifest($1, $2, $3, $4, $5, $6, $7, $8)`,
		manifest.EmbeddingModel, manifest.ModelVersion, manifest.Dimension,
		manifest.Chunking.ChunkSize, manifest.Chunking.Overlap,
		manifest.Chunking.MinChunkSize, manifest.Chunking.MaxChunkSize,
		manifest.CorpusChecksum,
	)

	var snapshotID uuid.UUID
	var createdAt time.Time
	if err := row.Scan(&snapshotID, &createdAt); err != nil {
		return helper.NewError("scan", err)
	}

	manifest.SnapshotID = snapshotID.String()
	manifest.CreatedAt = createdAt

	return nil
}

// GetManifest reads the stored manifest. It returns nil without error
// if no manifest has been written yet.
func (h *ManifestDBHandler) GetManifest() (*index.Manifest, error) {
	rows, err := h.db.Instance.Query(
		`SELECT snapshot_id, embedding_model, model_version, dimension,
		        chunk_size, chunk_overlap, min_chunk_size, max_chunk_size,
		        corpus_checksum, created_at
		 FROM get_manifest()`,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	manifest := &index.Manifest{}
	var snapshotID uuid.UUID
	err = rows.Scan(
		&snapshotID, &manifest.EmbeddingModel, &manifest.ModelVersion, &manifest.Dimension,
		&manifest.Chunking.ChunkSize, &manifest.Chunking.Overlap,
		&manifest.Chunking.MinChunkSize, &manifest.Chunking.MaxChunkSize,
		&manifest.CorpusChecksum, &manifest.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}
	manifest.SnapshotID = snapshotID.String()

	return manifest, nil
}

// EnsureCompatible checks the stored manifest against the expected
// embedding configuration. A missing manifest is written; a mismatched
// one fails with ErrIndexModelMismatch so stale vectors are never
// served against a different model.
func (h *ManifestDBHandler) EnsureCompatible(expected *index.Manifest) error {
	stored, err := h.GetManifest()
	if err != nil {
		return err
	}

	if stored == nil {
		return h.SetManifest(expected)
	}

	if !stored.Compatible(*expected) {
		return helper.NewError(
			"manifest validation",
			fmt.Errorf(
				"stored index was built with model %v (version %v, dimension %v), expected %v (version %v, dimension %v): %w",
				stored.EmbeddingModel, stored.ModelVersion, stored.Dimension,
				expected.EmbeddingModel, expected.ModelVersion, expected.Dimension,
				model.ErrIndexModelMismatch,
			),
		)
	}

	return nil
}
