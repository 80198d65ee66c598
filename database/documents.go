package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/civium/ragline/helper"
	"github.com/civium/ragline/model"
	loadSql "github.com/civium/ragline/sql"
)

// DocumentsDBHandlerFunctions defines the interface for document
// database operations.
type DocumentsDBHandlerFunctions interface {
	UpsertDocument(doc *model.Document) error
	SelectDocument(docID string) (*model.Document, error)
	SelectAllDocuments() ([]*model.Document, error)
	DeleteDocument(docID string) error
	CountDocuments() (int, error)
}

// DocumentsDBHandler handles document-related database operations.
// Documents are stored without their full text; the chunks table holds
// the retrievable content.
type DocumentsDBHandler struct {
	db *helper.Database
}

// NewDocumentsDBHandler creates a new documents database handler.
// If force is true, it reloads the SQL functions even if they exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	handler := &DocumentsDBHandler{db: db}

	if err := loadSql.LoadDocumentsSql(db.Instance, force); err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	if _, err := db.Instance.Exec(`SELECT init_documents();`); err != nil {
		return nil, helper.NewError("create table documents", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return handler, nil
}

// UpsertDocument inserts a document record or supersedes the existing
// one with the same id.
func (h *DocumentsDBHandler) UpsertDocument(doc *model.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	var id int64
	var rid uuid.UUID
	var createdAt time.Time
	row := h.db.Instance.QueryRow(
		`SELECT id, rid, doc_id, title, url, section, language, fetched_at, created_at
		 FROM upsert_document($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.Title, doc.URL, doc.Section, doc.Language, doc.FetchedAt,
	)

	err := row.Scan(&id, &rid, &doc.ID, &doc.Title, &doc.URL, &doc.Section, &doc.Language, &doc.FetchedAt, &createdAt)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectDocument retrieves a document's metadata by id.
func (h *DocumentsDBHandler) SelectDocument(docID string) (*model.Document, error) {
	row := h.db.Instance.QueryRow(`SELECT doc_id, title, url, section, language, fetched_at FROM select_document($1)`, docID)

	doc := &model.Document{}
	err := row.Scan(&doc.ID, &doc.Title, &doc.URL, &doc.Section, &doc.Language, &doc.FetchedAt)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return doc, nil
}

// SelectAllDocuments retrieves all document metadata records.
func (h *DocumentsDBHandler) SelectAllDocuments() ([]*model.Document, error) {
	rows, err := h.db.Instance.Query(`SELECT doc_id, title, url, section, language, fetched_at FROM select_all_documents()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var docs []*model.Document
	for rows.Next() {
		doc := &model.Document{}
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.URL, &doc.Section, &doc.Language, &doc.FetchedAt); err != nil {
			return nil, helper.NewError("scan", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// DeleteDocument deletes a document's metadata record.
func (h *DocumentsDBHandler) DeleteDocument(docID string) error {
	if _, err := h.db.Instance.Exec(`SELECT delete_document($1)`, docID); err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// CountDocuments returns the number of stored documents.
func (h *DocumentsDBHandler) CountDocuments() (int, error) {
	var count int
	if err := h.db.Instance.QueryRow(`SELECT count_documents()`).Scan(&count); err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}
