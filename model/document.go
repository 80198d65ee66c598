package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Document represents a source document as delivered by the crawler.
// Documents are immutable once ingested; a re-crawl produces a new
// Document with the same ID that supersedes the old one on rebuild.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
	Section   string    `json:"section,omitempty"`
	Language  string    `json:"language,omitempty"`
}

// Validate checks the required fields of the crawler input contract.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing document id", ErrMalformedDocument)
	}
	if d.Text == "" {
		return fmt.Errorf("%w: document %q has no text", ErrMalformedDocument, d.ID)
	}
	return nil
}

// DocumentsFromJSON parses crawler document records, either as a JSON
// array or as JSON lines (one object per record). Validation is left to
// the caller so that bulk ingest can skip and log bad records instead
// of aborting the whole load.
func DocumentsFromJSON(data []byte) ([]*Document, error) {
	var docs []*Document
	if err := json.Unmarshal(data, &docs); err == nil {
		return docs, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	for {
		doc := &Document{}
		if err := decoder.Decode(doc); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("parse document records: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DocumentsFromFile reads crawler output from a single JSON file.
func DocumentsFromFile(path string) ([]*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DocumentsFromJSON(data)
}

// DocumentsFromDir loads all *.json files from a crawler output directory.
func DocumentsFromDir(dir string) ([]*Document, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	var docs []*Document
	for _, path := range paths {
		fileDocs, err := DocumentsFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}
