package index

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/civium/ragline/model"
)

// Snapshot directory layout: one directory per corpus snapshot holding
// the manifest and the serialized records. The manifest carries a
// checksum of the records file so corruption is detected at load time.
const (
	manifestFile = "manifest.json"
	recordsFile  = "records.gob"
)

// Save writes the current snapshot to dir, creating it if necessary.
func (m *Memory) Save(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	m.mu.Lock()
	snap := m.snap.Load()
	manifest := m.manifest
	m.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap.records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	manifest.RecordsSHA256 = hex.EncodeToString(sum[:])
	manifest.Records = len(snap.records)

	if err := os.WriteFile(filepath.Join(dir, recordsFile), buf.Bytes(), 0640); err != nil {
		return fmt.Errorf("write records: %w", err)
	}

	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), manifestData, 0640); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// Load reads a snapshot directory and returns a ready index. It fails
// with ErrIndexModelMismatch when the persisted manifest names a
// different embedding model or version than expected, and with
// ErrIndexCorrupt when the records file does not match its checksum.
func Load(dir string, expected Manifest) (*Memory, error) {
	manifestData, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("%w: unreadable manifest: %v", model.ErrIndexCorrupt, err)
	}

	if !manifest.Compatible(expected) {
		return nil, fmt.Errorf("%w: index built with %s@%s (dim %d), configured %s@%s (dim %d)",
			model.ErrIndexModelMismatch,
			manifest.EmbeddingModel, manifest.ModelVersion, manifest.Dimension,
			expected.EmbeddingModel, expected.ModelVersion, expected.Dimension)
	}

	recordsData, err := os.ReadFile(filepath.Join(dir, recordsFile))
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	sum := sha256.Sum256(recordsData)
	if hex.EncodeToString(sum[:]) != manifest.RecordsSHA256 {
		return nil, fmt.Errorf("%w: records checksum mismatch, rebuild required", model.ErrIndexCorrupt)
	}

	var records []model.EmbeddingRecord
	if err := gob.NewDecoder(bytes.NewReader(recordsData)).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrIndexCorrupt, err)
	}
	if len(records) != manifest.Records {
		return nil, fmt.Errorf("%w: manifest lists %d records, file holds %d",
			model.ErrIndexCorrupt, manifest.Records, len(records))
	}

	m := NewMemory(manifest)
	m.snap.Store(newSnapshot(records))
	return m, nil
}
