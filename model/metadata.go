package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// ChunkMetadata is the fixed metadata schema inherited by every chunk
// from its parent document. It is a struct rather than a free-form map
// so that the fields available for filtering cannot drift between
// index-build time and query time.
type ChunkMetadata struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Section   string `json:"section,omitempty"`
	Language  string `json:"language,omitempty"`
	WordCount int    `json:"word_count"`
}

// Filterable metadata fields accepted in query filters.
const (
	FilterFieldSection  = "section"
	FilterFieldLanguage = "language"
)

// Validate is applied at chunk-creation time.
func (m ChunkMetadata) Validate() error {
	if m.Title == "" {
		return fmt.Errorf("%w: chunk metadata missing title", ErrMalformedDocument)
	}
	if m.URL == "" {
		return fmt.Errorf("%w: chunk metadata missing url", ErrMalformedDocument)
	}
	return nil
}

// Field returns the value of a filterable field by name.
func (m ChunkMetadata) Field(name string) (string, bool) {
	switch name {
	case FilterFieldSection:
		return m.Section, true
	case FilterFieldLanguage:
		return m.Language, true
	default:
		return "", false
	}
}

// Matches reports whether the metadata satisfies every field=value pair.
// Unknown field names never match; ValidateFilters rejects them before
// a search runs.
func (m ChunkMetadata) Matches(filters map[string]string) bool {
	for field, want := range filters {
		got, ok := m.Field(field)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// ValidateFilters rejects filters naming fields outside the schema, so a
// typo fails loudly instead of silently matching nothing.
func ValidateFilters(filters map[string]string) error {
	for field := range filters {
		switch field {
		case FilterFieldSection, FilterFieldLanguage:
		default:
			return fmt.Errorf("unknown filter field %q", field)
		}
	}
	return nil
}

// Value implements the driver.Valuer interface for database storage.
func (m ChunkMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for database retrieval.
func (m *ChunkMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = ChunkMetadata{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}
