// Package models defines core data structures for documents, segments,
// chat messages, retrieval queries and results.
package models

import (
	"fmt"
	"time"
)

// Metadata keys attached to segments and loaded documents.
const (
	MetaDocumentID            = "document_id"
	MetaTitle                 = "title"
	MetaFileName              = "file_name"
	MetaAbsoluteDirectoryPath = "absolute_directory_path"
	MetaSourcePath            = "source_path"
	MetaSourceMtime           = "source_mtime"
	MetaSourceSize            = "source_size"
)

// Document represents a stored document with metadata.
type Document struct {
	ID        string                 `json:"id" db:"id"`
	Title     string                 `json:"title" db:"title"`
	Content   string                 `json:"content" db:"content"`
	Metadata  map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// TextSegment is a piece of a document that is embedded and retrieved on its own.
type TextSegment struct {
	ID         string                 `json:"id" db:"id"`
	DocumentID string                 `json:"document_id" db:"document_id"`
	Index      int                    `json:"index" db:"idx"`
	Text       string                 `json:"text" db:"text"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	Embedding  []float32              `json:"-" db:"embedding"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}

// MetadataString returns the metadata value for key formatted as a string,
// or "" when absent.
func (s *TextSegment) MetadataString(key string) string {
	if s.Metadata == nil {
		return ""
	}
	switch v := s.Metadata[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// DocumentInput is the input for creating or updating a document.
type DocumentInput struct {
	ID       string                 `json:"id,omitempty"`
	Title    string                 `json:"title,omitempty"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
