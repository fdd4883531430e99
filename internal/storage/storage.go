// Package storage persists documents and their embedded segments.
package storage

import (
	"context"
	"errors"

	"github.com/LangChat/ai-tutorials/internal/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines document and segment persistence operations.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc *models.Document) error
	// DeleteDocument removes the document and its segments.
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// Segment operations
	BatchCreateSegments(ctx context.Context, segments []*models.TextSegment) error
	GetSegmentsByDocumentID(ctx context.Context, docID string) ([]*models.TextSegment, error)
	// ForEachSegment streams every segment, embeddings included, in
	// document and index order.
	ForEachSegment(ctx context.Context, fn func(*models.TextSegment) error) error
	DeleteSegmentsByDocumentID(ctx context.Context, docID string) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountSegments(ctx context.Context) (int64, error)

	Close() error
}
