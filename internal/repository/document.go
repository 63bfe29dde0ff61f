package repository

import (
	"context"

	"docvault/internal/model"
)

// DocumentRepository defines data access for documents using SQL queries only.
// Access control and patch semantics live in the service layer.
type DocumentRepository interface {
	// Create inserts a new document row and returns it as stored.
	Create(ctx context.Context, doc *model.StoredDocument) (*model.StoredDocument, error)

	// FindByID returns a document by its ID, or sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.StoredDocument, error)

	// ListVisible returns the documents owned by or shared with identity, newest upload first,
	// together with the total number of such rows. A non-positive limit returns every row.
	ListVisible(ctx context.Context, identity string, pq PageQuery) (*PageResult[model.StoredDocument], error)

	// Update writes the mutable fields of doc (metadata, sharing, trash state and modification
	// stamp) and returns the stored row, or sql.ErrNoRows.
	Update(ctx context.Context, doc *model.StoredDocument) (*model.StoredDocument, error)

	// Delete removes a document by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
