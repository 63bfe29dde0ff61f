package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const columns = `id, title, file_name, mime_type, file_size, storage_path, category, sub_category,
	year, org, recipients, shared_with, owner, warranty_start, warranty_expires_at,
	auto_delete_after, uploaded_at, last_modified, last_modified_by, trashed, deleted_at, deleted_by`

// visibleTo matches rows owned by or shared with $1.
const visibleTo = `(owner = $1 OR shared_with @> jsonb_build_array($1::text))`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.StoredDocument) (*model.StoredDocument, error) {
	recipients, sharedWith, err := encodeLists(doc)
	if err != nil {
		return nil, err
	}
	q := `
		INSERT INTO documents (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12::jsonb, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22)
		RETURNING ` + columns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.Title,
		doc.FileName,
		doc.MimeType,
		doc.FileSize,
		doc.StoragePath,
		doc.Category,
		doc.SubCategory,
		doc.Year,
		doc.Org,
		recipients,
		sharedWith,
		doc.Owner,
		doc.WarrantyStart,
		doc.WarrantyExpiresAt,
		doc.AutoDeleteAfter,
		doc.UploadedAt,
		doc.LastModified,
		doc.LastModifiedBy,
		doc.Trashed,
		nullTime(doc.DeletedAt),
		doc.DeletedBy,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.StoredDocument, error) {
	q := `SELECT ` + columns + ` FROM documents WHERE id = $1`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

// ListVisible returns the caller's documents using LIMIT/OFFSET pagination and a total count.
// LIMIT NULL is used for a non-positive limit, which Postgres treats as no limit.
func (r *DocumentPostgres) ListVisible(ctx context.Context, identity string, pq repository.PageQuery) (*repository.PageResult[model.StoredDocument], error) {
	var total int
	qCount := `SELECT COUNT(*) FROM documents WHERE ` + visibleTo
	if err := r.db.QueryRowContext(ctx, qCount, identity).Scan(&total); err != nil {
		return nil, err
	}

	var limit any
	if pq.Limit > 0 {
		limit = pq.Limit
	}
	offset := pq.Offset
	if offset < 0 {
		offset = 0
	}

	qList := `
		SELECT ` + columns + `
		FROM documents
		WHERE ` + visibleTo + `
		ORDER BY uploaded_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, qList, identity, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.StoredDocument, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.StoredDocument]{
		Items: items,
		Total: total,
	}, nil
}

// Update writes the mutable columns of doc.
func (r *DocumentPostgres) Update(ctx context.Context, doc *model.StoredDocument) (*model.StoredDocument, error) {
	recipients, sharedWith, err := encodeLists(doc)
	if err != nil {
		return nil, err
	}
	q := `
		UPDATE documents SET
			title = $2, category = $3, sub_category = $4, year = $5, org = $6,
			recipients = $7::jsonb, shared_with = $8::jsonb,
			trashed = $9, deleted_at = $10, deleted_by = $11,
			last_modified = $12, last_modified_by = $13
		WHERE id = $1
		RETURNING ` + columns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.Title,
		doc.Category,
		doc.SubCategory,
		doc.Year,
		doc.Org,
		recipients,
		sharedWith,
		doc.Trashed,
		nullTime(doc.DeletedAt),
		doc.DeletedBy,
		doc.LastModified,
		doc.LastModifiedBy,
	)
	return scanDocument(row)
}

// Delete removes a document by ID. It does not return an error if the row does not exist.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

func scanDocument(s rowScanner) (*model.StoredDocument, error) {
	var (
		d          model.StoredDocument
		recipients []byte
		sharedWith []byte
		deletedAt  sql.NullTime
	)
	if err := s.Scan(
		&d.ID,
		&d.Title,
		&d.FileName,
		&d.MimeType,
		&d.FileSize,
		&d.StoragePath,
		&d.Category,
		&d.SubCategory,
		&d.Year,
		&d.Org,
		&recipients,
		&sharedWith,
		&d.Owner,
		&d.WarrantyStart,
		&d.WarrantyExpiresAt,
		&d.AutoDeleteAfter,
		&d.UploadedAt,
		&d.LastModified,
		&d.LastModifiedBy,
		&d.Trashed,
		&deletedAt,
		&d.DeletedBy,
	); err != nil {
		return nil, err
	}

	var err error
	if d.Recipients, err = decodeList(recipients); err != nil {
		return nil, fmt.Errorf("decode recipients of %s: %w", d.ID, err)
	}
	if d.SharedWith, err = decodeList(sharedWith); err != nil {
		return nil, fmt.Errorf("decode shared_with of %s: %w", d.ID, err)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		d.DeletedAt = &t
	}
	return &d, nil
}

func encodeLists(doc *model.StoredDocument) (string, string, error) {
	recipients, err := encodeList(doc.Recipients)
	if err != nil {
		return "", "", fmt.Errorf("encode recipients: %w", err)
	}
	sharedWith, err := encodeList(doc.SharedWith)
	if err != nil {
		return "", "", fmt.Errorf("encode shared_with: %w", err)
	}
	return recipients, sharedWith, nil
}

func encodeList(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	b, err := json.Marshal(ss)
	return string(b), err
}

func decodeList(raw []byte) ([]string, error) {
	out := []string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
