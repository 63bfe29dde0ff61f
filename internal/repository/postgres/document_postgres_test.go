package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
	"docvault/internal/repository"
)

var docColumns = []string{
	"id", "title", "file_name", "mime_type", "file_size", "storage_path", "category", "sub_category",
	"year", "org", "recipients", "shared_with", "owner", "warranty_start", "warranty_expires_at",
	"auto_delete_after", "uploaded_at", "last_modified", "last_modified_by", "trashed", "deleted_at", "deleted_by",
}

func sampleDoc(now time.Time) *model.StoredDocument {
	return &model.StoredDocument{
		Document: model.Document{
			ID:         "test-uuid",
			Title:      "Tax 2023",
			FileName:   "tax.pdf",
			MimeType:   "application/pdf",
			FileSize:   123,
			Category:   "Tax",
			Year:       "2023",
			Org:        "IRS",
			Recipients: []string{"Jane"},
			SharedWith: []string{"b@example.com"},
			Owner:      "a@example.com",
			UploadedAt: now,

			LastModified:   now,
			LastModifiedBy: "a@example.com",
		},
		StoragePath:   "documents/test-uuid.pdf",
		WarrantyStart: "2023-01-01",
	}
}

func docRow(d *model.StoredDocument, recipients, sharedWith string) []driver.Value {
	var deletedAt driver.Value
	if d.DeletedAt != nil {
		deletedAt = *d.DeletedAt
	}
	return []driver.Value{
		d.ID, d.Title, d.FileName, d.MimeType, d.FileSize, d.StoragePath, d.Category, d.SubCategory,
		d.Year, d.Org, []byte(recipients), []byte(sharedWith), d.Owner, d.WarrantyStart, d.WarrantyExpiresAt,
		d.AutoDeleteAfter, d.UploadedAt, d.LastModified, d.LastModifiedBy, d.Trashed, deletedAt, d.DeletedBy,
	}
}

func TestDocumentPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	doc := sampleDoc(now)

	rows := sqlmock.NewRows(docColumns).AddRow(docRow(doc, `["Jane"]`, `["b@example.com"]`)...)

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(doc.ID, doc.Title, doc.FileName, doc.MimeType, doc.FileSize, doc.StoragePath,
			doc.Category, doc.SubCategory, doc.Year, doc.Org, `["Jane"]`, `["b@example.com"]`, doc.Owner,
			doc.WarrantyStart, doc.WarrantyExpiresAt, doc.AutoDeleteAfter, doc.UploadedAt,
			doc.LastModified, doc.LastModifiedBy, doc.Trashed, nil, doc.DeletedBy).
		WillReturnRows(rows)

	result, err := repo.Create(ctx, doc)

	require.NoError(t, err)
	assert.Equal(t, doc.ID, result.ID)
	assert.Equal(t, []string{"Jane"}, result.Recipients)
	assert.Equal(t, []string{"b@example.com"}, result.SharedWith)
	assert.Equal(t, "documents/test-uuid.pdf", result.StoragePath)
	assert.Nil(t, result.DeletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_CreateEmptyLists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	doc := sampleDoc(time.Now().UTC())
	doc.Recipients = nil
	doc.SharedWith = nil

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(doc.ID, doc.Title, doc.FileName, doc.MimeType, doc.FileSize, doc.StoragePath,
			doc.Category, doc.SubCategory, doc.Year, doc.Org, `[]`, `[]`, doc.Owner,
			doc.WarrantyStart, doc.WarrantyExpiresAt, doc.AutoDeleteAfter, doc.UploadedAt,
			doc.LastModified, doc.LastModifiedBy, doc.Trashed, nil, doc.DeletedBy).
		WillReturnRows(sqlmock.NewRows(docColumns).AddRow(docRow(doc, `[]`, `[]`)...))

	result, err := repo.Create(context.Background(), doc)

	require.NoError(t, err)
	assert.NotNil(t, result.Recipients)
	assert.Empty(t, result.Recipients)
	assert.NotNil(t, result.SharedWith)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		doc := sampleDoc(time.Now().UTC())
		deleted := doc.UploadedAt.Add(time.Hour)
		doc.Trashed = true
		doc.DeletedAt = &deleted
		doc.DeletedBy = "a@example.com"

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs("test-uuid").
			WillReturnRows(sqlmock.NewRows(docColumns).AddRow(docRow(doc, `["Jane"]`, `[]`)...))

		got, err := repo.FindByID(ctx, "test-uuid")

		require.NoError(t, err)
		assert.Equal(t, "test-uuid", got.ID)
		assert.True(t, got.Trashed)
		require.NotNil(t, got.DeletedAt)
		assert.True(t, deleted.Equal(*got.DeletedAt))
		assert.Equal(t, "a@example.com", got.DeletedBy)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.FindByID(ctx, "missing")

		assert.Error(t, err)
		assert.True(t, IsNoRowsError(err))
		assert.Nil(t, doc)
	})

	t.Run("corrupt list column", func(t *testing.T) {
		doc := sampleDoc(time.Now().UTC())
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = ?").
			WithArgs("test-uuid").
			WillReturnRows(sqlmock.NewRows(docColumns).AddRow(docRow(doc, `not-json`, `[]`)...))

		got, err := repo.FindByID(ctx, "test-uuid")

		assert.ErrorContains(t, err, "decode recipients")
		assert.Nil(t, got)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_ListVisible(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()
	doc := sampleDoc(time.Now().UTC())

	t.Run("paged", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents WHERE").
			WithArgs("a@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE (.+) ORDER BY uploaded_at DESC").
			WithArgs("a@example.com", 10, 0).
			WillReturnRows(sqlmock.NewRows(docColumns).AddRow(docRow(doc, `["Jane"]`, `[]`)...))

		res, err := repo.ListVisible(ctx, "a@example.com", repository.PageQuery{Limit: 10, Offset: 0})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Len(t, res.Items, 1)
		assert.Equal(t, "test-uuid", res.Items[0].ID)
	})

	t.Run("unlimited", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents WHERE").
			WithArgs("b@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE (.+) ORDER BY uploaded_at DESC").
			WithArgs("b@example.com", nil, 0).
			WillReturnRows(sqlmock.NewRows(docColumns))

		res, err := repo.ListVisible(ctx, "b@example.com", repository.PageQuery{Limit: 0, Offset: -5})

		require.NoError(t, err)
		assert.Equal(t, 0, res.Total)
		assert.NotNil(t, res.Items)
		assert.Empty(t, res.Items)
	})

	t.Run("count error", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents WHERE").
			WithArgs("a@example.com").
			WillReturnError(errors.New("db down"))

		res, err := repo.ListVisible(ctx, "a@example.com", repository.PageQuery{Limit: 10})

		assert.EqualError(t, err, "db down")
		assert.Nil(t, res)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	doc := sampleDoc(time.Now().UTC())
	deleted := doc.UploadedAt.Add(time.Minute)
	doc.Title = "Renamed"
	doc.Trashed = true
	doc.DeletedAt = &deleted
	doc.DeletedBy = "a@example.com"

	mock.ExpectQuery("UPDATE documents SET").
		WithArgs(doc.ID, doc.Title, doc.Category, doc.SubCategory, doc.Year, doc.Org,
			`["Jane"]`, `["b@example.com"]`, true, deleted, "a@example.com",
			doc.LastModified, doc.LastModifiedBy).
		WillReturnRows(sqlmock.NewRows(docColumns).AddRow(docRow(doc, `["Jane"]`, `["b@example.com"]`)...))

	got, err := repo.Update(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, got.Trashed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM documents WHERE id = ?").
		WithArgs("test-id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Delete(ctx, "test-id")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func IsNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
