package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

var (
	ErrIDRequired       = errors.New("id is required")
	ErrNotFound         = errors.New("document not found")
	ErrReaderNil        = errors.New("reader is nil")
	ErrIdentityRequired = errors.New("identity is required")
	ErrInvalidInput     = errors.New("invalid input")
	ErrForbidden        = errors.New("only the owner may do this")
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.StoredDocument `json:"data"`
	Total int                    `json:"total"`
}

// UploadInput is a new document as received from the caller.
type UploadInput struct {
	Identity    string
	Reader      io.Reader
	FileName    string
	ContentType string
	Size        int64
	Meta        model.Metadata
}

// Download is an open stream of a document's bytes. The caller must close Body.
type Download struct {
	Document    *model.StoredDocument
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// DocumentService defines the use cases for handling documents. Every operation is scoped to the
// calling identity: a document that is neither owned by nor shared with the caller is reported
// as ErrNotFound.
type DocumentService interface {
	// Upload stores the content in object storage, saves the row, and rolls back storage if the
	// row cannot be saved.
	Upload(ctx context.Context, in UploadInput) (*model.StoredDocument, error)

	// List returns the caller's documents, newest first. A non-positive limit returns them all.
	List(ctx context.Context, identity string, limit, offset int) (*DocumentListResult, error)

	// Get returns a single visible document.
	Get(ctx context.Context, identity, id string) (*model.StoredDocument, error)

	// Update applies a partial update. Only the owner may change sharing.
	Update(ctx context.Context, identity, id string, patch model.Patch) (*model.StoredDocument, error)

	// SetTrashed moves a document to or out of the trash.
	SetTrashed(ctx context.Context, identity, id string, trashed bool) (*model.StoredDocument, error)

	// Delete permanently removes a document from storage and repository. Owner only.
	Delete(ctx context.Context, identity, id string) error

	// Download opens the document's bytes.
	Download(ctx context.Context, identity, id string) (*Download, error)

	// PresignDownload returns a time-limited URL for the document's bytes.
	PresignDownload(ctx context.Context, identity, id string, expiry time.Duration) (string, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store storage.Storage
	repo  repository.DocumentRepository
	now   func() time.Time
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository) DocumentService {
	return &documentService{store: store, repo: repo, now: time.Now}
}

func (s *documentService) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *documentService) Upload(ctx context.Context, in UploadInput) (*model.StoredDocument, error) {
	if in.Reader == nil {
		return nil, ErrReaderNil
	}
	if in.Identity == "" {
		return nil, ErrIdentityRequired
	}
	if err := validateMeta(in.Meta); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	fileName := path.Base(strings.ReplaceAll(in.FileName, "\\", "/"))
	if fileName == "." || fileName == "/" {
		fileName = ""
	}
	key := storage.ObjectKey(id, fileName)

	objInfo, err := s.store.Put(ctx, key, in.Reader, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: in.ContentType,
		FileName:    fileName,
		Metadata: map[string]string{
			"original-filename": fileName,
			"owner":             in.Identity,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	size := objInfo.Size
	if size <= 0 {
		size = in.Size
	}
	mime := objInfo.ContentType
	if mime == "" {
		mime = in.ContentType
	}
	now := s.stamp()

	doc := &model.StoredDocument{
		Document: model.Document{
			ID:             id,
			Title:          strings.TrimSpace(in.Meta.Title),
			FileName:       fileName,
			MimeType:       mime,
			FileSize:       size,
			Category:       in.Meta.Category,
			SubCategory:    in.Meta.SubCategory,
			Year:           in.Meta.Year,
			Org:            in.Meta.Org,
			Recipients:     append([]string{}, in.Meta.Recipients...),
			SharedWith:     []string{},
			Owner:          in.Identity,
			UploadedAt:     now,
			LastModified:   now,
			LastModifiedBy: in.Identity,
		},
		StoragePath:       objInfo.Key,
		WarrantyStart:     in.Meta.WarrantyStart,
		WarrantyExpiresAt: in.Meta.WarrantyExpiresAt,
		AutoDeleteAfter:   in.Meta.AutoDeleteAfter,
	}
	stored, err := s.repo.Create(ctx, doc)
	if err != nil {
		if delErr := s.store.Delete(ctx, objInfo.Key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

func validateMeta(m model.Metadata) error {
	required := []struct{ name, value string }{
		{"title", m.Title},
		{"category", m.Category},
		{"year", m.Year},
		{"org", m.Org},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, f.name)
		}
	}
	return nil
}

func (s *documentService) List(ctx context.Context, identity string, limit, offset int) (*DocumentListResult, error) {
	if identity == "" {
		return nil, ErrIdentityRequired
	}
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.ListVisible(ctx, identity, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *documentService) Get(ctx context.Context, identity, id string) (*model.StoredDocument, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if identity == "" {
		return nil, ErrIdentityRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !doc.VisibleTo(identity) {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *documentService) Update(ctx context.Context, identity, id string, patch model.Patch) (*model.StoredDocument, error) {
	doc, err := s.Get(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if patch.SharedWith != nil && doc.Owner != identity {
		return nil, ErrForbidden
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	}
	if patch.IsEmpty() {
		return doc, nil
	}

	patch.Apply(&doc.Document)
	doc.LastModified = s.stamp()
	doc.LastModifiedBy = identity
	return s.save(ctx, doc)
}

func (s *documentService) SetTrashed(ctx context.Context, identity, id string, trashed bool) (*model.StoredDocument, error) {
	doc, err := s.Get(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if doc.Trashed == trashed {
		return doc, nil
	}

	now := s.stamp()
	doc.Trashed = trashed
	if trashed {
		doc.DeletedAt = &now
		doc.DeletedBy = identity
	} else {
		doc.DeletedAt = nil
		doc.DeletedBy = ""
	}
	doc.LastModified = now
	doc.LastModifiedBy = identity
	return s.save(ctx, doc)
}

func (s *documentService) save(ctx context.Context, doc *model.StoredDocument) (*model.StoredDocument, error) {
	out, err := s.repo.Update(ctx, doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

// Delete removes the object first; if that fails the row is kept so the object is not orphaned.
func (s *documentService) Delete(ctx context.Context, identity, id string) error {
	doc, err := s.Get(ctx, identity, id)
	if err != nil {
		return err
	}
	// only the owner can delete forever; anyone else is answered as if it did not exist
	if doc.Owner != identity {
		return ErrNotFound
	}
	if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	return s.repo.Delete(ctx, id)
}

func (s *documentService) Download(ctx context.Context, identity, id string) (*Download, error) {
	doc, err := s.Get(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	body, info, err := s.store.Get(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open storage: %w", err)
	}

	ct := info.ContentType
	if ct == "" {
		ct = doc.MimeType
	}
	size := info.Size
	if size <= 0 {
		size = doc.FileSize
	}
	return &Download{Document: doc, Body: body, ContentType: ct, Size: size}, nil
}

func (s *documentService) PresignDownload(ctx context.Context, identity, id string, expiry time.Duration) (string, error) {
	doc, err := s.Get(ctx, identity, id)
	if err != nil {
		return "", err
	}
	u, err := s.store.PresignGet(ctx, doc.StoragePath, doc.FileName, expiry)
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	return u, nil
}
