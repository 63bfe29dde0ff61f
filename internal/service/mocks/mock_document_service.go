package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"docvault/internal/model"
	"docvault/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

var _ service.DocumentService = (*MockDocumentService)(nil)

func (m *MockDocumentService) Upload(ctx context.Context, in service.UploadInput) (*model.StoredDocument, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredDocument), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, identity string, limit, offset int) (*service.DocumentListResult, error) {
	args := m.Called(ctx, identity, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, identity, id string) (*model.StoredDocument, error) {
	args := m.Called(ctx, identity, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredDocument), args.Error(1)
}

func (m *MockDocumentService) Update(ctx context.Context, identity, id string, patch model.Patch) (*model.StoredDocument, error) {
	args := m.Called(ctx, identity, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredDocument), args.Error(1)
}

func (m *MockDocumentService) SetTrashed(ctx context.Context, identity, id string, trashed bool) (*model.StoredDocument, error) {
	args := m.Called(ctx, identity, id, trashed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredDocument), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, identity, id string) error {
	args := m.Called(ctx, identity, id)
	return args.Error(0)
}

func (m *MockDocumentService) Download(ctx context.Context, identity, id string) (*service.Download, error) {
	args := m.Called(ctx, identity, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}

func (m *MockDocumentService) PresignDownload(ctx context.Context, identity, id string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, identity, id, expiry)
	return args.String(0), args.Error(1)
}
