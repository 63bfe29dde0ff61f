package mocks

import (
	"context"

	"docvault/internal/gateway"
	"docvault/internal/model"
	"docvault/internal/primary"

	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

var _ primary.Client = (*MockClient)(nil)

func (m *MockClient) List(ctx context.Context, h gateway.Headers) ([]model.Document, error) {
	args := m.Called(ctx, h)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockClient) Create(ctx context.Context, h gateway.Headers, file primary.File, meta model.Metadata) (model.Document, error) {
	args := m.Called(ctx, h, file, meta)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockClient) Update(ctx context.Context, h gateway.Headers, id string, patch model.Patch) (model.Document, error) {
	args := m.Called(ctx, h, id, patch)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *MockClient) SetTrashed(ctx context.Context, h gateway.Headers, id string, trashed bool) error {
	args := m.Called(ctx, h, id, trashed)
	return args.Error(0)
}

func (m *MockClient) DeleteForever(ctx context.Context, h gateway.Headers, id string) error {
	args := m.Called(ctx, h, id)
	return args.Error(0)
}

func (m *MockClient) Download(ctx context.Context, h gateway.Headers, id string) (primary.Content, error) {
	args := m.Called(ctx, h, id)
	return args.Get(0).(primary.Content), args.Error(1)
}
