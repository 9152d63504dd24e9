package mocks

import (
	"context"

	"github.com/pageza/cantine/backend/internal/service"
	"github.com/stretchr/testify/mock"
)

// MockStorage is a mock implementation of service.FileStorage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorage) URL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

var _ service.FileStorage = (*MockStorage)(nil)
