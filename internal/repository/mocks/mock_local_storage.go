package mocks

import (
	"context"

	"familyvault/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockLocalStorage struct {
	mock.Mock
}

var _ repository.LocalStorage = (*MockLocalStorage)(nil)

func (m *MockLocalStorage) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockLocalStorage) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockLocalStorage) Remove(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}
