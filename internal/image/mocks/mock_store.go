package mocks

import (
	"context"
	"io"

	"postapi/internal/image"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, r io.Reader) (image.Handle, image.Outcome, error) {
	args := m.Called(ctx, r)
	return args.Get(0).(image.Handle), args.Get(1).(image.Outcome), args.Error(2)
}

func (m *MockStore) Delete(ctx context.Context, h image.Handle) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *MockStore) Open(ctx context.Context, name string) (io.ReadCloser, bool, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Bool(1), args.Error(2)
}
