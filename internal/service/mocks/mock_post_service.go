package mocks

import (
	"context"
	"io"

	"postapi/internal/ingest"
	"postapi/internal/model"
	"postapi/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockPostService struct {
	mock.Mock
}

func (m *MockPostService) Create(ctx context.Context, st *ingest.State) (*model.Post, error) {
	args := m.Called(ctx, st)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Post), args.Error(1)
}

func (m *MockPostService) Feed(ctx context.Context, page int) (*service.FeedResult, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FeedResult), args.Error(1)
}

func (m *MockPostService) OpenImage(ctx context.Context, name string) (io.ReadCloser, bool, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Bool(1), args.Error(2)
}
