package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"postapi/internal/events"
	"postapi/internal/image"
	"postapi/internal/ingest"
	"postapi/internal/logger"
	"postapi/internal/model"
	"postapi/internal/repository"
)

// PageSize is the number of posts per feed page.
const PageSize = 5

var (
	ErrInvalidPage     = errors.New("page must be a positive integer")
	ErrIncompleteState = errors.New("ingestion state has no metadata")
)

// FeedResult is one page of the feed, newest first.
type FeedResult struct {
	Posts []model.Post `json:"blogposts"`
}

// PostService defines the use cases for blog posts.
type PostService interface {
	// Create persists the post described by an ingested state. If the insert fails, the state's
	// images are deleted before the error is returned.
	Create(ctx context.Context, st *ingest.State) (*model.Post, error)

	// Feed returns the given 1-based page.
	Feed(ctx context.Context, page int) (*FeedResult, error)

	// OpenImage streams a stored image. found is false when nothing is stored under name.
	OpenImage(ctx context.Context, name string) (rc io.ReadCloser, found bool, err error)
}

// ImageStore is the part of image.Store the service needs.
type ImageStore interface {
	Delete(ctx context.Context, h image.Handle) error
	Open(ctx context.Context, name string) (io.ReadCloser, bool, error)
}

type postService struct {
	repo      repository.PostRepository
	images    ImageStore
	publisher events.Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPostService constructs a new PostService.
func NewPostService(repo repository.PostRepository, images ImageStore, publisher events.Publisher, log *zap.Logger) PostService {
	return &postService{
		repo:      repo,
		images:    images,
		publisher: publisher,
		logger:    log.With(zap.String("component", "post_service")),
		tracer:    otel.Tracer("postapi/internal/service"),
		now:       time.Now,
	}
}

func (s *postService) Create(ctx context.Context, st *ingest.State) (*model.Post, error) {
	if st == nil || st.Draft == nil {
		return nil, ErrIncompleteState
	}

	ctx, span := s.tracer.Start(ctx, "PostService.Create")
	defer span.End()

	post := &model.Post{
		Text:        st.Draft.Text,
		Username:    st.Draft.Username,
		PublishedAt: s.now().UTC(),
		Avatar:      handleRef(st.Avatar),
		Image:       handleRef(st.Image),
	}

	stored, err := s.repo.Create(ctx, post)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist post")
		st.Rollback(ctx, s.images, s.logger)
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	span.SetAttributes(attribute.Int64("blogpost.id", stored.ID))

	if err := s.publisher.PostCreated(ctx, stored); err != nil {
		logger.For(ctx, s.logger).Warn("post_event_failed", zap.Int64("post_id", stored.ID), zap.Error(err))
	}
	return stored, nil
}

func (s *postService) Feed(ctx context.Context, page int) (*FeedResult, error) {
	if page < 1 || page > math.MaxInt/PageSize {
		return nil, ErrInvalidPage
	}

	posts, err := s.repo.List(ctx, repository.PageQuery{Limit: PageSize, Offset: (page - 1) * PageSize})
	if err != nil {
		return nil, err
	}
	return &FeedResult{Posts: posts}, nil
}

func (s *postService) OpenImage(ctx context.Context, name string) (io.ReadCloser, bool, error) {
	return s.images.Open(ctx, name)
}

func handleRef(h image.Handle) *string {
	if h.IsZero() {
		return nil
	}
	v := h.String()
	return &v
}
