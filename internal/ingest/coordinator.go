package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"postapi/internal/image"
	"postapi/internal/logger"
	"postapi/internal/model"
)

// MaxDataSize bounds the serialized metadata field.
const MaxDataSize = 2138

// ImageStore is the part of image.Store the coordinator writes through.
type ImageStore interface {
	Save(ctx context.Context, r io.Reader) (image.Handle, image.Outcome, error)
	Delete(ctx context.Context, h image.Handle) error
}

// AvatarFetcher downloads an avatar referenced by URL.
type AvatarFetcher interface {
	Fetch(ctx context.Context, rawURL string) (image.Handle, image.Outcome, error)
}

// Request is one multipart body to ingest.
type Request struct {
	ContentType string
	Body        io.Reader
	// Unblock makes a pending Read on Body return. Optional.
	Unblock func()
}

// Coordinator turns a multipart request into a State, or fails after compensating.
type Coordinator struct {
	store   ImageStore
	fetcher AvatarFetcher
	drainer Drainer
	metrics *Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

type Option func(*Coordinator)

// WithAvatarFetcher enables resolving a metadata avatar URL when no avatar field was uploaded.
func WithAvatarFetcher(f AvatarFetcher) Option {
	return func(c *Coordinator) { c.fetcher = f }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithDrainer(d Drainer) Option {
	return func(c *Coordinator) { c.drainer = d }
}

func NewCoordinator(store ImageStore, log *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		logger: log.With(zap.String("component", "ingest")),
		tracer: otel.Tracer("postapi/internal/ingest"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest consumes every field of req in arrival order. On success the returned State holds
// validated metadata and the saved image handles. On failure the error is an *AbortError and
// every image saved along the way has already been deleted.
func (c *Coordinator) Ingest(ctx context.Context, req Request) (*State, error) {
	ctx, span := c.tracer.Start(ctx, "ingest.Ingest")
	defer span.End()

	st, err := c.ingest(ctx, req)
	c.metrics.observeIngest(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Reason(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("blogpost.avatar", !st.Avatar.IsZero()),
		attribute.Bool("blogpost.image", !st.Image.IsZero()),
	)
	return st, nil
}

func (c *Coordinator) ingest(ctx context.Context, req Request) (*State, error) {
	st := &State{}

	mediaType, params, err := mime.ParseMediaType(req.ContentType)
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		return nil, c.abort(ctx, st, req, nil, "", fmt.Errorf("%w: content type %q", ErrMalformed, req.ContentType))
	}

	mr := multipart.NewReader(req.Body, params["boundary"])
	for {
		part, err := mr.NextRawPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, c.abort(ctx, st, req, nil, "", fmt.Errorf("%w: %v", ErrMalformed, err))
		}

		name := part.FormName()
		if err := c.consume(ctx, st, name, part); err != nil {
			return nil, c.abort(ctx, st, req, part, name, err)
		}
	}

	if st.Draft == nil {
		st.Rollback(ctx, c.store, c.logger)
		logger.For(ctx, c.logger).Info("ingest_aborted", zap.Error(ErrDataRequired))
		return nil, &AbortError{Field: FieldData, Err: ErrDataRequired}
	}

	if err := c.resolveAvatar(ctx, st); err != nil {
		st.Rollback(ctx, c.store, c.logger)
		logger.For(ctx, c.logger).Info("ingest_aborted", zap.String("field", FieldAvatar), zap.Error(err))
		return nil, &AbortError{Field: FieldAvatar, Err: err}
	}

	return st, nil
}

func (c *Coordinator) consume(ctx context.Context, st *State, name string, part *multipart.Part) error {
	if name == "" {
		return fmt.Errorf("%w: part without a form name", ErrMalformed)
	}

	role := Classify(name)
	switch role {
	case RoleMetadata:
		if st.Draft != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateField, name)
		}
		draft, err := readDraft(part)
		if err != nil {
			return err
		}
		st.Draft = draft
		return nil

	case RoleAvatar, RolePostImage:
		if !st.handle(role).IsZero() {
			return fmt.Errorf("%w: %s", ErrDuplicateField, name)
		}
		src := &errTrackingReader{r: part}
		h, outcome, err := c.store.Save(ctx, src)
		if outcome != image.TooLarge {
			st.setHandle(role, h)
		}
		return saveError(outcome, err, src.err)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
}

func (c *Coordinator) resolveAvatar(ctx context.Context, st *State) error {
	if c.fetcher == nil || !st.Avatar.IsZero() || st.Draft.Avatar == "" {
		return nil
	}
	h, outcome, err := c.fetcher.Fetch(ctx, st.Draft.Avatar)
	if outcome != image.TooLarge {
		st.setHandle(RoleAvatar, h)
	}
	if errors.Is(err, image.ErrRemote) {
		return fmt.Errorf("%w: %v", ErrAvatarUnavailable, err)
	}
	return saveError(outcome, err, nil)
}

// saveError classifies a Save result. readErr is the last error seen on the request side.
func saveError(outcome image.Outcome, err, readErr error) error {
	switch {
	case outcome == image.WrongFormat:
		return ErrImageFormat
	case outcome == image.TooLarge:
		return ErrImageTooLarge
	case readErr != nil && !errors.Is(readErr, io.EOF):
		return fmt.Errorf("%w: %v", ErrMalformed, readErr)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func readDraft(r io.Reader) (*model.PostDraft, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxDataSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) > MaxDataSize {
		return nil, ErrDataTooLarge
	}

	var draft model.PostDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return &draft, nil
}

// abort rolls back st, then drains what is left of part and of the request body.
func (c *Coordinator) abort(ctx context.Context, st *State, req Request, part io.Reader, field string, cause error) error {
	st.Rollback(ctx, c.store, c.logger)

	var r io.Reader = req.Body
	if part != nil {
		r = newChainReader(part, req.Body)
	}
	res := c.drainer.Drain(ctx, r, req.Unblock)
	c.metrics.observeDrain(res)

	logger.For(ctx, c.logger).Info("ingest_aborted",
		zap.String("field", field),
		zap.Error(cause),
		zap.String("drain_result", res.Reason),
		zap.Int("drain_chunks", res.Chunks),
		zap.Int64("drain_bytes", res.Bytes),
	)
	return &AbortError{Field: field, Err: cause, Drain: &res}
}

// errTrackingReader remembers the last error returned by r.
type errTrackingReader struct {
	r   io.Reader
	err error
}

func (t *errTrackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
