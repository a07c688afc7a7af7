package image

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"postapi/internal/storage"
)

// Reserved names served by the read path in place of missing images.
const (
	PlaceholderAvatar = "placeholder_avatar"
	PlaceholderImage  = "placeholder_image"
)

var (
	ErrInvalidName = errors.New("invalid image name")

	errRejected = errors.New("image rejected")
)

// Handle identifies a stored image. The zero value means "no image".
type Handle string

// NewHandle allocates a fresh random handle.
func NewHandle() Handle {
	return Handle(uuid.NewString())
}

func (h Handle) String() string { return string(h) }

// IsZero reports whether h refers to nothing.
func (h Handle) IsZero() bool { return h == "" }

// ValidName reports whether name is a handle produced by NewHandle or a reserved placeholder.
func ValidName(name string) bool {
	if name == PlaceholderAvatar || name == PlaceholderImage {
		return true
	}
	_, err := uuid.Parse(name)
	return err == nil
}

// Outcome is the validation result of a Save.
type Outcome int

const (
	Accepted Outcome = iota
	TooLarge
	WrongFormat
)

func (o Outcome) String() string {
	switch o {
	case TooLarge:
		return "too_large"
	case WrongFormat:
		return "wrong_format"
	default:
		return "accepted"
	}
}

// Store persists PNG images under random handles on top of a storage backend.
type Store struct {
	backend storage.Storage
	logger  *zap.Logger
}

// NewStore wraps backend.
func NewStore(backend storage.Storage, logger *zap.Logger) *Store {
	return &Store{backend: backend, logger: logger}
}

// Save allocates a handle and streams r into it, sniffing the signature and enforcing MaxImageSize
// on the way. The handle is returned on every path so the caller can compensate:
//   - WrongFormat: writing stopped, partial bytes may exist under the handle.
//   - TooLarge: writing stopped and the partial file was already removed.
//   - error: the backend failed, partial bytes may exist under the handle.
func (s *Store) Save(ctx context.Context, r io.Reader) (Handle, Outcome, error) {
	h := NewHandle()
	g := &guard{r: r}

	_, err := s.backend.Put(ctx, h.String(), g, storage.PutObjectOptions{
		Size:        -1,
		ContentType: "image/png",
	})

	switch g.outcome {
	case TooLarge:
		if delErr := s.backend.Delete(ctx, h.String()); delErr != nil {
			s.logger.Error("delete oversized image", zap.String("handle", h.String()), zap.Error(delErr))
		}
		return h, TooLarge, nil
	case WrongFormat:
		return h, WrongFormat, nil
	}
	if err != nil {
		return h, Accepted, fmt.Errorf("write image %s: %w", h, err)
	}
	return h, Accepted, nil
}

// Delete removes the file behind h. A zero handle is a no-op.
func (s *Store) Delete(ctx context.Context, h Handle) error {
	if h.IsZero() {
		return nil
	}
	if err := s.backend.Delete(ctx, h.String()); err != nil {
		return fmt.Errorf("delete image %s: %w", h, err)
	}
	return nil
}

// Open returns the bytes stored under name. found is false, with a nil error, when nothing is stored there.
func (s *Store) Open(ctx context.Context, name string) (rc io.ReadCloser, found bool, err error) {
	if !ValidName(name) {
		return nil, false, ErrInvalidName
	}
	rc, _, err = s.backend.Get(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open image %s: %w", name, err)
	}
	return rc, true, nil
}

// guard passes bytes through until the stream proves to be a non-PNG or grows past MaxImageSize.
// After a rejection every Read fails with errRejected so the backend stops writing.
type guard struct {
	r       io.Reader
	total   int64
	head    []byte
	sniffed bool
	outcome Outcome
}

func (g *guard) Read(p []byte) (int, error) {
	if g.outcome != Accepted {
		return 0, errRejected
	}
	n, err := g.r.Read(p)
	if n > 0 {
		g.total += int64(n)
		if OverLimit(g.total) {
			g.outcome = TooLarge
			return 0, errRejected
		}
		if !g.sniffed {
			take := min(len(Signature)-len(g.head), n)
			g.head = append(g.head, p[:take]...)
			switch Sniff(g.head) {
			case Mismatch:
				g.outcome = WrongFormat
				return 0, errRejected
			case Match:
				g.sniffed = true
			}
		}
	}
	if err == io.EOF && !g.sniffed {
		g.outcome = WrongFormat
		return 0, errRejected
	}
	return n, err
}
