package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"postapi/internal/image"
	"postapi/internal/image/mocks"
	"postapi/internal/logger"
	"postapi/internal/model"
	"postapi/internal/storage"
)

type formPart struct {
	name string
	body []byte
	file bool
}

func dataPart(json string) formPart { return formPart{name: FieldData, body: []byte(json)} }
func filePart(name string, b []byte) formPart { return formPart{name: name, body: b, file: true} }

func png(size int) []byte {
	b := make([]byte, size)
	copy(b, image.Signature)
	for i := len(image.Signature); i < size; i++ {
		b[i] = byte(i)
	}
	return b
}

func multipartRequest(t *testing.T, parts ...formPart) Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		var (
			pw  io.Writer
			err error
		)
		if p.file {
			pw, err = w.CreateFormFile(p.name, p.name+".png")
		} else {
			pw, err = w.CreateFormField(p.name)
		}
		require.NoError(t, err)
		_, err = pw.Write(p.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return Request{ContentType: w.FormDataContentType(), Body: &buf}
}

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *image.Store, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := storage.NewFS(dir)
	require.NoError(t, err)
	store := image.NewStore(backend, zap.NewNop())
	return NewCoordinator(store, zap.NewNop(), opts...), store, dir
}

func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func readStored(t *testing.T, dir string, h image.Handle) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, h.String()))
	require.NoError(t, err)
	return b
}

func requireAbort(t *testing.T, err error, target error) *AbortError {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, target)
	var abort *AbortError
	require.True(t, errors.As(err, &abort))
	return abort
}

const validData = `{"text":"Hello!","username":"admin"}`

func TestCoordinator_IngestValid(t *testing.T) {
	ctx := context.Background()
	avatar := png(3000)
	img := png(10 * 1024)

	tests := []struct {
		name       string
		parts      []formPart
		wantAvatar []byte
		wantImage  []byte
	}{
		{name: "metadata only", parts: []formPart{dataPart(validData)}},
		{name: "post image", parts: []formPart{dataPart(validData), filePart(FieldImage, img)}, wantImage: img},
		{name: "avatar", parts: []formPart{dataPart(validData), filePart(FieldAvatar, avatar)}, wantAvatar: avatar},
		{
			name:       "both images before metadata",
			parts:      []formPart{filePart(FieldImage, img), filePart(FieldAvatar, avatar), dataPart(validData)},
			wantAvatar: avatar,
			wantImage:  img,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, dir := newTestCoordinator(t)

			st, err := c.Ingest(ctx, multipartRequest(t, tt.parts...))

			require.NoError(t, err)
			require.NotNil(t, st.Draft)
			assert.Equal(t, "Hello!", st.Draft.Text)
			assert.Equal(t, "admin", st.Draft.Username)

			if tt.wantAvatar == nil {
				assert.True(t, st.Avatar.IsZero())
			} else {
				assert.Equal(t, tt.wantAvatar, readStored(t, dir, st.Avatar))
			}
			if tt.wantImage == nil {
				assert.True(t, st.Image.IsZero())
			} else {
				assert.Equal(t, tt.wantImage, readStored(t, dir, st.Image))
			}
		})
	}
}

func TestCoordinator_IngestTwiceYieldsDistinctHandles(t *testing.T) {
	c, _, dir := newTestCoordinator(t)
	ctx := context.Background()
	img := png(512)

	first, err := c.Ingest(ctx, multipartRequest(t, dataPart(validData), filePart(FieldImage, img)))
	require.NoError(t, err)
	second, err := c.Ingest(ctx, multipartRequest(t, dataPart(validData), filePart(FieldImage, img)))
	require.NoError(t, err)

	assert.NotEqual(t, first.Image, second.Image)
	assert.Len(t, storedFiles(t, dir), 2)
}

func TestCoordinator_IngestRejects(t *testing.T) {
	ctx := context.Background()
	longText := `{"text":"` + strings.Repeat("x", model.MaxTextLength+1) + `","username":"admin"}`
	hugeData := `{"text":"` + strings.Repeat("x", MaxDataSize) + `","username":"admin"}`

	tests := []struct {
		name    string
		parts   []formPart
		wantErr error
		field   string
	}{
		{
			name:    "wrong signature",
			parts:   []formPart{dataPart(validData), filePart(FieldImage, []byte("GIF89a-not-a-png-at-all"))},
			wantErr: ErrImageFormat,
			field:   FieldImage,
		},
		{
			name:    "wrong signature after a saved avatar",
			parts:   []formPart{filePart(FieldAvatar, png(256)), filePart(FieldImage, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0})},
			wantErr: ErrImageFormat,
			field:   FieldImage,
		},
		{
			name:    "image over the size ceiling",
			parts:   []formPart{filePart(FieldAvatar, png(128)), filePart(FieldImage, png(image.MaxImageSize+1)), dataPart(validData)},
			wantErr: ErrImageTooLarge,
			field:   FieldImage,
		},
		{
			name:    "text too long",
			parts:   []formPart{dataPart(longText)},
			wantErr: model.ErrTextTooLong,
			field:   FieldData,
		},
		{
			name:    "metadata over the size ceiling",
			parts:   []formPart{filePart(FieldImage, png(64)), dataPart(hugeData)},
			wantErr: ErrDataTooLarge,
			field:   FieldData,
		},
		{
			name:    "metadata is not json",
			parts:   []formPart{dataPart(`text=hello`)},
			wantErr: ErrInvalidData,
			field:   FieldData,
		},
		{
			name:    "missing username",
			parts:   []formPart{dataPart(`{"text":"hi"}`)},
			wantErr: model.ErrUsernameRequired,
			field:   FieldData,
		},
		{
			name:    "unknown field after a saved image",
			parts:   []formPart{filePart(FieldImage, png(64)), dataPart(validData), {name: "banner", body: []byte("x")}},
			wantErr: ErrUnknownField,
			field:   "banner",
		},
		{
			name:    "duplicate image",
			parts:   []formPart{filePart(FieldImage, png(64)), filePart(FieldImage, png(64)), dataPart(validData)},
			wantErr: ErrDuplicateField,
			field:   FieldImage,
		},
		{
			name:    "duplicate data",
			parts:   []formPart{dataPart(validData), dataPart(validData)},
			wantErr: ErrDuplicateField,
			field:   FieldData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, dir := newTestCoordinator(t)

			st, err := c.Ingest(ctx, multipartRequest(t, tt.parts...))

			assert.Nil(t, st)
			abort := requireAbort(t, err, tt.wantErr)
			assert.Equal(t, tt.field, abort.Field)
			require.NotNil(t, abort.Drain)
			assert.True(t, abort.Drain.Complete)
			assert.True(t, abort.KeepAlive())
			assert.Empty(t, storedFiles(t, dir))
		})
	}
}

func TestCoordinator_AbortLogCarriesRequestID(t *testing.T) {
	dir := t.TempDir()
	backend, err := storage.NewFS(dir)
	require.NoError(t, err)
	core, logs := observer.New(zap.InfoLevel)
	c := NewCoordinator(image.NewStore(backend, zap.NewNop()), zap.New(core))

	ctx := logger.WithRequestID(context.Background(), "req-abort")
	_, err = c.Ingest(ctx, multipartRequest(t, filePart(FieldAvatar, png(256)), filePart(FieldImage, []byte("GIF89a-not-a-png"))))

	requireAbort(t, err, ErrImageFormat)
	entries := logs.FilterMessage("ingest_aborted").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-abort", fields["request_id"])
	assert.Equal(t, FieldImage, fields["field"])
	assert.Equal(t, "ingest", fields["component"])
	assert.Empty(t, storedFiles(t, dir))
}

func TestCoordinator_IngestMissingData(t *testing.T) {
	c, _, dir := newTestCoordinator(t)

	st, err := c.Ingest(context.Background(), multipartRequest(t, filePart(FieldImage, png(1024))))

	assert.Nil(t, st)
	abort := requireAbort(t, err, ErrDataRequired)
	assert.Nil(t, abort.Drain)
	assert.True(t, abort.KeepAlive())
	assert.Empty(t, storedFiles(t, dir))
}

func TestCoordinator_IngestMalformed(t *testing.T) {
	ctx := context.Background()

	t.Run("not multipart", func(t *testing.T) {
		c, _, _ := newTestCoordinator(t)

		_, err := c.Ingest(ctx, Request{ContentType: "application/json", Body: strings.NewReader(validData)})

		abort := requireAbort(t, err, ErrMalformed)
		assert.True(t, abort.Drain.Complete)
	})

	t.Run("part without a name", func(t *testing.T) {
		c, _, dir := newTestCoordinator(t)
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		img, err := w.CreateFormFile(FieldImage, "a.png")
		require.NoError(t, err)
		_, _ = img.Write(png(64))
		anon, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain"}})
		require.NoError(t, err)
		_, _ = anon.Write([]byte("who am i"))
		require.NoError(t, w.Close())

		_, err = c.Ingest(ctx, Request{ContentType: w.FormDataContentType(), Body: &buf})

		requireAbort(t, err, ErrMalformed)
		assert.Empty(t, storedFiles(t, dir))
	})

	t.Run("body truncated inside an image", func(t *testing.T) {
		c, _, dir := newTestCoordinator(t)
		req := multipartRequest(t, dataPart(validData), filePart(FieldImage, png(8192)))
		full := req.Body.(*bytes.Buffer).Bytes()
		req.Body = bytes.NewReader(full[:len(full)-4096])

		_, err := c.Ingest(ctx, req)

		requireAbort(t, err, ErrMalformed)
		assert.Empty(t, storedFiles(t, dir))
	})
}

func TestCoordinator_IngestStorageFailure(t *testing.T) {
	store := new(mocks.MockStore)
	store.On("Save", mock.Anything, mock.Anything).
		Return(image.Handle("partial"), image.Accepted, errors.New("disk full"))
	store.On("Delete", mock.Anything, image.Handle("partial")).Return(nil).Once()
	c := NewCoordinator(store, zap.NewNop())

	_, err := c.Ingest(context.Background(), multipartRequest(t, filePart(FieldAvatar, png(64)), dataPart(validData)))

	requireAbort(t, err, ErrStorage)
	store.AssertExpectations(t)
}

func TestCoordinator_IngestDrainBudget(t *testing.T) {
	c, _, dir := newTestCoordinator(t, WithDrainer(Drainer{MaxChunks: 2, ChunkSize: 64}))

	_, err := c.Ingest(context.Background(), multipartRequest(t,
		filePart(FieldImage, []byte("not a png")),
		filePart(FieldAvatar, png(64*1024)),
	))

	abort := requireAbort(t, err, ErrImageFormat)
	require.NotNil(t, abort.Drain)
	assert.False(t, abort.Drain.Complete)
	assert.Equal(t, DrainChunkLimit, abort.Drain.Reason)
	assert.False(t, abort.KeepAlive())
	assert.Empty(t, storedFiles(t, dir))
}

type fetchFunc func(ctx context.Context, rawURL string) (image.Handle, image.Outcome, error)

func (f fetchFunc) Fetch(ctx context.Context, rawURL string) (image.Handle, image.Outcome, error) {
	return f(ctx, rawURL)
}

func TestCoordinator_IngestAvatarURL(t *testing.T) {
	ctx := context.Background()
	withURL := `{"text":"Hello!","username":"admin","avatar":"https://example.com/me.png"}`

	t.Run("fetched when no avatar was uploaded", func(t *testing.T) {
		var store *image.Store
		var calls int
		fetcher := fetchFunc(func(ctx context.Context, rawURL string) (image.Handle, image.Outcome, error) {
			calls++
			assert.Equal(t, "https://example.com/me.png", rawURL)
			return store.Save(ctx, bytes.NewReader(png(100)))
		})
		c, s, dir := newTestCoordinator(t, WithAvatarFetcher(fetcher))
		store = s

		st, err := c.Ingest(ctx, multipartRequest(t, dataPart(withURL)))

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, png(100), readStored(t, dir, st.Avatar))
	})

	t.Run("uploaded avatar wins", func(t *testing.T) {
		fetcher := fetchFunc(func(context.Context, string) (image.Handle, image.Outcome, error) {
			t.Fatal("fetch must not be called")
			return "", image.Accepted, nil
		})
		c, _, _ := newTestCoordinator(t, WithAvatarFetcher(fetcher))

		st, err := c.Ingest(ctx, multipartRequest(t, dataPart(withURL), filePart(FieldAvatar, png(64))))

		require.NoError(t, err)
		assert.False(t, st.Avatar.IsZero())
	})

	t.Run("ignored when fetching is disabled", func(t *testing.T) {
		c, _, _ := newTestCoordinator(t)

		st, err := c.Ingest(ctx, multipartRequest(t, dataPart(withURL)))

		require.NoError(t, err)
		assert.True(t, st.Avatar.IsZero())
	})

	t.Run("remote failure rolls back the post image", func(t *testing.T) {
		fetcher := fetchFunc(func(context.Context, string) (image.Handle, image.Outcome, error) {
			return "", image.Accepted, image.ErrRemote
		})
		c, _, dir := newTestCoordinator(t, WithAvatarFetcher(fetcher))

		_, err := c.Ingest(ctx, multipartRequest(t, filePart(FieldImage, png(64)), dataPart(withURL)))

		abort := requireAbort(t, err, ErrAvatarUnavailable)
		assert.Equal(t, FieldAvatar, abort.Field)
		assert.Empty(t, storedFiles(t, dir))
	})
}

func TestCoordinator_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	c, _, _ := newTestCoordinator(t, WithMetrics(m))
	ctx := context.Background()

	_, err = c.Ingest(ctx, multipartRequest(t, dataPart(validData)))
	require.NoError(t, err)
	_, err = c.Ingest(ctx, multipartRequest(t, dataPart(validData), formPart{name: "x", body: []byte("y")}))
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ingests.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ingests.WithLabelValues("unknown_field")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.drains.WithLabelValues(DrainEOF)))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "collectors register once per registry")
}

func TestReason(t *testing.T) {
	assert.Equal(t, "ok", Reason(nil))
	assert.Equal(t, "image_too_large", Reason(&AbortError{Err: ErrImageTooLarge}))
	assert.Equal(t, "invalid_data", Reason(errors.Join(ErrInvalidData, model.ErrTextTooLong)))
	assert.Equal(t, "internal", Reason(errors.New("boom")))
}
