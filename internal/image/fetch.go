package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrRemote is returned when a remote image cannot be retrieved.
var ErrRemote = errors.New("remote image unavailable")

// Fetcher downloads remote images into a Store.
type Fetcher struct {
	store  *Store
	client *http.Client
}

// NewFetcher returns a Fetcher whose requests give up after timeout.
func NewFetcher(store *Store, timeout time.Duration) *Fetcher {
	return &Fetcher{
		store: store,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Fetch downloads rawURL and saves it with the same checks as an upload.
// A declared Content-Length over the limit is rejected before anything is written.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Handle, Outcome, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", Accepted, fmt.Errorf("%w: invalid url %q", ErrRemote, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", Accepted, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	res, err := f.client.Do(req)
	if err != nil {
		return "", Accepted, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", Accepted, fmt.Errorf("%w: status %d", ErrRemote, res.StatusCode)
	}
	if OverLimit(res.ContentLength) {
		return "", TooLarge, nil
	}
	return f.store.Save(ctx, res.Body)
}
