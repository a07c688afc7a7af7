package ingest

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed         = errors.New("malformed multipart request")
	ErrUnknownField      = errors.New("unknown field")
	ErrDuplicateField    = errors.New("duplicate field")
	ErrDataRequired      = errors.New("data field is required")
	ErrInvalidData       = errors.New("invalid data field")
	ErrDataTooLarge      = errors.New("data field too large")
	ErrImageFormat       = errors.New("image is not a png")
	ErrImageTooLarge     = errors.New("image too large")
	ErrAvatarUnavailable = errors.New("avatar could not be fetched")
	ErrStorage           = errors.New("image storage failure")
)

// AbortError is returned by Coordinator.Ingest once cleanup has run.
// Drain is nil when the request stream had already been fully consumed.
type AbortError struct {
	Field string
	Err   error
	Drain *DrainResult
}

func (e *AbortError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("ingest aborted: %v", e.Err)
	}
	return fmt.Sprintf("ingest aborted on field %q: %v", e.Field, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// KeepAlive reports whether the request body was fully consumed, so the connection can be reused.
func (e *AbortError) KeepAlive() bool {
	return e.Drain == nil || e.Drain.Complete
}

var reasons = []struct {
	err    error
	reason string
}{
	{ErrMalformed, "malformed"},
	{ErrUnknownField, "unknown_field"},
	{ErrDuplicateField, "duplicate_field"},
	{ErrDataRequired, "data_required"},
	{ErrInvalidData, "invalid_data"},
	{ErrDataTooLarge, "data_too_large"},
	{ErrImageFormat, "image_format"},
	{ErrImageTooLarge, "image_too_large"},
	{ErrAvatarUnavailable, "avatar_unavailable"},
	{ErrStorage, "storage"},
}

// Reason returns a short label for err, "ok" for nil.
func Reason(err error) string {
	if err == nil {
		return "ok"
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}
