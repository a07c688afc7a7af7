package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"postapi/internal/http/middleware"
	"postapi/internal/ingest"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

var ingestErrors = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{ingest.ErrMalformed, fiber.StatusBadRequest, "MALFORMED_REQUEST", "malformed multipart request"},
	{ingest.ErrUnknownField, fiber.StatusBadRequest, "UNKNOWN_FIELD", "unknown field"},
	{ingest.ErrDuplicateField, fiber.StatusBadRequest, "DUPLICATE_FIELD", "field sent more than once"},
	{ingest.ErrDataRequired, fiber.StatusBadRequest, "DATA_REQUIRED", "data field is required"},
	{ingest.ErrInvalidData, fiber.StatusBadRequest, "INVALID_DATA", "invalid data field"},
	{ingest.ErrDataTooLarge, fiber.StatusRequestEntityTooLarge, "DATA_TOO_LARGE", "data field too large"},
	{ingest.ErrImageFormat, fiber.StatusBadRequest, "INVALID_IMAGE_FORMAT", "image must be a png"},
	{ingest.ErrImageTooLarge, fiber.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "image exceeds 2 MiB"},
	{ingest.ErrAvatarUnavailable, fiber.StatusBadRequest, "AVATAR_UNAVAILABLE", "avatar could not be fetched"},
}

// writeIngestError maps an ingestion failure onto the error envelope. Anything unrecognized is a 500.
func writeIngestError(c *fiber.Ctx, err error) error {
	for _, e := range ingestErrors {
		if errors.Is(err, e.err) {
			return writeError(c, e.status, e.code, e.message)
		}
	}
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
