package handler

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"postapi/internal/image"
	"postapi/internal/ingest"
	"postapi/internal/service"
)

// Ingester turns a multipart request into an ingestion state.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.State, error)
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, ing Ingester, postSvc service.PostService, logger *zap.Logger) {
	app.Get("/openapi.yaml", OpenAPISpec())
	app.Get("/docs", Docs())

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Post("/blogpost", CreatePost(ing, postSvc, logger))
	app.Get("/blogpost", ListPosts(postSvc))
	app.Get("/image/:id", GetImage(postSvc))
}

// OpenAPISpec serves the OpenAPI document from the working directory.
func OpenAPISpec() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	}
}

// Docs serves a Swagger UI page pointing at /openapi.yaml.
func Docs() fiber.Handler {
	const html = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Blog Post API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
	return func(c *fiber.Ctx) error {
		return c.Type("html").SendString(html)
	}
}

// Metrics exposes the collectors of g in the Prometheus text format.
func Metrics(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// HealthCheck checks DB connectivity only.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// CreatePost ingests a multipart body (fields: data, avatar, image) and persists the post.
// When an aborted ingestion could not consume the rest of the body, the connection is closed
// after the response instead of being kept alive.
func CreatePost(ing Ingester, postSvc service.PostService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fctx := c.Context()

		var body io.Reader = fctx.RequestBodyStream()
		if body == nil {
			body = bytes.NewReader(c.Body())
		}

		st, err := ing.Ingest(c.UserContext(), ingest.Request{
			ContentType: c.Get(fiber.HeaderContentType),
			Body:        body,
			Unblock: func() {
				if conn := fctx.Conn(); conn != nil {
					_ = conn.SetReadDeadline(time.Now())
				}
			},
		})
		if err != nil {
			var abort *ingest.AbortError
			if !errors.As(err, &abort) || !abort.KeepAlive() {
				fctx.SetConnectionClose()
			}
			return writeIngestError(c, err)
		}

		if _, err := postSvc.Create(c.UserContext(), st); err != nil {
			logger.Error("create_post_failed",
				zap.String("request_id", requestIDFromCtx(c)),
				zap.Error(err),
			)
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.Status(fiber.StatusCreated).Send(nil)
	}
}

// ListPosts returns one page of the feed. The page query parameter is required and 1-based.
func ListPosts(postSvc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := strconv.Atoi(c.Query("page"))
		if err != nil || page < 1 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "page must be a positive integer")
		}

		res, err := postSvc.Feed(c.UserContext(), page)
		if err != nil {
			if errors.Is(err, service.ErrInvalidPage) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "page must be a positive integer")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// GetImage streams a stored image or a reserved placeholder.
func GetImage(postSvc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !image.ValidName(id) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		rc, found, err := postSvc.OpenImage(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, image.ErrInvalidName) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		if !found {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "image not found")
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
		return c.SendStream(rc)
	}
}
