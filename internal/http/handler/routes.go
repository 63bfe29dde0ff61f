package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docvault/internal/http/middleware"
	"docvault/internal/service"
)

type routeOptions struct {
	jwtSecret []byte
	gatherer  prometheus.Gatherer
}

// Option customizes RegisterRoutes.
type Option func(*routeOptions)

// WithJWTSecret enables bearer token verification on the document routes. Without it the
// X-User-Email header alone identifies the caller.
func WithJWTSecret(secret string) Option {
	return func(o *routeOptions) { o.jwtSecret = []byte(secret) }
}

// WithMetrics exposes g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(o *routeOptions) { o.gatherer = g }
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Probes and metrics are public;
// everything under /api/docs requires an identity.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, opts ...Option) {
	var o routeOptions
	for _, opt := range opts {
		opt(&o)
	}

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())
	if o.gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})))
	}

	docs := app.Group("/api/docs", middleware.Identity(o.jwtSecret))
	docs.Get("/", ListDocuments(docSvc))
	docs.Post("/", UploadDocument(docSvc))
	docs.Get("/:id", GetDocument(docSvc))
	docs.Put("/:id", UpdateDocument(docSvc))
	docs.Delete("/:id", DeleteDocument(docSvc))
	docs.Put("/:id/trash", TrashDocument(docSvc))
	docs.Get("/:id/download", DownloadDocument(docSvc))
}
