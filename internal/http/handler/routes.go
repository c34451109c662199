package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"medvault/internal/service"
)

// RouteOptions tunes optional routes.
type RouteOptions struct {
	// UploadDir, when set, is served read-only under /uploads so stored filepaths resolve
	// as URLs. Files are always sent as attachments. Left empty for object-storage backends.
	UploadDir string
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, docSvc service.DocumentService, opts RouteOptions) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")
	// Fixed paths go before /:id so they are not parsed as ids.
	api.Get("/documents", ListDocuments(docSvc))
	api.Get("/documents/count", CountDocuments(docSvc))
	api.Get("/documents/stats", DocumentStats(docSvc))
	api.Post("/documents/upload", UploadDocument(docSvc))
	api.Get("/documents/:id", GetDocument(docSvc))
	api.Delete("/documents/:id", DeleteDocument(docSvc))

	if opts.UploadDir != "" {
		app.Static("/uploads", opts.UploadDir, fiber.Static{
			Browse:    false,
			Download:  true,
			ByteRange: true,
		})
	}
}
