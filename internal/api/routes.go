package api

import (
	"time"

	"github.com/dfwthrift/contentpipe/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// AuthOptions configure the admin group guard
type AuthOptions struct {
	APIKey    string
	JWTSecret string
}

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers, auth AuthOptions) {
	app.Use(recover.New())
	app.Use(middleware.NewLogger())

	// Public API
	api := app.Group("/api/v1")
	api.Get("/health", h.HealthCheck)
	api.Post("/feeds/validate", h.ValidateFeed)
	api.Get("/events", h.ListEvents)
	api.Get("/articles", h.ListArticles)

	admin := app.Group("/admin", middleware.NewAuth(middleware.AuthConfig{
		APIKey:    auth.APIKey,
		JWTSecret: auth.JWTSecret,
	}))
	{
		admin.Get("/sources", h.ListSources)
		admin.Post("/sources", h.CreateSource)
		admin.Patch("/sources/:id/active", h.SetSourceActive)
		admin.Post("/sources/:id/process", h.ProcessSource)
		admin.Post("/harvest", h.Harvest)
	}

	pipeline := admin.Group("/pipeline")
	{
		pipeline.Get("", h.ListPipeline)
		pipeline.Get("/grouped", h.GroupedPipeline)
		pipeline.Post("/bulk-status", h.BulkUpdateStatus)
		pipeline.Post("/bulk-delete", h.BulkDelete)
		pipeline.Post("/bulk-publish", h.BulkPublish)
		pipeline.Patch("/:id/status", h.UpdateStatus)
		pipeline.Post("/:id/publish", h.Publish)
	}

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}

// NewApp returns a fiber app that renders errors through middleware.ErrorHandler
func NewApp(h *Handlers, auth AuthOptions, timeout time.Duration) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "contentpipe",
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: middleware.ErrorHandler,
	})
	SetupRoutes(app, h, auth)
	return app
}
