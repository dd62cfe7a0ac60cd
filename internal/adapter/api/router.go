package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BuildInfo is reported by the health endpoint.
type BuildInfo struct {
	Version string
	Env     string
}

func SetupRouter(app *fiber.App, handler *InterpretHandler, info BuildInfo) {
	// Middleware
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "healthy",
			"version": info.Version,
			"env":     info.Env,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API Versioning
	v1 := app.Group("/v1")
	v1.Post("/interpret", handler.HandleInterpret)
	v1.Get("/budget", handler.HandleBudget)
}
