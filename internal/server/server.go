// Package server assembles the Fiber application: middleware, the user
// routes, the health probe and the metrics endpoint.
package server

import (
	"io"
	"log/slog"
	"time"

	"usersapi/internal/handlers"
	"usersapi/internal/middleware"
	"usersapi/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
)

// Options configures New.
type Options struct {
	Service *services.UserService
	Logger  *slog.Logger

	// Registry enables request metrics and GET /metrics when set.
	Registry *prometheus.Registry

	// AccessLog receives one line per request. Nil disables access logging.
	AccessLog io.Writer

	CORSOrigins   string
	DBDriver      string
	EventsEnabled bool
}

// New builds the Fiber app.
func New(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "users-api",
		ErrorHandler:          handlers.ErrorHandler(opts.Logger),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())

	origins := opts.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{AllowOrigins: origins}))

	if opts.AccessLog != nil {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
			Output: opts.AccessLog,
		}))
	}

	if opts.Registry != nil {
		metrics := middleware.NewMetrics(opts.Registry)
		app.Use(metrics.Handler())
		app.Get("/metrics", metrics.Endpoint())
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		events := "disabled"
		if opts.EventsEnabled {
			events = "enabled"
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": opts.DBDriver,
			"events":   events,
		})
	})

	handlers.NewUserHandler(opts.Service, opts.Logger).RegisterRoutes(app)

	return app
}
