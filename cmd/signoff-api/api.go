// Package main provides the signoff API server.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/signoff/pkg/document"
	"github.com/dukex/signoff/pkg/eventbus"
	"github.com/dukex/signoff/pkg/persistence"
	"github.com/dukex/signoff/pkg/services"
	"github.com/dukex/signoff/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	checker     document.CapabilityChecker
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	checker document.CapabilityChecker,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		publisher:   publisher,
		checker:     checker,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	opts := []services.Option{services.WithTracer(a.tracer)}

	handlers := web.NewAPIHandlers(
		a.persistence,
		services.NewTemplates(a.persistence, a.publisher, opts...),
		services.NewSubmissions(a.persistence, a.publisher, opts...),
		services.NewDocuments(a.persistence, a.checker, a.publisher, opts...),
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("signoff API")
	})

	handlers.Register(app)

	return app
}

// Start serves until ctx is cancelled.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		if err := app.Shutdown(); err != nil {
			a.logger.Error("Failed to shutdown API", "error", err)
		}
	}()

	a.logger.InfoContext(ctx, "API listening", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
