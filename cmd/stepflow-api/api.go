// Package main provides the Stepflow API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/dukex/stepflow/pkg/services"
	"github.com/dukex/stepflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger   *slog.Logger
	editor   *services.Editor
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, editor *services.Editor) *API {
	return &API{
		logger:   logger,
		editor:   editor,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.editor, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Stepflow API")
	})

	handlers.Register(app)

	return app
}

// Start serves the API until ctx is done. Unsaved sessions are saved before
// it returns.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	a.logger.InfoContext(ctx, "Stepflow API listening", "port", port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down Stepflow API")

	shutdownErr := app.Shutdown()

	saved, saveErr := a.editor.SaveDirty(context.WithoutCancel(ctx))
	if saved > 0 {
		a.logger.Info("Saved dirty workflows on shutdown", "saved", saved)
	}

	return errors.Join(shutdownErr, saveErr)
}
