package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/stepflow/pkg/autosave"
	"github.com/dukex/stepflow/pkg/channels/kafka"
	"github.com/dukex/stepflow/pkg/cmd"
	"github.com/dukex/stepflow/pkg/export"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"github.com/dukex/stepflow/pkg/services"
	"github.com/dukex/stepflow/pkg/templates"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
)

const shutdownTimeout = 10 * time.Second

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("api")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "Initializing Stepflow API")

	tracer := otel.Tracer("stepflow-api")
	if command.Bool("tracing") {
		t, err := otelhelper.NewTracer(ctx, "stepflow-api")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		tracer = t
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persistence.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), kafka.ParseBrokers(command.String("kafka-brokers")), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	if err := services.HandleNotices(eventBus, services.LogNotices(log.WithModule("notices"))); err != nil {
		return err
	}

	if err := eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to editor events: %w", err)
	}

	library, err := templates.Load(command.String("templates-path"))
	if err != nil {
		return err
	}

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithPublisher(eventBus),
		services.WithTemplates(library),
		services.WithTracer(tracer),
	}

	if dir := command.String("export-path"); dir != "" {
		opts = append(opts, services.WithExporter(export.NewExporter(dir)))
	}

	editor := services.NewEditor(persistence, opts...)

	if spec := command.String("autosave"); spec != "" {
		saver, err := autosave.New(spec, editor, logger)
		if err != nil {
			return err
		}

		if err := saver.Start(ctx); err != nil {
			return err
		}

		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := saver.Stop(stopCtx); err != nil {
				logger.Error("Failed to stop autosave", "error", err)
			}
		}()
	}

	api := NewAPI(logger, editor)

	return api.Start(ctx, command.Int("port"))
}
