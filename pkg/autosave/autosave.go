// Package autosave periodically saves the workflows that have unsaved edits.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Saver saves every dirty editing session.
type Saver interface {
	SaveDirty(ctx context.Context) (int, error)
}

type Autosave struct {
	spec   string
	saver  Saver
	cron   *cron.Cron
	logger *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates the standard cron spec and returns a stopped scheduler.
func New(spec string, saver Saver, logger *slog.Logger) (*Autosave, error) {
	if spec == "" {
		return nil, errors.New("autosave schedule is required")
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid autosave schedule: %w", err)
	}

	return &Autosave{
		spec:   spec,
		saver:  saver,
		logger: logger.With("module", "autosave", "schedule", spec),
	}, nil
}

// Start schedules the autosave job. Jobs run with a context derived from ctx
// and are skipped while the previous one is still running.
func (a *Autosave) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cron != nil {
		return errors.New("autosave already started")
	}

	a.ctx, a.cancel = context.WithCancel(ctx)

	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(a.logger.Handler(), slog.LevelDebug))
	a.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	id, err := a.cron.AddFunc(a.spec, func() { a.Run(a.ctx) })
	if err != nil {
		a.cron = nil
		a.cancel()

		return fmt.Errorf("failed to add autosave job: %w", err)
	}

	a.logger.Info("Starting autosave", "entry_id", id)
	a.cron.Start()

	return nil
}

// Run saves the dirty sessions once.
func (a *Autosave) Run(ctx context.Context) {
	saved, err := a.saver.SaveDirty(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "Autosave failed", "saved", saved, "error", err)

		return
	}

	if saved > 0 {
		a.logger.InfoContext(ctx, "Autosaved workflows", "saved", saved)
	}
}

// Stop unschedules the job and waits for a running one to finish or for ctx
// to be done.
func (a *Autosave) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cron == nil {
		return nil
	}

	a.logger.Info("Stopping autosave")

	done := a.cron.Stop()
	a.cron = nil

	defer a.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
