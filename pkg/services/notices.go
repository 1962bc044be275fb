package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
)

// NoticeEvents lists the event types that surface to the user.
var NoticeEvents = []events.EventType{
	events.WorkflowSavedEvent,
	events.WorkflowSaveFailedEvent,
	events.WorkflowExportedEvent,
	events.StepDeleteRejectedEvent,
}

// HandleNotices registers fn for every notice event on sub. fn receives the
// workflow id and the notice derived from the event.
func HandleNotices(sub eventbus.EventSubscriber, fn func(ctx context.Context, workflowID string, notice events.Notice)) error {
	for _, eventType := range NoticeEvents {
		err := sub.Handle(eventType, func(ctx context.Context, event any) error {
			n, ok := event.(events.Noticer)
			if !ok {
				return fmt.Errorf("event %s has no notice", eventType)
			}

			fn(ctx, workflowID(event), n.Notice())

			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to handle %s: %w", eventType, err)
		}
	}

	return nil
}

// LogNotices returns a notice handler that writes notices to logger.
func LogNotices(logger *slog.Logger) func(ctx context.Context, workflowID string, notice events.Notice) {
	return func(ctx context.Context, workflowID string, notice events.Notice) {
		level := slog.LevelInfo
		if notice.Level == events.NoticeError {
			level = slog.LevelWarn
		}

		logger.Log(ctx, level, notice.Message, "workflow_id", workflowID, "notice_level", notice.Level)
	}
}

func workflowID(event any) string {
	switch e := event.(type) {
	case *events.WorkflowSaved:
		return e.WorkflowID
	case *events.WorkflowSaveFailed:
		return e.WorkflowID
	case *events.WorkflowExported:
		return e.WorkflowID
	case *events.StepDeleteRejected:
		return e.WorkflowID
	default:
		return ""
	}
}
