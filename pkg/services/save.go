package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/export"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"github.com/dukex/stepflow/pkg/templates"
	"go.opentelemetry.io/otel/attribute"
)

// Save persists the reconciled workflow. When persistence fails the session
// stays dirty with all of its edits and a workflow.save_failed event is
// published.
func (e *Editor) Save(ctx context.Context, id string) (*models.WorkflowDocument, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.Save",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	s, err := e.session(id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.store.Save()
	doc.CreatedAt = s.createdAt

	err = e.persistence.SaveWorkflow(ctx, &doc)
	if err != nil {
		s.store.MarkDirty()
		otelhelper.SetError(span, err)
		e.logger.ErrorContext(ctx, "Failed to save workflow", "workflow_id", id, "error", err)
		e.publish(ctx, id, events.WorkflowSaveFailed{
			BaseEvent: events.NewBaseEvent(events.WorkflowSaveFailedEvent, id),
			Error:     err.Error(),
		})

		return nil, fmt.Errorf("failed to save workflow %s: %w", id, err)
	}

	s.createdAt = doc.CreatedAt

	e.logger.InfoContext(ctx, "Saved workflow", "workflow_id", id, "steps", len(doc.Steps))
	e.publish(ctx, id, events.WorkflowSaved{
		BaseEvent:   events.NewBaseEvent(events.WorkflowSavedEvent, id),
		Name:        doc.Name,
		Steps:       len(doc.Steps),
		Connections: len(s.store.Connections()),
	})

	return &doc, nil
}

// SaveDirty saves every session with unsaved changes and returns how many
// were saved. Failures do not stop the remaining saves.
func (e *Editor) SaveDirty(ctx context.Context) (int, error) {
	var (
		saved int
		errs  []error
	)

	for _, id := range e.DirtySessions() {
		if _, err := e.Save(ctx, id); err != nil {
			errs = append(errs, err)

			continue
		}

		saved++
	}

	return saved, errors.Join(errs...)
}

// Export is an export file produced from a session.
type Export struct {
	FileName string `json:"file_name"`
	Path     string `json:"path,omitempty"`
	Data     []byte `json:"-"`
}

// Export renders the reconciled workflow as a downloadable JSON file, and
// writes it to the export directory when one is configured. The session's
// dirty flag is left alone.
func (e *Editor) Export(ctx context.Context, id string) (*Export, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.Export",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	s, err := e.session(id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	s.mu.Lock()
	doc := s.store.Document()
	doc.CreatedAt = s.createdAt
	s.mu.Unlock()

	data, err := export.Encode(&doc)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	out := &Export{FileName: export.FileName(doc.Name), Data: data}

	if e.exporter != nil {
		out.Path, err = e.exporter.Write(&doc)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}
	}

	e.logger.InfoContext(ctx, "Exported workflow", "workflow_id", id, "file_name", out.FileName)
	e.publish(ctx, id, events.WorkflowExported{
		BaseEvent: events.NewBaseEvent(events.WorkflowExportedEvent, id),
		FileName:  out.FileName,
		Path:      out.Path,
	})

	return out, nil
}

// Workflows lists the persisted workflows.
func (e *Editor) Workflows(ctx context.Context) ([]*models.WorkflowDocument, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.Workflows")
	defer span.End()

	workflows, err := e.persistence.Workflows(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// Templates lists the starter workflows Create accepts.
func (e *Editor) Templates() []templates.Summary {
	return e.templates.List()
}

// HealthCheck checks the health of the persistence layer.
func (e *Editor) HealthCheck(ctx context.Context) (string, bool) {
	if e.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := e.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (e *Editor) publish(ctx context.Context, id string, event eventbus.Event) {
	if n, ok := event.(events.Noticer); ok {
		notice := n.Notice()
		e.logger.DebugContext(ctx, "Notice", "workflow_id", id, "level", notice.Level, "message", notice.Message)
	}

	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, id, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event", "workflow_id", id, "event_type", event.GetType(), "error", err)
	}
}
