package services

import (
	"context"
	"errors"

	"github.com/dukex/stepflow/pkg/canvas"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AddStepRequest adds a step, optionally after an existing one.
type AddStepRequest struct {
	Type     models.StepType  `json:"type"               validate:"required"`
	After    string           `json:"after,omitempty"`
	Position *models.Position `json:"position,omitempty"`
}

// ConnectRequest links two steps. BranchIndex picks the branch of a
// condition step.
type ConnectRequest struct {
	From        string `json:"from"                  validate:"required"`
	To          string `json:"to"                    validate:"required"`
	BranchIndex *int   `json:"branch_index,omitempty" validate:"omitempty,min=0"`
}

// UpdateStepRequest carries the step fields to change.
type UpdateStepRequest struct {
	Name     *string          `json:"name,omitempty"     validate:"omitempty,max=200"`
	Config   map[string]any   `json:"config,omitempty"`
	Position *models.Position `json:"position,omitempty"`
}

// AddStep creates a step in the workflow's graph, places it at the requested
// position and selects it.
func (e *Editor) AddStep(ctx context.Context, id string, req AddStepRequest) (*models.Step, error) {
	_, span := otelhelper.StartSpan(ctx, e.tracer, "editor.AddStep",
		attribute.String(otelhelper.WorkflowIDKey, id),
		attribute.String(otelhelper.StepTypeKey, string(req.Type)))
	defer span.End()

	s, err := e.session(id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stepID, err := s.store.AddStep(req.Type, req.After)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if req.Position != nil {
		if err := s.store.UpdateStep(stepID, graph.StepUpdate{Position: req.Position}); err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}
	}

	s.store.Select(stepID)
	span.SetAttributes(attribute.String(otelhelper.StepIDKey, stepID))

	step, _ := s.store.Step(stepID)

	return step, nil
}

// Connect links two steps. Rejected connections report false without error.
func (e *Editor) Connect(ctx context.Context, id string, req ConnectRequest) (bool, error) {
	_, span := otelhelper.StartSpan(ctx, e.tracer, "editor.Connect",
		attribute.String(otelhelper.WorkflowIDKey, id),
		attribute.String(otelhelper.StepIDKey, req.From))
	defer span.End()

	s, err := e.session(id)
	if err != nil {
		otelhelper.SetError(span, err)

		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Connect(req.From, req.To, req.BranchIndex), nil
}

// Disconnect removes every edge from -> to.
func (e *Editor) Disconnect(ctx context.Context, id, from, to string) (bool, error) {
	_, span := otelhelper.StartSpan(ctx, e.tracer, "editor.Disconnect",
		attribute.String(otelhelper.WorkflowIDKey, id),
		attribute.String(otelhelper.StepIDKey, from))
	defer span.End()

	s, err := e.session(id)
	if err != nil {
		otelhelper.SetError(span, err)

		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Disconnect(from, to), nil
}

func (e *Editor) UpdateStep(ctx context.Context, id, stepID string, req UpdateStepRequest) (*models.Step, error) {
	_, span := otelhelper.StartSpan(ctx, e.tracer, "editor.UpdateStep",
		attribute.String(otelhelper.WorkflowIDKey, id),
		attribute.String(otelhelper.StepIDKey, stepID))
	defer span.End()

	s, err := e.session(id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.store.UpdateStep(stepID, graph.StepUpdate{
		Name:     req.Name,
		Config:   req.Config,
		Position: req.Position,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	step, _ := s.store.Step(stepID)

	return step, nil
}

// DeleteStep removes a step and its edges. Deleting the only trigger is
// rejected and announced with a step.delete_rejected event.
func (e *Editor) DeleteStep(ctx context.Context, id, stepID string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.DeleteStep",
		attribute.String(otelhelper.WorkflowIDKey, id),
		attribute.String(otelhelper.StepIDKey, stepID))
	defer span.End()

	s, err := e.session(id)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.store.DeleteStep(stepID)
	if err != nil {
		e.rejectDelete(ctx, span, id, stepID, err)

		return err
	}

	return nil
}

// Select selects a step. An empty stepID clears the selection.
func (e *Editor) Select(ctx context.Context, id, stepID string) (graph.Selection, error) {
	_, span := otelhelper.StartSpan(ctx, e.tracer, "editor.Select",
		attribute.String(otelhelper.WorkflowIDKey, id),
		attribute.String(otelhelper.StepIDKey, stepID))
	defer span.End()

	s, err := e.session(id)
	if err != nil {
		otelhelper.SetError(span, err)

		return graph.Selection{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if stepID == "" {
		s.store.ClearSelection()

		return s.store.Selection(), nil
	}

	if !s.store.Select(stepID) {
		err := &graph.StepError{Op: "Select", StepID: stepID, Err: graph.ErrStepNotFound}
		otelhelper.SetError(span, err)

		return graph.Selection{}, err
	}

	return s.store.Selection(), nil
}

// Canvas returns the renderable projection of the workflow.
func (e *Editor) Canvas(ctx context.Context, id string) (canvas.Graph, error) {
	_, span := otelhelper.StartSpan(ctx, e.tracer, "editor.Canvas",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	s, err := e.session(id)
	if err != nil {
		otelhelper.SetError(span, err)

		return canvas.Graph{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return canvas.Project(s.store), nil
}

// HandleCanvasEvent applies a renderer interaction to the workflow and
// returns the updated projection.
func (e *Editor) HandleCanvasEvent(ctx context.Context, id string, ev canvas.Event) (canvas.Result, canvas.Graph, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.HandleCanvasEvent",
		attribute.String(otelhelper.WorkflowIDKey, id),
		attribute.String(otelhelper.EventKindKey, string(ev.Kind)))
	defer span.End()

	s, err := e.session(id)
	if err != nil {
		otelhelper.SetError(span, err)

		return canvas.Result{}, canvas.Graph{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.canvas.Dispatch(ev)
	if err != nil {
		if ev.Kind == canvas.EventNodesDelete {
			e.rejectDelete(ctx, span, id, failedStepID(err, ev), err)
		} else {
			otelhelper.SetError(span, err)
		}

		return res, canvas.Project(s.store), err
	}

	return res, canvas.Project(s.store), nil
}

func (e *Editor) rejectDelete(ctx context.Context, span trace.Span, id, stepID string, err error) {
	otelhelper.SetError(span, err, attribute.String(otelhelper.StepIDKey, stepID))

	if !errors.Is(err, graph.ErrLastTrigger) {
		return
	}

	e.logger.WarnContext(ctx, "Rejected step deletion", "workflow_id", id, "step_id", stepID, "error", err)
	e.publish(ctx, id, events.StepDeleteRejected{
		BaseEvent: events.NewBaseEvent(events.StepDeleteRejectedEvent, id),
		StepID:    stepID,
		Reason:    err.Error(),
	})
}

func failedStepID(err error, ev canvas.Event) string {
	var stepErr *graph.StepError
	if errors.As(err, &stepErr) {
		return stepErr.StepID
	}

	return ev.NodeID
}
