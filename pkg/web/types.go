package web

import (
	"github.com/dukex/stepflow/pkg/canvas"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/services"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
// Template names a starter workflow from GET /templates.
type CreateWorkflowRequest struct {
	Name        string `json:"name"                  validate:"omitempty,max=200"`
	Description string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Template    string `json:"template,omitempty"`
}

type AddStepRequest struct {
	Type     string           `json:"type"               validate:"required,oneof=trigger action condition delay integration branch"`
	After    string           `json:"after,omitempty"`
	Position *models.Position `json:"position,omitempty"`
}

// UpdateStepRequest represents the request body for updating a step.
// All fields are optional to support partial updates.
type UpdateStepRequest struct {
	Name     *string          `json:"name,omitempty"     validate:"omitempty,max=200"`
	Config   map[string]any   `json:"config,omitempty"`
	Position *models.Position `json:"position,omitempty"`
}

type ConnectRequest struct {
	From        string `json:"from"                   validate:"required"`
	To          string `json:"to"                     validate:"required"`
	BranchIndex *int   `json:"branch_index,omitempty" validate:"omitempty,min=0"`
}

type DisconnectRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to"   validate:"required"`
}

// ConnectionResponse reports whether the graph changed and the resulting edges.
type ConnectionResponse struct {
	Changed     bool                `json:"changed"`
	Connections []models.Connection `json:"connections"`
}

type CanvasEventResponse struct {
	Result canvas.Result `json:"result"`
	Canvas canvas.Graph  `json:"canvas"`
}

type SaveResponse struct {
	Workflow *models.WorkflowDocument `json:"workflow"`
	Notice   events.Notice            `json:"notice"`
}

func (r CreateWorkflowRequest) toService() services.CreateRequest {
	return services.CreateRequest{
		Name:        r.Name,
		Description: r.Description,
		Template:    r.Template,
	}
}

func (r AddStepRequest) toService() services.AddStepRequest {
	return services.AddStepRequest{
		Type:     models.StepType(r.Type),
		After:    r.After,
		Position: r.Position,
	}
}

func (r UpdateStepRequest) toService() services.UpdateStepRequest {
	return services.UpdateStepRequest{
		Name:     r.Name,
		Config:   r.Config,
		Position: r.Position,
	}
}

func (r ConnectRequest) toService() services.ConnectRequest {
	return services.ConnectRequest{
		From:        r.From,
		To:          r.To,
		BranchIndex: r.BranchIndex,
	}
}
