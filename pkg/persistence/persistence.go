// Package persistence provides the storage abstraction for workflow documents.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/google/uuid"
)

type Persistence interface {
	// Workflows returns every stored workflow, most recently updated first.
	Workflows(ctx context.Context) ([]*models.WorkflowDocument, error)
	SaveWorkflow(ctx context.Context, workflow *models.WorkflowDocument) error
	// WorkflowByID fails with ErrWorkflowNotFound when nothing is stored under id.
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowDocument, error)
	DeleteWorkflow(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// PrepareForSave assigns an id to a new workflow and stamps its timestamps.
func PrepareForSave(workflow *models.WorkflowDocument, now time.Time) error {
	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	if err := ValidateID(workflow.ID); err != nil {
		return NewWorkflowError("Save", workflow.ID, err)
	}

	now = now.UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	return nil
}
