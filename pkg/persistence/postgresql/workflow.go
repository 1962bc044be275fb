package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

type scanner interface {
	Scan(dest ...any) error
}

// GetAll returns all workflows, most recently updated first.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.WorkflowDocument, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , created_at
		  , updated_at
		FROM workflows
		ORDER BY updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func(ctx context.Context, r *WorkflowRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	workflows := make([]*models.WorkflowDocument, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, workflow := range workflows {
		workflow.Steps, err = r.loadSteps(ctx, workflow.ID)
		if err != nil {
			return nil, err
		}
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDocument, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	workflow.Steps, err = r.loadSteps(ctx, id)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Save upserts the workflow row and replaces its steps in one transaction.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowDocument) error {
	err := persistence.PrepareForSave(workflow, time.Now())
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = r.save(ctx, tx, workflow)
	if err != nil {
		_ = tx.Rollback()

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) save(ctx context.Context, tx *sql.Tx, workflow *models.WorkflowDocument) error {
	workflowQuery := `
		INSERT INTO workflows (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
	`

	_, err := tx.ExecContext(ctx, workflowQuery,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing steps: %w", err)
	}

	stepQuery := `
		INSERT INTO workflow_steps (workflow_id, id, ordinal, step_type, name, config,
			position_x, position_y, next_step_id, branches)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for i, step := range workflow.Steps {
		configJSON, err := json.Marshal(step.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal config of step %s: %w", step.ID, err)
		}

		branchesJSON, err := json.Marshal(step.Branches)
		if err != nil {
			return fmt.Errorf("failed to marshal branches of step %s: %w", step.ID, err)
		}

		var x, y sql.NullFloat64
		if step.Position != nil {
			x = sql.NullFloat64{Float64: step.Position.X, Valid: true}
			y = sql.NullFloat64{Float64: step.Position.Y, Valid: true}
		}

		_, err = tx.ExecContext(ctx, stepQuery,
			workflow.ID,
			step.ID,
			i,
			string(step.Type),
			step.Name,
			configJSON,
			x,
			y,
			step.NextStepID,
			branchesJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to save step %s: %w", step.ID, err)
		}
	}

	return nil
}

// Delete removes a workflow. Deleting a missing workflow is not an error.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

func scanWorkflow(row scanner) (*models.WorkflowDocument, error) {
	var workflow models.WorkflowDocument

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.CreatedAt = workflow.CreatedAt.UTC()
	workflow.UpdatedAt = workflow.UpdatedAt.UTC()

	return &workflow, nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflowID string) ([]*models.Step, error) {
	query := `
		SELECT
			id
		  , step_type
		  , name
		  , config
		  , position_x
		  , position_y
		  , next_step_id
		  , branches
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY ordinal
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps of workflow %s: %w", workflowID, err)
	}

	defer func(ctx context.Context, r *WorkflowRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	steps := make([]*models.Step, 0)

	for rows.Next() {
		var (
			step         models.Step
			stepType     string
			configJSON   []byte
			branchesJSON []byte
			x, y         sql.NullFloat64
		)

		err := rows.Scan(&step.ID, &stepType, &step.Name, &configJSON, &x, &y, &step.NextStepID, &branchesJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		step.Type = models.StepType(stepType)

		if len(configJSON) > 0 {
			err = json.Unmarshal(configJSON, &step.Config)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal config of step %s: %w", step.ID, err)
			}
		}

		if len(branchesJSON) > 0 {
			err = json.Unmarshal(branchesJSON, &step.Branches)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal branches of step %s: %w", step.ID, err)
			}
		}

		if x.Valid && y.Valid {
			step.Position = &models.Position{X: x.Float64, Y: y.Float64}
		}

		steps = append(steps, &step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	return steps, nil
}
