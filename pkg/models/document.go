package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// WorkflowDocument is the flat, serializable form of a workflow exchanged with
// persistence, export and template loading.
type WorkflowDocument struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"                 validate:"required"`
	Description string    `json:"description"`
	Steps       []*Step   `json:"steps"                validate:"dive,required"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

var documentValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural rules of the document. It does not check the
// graph invariants; loading the document into a graph store does that.
func (d *WorkflowDocument) Validate() error {
	if err := documentValidator.Struct(d); err != nil {
		return fmt.Errorf("invalid workflow document: %w", err)
	}

	return nil
}

// Trigger returns the first trigger step of the document, if any.
func (d *WorkflowDocument) Trigger() *Step {
	for _, step := range d.Steps {
		if step.Type == StepTypeTrigger {
			return step
		}
	}

	return nil
}

// Connections walks every NextStepID and branch target of the document and
// returns the edge list they describe. References to unknown steps and
// NextStepID on branching steps are skipped.
func (d *WorkflowDocument) Connections() []Connection {
	live := make(map[string]struct{}, len(d.Steps))
	for _, step := range d.Steps {
		live[step.ID] = struct{}{}
	}

	exists := func(id string) bool {
		_, ok := live[id]

		return ok
	}

	var out []Connection

	for _, step := range d.Steps {
		if step.Type.IsBranching() {
			for i, branch := range step.Branches {
				if branch.NextStepID == "" || branch.NextStepID == step.ID || !exists(branch.NextStepID) {
					continue
				}

				handle := BranchHandle(i)
				out = append(out, Connection{
					ID:           ConnectionID(step.ID, branch.NextStepID, handle),
					Source:       step.ID,
					Target:       branch.NextStepID,
					SourceHandle: handle,
				})
			}

			continue
		}

		if step.NextStepID == "" || step.NextStepID == step.ID || !exists(step.NextStepID) {
			continue
		}

		out = append(out, Connection{
			ID:     ConnectionID(step.ID, step.NextStepID, ""),
			Source: step.ID,
			Target: step.NextStepID,
		})
	}

	return out
}
