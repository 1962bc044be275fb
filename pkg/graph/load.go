package graph

import (
	"fmt"

	"github.com/dukex/stepflow/pkg/connections"
	"github.com/dukex/stepflow/pkg/models"
)

// FromDocument rebuilds a store from persisted or template data. Steps keep
// their order; edges are derived by walking every NextStepID and branch
// target. References to unknown steps are dropped.
func FromDocument(doc *models.WorkflowDocument, opts ...Option) (*Store, error) {
	if doc == nil {
		return nil, &StepError{Op: "FromDocument", Err: ErrInvalidWorkflow}
	}

	if err := doc.Validate(); err != nil {
		return nil, &StepError{Op: "FromDocument", Err: fmt.Errorf("%w: %w", ErrInvalidWorkflow, err)}
	}

	s := New(opts...)
	s.id = doc.ID
	s.name = doc.Name
	s.description = doc.Description

	for _, step := range doc.Steps {
		if _, dup := s.used[step.ID]; dup {
			return nil, &StepError{Op: "FromDocument", StepID: step.ID, Err: ErrDuplicateStepID}
		}

		stored := step.Clone()
		stored.NextStepID = ""

		for i := range stored.Branches {
			stored.Branches[i].NextStepID = ""
		}

		if stored.Config == nil {
			stored.Config = map[string]any{}
		}

		s.steps = append(s.steps, stored)
		s.track(stored.ID)
	}

	if s.triggerCount() == 0 {
		return nil, &StepError{Op: "FromDocument", Err: ErrNoTrigger}
	}

	derived := doc.Connections()

	edges := make([]connections.Edge[string], 0, len(derived))
	for _, c := range derived {
		edges = append(edges, connections.Edge[string]{
			ID:     c.ID,
			Source: c.Source,
			Target: c.Target,
			Handle: c.SourceHandle,
		})
	}

	s.conns.ReplaceAll(edges)
	s.logger.Debug("workflow loaded", "workflow_id", doc.ID, "steps", len(s.steps), "connections", len(edges))

	return s, nil
}
