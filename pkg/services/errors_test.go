package services_test

import (
	"fmt"
	"testing"

	"github.com/dukex/stepflow/pkg/canvas"
	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/services"
	"github.com/dukex/stepflow/pkg/templates"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		validation bool
		conflict   bool
		notFound   bool
	}{
		{name: "invalid request", err: services.ErrInvalidRequest, validation: true},
		{name: "invalid document", err: fmt.Errorf("%w: bad", templates.ErrInvalidDocument), validation: true},
		{name: "unknown canvas event", err: fmt.Errorf("%w: %q", canvas.ErrUnknownEvent, "zoom"), validation: true},
		{name: "invalid id", err: persistence.ErrInvalidWorkflowID, validation: true},
		{name: "no trigger", err: &graph.StepError{Op: "load", Err: graph.ErrNoTrigger}, validation: true},
		{name: "last trigger", err: &graph.StepError{Op: "DeleteStep", StepID: "t", Err: graph.ErrLastTrigger}, conflict: true},
		{name: "trigger exists", err: graph.ErrTriggerExists, conflict: true},
		{name: "step not found", err: &graph.StepError{Op: "UpdateStep", Err: graph.ErrStepNotFound}, notFound: true},
		{name: "workflow not found", err: persistence.NewWorkflowError("Get", "x", persistence.ErrWorkflowNotFound), notFound: true},
		{name: "template not found", err: templates.ErrTemplateNotFound, notFound: true},
		{
			name:     "session not found",
			err:      &services.ServiceError{Op: "Save", Message: "not open", Err: services.ErrSessionNotFound},
			notFound: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.validation, services.IsValidationError(tt.err), "validation")
			assert.Equal(t, tt.conflict, services.IsConflictError(tt.err), "conflict")
			assert.Equal(t, tt.notFound, services.IsNotFoundError(tt.err), "not found")
		})
	}
}

func TestServiceError(t *testing.T) {
	t.Parallel()

	err := services.NewValidationError("Create", "invalid_name", "name is too long", services.ErrInvalidRequest)

	assert.Equal(t, "Create: name is too long", err.Error())
	assert.ErrorIs(t, err, services.ErrInvalidRequest)

	bare := &services.ServiceError{Op: "Open", Err: services.ErrSessionNotFound}
	assert.Equal(t, "Open: workflow is not open for editing", bare.Error())
}
