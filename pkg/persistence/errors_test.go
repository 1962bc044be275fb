package persistence_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowError(t *testing.T) {
	t.Parallel()

	err := persistence.NewWorkflowError("WorkflowByID", "workflow-123", persistence.ErrWorkflowNotFound)

	assert.True(t, persistence.IsWorkflowNotFound(err))
	assert.True(t, errors.Is(err, persistence.ErrWorkflowNotFound))
	assert.Contains(t, err.Error(), "WorkflowByID")
	assert.Contains(t, err.Error(), "workflow-123")
	assert.Contains(t, err.Error(), "workflow not found")

	assert.False(t, persistence.IsWorkflowNotFound(errors.New("other")))
}

func TestValidateID(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"wf-1", "0198c3a2-7f7e-7b4e-9a51-1d2b3c4d5e6f", "lead_nurture"} {
		assert.NoError(t, persistence.ValidateID(id), id)
	}

	for _, id := range []string{"", ".", "..", "../etc/passwd", `a\b`, "a/b", "stepflow:x"} {
		assert.ErrorIs(t, persistence.ValidateID(id), persistence.ErrInvalidWorkflowID, id)
	}
}

func TestPrepareForSave(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := &models.WorkflowDocument{Name: "x"}

	require.NoError(t, persistence.PrepareForSave(doc, created))
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, created, doc.CreatedAt)
	assert.Equal(t, created, doc.UpdatedAt)

	id := doc.ID
	later := created.Add(time.Hour)

	require.NoError(t, persistence.PrepareForSave(doc, later))
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, created, doc.CreatedAt)
	assert.Equal(t, later, doc.UpdatedAt)

	err := persistence.PrepareForSave(&models.WorkflowDocument{ID: "../x"}, later)
	require.ErrorIs(t, err, persistence.ErrInvalidWorkflowID)
}
