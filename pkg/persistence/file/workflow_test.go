package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleWorkflow() *models.WorkflowDocument {
	return &models.WorkflowDocument{
		Name:        "Lead nurture",
		Description: "Follow up on new leads",
		Steps: []*models.Step{
			{ID: "t", Type: models.StepTypeTrigger, Name: "New lead", Config: map[string]any{"event": "lead.created"}, NextStepID: "c"},
			{
				ID:   "c",
				Type: models.StepTypeCondition,
				Name: "Qualified?",
				Config: map[string]any{
					"field": "score", "operator": "greater_than", "value": "50",
				},
				Branches: []models.Branch{{Condition: "Yes", NextStepID: "a"}, {Condition: "No"}},
			},
			{ID: "a", Type: models.StepTypeAction, Name: "Notify", Position: &models.Position{X: 10, Y: 20}},
		},
	}
}

func TestPersistence_SaveAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := file.NewPersistence("file://" + t.TempDir())

	doc := sampleWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, doc))
	require.NotEmpty(t, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	loaded, err := p.WorkflowByID(ctx, doc.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(doc, loaded); diff != "" {
		t.Errorf("loaded workflow mismatch (-want +got):\n%s", diff)
	}
}

func TestPersistence_UpdateKeepsCreatedAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	doc := sampleWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, doc))
	created := doc.CreatedAt

	time.Sleep(time.Millisecond)

	doc.Name = "Renamed"
	require.NoError(t, p.SaveWorkflow(ctx, doc))

	loaded, err := p.WorkflowByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	assert.True(t, created.Equal(loaded.CreatedAt))
	assert.True(t, loaded.UpdatedAt.After(created))
}

func TestPersistence_Workflows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	empty, err := p.Workflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	first := sampleWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, first))

	time.Sleep(time.Millisecond)

	second := sampleWorkflow()
	second.Name = "Second"
	require.NoError(t, p.SaveWorkflow(ctx, second))

	all, err := p.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "most recently updated first")
	assert.Equal(t, first.ID, all[1].ID)
}

func TestPersistence_NotFoundAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())

	_, err := p.WorkflowByID(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	doc := sampleWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, doc))
	require.NoError(t, p.DeleteWorkflow(ctx, doc.ID))
	require.NoError(t, p.DeleteWorkflow(ctx, doc.ID), "deleting twice is fine")

	_, err = p.WorkflowByID(ctx, doc.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestPersistence_RejectsTraversal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	p := file.NewPersistence(root)

	_, err := p.WorkflowByID(ctx, "../secret")
	require.ErrorIs(t, err, persistence.ErrInvalidWorkflowID)

	doc := sampleWorkflow()
	doc.ID = "../escape"
	require.ErrorIs(t, p.SaveWorkflow(ctx, doc), persistence.ErrInvalidWorkflowID)

	_, statErr := os.Stat(filepath.Join(root, "escape.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	assert.NoError(t, file.NewPersistence(t.TempDir()).HealthCheck(ctx))
	assert.ErrorIs(t, file.NewPersistence(filepath.Join(t.TempDir(), "nope")).HealthCheck(ctx), os.ErrNotExist)
}
