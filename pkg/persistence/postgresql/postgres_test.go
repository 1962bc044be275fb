package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/postgresql"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if postgresContainer != nil {
		if err := testcontainers.TerminateContainer(postgresContainer); err != nil {
			slog.Error("Failed to terminate postgres container", "error", err)
		}
	}

	os.Exit(code)
}

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflow_steps", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("stepflow_test"),
			postgres.WithUsername("stepflow"),
			postgres.WithPassword("stepflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func sampleWorkflow() *models.WorkflowDocument {
	return &models.WorkflowDocument{
		Name:        "Lead nurture",
		Description: "Follow up on new leads",
		Steps: []*models.Step{
			{ID: "t", Type: models.StepTypeTrigger, Name: "New lead", Config: map[string]any{"event": "lead.created"}, NextStepID: "c"},
			{
				ID:       "c",
				Type:     models.StepTypeCondition,
				Name:     "Qualified?",
				Config:   map[string]any{"field": "score", "operator": "greater_than", "value": "50"},
				Branches: []models.Branch{{Condition: "Yes", NextStepID: "a"}, {Condition: "No"}},
			},
			{ID: "a", Type: models.StepTypeAction, Name: "Notify", Position: &models.Position{X: 10.5, Y: 20}},
			{ID: "d", Type: models.StepTypeDelay, Name: "Wait", Config: map[string]any{"duration": 2.0, "unit": "days"}},
		},
	}
}

var ignoreTimestamps = cmpopts.IgnoreFields(models.WorkflowDocument{}, "CreatedAt", "UpdatedAt")

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer db.Close()

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	again, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err, "re-running migrations is a no-op")
	require.NoError(t, again.Close(ctx))
}

func TestPersistence_SaveAndLoad(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	doc := sampleWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, doc))
	require.NotEmpty(t, doc.ID)

	loaded, err := p.WorkflowByID(ctx, doc.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(doc, loaded, ignoreTimestamps); diff != "" {
		t.Errorf("loaded workflow mismatch (-want +got):\n%s", diff)
	}

	assert.WithinDuration(t, doc.CreatedAt, loaded.CreatedAt, time.Millisecond)
}

func TestPersistence_SaveReplacesSteps(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	doc := sampleWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, doc))

	doc.Name = "Renamed"
	doc.Steps = doc.Steps[:1]
	doc.Steps[0].NextStepID = ""
	require.NoError(t, p.SaveWorkflow(ctx, doc))

	loaded, err := p.WorkflowByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)
	require.Len(t, loaded.Steps, 1)
	assert.Empty(t, loaded.Steps[0].NextStepID)
}

func TestPersistence_WorkflowsAndDelete(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	first := sampleWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, first))

	second := sampleWorkflow()
	second.Name = "Second"
	require.NoError(t, p.SaveWorkflow(ctx, second))

	all, err := p.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Len(t, all[1].Steps, 4)

	require.NoError(t, p.DeleteWorkflow(ctx, first.ID))
	require.NoError(t, p.DeleteWorkflow(ctx, first.ID))

	_, err = p.WorkflowByID(ctx, first.ID)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	assert.NoError(t, p.HealthCheck(ctx))
}
