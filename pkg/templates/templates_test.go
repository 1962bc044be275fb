package templates_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHCL(t *testing.T) {
	t.Parallel()

	doc, err := templates.ParseFile(filepath.Join("testdata", "lead-nurture.hcl"))
	require.NoError(t, err)

	assert.Equal(t, "Lead nurture", doc.Name)
	assert.Equal(t, "Qualify new leads and follow up", doc.Description)
	require.Len(t, doc.Steps, 4)

	trigger := doc.Steps[0]
	assert.Equal(t, models.StepTypeTrigger, trigger.Type)
	assert.Equal(t, "c1", trigger.NextStepID)
	assert.Equal(t, map[string]any{"event": "lead.created"}, trigger.Config)

	cond := doc.Steps[1]
	assert.Equal(t, []models.Branch{
		{Condition: "Yes", NextStepID: "a1"},
		{Condition: "No", NextStepID: "d1"},
	}, cond.Branches)

	action := doc.Steps[2]
	assert.Equal(t, map[string]any{
		"action":   "send_message",
		"channels": []any{"email", "slack"},
		"urgent":   true,
	}, action.Config)
	assert.Equal(t, &models.Position{X: 400, Y: 300}, action.Position)

	delay := doc.Steps[3]
	assert.Equal(t, "New Delay", delay.Name, "missing name falls back to the type default")
	assert.InDelta(t, 3.0, delay.Config["duration"], 0)
	assert.Nil(t, delay.Position)

	store, err := graph.FromDocument(doc)
	require.NoError(t, err)
	assert.Len(t, store.Connections(), 3)
}

func TestParseHCL_Defaults(t *testing.T) {
	t.Parallel()

	src := []byte(`
workflow "Minimal" {
  step "trigger" "t" {}
  step "condition" "c" {}
}
`)

	doc, err := templates.ParseHCL(src, "minimal.hcl")
	require.NoError(t, err)
	require.Len(t, doc.Steps, 2)

	assert.Equal(t, models.StepTypeTrigger.DefaultConfig(), doc.Steps[0].Config)
	assert.Equal(t, models.StepTypeCondition.DefaultBranches(), doc.Steps[1].Branches)
}

func TestParseHCL_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{name: "syntax", src: `workflow "x" {`},
		{name: "no workflow", src: `step "trigger" "t" {}`},
		{name: "unknown type", src: `workflow "x" { step "webhook" "w" {} }`},
		{name: "scalar config", src: `workflow "x" { step "action" "a" { config = "nope" } }`},
		{name: "unknown attribute", src: `workflow "x" { step "action" "a" { color = "red" } }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := templates.ParseHCL([]byte(tt.src), tt.name+".hcl")
			require.ErrorIs(t, err, templates.ErrInvalidDocument)
		})
	}
}

func TestValidateJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "valid", raw: `{"name":"x","steps":[{"id":"t","type":"trigger"}]}`},
		{name: "not json", raw: `{`, wantErr: true},
		{name: "missing name", raw: `{"steps":[{"id":"t","type":"trigger"}]}`, wantErr: true},
		{name: "no steps", raw: `{"name":"x","steps":[]}`, wantErr: true},
		{name: "bad step type", raw: `{"name":"x","steps":[{"id":"t","type":"webhook"}]}`, wantErr: true},
		{name: "bad position", raw: `{"name":"x","steps":[{"id":"t","type":"trigger","position":{"x":"1"}}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := templates.ValidateJSON([]byte(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, templates.ErrInvalidDocument)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	lib, err := templates.Load("testdata")
	require.NoError(t, err)

	assert.Equal(t, []templates.Summary{
		{Key: "lead-nurture", Name: "Lead nurture", Description: "Qualify new leads and follow up", Steps: 4},
		{Key: "welcome", Name: "Welcome series", Description: "Greets new customers", Steps: 2},
	}, lib.List())

	doc, err := lib.Instantiate("welcome")
	require.NoError(t, err)
	assert.Empty(t, doc.ID)

	doc.Steps[0].Name = "changed"

	again, err := lib.Instantiate("welcome")
	require.NoError(t, err)
	assert.Equal(t, "Signed up", again.Steps[0].Name, "instances never share steps")

	_, err = lib.Instantiate("missing")
	require.ErrorIs(t, err, templates.ErrTemplateNotFound)
}

func TestLoad_InvalidTemplateFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"name":""}`), 0o600))

	_, err := templates.Load(dir)
	require.ErrorIs(t, err, templates.ErrInvalidDocument)

	lib, err := templates.Load("")
	require.NoError(t, err)
	assert.Empty(t, lib.List())
}
