package templates

import (
	"fmt"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

type hclFile struct {
	Workflow hclWorkflow `hcl:"workflow,block"`
}

type hclWorkflow struct {
	Name        string     `hcl:"name,label"`
	Description string     `hcl:"description,optional"`
	Steps       []*hclStep `hcl:"step,block"`
}

type hclStep struct {
	Type     string       `hcl:"type,label"`
	ID       string       `hcl:"id,label"`
	Name     *string      `hcl:"name,optional"`
	Next     string       `hcl:"next,optional"`
	Config   cty.Value    `hcl:"config,optional"`
	Position *hclPosition `hcl:"position,block"`
	Branches []*hclBranch `hcl:"branch,block"`
}

type hclPosition struct {
	X float64 `hcl:"x"`
	Y float64 `hcl:"y"`
}

type hclBranch struct {
	Condition string `hcl:"condition,label"`
	Next      string `hcl:"next,optional"`
}

// ParseHCL decodes a workflow written in HCL. Attributes left out of a step
// fall back to the defaults of its type.
func ParseHCL(src []byte, filename string) (*models.WorkflowDocument, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrInvalidDocument, filename, diags)
	}

	var parsed hclFile

	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to decode %s: %w", ErrInvalidDocument, filename, diags)
	}

	doc := &models.WorkflowDocument{
		Name:        parsed.Workflow.Name,
		Description: parsed.Workflow.Description,
		Steps:       make([]*models.Step, 0, len(parsed.Workflow.Steps)),
	}

	for _, block := range parsed.Workflow.Steps {
		step, err := block.step()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: step %q: %w", ErrInvalidDocument, filename, block.ID, err)
		}

		doc.Steps = append(doc.Steps, step)
	}

	return doc, nil
}

func (b *hclStep) step() (*models.Step, error) {
	stepType, err := models.ParseStepType(b.Type)
	if err != nil {
		return nil, err
	}

	step := &models.Step{
		ID:         b.ID,
		Type:       stepType,
		Name:       stepType.DefaultName(),
		Config:     stepType.DefaultConfig(),
		NextStepID: b.Next,
		Branches:   stepType.DefaultBranches(),
	}

	if b.Name != nil {
		step.Name = *b.Name
	}

	if !b.Config.IsNull() {
		config, err := ctyToNative(b.Config)
		if err != nil {
			return nil, err
		}

		m, ok := config.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config must be an object, got %s", b.Config.Type().FriendlyName())
		}

		step.Config = m
	}

	if b.Position != nil {
		step.Position = &models.Position{X: b.Position.X, Y: b.Position.Y}
	}

	if len(b.Branches) > 0 {
		step.Branches = make([]models.Branch, 0, len(b.Branches))
		for _, br := range b.Branches {
			step.Branches = append(step.Branches, models.Branch{Condition: br.Condition, NextStepID: br.Next})
		}
	}

	return step, nil
}

// ctyToNative converts a decoded HCL value into plain Go values: strings,
// float64, bool, []any and map[string]any.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()

	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number: %w", err)
		}

		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())

		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()

			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}

			out = append(out, native)
		}

		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())

		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()

			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}

			out[key.AsString()] = native
		}

		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %s", ty.FriendlyName())
	}
}
