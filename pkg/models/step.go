// Package models defines the core domain models for the workflow automation graph editor.
package models

import "fmt"

// StepType identifies the kind of a workflow step. The set is closed.
type StepType string

const (
	StepTypeTrigger     StepType = "trigger"
	StepTypeAction      StepType = "action"
	StepTypeCondition   StepType = "condition"
	StepTypeDelay       StepType = "delay"
	StepTypeIntegration StepType = "integration"
	StepTypeBranch      StepType = "branch"
)

// StepTypes lists every step type in palette order.
func StepTypes() []StepType {
	return []StepType{
		StepTypeTrigger,
		StepTypeAction,
		StepTypeCondition,
		StepTypeDelay,
		StepTypeIntegration,
		StepTypeBranch,
	}
}

// ParseStepType converts a raw string into a StepType.
func ParseStepType(raw string) (StepType, error) {
	t := StepType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("unknown step type %q", raw)
	}

	return t, nil
}

// Valid reports whether t is one of the known step types.
func (t StepType) Valid() bool {
	switch t {
	case StepTypeTrigger, StepTypeAction, StepTypeCondition,
		StepTypeDelay, StepTypeIntegration, StepTypeBranch:
		return true
	default:
		return false
	}
}

// IsBranching reports whether steps of this type route through Branches
// instead of NextStepID.
func (t StepType) IsBranching() bool {
	switch t {
	case StepTypeCondition:
		return true
	case StepTypeTrigger, StepTypeAction, StepTypeDelay, StepTypeIntegration, StepTypeBranch:
		return false
	default:
		return false
	}
}

// DefaultName returns the label given to a freshly created step.
func (t StepType) DefaultName() string {
	switch t {
	case StepTypeTrigger:
		return "New Trigger"
	case StepTypeAction:
		return "New Action"
	case StepTypeCondition:
		return "New Condition"
	case StepTypeDelay:
		return "New Delay"
	case StepTypeIntegration:
		return "New Integration"
	case StepTypeBranch:
		return "New Branch"
	default:
		return "New Step"
	}
}

// DefaultConfig returns the type specific payload of a freshly created step.
func (t StepType) DefaultConfig() map[string]any {
	switch t {
	case StepTypeTrigger:
		return map[string]any{"event": "manual"}
	case StepTypeAction:
		return map[string]any{"action": "send_message"}
	case StepTypeCondition:
		return map[string]any{"field": "", "operator": "equals", "value": ""}
	case StepTypeDelay:
		return map[string]any{"duration": 1, "unit": "hours"}
	case StepTypeIntegration:
		return map[string]any{"provider": "webhook"}
	case StepTypeBranch:
		return map[string]any{}
	default:
		return map[string]any{}
	}
}

// DefaultBranches returns the outgoing paths a freshly created step starts with.
func (t StepType) DefaultBranches() []Branch {
	switch t {
	case StepTypeCondition:
		return []Branch{{Condition: "Yes"}, {Condition: "No"}}
	case StepTypeTrigger, StepTypeAction, StepTypeDelay, StepTypeIntegration, StepTypeBranch:
		return nil
	default:
		return nil
	}
}

// Position is a point in canvas space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Branch is one labelled outgoing path of a condition step.
type Branch struct {
	Condition  string `json:"condition"`
	NextStepID string `json:"nextStepId,omitempty"`
}

// Step is a node in the automation graph.
type Step struct {
	ID         string         `json:"id"                   validate:"required"`
	Type       StepType       `json:"type"                 validate:"required,oneof=trigger action condition delay integration branch"`
	Name       string         `json:"name"`
	Config     map[string]any `json:"config,omitempty"`
	Position   *Position      `json:"position,omitempty"`
	NextStepID string         `json:"nextStepId,omitempty"`
	Branches   []Branch       `json:"branches,omitempty"   validate:"omitempty,dive"`
}

// Clone returns a copy of the step that shares no mutable state with s.
// Config is copied one level deep.
func (s *Step) Clone() *Step {
	c := *s

	if s.Config != nil {
		c.Config = make(map[string]any, len(s.Config))
		for k, v := range s.Config {
			c.Config[k] = v
		}
	}

	if s.Position != nil {
		p := *s.Position
		c.Position = &p
	}

	if s.Branches != nil {
		c.Branches = append([]Branch(nil), s.Branches...)
	}

	return &c
}
