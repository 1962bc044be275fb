// Package canvas translates between the workflow graph and the node/edge
// shape consumed by the rendering layer. Everything here is stateless: the
// projection is recomputed from the graph on every change.
package canvas

import (
	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/models"
)

// Source is the read side of a graph store.
type Source interface {
	Steps() []*models.Step
	Connections() []models.Connection
	Selection() graph.Selection
	Position(id string) (models.Position, bool)
}

// NodeData is the payload the renderer passes to the step's visual.
type NodeData struct {
	Label    string          `json:"label"`
	StepType models.StepType `json:"stepType"`
	Config   map[string]any  `json:"config,omitempty"`
	Selected bool            `json:"selected"`
	Branches []string        `json:"branches,omitempty"`
}

// Node is a renderable step.
type Node struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Position models.Position `json:"position"`
	Data     NodeData        `json:"data"`
}

// Edge is a renderable connection. SourceHandle is the anchor on the source
// node and is only set for edges leaving a branch of a condition step.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// Graph is the full renderable projection.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Project returns the renderable nodes and edges of src.
func Project(src Source) Graph {
	steps := src.Steps()

	return Graph{
		Nodes: nodes(src, steps),
		Edges: edges(src, steps),
	}
}

// Nodes returns one renderable node per step.
func Nodes(src Source) []Node {
	return nodes(src, src.Steps())
}

// Edges returns one renderable edge per connection.
func Edges(src Source) []Edge {
	return edges(src, src.Steps())
}

func nodes(src Source, steps []*models.Step) []Node {
	selected := src.Selection()

	out := make([]Node, 0, len(steps))
	for _, step := range steps {
		pos, _ := src.Position(step.ID)

		var branches []string
		for _, b := range step.Branches {
			branches = append(branches, b.Condition)
		}

		out = append(out, Node{
			ID:       step.ID,
			Type:     NodeType(step.Type),
			Position: pos,
			Data: NodeData{
				Label:    step.Name,
				StepType: step.Type,
				Config:   step.Config,
				Selected: selected.StepID == step.ID,
				Branches: branches,
			},
		})
	}

	return out
}

func edges(src Source, steps []*models.Step) []Edge {
	branching := make(map[string]bool, len(steps))
	for _, step := range steps {
		branching[step.ID] = step.Type.IsBranching()
	}

	conns := src.Connections()

	out := make([]Edge, 0, len(conns))
	for _, c := range conns {
		edge := Edge{
			ID:     c.ID,
			Source: c.Source,
			Target: c.Target,
		}

		if branching[c.Source] {
			if _, ok := models.ParseBranchHandle(c.SourceHandle); ok {
				edge.SourceHandle = c.SourceHandle
			}
		}

		out = append(out, edge)
	}

	return out
}

// NodeType names the visual the renderer uses for a step type.
func NodeType(t models.StepType) string {
	switch t {
	case models.StepTypeTrigger:
		return "triggerNode"
	case models.StepTypeAction:
		return "actionNode"
	case models.StepTypeCondition:
		return "conditionNode"
	case models.StepTypeDelay:
		return "delayNode"
	case models.StepTypeIntegration:
		return "integrationNode"
	case models.StepTypeBranch:
		return "branchNode"
	default:
		return "default"
	}
}
