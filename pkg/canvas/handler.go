package canvas

import (
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/models"
)

// ErrUnknownEvent is returned by Dispatch for an event kind it cannot route.
var ErrUnknownEvent = errors.New("unknown canvas event")

// Mutator is the write side of a graph store.
type Mutator interface {
	AddStep(stepType models.StepType, after string) (string, error)
	UpdateStep(id string, update graph.StepUpdate) error
	DeleteSteps(ids ...string) (int, error)
	Connect(from, to string, branchIndex *int) bool
	Disconnect(from, to string) bool
	Select(id string) bool
	ClearSelection()
}

// Connection is a connect gesture between two anchors.
type Connection struct {
	Source       string `json:"source"       validate:"required"`
	Target       string `json:"target"       validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Handler turns renderer interaction events into graph mutations.
type Handler struct {
	store Mutator
}

// NewHandler binds a handler to a graph store.
func NewHandler(store Mutator) *Handler {
	return &Handler{store: store}
}

// NodeClick selects the clicked step.
func (h *Handler) NodeClick(id string) bool {
	return h.store.Select(id)
}

// PaneClick clears the selection.
func (h *Handler) PaneClick() {
	h.store.ClearSelection()
}

// NodeDragStop stores the final coordinates of a dragged step. Unknown
// steps are ignored.
func (h *Handler) NodeDragStop(id string, pos models.Position) bool {
	return h.store.UpdateStep(id, graph.StepUpdate{Position: &pos}) == nil
}

// Connect wires the gesture's source to its target, using the branch encoded
// in the source anchor when there is one.
func (h *Handler) Connect(c Connection) bool {
	var branch *int
	if index, ok := models.ParseBranchHandle(c.SourceHandle); ok {
		branch = &index
	}

	return h.store.Connect(c.Source, c.Target, branch)
}

// EdgeClick removes the clicked edge once confirm approves it.
func (h *Handler) EdgeClick(e Edge, confirm func(Edge) bool) bool {
	if confirm != nil && !confirm(e) {
		return false
	}

	return h.store.Disconnect(e.Source, e.Target)
}

// PaneDoubleClick creates an action step at pos, which must already be in
// canvas coordinates, and selects it.
func (h *Handler) PaneDoubleClick(pos models.Position) (string, error) {
	id, err := h.store.AddStep(models.StepTypeAction, "")
	if err != nil {
		return "", err
	}

	if err := h.store.UpdateStep(id, graph.StepUpdate{Position: &pos}); err != nil {
		return "", err
	}

	h.store.Select(id)

	return id, nil
}

// NodesDelete deletes the given steps as one edit. Unknown ids are ignored.
// When the batch would remove the last trigger nothing is deleted.
func (h *Handler) NodesDelete(ids ...string) (bool, error) {
	n, err := h.store.DeleteSteps(ids...)

	return n > 0, err
}

// EventKind names a renderer interaction.
type EventKind string

const (
	EventNodeClick       EventKind = "node_click"
	EventPaneClick       EventKind = "pane_click"
	EventNodeDragStop    EventKind = "node_drag_stop"
	EventConnect         EventKind = "connect"
	EventEdgeClick       EventKind = "edge_click"
	EventPaneDoubleClick EventKind = "pane_double_click"
	EventNodesDelete     EventKind = "nodes_delete"
)

// Event is a serialized renderer interaction. Confirmed carries the user's
// answer to the edge removal prompt for edge clicks.
type Event struct {
	Kind       EventKind        `json:"kind"                 validate:"required"`
	NodeID     string           `json:"nodeId,omitempty"`
	NodeIDs    []string         `json:"nodeIds,omitempty"`
	Position   *models.Position `json:"position,omitempty"`
	Connection *Connection      `json:"connection,omitempty"`
	Edge       *Edge            `json:"edge,omitempty"`
	Confirmed  bool             `json:"confirmed,omitempty"`
}

// Result reports what a dispatched event did.
type Result struct {
	Changed       bool   `json:"changed"`
	CreatedStepID string `json:"createdStepId,omitempty"`
}

// Dispatch routes ev to the matching handler method. Events missing the data
// their kind needs are ignored, like any other malformed interaction.
func (h *Handler) Dispatch(ev Event) (Result, error) {
	switch ev.Kind {
	case EventNodeClick:
		return Result{Changed: h.NodeClick(ev.NodeID)}, nil
	case EventPaneClick:
		h.PaneClick()

		return Result{Changed: true}, nil
	case EventNodeDragStop:
		if ev.Position == nil {
			return Result{}, nil
		}

		return Result{Changed: h.NodeDragStop(ev.NodeID, *ev.Position)}, nil
	case EventConnect:
		if ev.Connection == nil {
			return Result{}, nil
		}

		return Result{Changed: h.Connect(*ev.Connection)}, nil
	case EventEdgeClick:
		if ev.Edge == nil {
			return Result{}, nil
		}

		confirmed := ev.Confirmed

		return Result{Changed: h.EdgeClick(*ev.Edge, func(Edge) bool { return confirmed })}, nil
	case EventPaneDoubleClick:
		if ev.Position == nil {
			return Result{}, nil
		}

		id, err := h.PaneDoubleClick(*ev.Position)
		if err != nil {
			return Result{}, err
		}

		return Result{Changed: true, CreatedStepID: id}, nil
	case EventNodesDelete:
		ids := ev.NodeIDs
		if len(ids) == 0 && ev.NodeID != "" {
			ids = []string{ev.NodeID}
		}

		changed, err := h.NodesDelete(ids...)

		return Result{Changed: changed}, err
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}
}
