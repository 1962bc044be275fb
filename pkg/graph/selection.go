package graph

// Selection is the step currently selected in the editor. The zero value
// means nothing is selected.
type Selection struct {
	StepID string `json:"stepId,omitempty"`
}

// None reports whether nothing is selected.
func (s Selection) None() bool {
	return s.StepID == ""
}

// Selection returns the current selection.
func (s *Store) Selection() Selection {
	return s.selection
}

// Select selects a live step. Unknown ids leave the selection unchanged.
func (s *Store) Select(id string) bool {
	if s.find(id) == nil {
		return false
	}

	s.selection = Selection{StepID: id}

	return true
}

// ClearSelection deselects whatever is selected.
func (s *Store) ClearSelection() {
	s.selection = Selection{}
}
