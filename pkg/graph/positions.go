package graph

import "github.com/dukex/stepflow/pkg/models"

// Default placement of steps that were never positioned. This only keeps new
// steps from stacking on top of each other; it is not a layout algorithm.
const (
	triggerX = 250
	triggerY = 50

	baseX   = 100
	spreadX = 300
	baseY   = 100
	stepY   = 150
)

// Position returns where the step is drawn: its explicit position, or a
// default computed on first request and kept for the rest of the session so
// the step does not jump between renders.
func (s *Store) Position(id string) (models.Position, bool) {
	step := s.find(id)
	if step == nil {
		return models.Position{}, false
	}

	if step.Position != nil {
		return *step.Position, true
	}

	if p, ok := s.defaults[id]; ok {
		return p, true
	}

	p := s.defaultPosition(step)
	s.defaults[id] = p

	return p, true
}

func (s *Store) defaultPosition(step *models.Step) models.Position {
	if step.Type == models.StepTypeTrigger {
		return models.Position{X: triggerX, Y: triggerY}
	}

	return models.Position{
		X: baseX + s.random()*spreadX,
		Y: baseY + float64(s.seq[step.ID])*stepY,
	}
}
