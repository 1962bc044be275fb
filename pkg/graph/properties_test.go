package graph_test

import (
	"math/rand/v2"
	"testing"

	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomEdits applies n random edits to store, drawing ids from the live steps
// and occasionally from ids that never existed or were deleted.
func randomEdits(t *testing.T, store *graph.Store, r *rand.Rand, n int) {
	t.Helper()

	types := models.StepTypes()
	pick := func() string {
		steps := store.Steps()
		if len(steps) == 0 || r.IntN(10) == 0 {
			return "ghost"
		}

		return steps[r.IntN(len(steps))].ID
	}

	for range n {
		switch r.IntN(6) {
		case 0, 1:
			_, _ = store.AddStep(types[r.IntN(len(types))], pick())
		case 2:
			var branch *int
			if r.IntN(2) == 0 {
				b := r.IntN(3)
				branch = &b
			}

			store.Connect(pick(), pick(), branch)
		case 3:
			store.Disconnect(pick(), pick())
		case 4:
			_ = store.DeleteStep(pick())
		case 5:
			store.Select(pick())
		}

		assertConsistent(t, store)
	}
}

func assertConsistent(t *testing.T, store *graph.Store) {
	t.Helper()

	steps := store.Steps()
	live := make(map[string]*models.Step, len(steps))
	triggers := 0

	for _, step := range steps {
		live[step.ID] = step

		if step.Type == models.StepTypeTrigger {
			triggers++
		}
	}

	require.GreaterOrEqual(t, triggers, 1, "a trigger always survives")

	conns := store.Connections()
	for _, c := range conns {
		require.Contains(t, live, c.Source, "dangling source in %+v", c)
		require.Contains(t, live, c.Target, "dangling target in %+v", c)
		require.NotEqual(t, c.Source, c.Target)
	}

	if sel := store.Selection(); !sel.None() {
		require.Contains(t, live, sel.StepID, "selection points at a deleted step")
	}

	for _, step := range steps {
		outgoing := store.ConnectionsFrom(step.ID)

		if step.Type.IsBranching() {
			require.Empty(t, step.NextStepID)

			for i, branch := range step.Branches {
				handle := models.BranchHandle(i)

				var targets []string
				for _, c := range outgoing {
					if c.SourceHandle == handle {
						targets = append(targets, c.Target)
					}
				}

				require.LessOrEqual(t, len(targets), 1)

				if branch.NextStepID == "" {
					require.Empty(t, targets)
				} else {
					require.Equal(t, []string{branch.NextStepID}, targets)
				}
			}

			continue
		}

		require.LessOrEqual(t, len(outgoing), 1, "non-branching step %s has several outputs", step.ID)

		if step.NextStepID == "" {
			require.Empty(t, outgoing)
		} else {
			require.Contains(t, live, step.NextStepID)
			require.Equal(t, step.NextStepID, outgoing[0].Target)
			require.Empty(t, outgoing[0].SourceHandle)
		}
	}
}

func TestStore_RandomEditsKeepInvariants(t *testing.T) {
	t.Parallel()

	for seed := range uint64(20) {
		r := rand.New(rand.NewPCG(seed, seed*7+1))
		store := graph.NewWorkflow("fuzz", graph.WithIDGenerator(sequentialIDs()), graph.WithRand(r))

		randomEdits(t, store, r, 200)
	}
}

func TestStore_SaveRoundTrip(t *testing.T) {
	t.Parallel()

	for seed := range uint64(10) {
		r := rand.New(rand.NewPCG(seed+100, seed))
		store := graph.NewWorkflow("round trip", graph.WithIDGenerator(sequentialIDs()), graph.WithRand(r))
		randomEdits(t, store, r, 120)

		doc := store.Save()

		assert.ElementsMatch(t, store.Connections(), doc.Connections(),
			"re-walking the saved steps rebuilds the live edge list")

		reloaded, err := graph.FromDocument(&doc)
		require.NoError(t, err)
		assert.ElementsMatch(t, store.Connections(), reloaded.Connections())
		assert.Equal(t, doc.Steps, reloaded.Document().Steps)
	}
}

func TestStore_DeleteOnlyTriggerAfterRandomEdits(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(42, 42))
	store := graph.NewWorkflow("trigger", graph.WithIDGenerator(sequentialIDs()), graph.WithRand(r))
	randomEdits(t, store, r, 100)

	var trigger string

	for _, step := range store.Steps() {
		if step.Type == models.StepTypeTrigger {
			trigger = step.ID
		}
	}

	before := store.Document()
	beforeConns := store.Connections()

	require.ErrorIs(t, store.DeleteStep(trigger), graph.ErrLastTrigger)
	assert.Equal(t, before, store.Document())
	assert.Equal(t, beforeConns, store.Connections())
}
