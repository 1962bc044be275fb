// Package graph holds the editable workflow graph: an ordered collection of
// typed steps and the connections between them.
//
// The connection list is the single source of truth for links. NextStepID and
// Branches[i].NextStepID are never stored on steps; every read projects them
// from the edges, so the two representations cannot drift apart.
package graph

import (
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/dukex/stepflow/pkg/connections"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/google/uuid"
)

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the step id generator. Ids already used in the
// session are skipped, so the generator only has to be unlikely to collide.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// WithRand sets the random source used for default positions.
func WithRand(r *rand.Rand) Option {
	return func(s *Store) {
		s.random = r.Float64
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// StepUpdate carries the fields UpdateStep merges into a step. Nil fields are
// left untouched.
type StepUpdate struct {
	Name     *string
	Config   map[string]any
	Position *models.Position
}

// Store is the authoritative workflow graph of one editing session. It is
// single-writer and not safe for concurrent use.
type Store struct {
	id          string
	name        string
	description string

	steps    []*models.Step
	seq      map[string]int
	nextSeq  int
	used     map[string]struct{}
	defaults map[string]models.Position

	conns     *connections.Manager[string]
	selection Selection
	dirty     bool

	newID  func() string
	random func() float64
	logger *slog.Logger
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		seq:      make(map[string]int),
		used:     make(map[string]struct{}),
		defaults: make(map[string]models.Position),
		newID:    uuid.NewString,
		random:   rand.Float64,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.conns = connections.NewManager(
		connections.WithValidator(func(source, target string) bool {
			return s.find(source) != nil && s.find(target) != nil
		}),
		connections.WithIDFunc(models.ConnectionID),
		connections.WithOnAdded(func(e connections.Edge[string]) {
			s.logger.Debug("connection added", "source", e.Source, "target", e.Target, "handle", e.Handle)
		}),
		connections.WithOnRemoved(func(removed []connections.Edge[string]) {
			s.logger.Debug("connections removed", "count", len(removed))
		}),
	)

	return s
}

// NewWorkflow creates the store of a brand-new workflow: a single trigger step.
func NewWorkflow(name string, opts ...Option) *Store {
	s := New(opts...)
	s.name = name

	trigger := s.createStep(models.StepTypeTrigger)
	s.steps = append(s.steps, trigger)
	s.dirty = true

	return s
}

// ID returns the workflow id the store was loaded with, if any.
func (s *Store) ID() string {
	return s.id
}

// SetID records the workflow id, typically after the first save.
func (s *Store) SetID(id string) {
	s.id = id
}

// Name returns the workflow name.
func (s *Store) Name() string {
	return s.name
}

// Description returns the workflow description.
func (s *Store) Description() string {
	return s.description
}

// Rename changes the workflow name and description.
func (s *Store) Rename(name, description string) {
	s.name = name
	s.description = description
	s.dirty = true
}

// Dirty reports whether the graph changed since it was loaded or last saved.
func (s *Store) Dirty() bool {
	return s.dirty
}

// Len returns the number of steps.
func (s *Store) Len() int {
	return len(s.steps)
}

// AddStep creates a step of the given type with type defaults and returns its
// id. When after names a non-branching step, the new step is connected as its
// successor. Branching steps are wired branch by branch, never automatically,
// on either end of the edge.
func (s *Store) AddStep(stepType models.StepType, after string) (string, error) {
	if !stepType.Valid() {
		return "", &StepError{Op: "AddStep", Err: ErrInvalidStepType}
	}

	if stepType == models.StepTypeTrigger && s.triggerCount() > 0 {
		return "", &StepError{Op: "AddStep", Err: ErrTriggerExists}
	}

	step := s.createStep(stepType)
	s.steps = append(s.steps, step)
	s.dirty = true

	if after != "" && !stepType.IsBranching() {
		if prev := s.find(after); prev != nil && !prev.Type.IsBranching() {
			s.link(after, step.ID, "")
		}
	}

	s.logger.Debug("step added", "step_id", step.ID, "type", stepType, "after", after)

	return step.ID, nil
}

func (s *Store) createStep(stepType models.StepType) *models.Step {
	step := &models.Step{
		ID:       s.allocateID(),
		Type:     stepType,
		Name:     stepType.DefaultName(),
		Config:   stepType.DefaultConfig(),
		Branches: stepType.DefaultBranches(),
	}
	s.track(step.ID)

	return step
}

func (s *Store) allocateID() string {
	for {
		id := s.newID()
		if _, taken := s.used[id]; !taken && id != "" {
			return id
		}
	}
}

func (s *Store) track(id string) {
	s.used[id] = struct{}{}
	s.seq[id] = s.nextSeq
	s.nextSeq++
}

// Connect links from -> to. branchIndex selects the branch of a condition
// step and must be nil for every other step type. Self loops, unknown steps,
// missing or out of range branches and duplicates are ignored and reported as
// false. A branch, or the single output of a non-branching step, holds at most
// one edge: connecting it again replaces the previous target.
func (s *Store) Connect(from, to string, branchIndex *int) bool {
	source := s.find(from)
	if source == nil || s.find(to) == nil || from == to {
		return false
	}

	handle := ""

	switch {
	case branchIndex != nil:
		if !source.Type.IsBranching() || *branchIndex < 0 || *branchIndex >= len(source.Branches) {
			return false
		}

		handle = models.BranchHandle(*branchIndex)
	case source.Type.IsBranching():
		return false
	}

	if s.conns.Has(from, to, handle) {
		return false
	}

	return s.link(from, to, handle)
}

func (s *Store) link(from, to, handle string) bool {
	s.conns.RemoveFrom(from, handle)

	if _, ok := s.conns.Add(from, to, handle); !ok {
		return false
	}

	s.dirty = true

	return true
}

// Disconnect removes every edge from -> to, whichever branch it leaves from.
func (s *Store) Disconnect(from, to string) bool {
	if !s.conns.RemoveAny(from, to) {
		return false
	}

	s.dirty = true

	return true
}

// UpdateStep merges the non-nil fields of update into the step. Connections
// are never touched.
func (s *Store) UpdateStep(id string, update StepUpdate) error {
	step := s.find(id)
	if step == nil {
		return &StepError{Op: "UpdateStep", StepID: id, Err: ErrStepNotFound}
	}

	if update.Name != nil {
		step.Name = *update.Name
	}

	if update.Config != nil {
		step.Config = maps.Clone(update.Config)
	}

	if update.Position != nil {
		p := *update.Position
		step.Position = &p
	}

	s.dirty = true

	return nil
}

// DeleteStep removes a step together with every edge touching it and clears
// the selection when it pointed at the step. Deleting the only trigger is
// rejected and leaves the graph unchanged.
func (s *Store) DeleteStep(id string) error {
	idx := slices.IndexFunc(s.steps, func(step *models.Step) bool { return step.ID == id })
	if idx < 0 {
		return &StepError{Op: "DeleteStep", StepID: id, Err: ErrStepNotFound}
	}

	if s.steps[idx].Type == models.StepTypeTrigger && s.triggerCount() == 1 {
		return &StepError{Op: "DeleteStep", StepID: id, Err: ErrLastTrigger}
	}

	s.steps = slices.Delete(s.steps, idx, idx+1)
	delete(s.defaults, id)

	s.conns.PruneForNodes(s.liveIDs())

	if s.selection.StepID == id {
		s.selection = Selection{}
	}

	s.dirty = true
	s.logger.Debug("step deleted", "step_id", id)

	return nil
}

// DeleteSteps removes several steps as one edit and returns how many were
// removed. Unknown and repeated ids are skipped. A batch that would remove
// every trigger is rejected as a whole and leaves the graph unchanged.
func (s *Store) DeleteSteps(ids ...string) (int, error) {
	batch := make(map[string]struct{}, len(ids))
	order := make([]string, 0, len(ids))
	remaining := s.triggerCount()

	var lastTrigger string

	for _, id := range ids {
		if _, seen := batch[id]; seen {
			continue
		}

		step := s.find(id)
		if step == nil {
			continue
		}

		batch[id] = struct{}{}
		order = append(order, id)

		if step.Type == models.StepTypeTrigger {
			remaining--
			lastTrigger = id
		}
	}

	if lastTrigger != "" && remaining == 0 {
		return 0, &StepError{Op: "DeleteSteps", StepID: lastTrigger, Err: ErrLastTrigger}
	}

	for i, id := range order {
		if err := s.DeleteStep(id); err != nil {
			return i, err
		}
	}

	return len(order), nil
}

// Step returns a copy of the step with its links projected from the edges.
func (s *Store) Step(id string) (*models.Step, bool) {
	step := s.find(id)
	if step == nil {
		return nil, false
	}

	return s.project(step), true
}

// Steps returns copies of every step in creation order.
func (s *Store) Steps() []*models.Step {
	out := make([]*models.Step, 0, len(s.steps))
	for _, step := range s.steps {
		out = append(out, s.project(step))
	}

	return out
}

// Connections returns the edge list.
func (s *Store) Connections() []models.Connection {
	edges := s.conns.Edges()

	out := make([]models.Connection, 0, len(edges))
	for _, e := range edges {
		out = append(out, toConnection(e))
	}

	return out
}

// ConnectionsFrom returns the edges leaving id.
func (s *Store) ConnectionsFrom(id string) []models.Connection {
	var out []models.Connection
	for _, e := range s.conns.EdgesFrom(id) {
		out = append(out, toConnection(e))
	}

	return out
}

// ConnectionsTo returns the edges entering id.
func (s *Store) ConnectionsTo(id string) []models.Connection {
	var out []models.Connection
	for _, e := range s.conns.EdgesTo(id) {
		out = append(out, toConnection(e))
	}

	return out
}

func toConnection(e connections.Edge[string]) models.Connection {
	return models.Connection{
		ID:           e.ID,
		Source:       e.Source,
		Target:       e.Target,
		SourceHandle: e.Handle,
	}
}

// Document returns the reconciled serializable form of the graph.
func (s *Store) Document() models.WorkflowDocument {
	return models.WorkflowDocument{
		ID:          s.id,
		Name:        s.name,
		Description: s.description,
		Steps:       s.Steps(),
	}
}

// Save reconciles the step links with the edge list, marks the store clean
// and returns the document to hand to persistence. A failed persistence call
// should be followed by MarkDirty; the in-memory graph is never rolled back.
func (s *Store) Save() models.WorkflowDocument {
	doc := s.Document()
	s.dirty = false

	return doc
}

// MarkDirty flags the graph as having unsaved changes.
func (s *Store) MarkDirty() {
	s.dirty = true
}

// project copies step and fills NextStepID, or the branch targets for a
// branching step, from the first matching edge.
func (s *Store) project(step *models.Step) *models.Step {
	out := step.Clone()
	out.NextStepID = ""

	edges := s.conns.EdgesFrom(step.ID)

	if step.Type.IsBranching() {
		for i := range out.Branches {
			out.Branches[i].NextStepID = ""

			handle := models.BranchHandle(i)
			for _, e := range edges {
				if e.Handle == handle {
					out.Branches[i].NextStepID = e.Target

					break
				}
			}
		}

		return out
	}

	for _, e := range edges {
		if e.Handle == "" {
			out.NextStepID = e.Target

			break
		}
	}

	return out
}

func (s *Store) find(id string) *models.Step {
	for _, step := range s.steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}

func (s *Store) liveIDs() map[string]struct{} {
	live := make(map[string]struct{}, len(s.steps))
	for _, step := range s.steps {
		live[step.ID] = struct{}{}
	}

	return live
}

func (s *Store) triggerCount() int {
	n := 0

	for _, step := range s.steps {
		if step.Type == models.StepTypeTrigger {
			n++
		}
	}

	return n
}
