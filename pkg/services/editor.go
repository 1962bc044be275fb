package services

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dukex/stepflow/pkg/canvas"
	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/export"
	"github.com/dukex/stepflow/pkg/graph"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/templates"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultWorkflowName = "Untitled Workflow"

// Option configures an Editor.
type Option func(*Editor)

func WithTemplates(library *templates.Library) Option {
	return func(e *Editor) {
		e.templates = library
	}
}

// WithExporter makes Export also write the file to disk.
func WithExporter(exporter *export.Exporter) Option {
	return func(e *Editor) {
		e.exporter = exporter
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Editor) {
		e.tracer = tracer
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithPublisher sets where editor notifications go. Without one they are
// only logged.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Editor) {
		e.publisher = publisher
	}
}

// WithStoreOptions passes options to every graph store the editor creates.
func WithStoreOptions(opts ...graph.Option) Option {
	return func(e *Editor) {
		e.storeOptions = append(e.storeOptions, opts...)
	}
}

// Editor owns the open editing sessions, one graph store per workflow.
type Editor struct {
	persistence  persistence.Persistence
	publisher    eventbus.EventPublisher
	templates    *templates.Library
	exporter     *export.Exporter
	tracer       trace.Tracer
	logger       *slog.Logger
	storeOptions []graph.Option

	mu       sync.Mutex
	sessions map[string]*session
}

// session serialises requests against one graph store.
type session struct {
	mu        sync.Mutex
	store     *graph.Store
	canvas    *canvas.Handler
	createdAt time.Time
}

func newSession(store *graph.Store, createdAt time.Time) *session {
	return &session{
		store:     store,
		canvas:    canvas.NewHandler(store),
		createdAt: createdAt,
	}
}

// NewEditor creates an editor backed by p.
func NewEditor(p persistence.Persistence, opts ...Option) *Editor {
	e := &Editor{
		persistence: p,
		templates:   templates.NewLibrary(),
		tracer:      otel.Tracer("stepflow"),
		logger:      slog.Default(),
		sessions:    make(map[string]*session),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("module", "editor")

	return e
}

// Snapshot is the state of an editing session.
type Snapshot struct {
	Workflow    models.WorkflowDocument `json:"workflow"`
	Connections []models.Connection     `json:"connections"`
	Selection   graph.Selection         `json:"selection"`
	Dirty       bool                    `json:"dirty"`
}

func (s *session) snapshot() Snapshot {
	doc := s.store.Document()
	doc.CreatedAt = s.createdAt

	return Snapshot{
		Workflow:    doc,
		Connections: s.store.Connections(),
		Selection:   s.store.Selection(),
		Dirty:       s.store.Dirty(),
	}
}

// CreateRequest starts a new workflow, blank or from a template.
type CreateRequest struct {
	Name        string `json:"name"        validate:"omitempty,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Template    string `json:"template"    validate:"omitempty"`
}

// Create opens a session for a new, unsaved workflow. A blank workflow starts
// with a single trigger step.
func (e *Editor) Create(ctx context.Context, req CreateRequest) (Snapshot, error) {
	_, span := otelhelper.StartSpan(ctx, e.tracer, "editor.Create",
		attribute.String(otelhelper.WorkflowNameKey, req.Name))
	defer span.End()

	id, err := newWorkflowID()
	if err != nil {
		otelhelper.SetError(span, err)

		return Snapshot{}, err
	}

	var store *graph.Store

	if req.Template != "" {
		doc, err := e.templates.Instantiate(req.Template)
		if err != nil {
			otelhelper.SetError(span, err)

			return Snapshot{}, err
		}

		doc.ID = id

		store, err = graph.FromDocument(doc, e.storeOptions...)
		if err != nil {
			otelhelper.SetError(span, err)

			return Snapshot{}, fmt.Errorf("template %s: %w", req.Template, err)
		}

		if req.Name != "" {
			store.Rename(req.Name, req.Description)
		}

		store.MarkDirty()
	} else {
		name := req.Name
		if name == "" {
			name = defaultWorkflowName
		}

		store = graph.NewWorkflow(name, e.storeOptions...)
		store.SetID(id)
		store.Rename(name, req.Description)
	}

	s := e.register(id, newSession(store, time.Time{}))

	span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, id))
	e.logger.InfoContext(ctx, "Created workflow", "workflow_id", id, "template", req.Template)

	return s.snapshot(), nil
}

// Open returns the session of a workflow, loading it from persistence when it
// is not open yet.
func (e *Editor) Open(ctx context.Context, id string) (Snapshot, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "editor.Open",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	if s, ok := e.lookup(id); ok {
		s.mu.Lock()
		defer s.mu.Unlock()

		return s.snapshot(), nil
	}

	doc, err := e.persistence.WorkflowByID(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return Snapshot{}, err
	}

	store, err := graph.FromDocument(doc, e.storeOptions...)
	if err != nil {
		otelhelper.SetError(span, err)

		return Snapshot{}, fmt.Errorf("stored workflow %s: %w", id, err)
	}

	s := e.register(id, newSession(store, doc.CreatedAt))

	s.mu.Lock()
	defer s.mu.Unlock()

	e.logger.InfoContext(ctx, "Opened workflow", "workflow_id", id, "steps", store.Len())

	return s.snapshot(), nil
}

// Import opens a session for a JSON workflow document under a new id. The
// imported workflow is unsaved.
func (e *Editor) Import(ctx context.Context, raw []byte) (Snapshot, error) {
	_, span := otelhelper.StartSpan(ctx, e.tracer, "editor.Import")
	defer span.End()

	if len(raw) == 0 {
		err := NewValidationError("Import", "empty_document", "workflow document is empty", ErrInvalidRequest)
		otelhelper.SetError(span, err)

		return Snapshot{}, err
	}

	doc, err := templates.ParseJSON(raw)
	if err != nil {
		otelhelper.SetError(span, err)

		return Snapshot{}, err
	}

	id, err := newWorkflowID()
	if err != nil {
		otelhelper.SetError(span, err)

		return Snapshot{}, err
	}

	doc.ID = id

	store, err := graph.FromDocument(doc, e.storeOptions...)
	if err != nil {
		otelhelper.SetError(span, err)

		return Snapshot{}, err
	}

	store.MarkDirty()

	s := e.register(id, newSession(store, time.Time{}))

	span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, id))
	e.logger.InfoContext(ctx, "Imported workflow", "workflow_id", id, "steps", store.Len())

	return s.snapshot(), nil
}

// Snapshot returns the state of an open session.
func (e *Editor) Snapshot(id string) (Snapshot, error) {
	s, err := e.session(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot(), nil
}

// Close drops a session. Unsaved edits are discarded.
func (e *Editor) Close(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sessions[id]; !ok {
		return sessionNotFound("Close", id)
	}

	delete(e.sessions, id)
	e.logger.Info("Closed workflow", "workflow_id", id)

	return nil
}

// DirtySessions returns the ids of open workflows with unsaved changes.
func (e *Editor) DirtySessions() []string {
	e.mu.Lock()
	ids := slices.Sorted(maps.Keys(e.sessions))
	e.mu.Unlock()

	var dirty []string

	for _, id := range ids {
		s, ok := e.lookup(id)
		if !ok {
			continue
		}

		s.mu.Lock()
		if s.store.Dirty() {
			dirty = append(dirty, id)
		}
		s.mu.Unlock()
	}

	return dirty
}

// register stores s under id, keeping an existing session if a concurrent
// Open won the race.
func (e *Editor) register(id string, s *session) *session {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.sessions[id]; ok {
		return existing
	}

	e.sessions[id] = s

	return s
}

func (e *Editor) lookup(id string) (*session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]

	return s, ok
}

func (e *Editor) session(id string) (*session, error) {
	s, ok := e.lookup(id)
	if !ok {
		return nil, sessionNotFound("session", id)
	}

	return s, nil
}

func sessionNotFound(op, id string) error {
	return &ServiceError{Op: op, Code: "session_not_found", Message: "workflow " + id + " is not open", Err: ErrSessionNotFound}
}

func newWorkflowID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate workflow ID: %w", err)
	}

	return id.String(), nil
}
