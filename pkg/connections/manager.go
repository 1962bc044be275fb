// Package connections maintains a registry of directed edges between opaque
// node identifiers. It knows nothing about what the nodes are.
package connections

import (
	"fmt"
	"slices"
	"strings"
)

// Edge is a directed edge from Source to Target. Handle optionally names the
// output anchor of Source the edge leaves from.
type Edge[ID comparable] struct {
	ID     string
	Source ID
	Target ID
	Handle string
}

// Option configures a Manager.
type Option[ID comparable] func(*Manager[ID])

// WithValidator installs the predicate every Add must satisfy.
func WithValidator[ID comparable](validate func(source, target ID) bool) Option[ID] {
	return func(m *Manager[ID]) {
		m.validate = validate
	}
}

// WithOnAdded installs a callback fired after an edge has been added.
func WithOnAdded[ID comparable](fn func(Edge[ID])) Option[ID] {
	return func(m *Manager[ID]) {
		m.onAdded = fn
	}
}

// WithOnRemoved installs a callback fired once per Remove call that removed
// at least one edge.
func WithOnRemoved[ID comparable](fn func([]Edge[ID])) Option[ID] {
	return func(m *Manager[ID]) {
		m.onRemoved = fn
	}
}

// WithIDFunc overrides how edge ids are derived from the (source, target,
// handle) triple. The function must be deterministic.
func WithIDFunc[ID comparable](fn func(source, target ID, handle string) string) Option[ID] {
	return func(m *Manager[ID]) {
		m.idFunc = fn
	}
}

// Manager is an ordered list of unique directed edges. Every operation is
// total: invalid requests are absorbed as no-ops. A Manager is not safe for
// concurrent use.
type Manager[ID comparable] struct {
	edges     []Edge[ID]
	validate  func(source, target ID) bool
	onAdded   func(Edge[ID])
	onRemoved func([]Edge[ID])
	idFunc    func(source, target ID, handle string) string
}

// NewManager creates an empty edge registry.
func NewManager[ID comparable](opts ...Option[ID]) *Manager[ID] {
	m := &Manager[ID]{
		idFunc: defaultID[ID],
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func defaultID[ID comparable](source, target ID, handle string) string {
	src := idEscaper.Replace(fmt.Sprint(source))
	dst := idEscaper.Replace(fmt.Sprint(target))

	if handle == "" {
		return "e" + src + "-" + dst
	}

	return "e" + src + "-" + handle + "-" + dst
}

// idEscaper keeps '-' out of node ids so generated edge ids stay unique.
var idEscaper = strings.NewReplacer("~", "~0", "-", "~1")

// Add appends the edge source -> target leaving from handle. It reports false
// without side effects for self loops, duplicates of an existing triple and
// edges the validator rejects.
func (m *Manager[ID]) Add(source, target ID, handle string) (Edge[ID], bool) {
	if source == target {
		return Edge[ID]{}, false
	}

	if m.Has(source, target, handle) {
		return Edge[ID]{}, false
	}

	if m.validate != nil && !m.validate(source, target) {
		return Edge[ID]{}, false
	}

	edge := Edge[ID]{
		ID:     m.idFunc(source, target, handle),
		Source: source,
		Target: target,
		Handle: handle,
	}
	m.edges = append(m.edges, edge)

	if m.onAdded != nil {
		m.onAdded(edge)
	}

	return edge, true
}

// Remove deletes the edge identified by the triple. An empty handle matches
// only handle-less edges.
func (m *Manager[ID]) Remove(source, target ID, handle string) bool {
	return m.removeWhere(func(e Edge[ID]) bool {
		return e.Source == source && e.Target == target && e.Handle == handle
	})
}

// RemoveAny deletes every edge from source to target whatever its handle.
func (m *Manager[ID]) RemoveAny(source, target ID) bool {
	return m.removeWhere(func(e Edge[ID]) bool {
		return e.Source == source && e.Target == target
	})
}

// RemoveFrom deletes every edge leaving source through handle.
func (m *Manager[ID]) RemoveFrom(source ID, handle string) bool {
	return m.removeWhere(func(e Edge[ID]) bool {
		return e.Source == source && e.Handle == handle
	})
}

// PruneForNodes deletes every edge whose source or target is not live.
func (m *Manager[ID]) PruneForNodes(live map[ID]struct{}) bool {
	return m.removeWhere(func(e Edge[ID]) bool {
		_, sourceOK := live[e.Source]
		_, targetOK := live[e.Target]

		return !sourceOK || !targetOK
	})
}

func (m *Manager[ID]) removeWhere(match func(Edge[ID]) bool) bool {
	var removed []Edge[ID]

	kept := m.edges[:0:0]
	for _, e := range m.edges {
		if match(e) {
			removed = append(removed, e)

			continue
		}

		kept = append(kept, e)
	}

	if len(removed) == 0 {
		return false
	}

	m.edges = kept

	if m.onRemoved != nil {
		m.onRemoved(removed)
	}

	return true
}

// ReplaceAll overwrites the registry. It bypasses validation and callbacks
// and is meant for the initial load of persisted data.
func (m *Manager[ID]) ReplaceAll(edges []Edge[ID]) {
	m.edges = slices.Clone(edges)
}

// Has reports whether the exact triple is registered.
func (m *Manager[ID]) Has(source, target ID, handle string) bool {
	return slices.ContainsFunc(m.edges, func(e Edge[ID]) bool {
		return e.Source == source && e.Target == target && e.Handle == handle
	})
}

// Edges returns a copy of every edge in insertion order.
func (m *Manager[ID]) Edges() []Edge[ID] {
	return slices.Clone(m.edges)
}

// EdgesFrom returns the edges leaving id.
func (m *Manager[ID]) EdgesFrom(id ID) []Edge[ID] {
	var out []Edge[ID]

	for _, e := range m.edges {
		if e.Source == id {
			out = append(out, e)
		}
	}

	return out
}

// EdgesTo returns the edges entering id.
func (m *Manager[ID]) EdgesTo(id ID) []Edge[ID] {
	var out []Edge[ID]

	for _, e := range m.edges {
		if e.Target == id {
			out = append(out, e)
		}
	}

	return out
}

// Len returns the number of edges.
func (m *Manager[ID]) Len() int {
	return len(m.edges)
}
