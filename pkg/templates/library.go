// Package templates loads starter workflows from HCL and JSON files and
// validates imported workflow documents.
package templates

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dukex/stepflow/pkg/models"
)

var ErrTemplateNotFound = errors.New("template not found")

// Template is a named starter workflow.
type Template struct {
	Key      string
	Source   string
	Document *models.WorkflowDocument
}

// Summary describes a template without its steps.
type Summary struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Steps       int    `json:"steps"`
}

type Library struct {
	templates map[string]*Template
}

// NewLibrary builds a library from already parsed templates.
func NewLibrary(templates ...*Template) *Library {
	l := &Library{templates: make(map[string]*Template, len(templates))}
	for _, t := range templates {
		l.templates[t.Key] = t
	}

	return l
}

// Load reads every .hcl and .json file directly under dir. The file name
// without extension becomes the template key. An empty dir yields an empty
// library.
func Load(dir string) (*Library, error) {
	if dir == "" {
		return NewLibrary(), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory %s: %w", dir, err)
	}

	var templates []*Template

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		if ext != ".hcl" && ext != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		doc, err := ParseFile(path)
		if err != nil {
			return nil, err
		}

		templates = append(templates, &Template{
			Key:      strings.TrimSuffix(entry.Name(), ext),
			Source:   path,
			Document: doc,
		})
	}

	return NewLibrary(templates...), nil
}

// ParseFile decodes a workflow file, choosing the format by extension.
func ParseFile(path string) (*models.WorkflowDocument, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".hcl":
		return ParseHCL(src, path)
	case ".json":
		doc, err := ParseJSON(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		return doc, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file type %s", ErrInvalidDocument, path)
	}
}

// List returns the summaries of all templates ordered by key.
func (l *Library) List() []Summary {
	keys := make([]string, 0, len(l.templates))
	for k := range l.templates {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	out := make([]Summary, 0, len(keys))
	for _, k := range keys {
		doc := l.templates[k].Document
		out = append(out, Summary{Key: k, Name: doc.Name, Description: doc.Description, Steps: len(doc.Steps)})
	}

	return out
}

// Instantiate returns a fresh, unsaved copy of the template's document.
func (l *Library) Instantiate(key string) (*models.WorkflowDocument, error) {
	t, ok := l.templates[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}

	doc := &models.WorkflowDocument{
		Name:        t.Document.Name,
		Description: t.Document.Description,
		Steps:       make([]*models.Step, 0, len(t.Document.Steps)),
	}

	for _, step := range t.Document.Steps {
		doc.Steps = append(doc.Steps, step.Clone())
	}

	return doc, nil
}
