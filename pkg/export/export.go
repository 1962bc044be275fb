// Package export writes workflow documents as portable JSON files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/dukex/stepflow/pkg/models"
)

const defaultFileName = "workflow.json"

// FileName derives the export file name from a workflow name: lower case,
// every run of other characters collapsed into a hyphen.
func FileName(name string) string {
	var b strings.Builder

	pendingHyphen := false

	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}

			pendingHyphen = false

			b.WriteRune(r)

			continue
		}

		pendingHyphen = true
	}

	if b.Len() == 0 {
		return defaultFileName
	}

	return b.String() + ".json"
}

// Encode renders the document as indented JSON.
func Encode(doc *models.WorkflowDocument) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow %s: %w", doc.ID, err)
	}

	return append(data, '\n'), nil
}

// Exporter writes export files into a directory.
type Exporter struct {
	dir string
}

func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

// Write stores doc under FileName(doc.Name) and returns the written path.
func (e *Exporter) Write(doc *models.WorkflowDocument) (string, error) {
	data, err := Encode(doc)
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(e.dir, 0o750)
	if err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(e.dir, FileName(doc.Name))

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to write export %s: %w", path, err)
	}

	return path, nil
}
