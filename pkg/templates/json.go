package templates

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument is returned when a workflow file does not match the
// document schema.
var ErrInvalidDocument = errors.New("invalid workflow document")

//go:embed schema.json
var documentSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(documentSchema)

// ValidateJSON checks raw against the workflow document schema.
func ValidateJSON(raw []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(errs, "; "))
	}

	return nil
}

// ParseJSON validates and decodes a JSON workflow document.
func ParseJSON(raw []byte) (*models.WorkflowDocument, error) {
	err := ValidateJSON(raw)
	if err != nil {
		return nil, err
	}

	var doc models.WorkflowDocument

	err = json.Unmarshal(raw, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return &doc, nil
}
