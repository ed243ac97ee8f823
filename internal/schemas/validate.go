// Package schemas validates structured LLM output against embedded JSON Schemas.
package schemas

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/subject-research/internal/types"
)

//go:embed timeline.schema.json
var timelineSchemaJSON string

var timelineSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(timelineSchemaJSON))
})

// FieldError is one schema violation at a JSON path.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	parts := make([]string, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("%s validation failed: %s", ve.Schema, strings.Join(parts, "; "))
}

// TimelineSchema returns the embedded timeline schema document.
func TimelineSchema() string {
	return timelineSchemaJSON
}

// ValidateTimeline checks events as the {"timeline": [...]} document they are
// stored and served as.
func ValidateTimeline(events []types.TimelineEvent) error {
	schema, err := timelineSchema()
	if err != nil {
		return fmt.Errorf("failed to compile timeline schema: %w", err)
	}
	if events == nil {
		events = []types.TimelineEvent{}
	}
	doc := map[string]any{"timeline": events}
	return check("timeline", schema, gojsonschema.NewGoLoader(doc))
}

// ValidateTimelineJSON is ValidateTimeline for raw JSON.
func ValidateTimelineJSON(doc string) error {
	schema, err := timelineSchema()
	if err != nil {
		return fmt.Errorf("failed to compile timeline schema: %w", err)
	}
	return check("timeline", schema, gojsonschema.NewStringLoader(doc))
}

func check(name string, schema *gojsonschema.Schema, doc gojsonschema.JSONLoader) error {
	result, err := schema.Validate(doc)
	if err != nil {
		return fmt.Errorf("failed to read %s document: %w", name, err)
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Schema: name, Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return ve
}
