package langchain

import (
	"fmt"
	"strings"
	"sync"

	"github.com/poiesic/pairreader/ai"
	"github.com/xeipuuv/gojsonschema"
)

// schemaValidator compiles schemas once and validates model output against them.
type schemaValidator struct {
	mu       sync.RWMutex
	compiled map[*ai.Schema]*gojsonschema.Schema
}

func newSchemaValidator() *schemaValidator {
	return &schemaValidator{compiled: make(map[*ai.Schema]*gojsonschema.Schema)}
}

func (v *schemaValidator) schemaFor(schema *ai.Schema) (*gojsonschema.Schema, error) {
	v.mu.RLock()
	s, ok := v.compiled[schema]
	v.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema.JSON()))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", schema.Name, err)
	}

	v.mu.Lock()
	v.compiled[schema] = s
	v.mu.Unlock()
	return s, nil
}

// validate returns an error listing every violation of schema in doc.
// A nil schema accepts any document.
func (v *schemaValidator) validate(schema *ai.Schema, doc []byte) error {
	if schema == nil {
		return nil
	}
	s, err := v.schemaFor(schema)
	if err != nil {
		return err
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validate against %s: %w", schema.Name, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("response does not match schema %s: %s", schema.Name, strings.Join(msgs, "; "))
}
