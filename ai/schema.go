// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema is a JSON Schema document describing structured output or tool arguments.
type Schema struct {
	Name string
	raw  []byte
}

// SchemaFor reflects a JSON Schema from the Go type T. Field names follow
// json tags and every non-omitempty field is required.
func SchemaFor[T any](name string) (*Schema, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var zero T
	s := r.Reflect(&zero)
	s.Version = "http://json-schema.org/draft-07/schema#"
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("reflect schema %s: %w", name, err)
	}
	return &Schema{Name: name, raw: raw}, nil
}

// MustSchemaFor is like SchemaFor but panics on error. Intended for package-level vars.
func MustSchemaFor[T any](name string) *Schema {
	s, err := SchemaFor[T](name)
	if err != nil {
		panic(err)
	}
	return s
}

// NewSchema wraps a hand-written JSON Schema document.
func NewSchema(name string, raw []byte) (*Schema, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("schema %s: invalid JSON", name)
	}
	return &Schema{Name: name, raw: append([]byte(nil), raw...)}, nil
}

// EmptyObjectSchema describes a tool that takes no arguments.
func EmptyObjectSchema(name string) *Schema {
	return &Schema{Name: name, raw: []byte(`{"type":"object","properties":{}}`)}
}

// JSON returns a copy of the schema document.
func (s *Schema) JSON() []byte {
	if s == nil {
		return nil
	}
	return append([]byte(nil), s.raw...)
}

// Map decodes the schema into a generic map, the form most SDKs accept for tool parameters.
func (s *Schema) Map() map[string]any {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var m map[string]any
	if err := json.Unmarshal(s.raw, &m); err != nil {
		return nil
	}
	return m
}

func (s *Schema) String() string {
	if s == nil {
		return ""
	}
	return string(s.raw)
}
