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

// Package ai provides abstractions for the AI services PairReader consumes.
//
// The workflow steps depend on two capabilities:
//
//   - Generator: free-form, structured and tool-selecting generation
//   - Embedder: vector embeddings for the knowledge base
//
// Provider aggregates both for initialization and shutdown.
//
// # Implementation Packages
//
//   - ai/langchain: production implementation on langchaingo (OpenAI-compatible and Anthropic models)
//   - ai/mock: test doubles for unit testing without external services
//
// Public constructors in ai/langchain return interface types. Mock
// constructors return concrete types so tests can inject behavior and assert
// call counts.
//
// # Fallback
//
// WithFallback composes two generators. The secondary is only called when the
// primary fails with a *core.ServiceError:
//
//	gen := ai.WithFallback(primary, secondary)
//	text, err := gen.Generate(ctx, msgs, nil)
//
// # Structured Output
//
// Schemas are reflected from Go types:
//
//	type verdict struct {
//	    Action string `json:"action" jsonschema:"enum=proceed,enum=revise"`
//	}
//	schema := ai.MustSchemaFor[verdict]("verdict")
//	var v verdict
//	err := gen.GenerateStructured(ctx, msgs, schema, &v)
package ai
