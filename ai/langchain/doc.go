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

// Package langchain provides AI service implementations on top of langchaingo.
//
// Generation models are selected with "provider:model" specs. The openai
// provider also covers OpenAI-compatible servers (Ollama, LocalAI, vLLM) when
// a GenerationHost is configured; the anthropic provider reads its key from
// ANTHROPIC_API_KEY. Embeddings always go through an OpenAI-compatible API.
//
// # Usage
//
//	config := ai.DefaultConfig()
//	provider, err := langchain.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	text, err := provider.Generator().Generate(ctx, msgs, nil)
//	vec, err := provider.Embedder().EmbedText(ctx, "sample text")
//
// Structured output is requested in JSON mode, repaired for common model
// mistakes, validated against the schema with gojsonschema and retried up to
// three times before failing.
package langchain
