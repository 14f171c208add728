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

package langchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/poiesic/pairreader/ai"
	"github.com/poiesic/pairreader/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
)

const structuredAttempts = 3

// errNoChoices is returned when the model produced an empty response.
var errNoChoices = errors.New("model returned no choices")

// Generator implements ai.Generator on a langchaingo chat model.
type Generator struct {
	model       llms.Model
	spec        string
	temperature float64
	validator   *schemaValidator
	logger      *slog.Logger
}

var _ ai.Generator = (*Generator)(nil)

// newModel builds the langchaingo model for a "provider:model" spec.
func newModel(spec, host string) (llms.Model, error) {
	provider, name, err := ai.ParseModelSpec(spec)
	if err != nil {
		return nil, err
	}

	switch provider {
	case ai.ProviderAnthropic:
		return anthropic.New(anthropic.WithModel(name))
	default:
		opts := []openai.Option{openai.WithModel(name)}
		if host != "" {
			// Local OpenAI-compatible servers accept any token
			token := os.Getenv("OPENAI_API_KEY")
			if token == "" {
				token = "none"
			}
			opts = append(opts, openai.WithBaseURL(host), openai.WithToken(token))
		}
		return openai.New(opts...)
	}
}

// newGenerator is an internal constructor that returns the concrete type.
func newGenerator(spec, host string, temperature float64) (*Generator, error) {
	model, err := newModel(spec, host)
	if err != nil {
		return nil, fmt.Errorf("create model %s: %w", spec, err)
	}
	return newGeneratorFromModel(model, spec, temperature), nil
}

func newGeneratorFromModel(model llms.Model, spec string, temperature float64) *Generator {
	return &Generator{
		model:       model,
		spec:        spec,
		temperature: temperature,
		validator:   newSchemaValidator(),
		logger:      slog.Default().With("component", "langchain-generator", "model", spec),
	}
}

// NewGenerator creates a generator for the given model spec.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(spec, host string, temperature float64) (ai.Generator, error) {
	return newGenerator(spec, host, temperature)
}

// Generate returns the completion for msgs, streaming chunks when stream is set.
func (g *Generator) Generate(ctx context.Context, msgs []core.Message, stream ai.StreamFunc) (string, error) {
	opts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	if stream != nil {
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return stream(ctx, string(chunk))
		}))
	}

	g.logger.Debug("generating", "messages", len(msgs), "streaming", stream != nil)
	choice, err := g.complete(ctx, toMessageContent(msgs), opts...)
	if err != nil {
		g.logger.Error("generation failed", "err", err)
		return "", core.NewServiceError("generate", err)
	}
	return choice.Content, nil
}

// GenerateStructured asks for JSON matching schema and decodes it into out.
// Malformed or non-conforming responses are retried with the error fed back to the model.
func (g *Generator) GenerateStructured(ctx context.Context, msgs []core.Message, schema *ai.Schema, out any) error {
	content := make([]llms.MessageContent, 0, len(msgs)+3)
	content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, buildStructuredPrompt(schema.JSON())))
	content = append(content, toMessageContent(msgs)...)

	var lastErr error
	for attempt := 0; attempt < structuredAttempts; attempt++ {
		choice, err := g.complete(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			g.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return core.NewServiceError("generate_structured", err)
		}

		responseText := cleanJSON(choice.Content)
		if lastErr = g.validator.validate(schema, []byte(responseText)); lastErr == nil {
			lastErr = json.Unmarshal([]byte(responseText), out)
		}
		if lastErr == nil {
			return nil
		}

		g.logger.Warn("error parsing structured response",
			"attempt", attempt+1,
			"response", responseText,
			"err", lastErr)
		content = append(content,
			llms.TextParts(llms.ChatMessageTypeAI, choice.Content),
			llms.TextParts(llms.ChatMessageTypeHuman, buildRetryPrompt(lastErr)))
	}

	g.logger.Error("failed to parse structured response after retries", "err", lastErr)
	return core.NewServiceError("generate_structured", lastErr)
}

// GenerateWithTools offers tools to the model and reports the first selected call.
func (g *Generator) GenerateWithTools(ctx context.Context, msgs []core.Message, tools []ai.Tool) (*ai.ToolResponse, error) {
	choice, err := g.complete(ctx, toMessageContent(msgs),
		llms.WithTemperature(0.0),
		llms.WithTools(toTools(tools)))
	if err != nil {
		g.logger.Error("tool generation failed", "err", err)
		return nil, core.NewServiceError("generate_with_tools", err)
	}

	resp := &ai.ToolResponse{Call: toolCallFromChoice(choice), Text: choice.Content}
	if resp.Call != nil {
		g.logger.Debug("model selected tool", "tool", resp.Call.Name)
	}
	return resp, nil
}

func (g *Generator) complete(ctx context.Context, content []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentChoice, error) {
	response, err := g.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return nil, err
	}
	if len(response.Choices) < 1 {
		return nil, errNoChoices
	}
	return response.Choices[0], nil
}
