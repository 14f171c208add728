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
	"context"
	"log/slog"

	"github.com/poiesic/pairreader/core"
)

// FallbackRestartNotice is streamed when the primary generator failed after
// streaming part of an answer and the secondary starts the answer over.
const FallbackRestartNotice = "\n[primary model failed; restarting the answer with the fallback model]\n"

// fallbackGenerator retries a call against a secondary generator when the
// primary fails with a service error. Other errors (context cancellation,
// decoding into the caller's type) are returned unchanged.
type fallbackGenerator struct {
	primary   Generator
	secondary Generator
	logger    *slog.Logger
}

var _ Generator = (*fallbackGenerator)(nil)

// WithFallback composes primary with secondary. A nil secondary returns primary.
func WithFallback(primary, secondary Generator) Generator {
	if secondary == nil {
		return primary
	}
	return &fallbackGenerator{
		primary:   primary,
		secondary: secondary,
		logger:    slog.Default().With("component", "fallback-generator"),
	}
}

func (f *fallbackGenerator) shouldFallback(ctx context.Context, op string, err error) bool {
	if err == nil || ctx.Err() != nil || !core.IsServiceError(err) {
		return false
	}
	f.logger.Warn("primary generator failed, using fallback", "op", op, "err", err)
	return true
}

func (f *fallbackGenerator) Generate(ctx context.Context, msgs []core.Message, stream StreamFunc) (string, error) {
	partial := false
	primaryStream := stream
	if stream != nil {
		primaryStream = func(ctx context.Context, chunk string) error {
			partial = true
			return stream(ctx, chunk)
		}
	}

	text, err := f.primary.Generate(ctx, msgs, primaryStream)
	if !f.shouldFallback(ctx, "generate", err) {
		return text, err
	}
	if partial {
		if err := stream(ctx, FallbackRestartNotice); err != nil {
			return "", err
		}
	}
	return f.secondary.Generate(ctx, msgs, stream)
}

func (f *fallbackGenerator) GenerateStructured(ctx context.Context, msgs []core.Message, schema *Schema, out any) error {
	err := f.primary.GenerateStructured(ctx, msgs, schema, out)
	if f.shouldFallback(ctx, "generate_structured", err) {
		return f.secondary.GenerateStructured(ctx, msgs, schema, out)
	}
	return err
}

func (f *fallbackGenerator) GenerateWithTools(ctx context.Context, msgs []core.Message, tools []Tool) (*ToolResponse, error) {
	resp, err := f.primary.GenerateWithTools(ctx, msgs, tools)
	if f.shouldFallback(ctx, "generate_with_tools", err) {
		return f.secondary.GenerateWithTools(ctx, msgs, tools)
	}
	return resp, err
}
