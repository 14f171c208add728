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
	"log/slog"

	"github.com/poiesic/pairreader/ai"
)

// Provider implements ai.Provider with langchaingo-backed services.
type Provider struct {
	config    *ai.Config
	generator ai.Generator
	embedder  *Embedder
	logger    *slog.Logger
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a new AI provider. The config is validated and
// normalized before use. When FallbackModel is set the returned generator
// retries service errors against it.
//
// Returns ai.Provider interface (not *Provider) to keep callers off
// langchaingo-specific details.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	primary, err := newGenerator(config.Model, config.GenerationHost, config.Temperature)
	if err != nil {
		return nil, err
	}

	var generator ai.Generator = primary
	if config.FallbackModel != "" && config.FallbackModel != config.Model {
		secondary, err := newGenerator(config.FallbackModel, config.GenerationHost, config.Temperature)
		if err != nil {
			return nil, err
		}
		generator = ai.WithFallback(primary, secondary)
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:    config,
		generator: generator,
		embedder:  embedder,
		logger:    slog.Default().With("component", "langchain-provider"),
	}, nil
}

// Generator returns the generation service.
func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing langchain provider")
	return nil
}
