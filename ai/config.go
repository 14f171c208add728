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
	"errors"
	"fmt"
	"strings"
)

// Supported generation providers for model specs of the form "provider:model".
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds configuration for AI service providers.
type Config struct {
	// Model is the primary generation model as "provider:model".
	// Example: "anthropic:claude-3-5-haiku-latest", "openai:qwen2.5:3b"
	Model string

	// FallbackModel is used when the primary model fails with a service error.
	// Empty disables the fallback.
	FallbackModel string

	// GenerationHost overrides the base URL for OpenAI-compatible generation.
	// Empty uses the provider's public endpoint.
	GenerationHost string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// Temperature for generation calls. Structured calls always use 0.
	Temperature float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithModel sets the primary generation model spec.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithFallbackModel sets the fallback generation model spec.
func WithFallbackModel(model string) ConfigOption {
	return func(c *Config) {
		c.FallbackModel = model
	}
}

// WithGenerationHost sets the generation service host URL.
func WithGenerationHost(host string) ConfigOption {
	return func(c *Config) {
		c.GenerationHost = host
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithHost sets both generation and embedding hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.GenerationHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithTemperature sets the sampling temperature for free-form generation.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// DefaultConfig returns a Config that generates with Anthropic models and
// embeds through a local OpenAI-compatible server.
func DefaultConfig() *Config {
	return &Config{
		Model:          "anthropic:claude-3-5-haiku-latest",
		FallbackModel:  "anthropic:claude-3-7-sonnet-latest",
		EmbeddingHost:  "http://localhost:11434/v1",
		EmbeddingModel: "embeddinggemma",
		Temperature:    0.2,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithModel("openai:qwen2.5:7b"),
//	    WithHost("http://localhost:11434/v1"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// Hosts get a /v1 suffix, which OpenAI-compatible servers (Ollama, LocalAI, vLLM) expect.
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.GenerationHost = normalizeHost(c.GenerationHost)
	c.Model = strings.TrimSpace(c.Model)
	c.FallbackModel = strings.TrimSpace(c.FallbackModel)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	if _, _, err := ParseModelSpec(c.Model); err != nil {
		return fmt.Errorf("ai config: Model: %w", err)
	}
	if c.FallbackModel != "" {
		if _, _, err := ParseModelSpec(c.FallbackModel); err != nil {
			return fmt.Errorf("ai config: FallbackModel: %w", err)
		}
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	return nil
}

// ParseModelSpec splits "provider:model" into its parts. A spec without a
// known provider prefix is treated as an OpenAI-compatible model name, so
// local names such as "qwen2.5:3b" keep their tag.
func ParseModelSpec(spec string) (provider, model string, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", "", errors.New("empty model spec")
	}
	prefix, rest, found := strings.Cut(spec, ":")
	if found {
		switch strings.ToLower(prefix) {
		case ProviderOpenAI, ProviderAnthropic:
			if rest == "" {
				return "", "", fmt.Errorf("model spec %q has no model name", spec)
			}
			return strings.ToLower(prefix), rest, nil
		}
	}
	return ProviderOpenAI, spec, nil
}
