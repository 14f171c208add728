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

// Package config holds the settings read by the pipelines at step time.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/poiesic/pairreader/ai"
)

// Verbosity levels.
const (
	VerbosityQuiet = 0
	VerbosityInfo  = 1
	// VerbositySteps reports every workflow step on the channel.
	VerbositySteps = 2
	VerbosityDebug = 3
)

// Config holds pipeline settings.
type Config struct {
	// Decomposition splits QA requests into sub-requests reviewed by the user.
	Decomposition bool

	// RetrievalCount is the number of passages fetched per sub-request.
	RetrievalCount int

	// SampleCount is the exact exploration sample size. Zero uses SampleFraction.
	SampleCount int

	// SampleFraction is the share of the corpus sampled for exploration.
	SampleFraction float64

	// ClusterGranularity controls neighbourhood sensitivity as a fraction of the sample.
	ClusterGranularity float64

	// MinClusterSize and MaxClusterSize bound cluster sizes. Zero means automatic.
	MinClusterSize int
	MaxClusterSize int

	// ApprovalTimeout bounds the wait for sub-request approval.
	ApprovalTimeout time.Duration

	// UploadTimeout bounds the wait for files after an ingestion command.
	UploadTimeout time.Duration

	// Verbosity selects how much progress is reported to the user.
	Verbosity int

	// MapConcurrency caps concurrent cluster summarizations.
	MapConcurrency int

	// StorePath is the knowledge base directory. Empty keeps it in memory.
	StorePath string

	AI ai.Config
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithDecomposition enables or disables request decomposition.
func WithDecomposition(enabled bool) Option {
	return func(c *Config) {
		c.Decomposition = enabled
	}
}

// WithRetrievalCount sets the passages fetched per sub-request.
func WithRetrievalCount(k int) Option {
	return func(c *Config) {
		c.RetrievalCount = k
	}
}

// WithSampling sets the exploration sample size. A positive count wins over fraction.
func WithSampling(count int, fraction float64) Option {
	return func(c *Config) {
		c.SampleCount = count
		c.SampleFraction = fraction
	}
}

// WithClustering sets the clustering granularity and size bounds.
func WithClustering(granularity float64, minSize, maxSize int) Option {
	return func(c *Config) {
		c.ClusterGranularity = granularity
		c.MinClusterSize = minSize
		c.MaxClusterSize = maxSize
	}
}

// WithApprovalTimeout sets the approval wait.
func WithApprovalTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ApprovalTimeout = d
	}
}

// WithUploadTimeout sets the upload wait.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.UploadTimeout = d
	}
}

// WithVerbosity sets the verbosity level.
func WithVerbosity(level int) Option {
	return func(c *Config) {
		c.Verbosity = level
	}
}

// WithMapConcurrency caps concurrent cluster summarizations.
func WithMapConcurrency(n int) Option {
	return func(c *Config) {
		c.MapConcurrency = n
	}
}

// WithStorePath sets the knowledge base directory.
func WithStorePath(path string) Option {
	return func(c *Config) {
		c.StorePath = path
	}
}

// WithAI replaces the AI service settings.
func WithAI(cfg ai.Config) Option {
	return func(c *Config) {
		c.AI = cfg
	}
}

// DefaultConfig returns the default settings.
func DefaultConfig() *Config {
	return &Config{
		Decomposition:      true,
		RetrievalCount:     10,
		SampleFraction:     0.1,
		ClusterGranularity: 0.05,
		ApprovalTimeout:    90 * time.Second,
		UploadTimeout:      90 * time.Second,
		Verbosity:          VerbosityInfo,
		MapConcurrency:     runtime.NumCPU(),
		AI:                 *ai.DefaultConfig(),
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Clone returns a copy of c.
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// Validate checks that every setting is within range.
func (c *Config) Validate() error {
	if c.RetrievalCount < 1 || c.RetrievalCount > 100 {
		return fmt.Errorf("config: RetrievalCount must be between 1 and 100, got %d", c.RetrievalCount)
	}
	if c.SampleCount < 0 {
		return errors.New("config: SampleCount must not be negative")
	}
	if c.SampleCount == 0 && (c.SampleFraction <= 0 || c.SampleFraction > 1) {
		return fmt.Errorf("config: SampleFraction must be in (0, 1], got %g", c.SampleFraction)
	}
	if c.ClusterGranularity <= 0 || c.ClusterGranularity > 1 {
		return fmt.Errorf("config: ClusterGranularity must be in (0, 1], got %g", c.ClusterGranularity)
	}
	if c.MinClusterSize < 0 || c.MaxClusterSize < 0 {
		return errors.New("config: cluster size bounds must not be negative")
	}
	if c.MinClusterSize > 0 && c.MaxClusterSize > 0 && c.MaxClusterSize < c.MinClusterSize {
		return fmt.Errorf("config: MaxClusterSize %d is below MinClusterSize %d", c.MaxClusterSize, c.MinClusterSize)
	}
	if c.ApprovalTimeout < 0 || c.UploadTimeout < 0 {
		return errors.New("config: timeouts must not be negative")
	}
	if c.Verbosity < VerbosityQuiet || c.Verbosity > VerbosityDebug {
		return fmt.Errorf("config: Verbosity must be between %d and %d, got %d", VerbosityQuiet, VerbosityDebug, c.Verbosity)
	}
	if c.MapConcurrency < 1 {
		return errors.New("config: MapConcurrency must be positive")
	}
	if err := c.AI.Validate(); err != nil {
		return err
	}
	return nil
}

// Live holds the current Config. Steps read it when they execute, so a
// Store takes effect from the next step on.
type Live struct {
	current atomic.Pointer[Config]
}

// NewLive validates cfg and wraps a copy of it.
func NewLive(cfg *Config) (*Live, error) {
	l := &Live{}
	if err := l.Store(cfg); err != nil {
		return nil, err
	}
	return l, nil
}

// Load returns the current settings. The returned value must not be modified.
func (l *Live) Load() *Config {
	return l.current.Load()
}

// Store validates cfg and makes a copy of it current.
func (l *Live) Store(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	next := cfg.Clone()
	if err := next.Validate(); err != nil {
		return err
	}
	l.current.Store(next)
	return nil
}
