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

// Package discovery produces an overview of the knowledge base by sampling
// documents, clustering the sample and summarizing the clusters map-reduce
// style. Documents left as noise by the clustering are not summarized.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/pairreader/ai"
	"github.com/poiesic/pairreader/channel"
	"github.com/poiesic/pairreader/config"
	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/knowledge"
	"github.com/poiesic/pairreader/workflow"
)

// GraphName is the checkpoint namespace of the pipeline.
const GraphName = "exploration"

// Step names.
const (
	StepSample          = "sample"
	StepCluster         = "cluster"
	StepMapSummarize    = "map_summarize"
	StepReduceSummarize = "reduce_summarize"
)

// Pipeline holds the capabilities used by the exploration steps.
type Pipeline struct {
	generator ai.Generator
	store     knowledge.Store
	settings  *config.Live
	channel   channel.Channel
	logger    *slog.Logger

	poolMu sync.Mutex // serializes resizing of pool
	pool   *ants.Pool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates the exploration pipeline. Call Release when done.
func New(generator ai.Generator, store knowledge.Store, settings *config.Live, ch channel.Channel, opts ...Option) (*Pipeline, error) {
	switch {
	case generator == nil:
		return nil, ErrGeneratorRequired
	case store == nil:
		return nil, ErrStoreRequired
	case settings == nil:
		return nil, ErrSettingsRequired
	case ch == nil:
		return nil, ErrChannelRequired
	}
	pool, err := ants.NewPool(settings.Load().MapConcurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create summarize pool: %w", err)
	}
	p := &Pipeline{
		generator: generator,
		store:     store,
		settings:  settings,
		channel:   ch,
		logger:    slog.Default(),
		pool:      pool,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "discovery")
	return p, nil
}

// Release stops the summarize workers.
func (p *Pipeline) Release() {
	p.pool.Release()
}

// Graph compiles sample -> cluster -> map_summarize -> reduce_summarize.
// An empty corpus or a sample without clusters ends the run early with an
// explanatory answer.
func (p *Pipeline) Graph() (*workflow.Graph, error) {
	return workflow.NewGraph(GraphName).
		AddStep(StepSample, p.sample).
		AddStep(StepCluster, p.cluster).
		AddStep(StepMapSummarize, p.mapSummarize).
		AddStep(StepReduceSummarize, p.reduceSummarize).
		AddConditionalEdge(StepSample, func(s workflow.State) string {
			if len(s.Sample) == 0 {
				return workflow.End
			}
			return StepCluster
		}).
		AddConditionalEdge(StepCluster, func(s workflow.State) string {
			if s.Clusters.Len() == 0 {
				return workflow.End
			}
			return StepMapSummarize
		}).
		AddEdge(StepMapSummarize, StepReduceSummarize).
		AddEdge(StepReduceSummarize, workflow.End).
		SetEntry(StepSample).
		Compile()
}

func (p *Pipeline) notify(ctx context.Context, format string, args ...any) {
	if p.settings.Load().Verbosity < config.VerbosityInfo {
		return
	}
	if err := p.channel.Send(ctx, fmt.Sprintf(format, args...)); err != nil {
		p.logger.Warn("failed to send notice", "err", err)
	}
}

func explanation(text string) workflow.Patch {
	return workflow.Patch{
		Messages: []core.Message{core.AIMessage(text)},
		Answer:   workflow.Set(text),
	}
}

func (p *Pipeline) sample(ctx context.Context, s workflow.State, _ *workflow.HumanInput) (workflow.Patch, error) {
	cfg := p.settings.Load()
	p.notify(ctx, msgRetrieving)

	ids, err := p.store.Sample(ctx, cfg.SampleCount, cfg.SampleFraction)
	switch {
	case errors.Is(err, core.ErrEmptyCorpus):
		p.logger.Info("exploration requested on empty knowledge base")
		patch := explanation(msgEmptyCorpus)
		patch.Sample = workflow.Set[[]core.ID](nil)
		return patch, nil
	case err != nil:
		if ctx.Err() != nil {
			return workflow.Patch{}, ctx.Err()
		}
		return workflow.Patch{}, core.NewServiceError("knowledge.sample", err)
	}
	p.logger.Debug("sampled documents", "count", len(ids))
	return workflow.Patch{Sample: workflow.Set(ids)}, nil
}

func (p *Pipeline) cluster(ctx context.Context, s workflow.State, _ *workflow.HumanInput) (workflow.Patch, error) {
	cfg := p.settings.Load()
	params := knowledge.ClusterParams{
		Granularity: cfg.ClusterGranularity,
		MinSize:     cfg.MinClusterSize,
		MaxSize:     cfg.MaxClusterSize,
	}
	assignment, err := p.store.Cluster(ctx, s.Sample, params)
	if err != nil {
		if ctx.Err() != nil {
			return workflow.Patch{}, ctx.Err()
		}
		return workflow.Patch{}, core.NewServiceError("knowledge.cluster", err)
	}
	p.logger.Debug("clustered sample", "clusters", assignment.Len(), "noise", len(assignment.Noise))

	if assignment.Len() == 0 {
		patch := explanation(msgNoClusters)
		patch.Clusters = workflow.Set(assignment)
		return patch, nil
	}
	return workflow.Patch{Clusters: workflow.Set(assignment)}, nil
}

// resizePool follows MapConcurrency changes between runs.
func (p *Pipeline) resizePool(size int) {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	if p.pool.Cap() != size {
		p.pool.Tune(size)
	}
}

func (p *Pipeline) mapSummarize(ctx context.Context, s workflow.State, _ *workflow.HumanInput) (workflow.Patch, error) {
	clusters := s.Clusters.Clusters
	p.resizePool(p.settings.Load().MapConcurrency)
	p.notify(ctx, msgGenerating, len(clusters))

	summaries := make([]core.ClusterSummary, len(clusters))
	var wg sync.WaitGroup
	for i, cl := range clusters {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			summaries[i] = p.summarizeCluster(ctx, s.Messages, cl)
		}
		if err := p.pool.Submit(task); err != nil {
			wg.Done()
			summaries[i] = core.ClusterSummary{Label: cl.Label, Text: placeholder(cl.Label, err), Failed: true}
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return workflow.Patch{}, err
	}
	return workflow.Patch{Summaries: workflow.Set(summaries)}, nil
}

// summarizeCluster never fails: errors yield a placeholder summary.
func (p *Pipeline) summarizeCluster(ctx context.Context, history []core.Message, cl core.Cluster) core.ClusterSummary {
	fail := func(err error) core.ClusterSummary {
		p.logger.Warn("cluster summary failed", "label", cl.Label, "err", err)
		return core.ClusterSummary{Label: cl.Label, Text: placeholder(cl.Label, err), Failed: true}
	}

	docs, err := p.store.Documents(ctx, cl.Members)
	if err != nil {
		return fail(core.NewServiceError("knowledge.documents", err))
	}
	msgs := append(append([]core.Message(nil), history...), core.HumanMessage(buildMapPrompt(docs)))
	text, err := p.generator.Generate(ctx, msgs, nil)
	if err != nil {
		return fail(err)
	}
	return core.ClusterSummary{Label: cl.Label, Text: text}
}

func (p *Pipeline) reduceSummarize(ctx context.Context, s workflow.State, _ *workflow.HumanInput) (workflow.Patch, error) {
	p.notify(ctx, msgSynthesizing)

	msgs := append(s.Messages, core.HumanMessage(buildReducePrompt(s.Summaries)))
	streamed := false
	text, err := p.generator.Generate(ctx, msgs, func(ctx context.Context, chunk string) error {
		streamed = true
		return p.channel.StreamChunk(ctx, chunk)
	})
	if err != nil {
		return workflow.Patch{}, fmt.Errorf("reduce summaries: %w", err)
	}
	return workflow.Patch{
		Messages: []core.Message{core.AIMessage(text)},
		Answer:   workflow.Set(text),
		Streamed: workflow.Set(streamed),
	}, nil
}
