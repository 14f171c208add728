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

// Package qa answers targeted questions: the request is decomposed into
// sub-requests, reviewed by the user, used for retrieval and synthesized
// into an answer.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/pairreader/ai"
	"github.com/poiesic/pairreader/channel"
	"github.com/poiesic/pairreader/config"
	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/knowledge"
	"github.com/poiesic/pairreader/workflow"
)

// GraphName is the checkpoint namespace of the pipeline.
const GraphName = "qa"

// Step names.
const (
	StepDecompose     = "decompose"
	StepAwaitApproval = "await_approval"
	StepRetrieve      = "retrieve"
	StepSynthesize    = "synthesize"
)

// Pipeline holds the capabilities used by the QA steps.
type Pipeline struct {
	generator ai.Generator
	store     knowledge.Store
	settings  *config.Live
	channel   channel.Channel
	filter    *knowledge.Filter
	logger    *slog.Logger
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

// WithFilter restricts retrieval to passages matching filter.
func WithFilter(filter *knowledge.Filter) Option {
	return func(p *Pipeline) {
		p.filter = filter
	}
}

// New creates the QA pipeline.
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
	p := &Pipeline{
		generator: generator,
		store:     store,
		settings:  settings,
		channel:   ch,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "qa")
	return p, nil
}

// Graph compiles decompose -> await_approval -> retrieve -> synthesize.
// A revise decision loops back to decompose.
func (p *Pipeline) Graph() (*workflow.Graph, error) {
	return workflow.NewGraph(GraphName).
		AddStep(StepDecompose, p.decompose).
		AddStep(StepAwaitApproval, p.awaitApproval).
		AddStep(StepRetrieve, p.retrieve).
		AddStep(StepSynthesize, p.synthesize).
		AddEdge(StepDecompose, StepAwaitApproval).
		AddConditionalEdge(StepAwaitApproval, afterApproval).
		AddEdge(StepRetrieve, StepSynthesize).
		AddEdge(StepSynthesize, workflow.End).
		SetEntry(StepDecompose).
		Compile()
}

func afterApproval(s workflow.State) string {
	if s.Approval != nil && s.Approval.Action == core.ApprovalRevise {
		return StepDecompose
	}
	return StepRetrieve
}

func (p *Pipeline) notify(ctx context.Context, format string, args ...any) {
	if p.settings.Load().Verbosity < config.VerbosityInfo {
		return
	}
	if err := p.channel.Send(ctx, fmt.Sprintf(format, args...)); err != nil {
		p.logger.Warn("failed to send notice", "err", err)
	}
}

func (p *Pipeline) decompose(ctx context.Context, s workflow.State, _ *workflow.HumanInput) (workflow.Patch, error) {
	if !p.settings.Load().Decomposition {
		return workflow.Patch{
			SubRequests: workflow.Set([]string{s.Request}),
			Approval:    workflow.Set[*core.ApprovalDecision](nil),
		}, nil
	}

	prompt := core.HumanMessage(buildDecomposePrompt(s.Request, s.Approval, s.SubRequests))
	msgs := append(s.Messages, prompt)
	text, err := p.generator.Generate(ctx, msgs, p.channel.StreamChunk)
	if err != nil {
		return workflow.Patch{}, fmt.Errorf("decompose: %w", err)
	}

	subRequests := splitLines(text)
	if len(subRequests) == 0 {
		p.logger.Debug("empty decomposition, using request")
		subRequests = []string{s.Request}
	}
	return workflow.Patch{
		Messages:    []core.Message{prompt, core.AIMessage(text)},
		SubRequests: workflow.Set(subRequests),
		Approval:    workflow.Set[*core.ApprovalDecision](nil),
	}, nil
}

func splitLines(text string) []string {
	var out []string
	for line := range strings.Lines(text) {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (p *Pipeline) retrieve(ctx context.Context, s workflow.State, _ *workflow.HumanInput) (workflow.Patch, error) {
	cfg := p.settings.Load()
	p.notify(ctx, msgQuerying, len(s.SubRequests))

	passages, err := p.store.Query(ctx, s.SubRequests, cfg.RetrievalCount, p.filter)
	if err != nil {
		if ctx.Err() != nil {
			return workflow.Patch{}, ctx.Err()
		}
		return workflow.Patch{}, core.NewServiceError("knowledge.query", err)
	}
	passages = dedupe(passages)

	p.notify(ctx, msgRetrieved, len(passages))
	p.logger.Debug("retrieved passages", "queries", len(s.SubRequests), "passages", len(passages))
	return workflow.Patch{Passages: workflow.Set(passages)}, nil
}

// dedupe drops passages whose document was already seen, keeping the
// first occurrence in place.
func dedupe(passages []core.Passage) []core.Passage {
	seen := make(map[core.ID]struct{}, len(passages))
	out := make([]core.Passage, 0, len(passages))
	for _, passage := range passages {
		if _, dup := seen[passage.Id]; dup {
			continue
		}
		seen[passage.Id] = struct{}{}
		out = append(out, passage)
	}
	return out
}

func (p *Pipeline) synthesize(ctx context.Context, s workflow.State, _ *workflow.HumanInput) (workflow.Patch, error) {
	p.notify(ctx, msgSynthesis, len(s.Passages))

	msgs := append(s.Messages, core.HumanMessage(buildSynthesizePrompt(s.Request, s.Passages)))
	streamed := false
	text, err := p.generator.Generate(ctx, msgs, func(ctx context.Context, chunk string) error {
		streamed = true
		return p.channel.StreamChunk(ctx, chunk)
	})
	if err != nil {
		return workflow.Patch{}, fmt.Errorf("synthesize: %w", err)
	}
	return workflow.Patch{
		Messages: []core.Message{core.AIMessage(text)},
		Answer:   workflow.Set(text),
		Streamed: workflow.Set(streamed),
	}, nil
}
