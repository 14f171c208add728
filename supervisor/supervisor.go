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

// Package supervisor composes the top-level conversation graph: ingestion
// commands, intent routing, delegation to the qa or exploration engine and
// delivery of the answer.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/pairreader/channel"
	"github.com/poiesic/pairreader/config"
	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/ingestion"
	"github.com/poiesic/pairreader/knowledge"
	"github.com/poiesic/pairreader/router"
	"github.com/poiesic/pairreader/workflow"
)

// GraphName is the checkpoint namespace of the supervisor graph.
const GraphName = "supervisor"

// Step names.
const (
	StepHandleIngestion = "handle_ingestion"
	StepRoute           = "route"
	StepRetrieval       = "retrieval"
	StepExploration     = "exploration"
	StepRespond         = "respond"
)

// routes maps each routing outcome to the node handling it.
var routes = map[core.Route]string{
	core.RouteQA:          StepRetrieval,
	core.RouteExploration: StepExploration,
}

// Components are the capabilities the supervisor steps use.
type Components struct {
	Store     knowledge.Store
	Ingestion *ingestion.Pipeline
	Router    *router.Router
	// QA and Exploration run the sub-pipelines on threads derived from the
	// supervisor thread.
	QA          *workflow.Engine
	Exploration *workflow.Engine
	Settings    *config.Live
	Channel     channel.Channel
}

func (c Components) validate() error {
	switch {
	case c.Store == nil:
		return ErrStoreRequired
	case c.Ingestion == nil:
		return ErrIngestionRequired
	case c.Router == nil:
		return ErrRouterRequired
	case c.QA == nil, c.Exploration == nil:
		return ErrEngineRequired
	case c.Settings == nil:
		return ErrSettingsRequired
	case c.Channel == nil:
		return ErrChannelRequired
	}
	return nil
}

// Supervisor builds the top-level graph.
type Supervisor struct {
	Components
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now when carrying nested deadlines.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a supervisor over c.
func New(c Components, opts ...Option) (*Supervisor, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	s := &Supervisor{Components: c, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "supervisor")
	return s, nil
}

// SubThread returns the thread a sub-pipeline graph runs on for thread.
func SubThread(thread, graph string) string {
	return thread + "/" + graph
}

// Graph compiles handle_ingestion -> route -> {retrieval | exploration} -> respond.
// A command turn, or a turn without a request, ends after ingestion.
func (s *Supervisor) Graph() (*workflow.Graph, error) {
	return workflow.NewGraph(GraphName).
		AddStep(StepHandleIngestion, s.handleIngestion).
		AddStep(StepRoute, s.Router.Step).
		AddStep(StepRetrieval, s.delegate(s.QA)).
		AddStep(StepExploration, s.delegate(s.Exploration)).
		AddStep(StepRespond, s.respond).
		AddConditionalEdge(StepHandleIngestion, afterIngestion).
		AddConditionalEdge(StepRoute, dispatch).
		AddEdge(StepRetrieval, StepRespond).
		AddEdge(StepExploration, StepRespond).
		AddEdge(StepRespond, workflow.End).
		SetEntry(StepHandleIngestion).
		Compile()
}

func afterIngestion(s workflow.State) string {
	if s.Command != core.IngestNone || s.Request == "" {
		return workflow.End
	}
	return StepRoute
}

// dispatch returns "" for an unset route, which the engine rejects.
func dispatch(s workflow.State) string {
	return routes[s.Route]
}

// delegate runs engine as a step. The sub-run starts from the supervisor
// state and its changes are merged back as one patch. A nested suspension
// is raised again with the time left on its deadline.
func (s *Supervisor) delegate(engine *workflow.Engine) workflow.StepFunc {
	graph := engine.Graph().Name()
	return func(ctx context.Context, st workflow.State, in *workflow.HumanInput) (workflow.Patch, error) {
		info, _ := workflow.StepInfoFromContext(ctx)
		thread := SubThread(info.Thread, graph)

		var out *workflow.Outcome
		var err error
		if in == nil {
			out, err = engine.Run(ctx, thread, st)
		} else {
			out, err = engine.Resume(ctx, thread, in)
		}
		if err != nil {
			return workflow.Patch{}, err
		}

		if susp := out.Suspended; susp != nil {
			s.logger.Debug("sub-pipeline suspended", "thread", thread, "step", susp.Step, "kind", susp.Kind)
			return workflow.Patch{}, workflow.Suspend(susp.Kind, susp.Prompt, susp.Remaining(s.now()), susp.Payload...)
		}
		return workflow.Diff(st, out.State), nil
	}
}

func (s *Supervisor) respond(ctx context.Context, st workflow.State, _ *workflow.HumanInput) (workflow.Patch, error) {
	if !st.Streamed && st.Answer != "" {
		if err := s.Channel.Send(ctx, st.Answer); err != nil {
			return workflow.Patch{}, fmt.Errorf("send answer: %w", err)
		}
	}
	info, _ := workflow.StepInfoFromContext(ctx)
	s.logger.Info("answer delivered", "thread", info.Thread, "route", st.Route.String(), "streamed", st.Streamed, "length", len(st.Answer))
	return workflow.Patch{}, nil
}

func (s *Supervisor) notify(ctx context.Context, format string, args ...any) {
	if s.Settings.Load().Verbosity < config.VerbosityInfo {
		return
	}
	s.send(ctx, fmt.Sprintf(format, args...))
}

func (s *Supervisor) send(ctx context.Context, msg string) {
	if err := s.Channel.Send(ctx, msg); err != nil {
		s.logger.Warn("failed to send notice", "err", err)
	}
}
