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

package pairreader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/poiesic/pairreader/ai"
	"github.com/poiesic/pairreader/ai/langchain"
	"github.com/poiesic/pairreader/channel"
	"github.com/poiesic/pairreader/config"
	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/discovery"
	"github.com/poiesic/pairreader/ingestion"
	"github.com/poiesic/pairreader/knowledge"
	"github.com/poiesic/pairreader/qa"
	"github.com/poiesic/pairreader/router"
	"github.com/poiesic/pairreader/storage/badger"
	"github.com/poiesic/pairreader/supervisor"
	"github.com/poiesic/pairreader/workflow"
)

const msgApology = "Sorry, I could not complete your request. [ServiceError] %v"

// Agent answers requests about a knowledge base of uploaded documents.
// Conversations are identified by caller-chosen thread ids; calls for the
// same thread are serialized.
type Agent struct {
	documentBackend   *badger.Backend
	checkpointBackend *badger.Backend
	documents         *badger.DocumentRepository
	provider          ai.Provider
	settings          *config.Live
	channel           channel.Channel
	store             *knowledge.Base
	ingestion         *ingestion.Pipeline
	discovery         *discovery.Pipeline
	qa                *workflow.Engine
	exploration       *workflow.Engine
	supervisor        *workflow.Engine
	logger            *slog.Logger
	now               func() time.Time

	threads sync.Map // thread id -> *sync.Mutex
}

// AgentOption configures an Agent.
type AgentOption func(*agentOptions)

type agentOptions struct {
	provider       ai.Provider
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	now            func() time.Time
}

// WithProvider sets the AI provider. Default is a langchaingo provider built
// from the AI section of the configuration.
func WithProvider(provider ai.Provider) AgentOption {
	return func(o *agentOptions) {
		o.provider = provider
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) AgentOption {
	return func(o *agentOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracerProvider sets the provider for workflow step spans.
func WithTracerProvider(tp trace.TracerProvider) AgentOption {
	return func(o *agentOptions) {
		o.tracerProvider = tp
	}
}

// WithClock replaces time.Now for suspension deadlines.
func WithClock(now func() time.Time) AgentOption {
	return func(o *agentOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewAgent wires the knowledge base, the pipelines and their engines.
// Documents live at cfg.StorePath, or in memory when it is empty.
// Checkpoints are always kept in memory.
func NewAgent(cfg *config.Config, ch channel.Channel, opts ...AgentOption) (*Agent, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if ch == nil {
		return nil, ErrChannelRequired
	}
	options := &agentOptions{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(options)
	}

	settings, err := config.NewLive(cfg)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		settings: settings,
		channel:  ch,
		logger:   options.logger.With("component", "agent"),
		now:      options.now,
	}
	if err := a.open(cfg, options); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Agent) open(cfg *config.Config, options *agentOptions) error {
	var err error
	if cfg.StorePath == "" {
		a.documentBackend, err = badger.OpenBackend("", true)
	} else {
		a.documentBackend, err = badger.OpenBackend(cfg.StorePath, false)
	}
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	a.documents = badger.NewDocumentRepository(a.documentBackend)

	a.checkpointBackend, err = badger.OpenBackend("", true)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	checkpoints := badger.NewCheckpointRepository(a.checkpointBackend)

	a.provider = options.provider
	if a.provider == nil {
		if a.provider, err = langchain.NewProvider(&cfg.AI); err != nil {
			return err
		}
	}
	generator := a.provider.Generator()

	if a.store, err = knowledge.NewBase(a.documents, a.provider.Embedder(), knowledge.WithLogger(options.logger.With("component", "knowledge-base"))); err != nil {
		return err
	}
	if a.ingestion, err = ingestion.NewPipeline(a.store, ingestion.WithLogger(options.logger.With("component", "ingestion"))); err != nil {
		return err
	}
	r, err := router.New(generator, router.WithLogger(options.logger))
	if err != nil {
		return err
	}

	reporter := supervisor.NewStepReporter(a.channel, a.settings)
	engineOpts := []workflow.EngineOption{
		workflow.WithMonitor(reporter),
		workflow.WithLogger(options.logger),
		workflow.WithTracerProvider(options.tracerProvider),
		workflow.WithClock(options.now),
	}

	qp, err := qa.New(generator, a.store, a.settings, a.channel, qa.WithLogger(options.logger))
	if err != nil {
		return err
	}
	if a.qa, err = newEngine(qp.Graph, checkpoints, engineOpts); err != nil {
		return err
	}

	if a.discovery, err = discovery.New(generator, a.store, a.settings, a.channel, discovery.WithLogger(options.logger)); err != nil {
		return err
	}
	if a.exploration, err = newEngine(a.discovery.Graph, checkpoints, engineOpts); err != nil {
		return err
	}

	sup, err := supervisor.New(supervisor.Components{
		Store:       a.store,
		Ingestion:   a.ingestion,
		Router:      r,
		QA:          a.qa,
		Exploration: a.exploration,
		Settings:    a.settings,
		Channel:     a.channel,
	}, supervisor.WithLogger(options.logger), supervisor.WithClock(options.now))
	if err != nil {
		return err
	}
	a.supervisor, err = newEngine(sup.Graph, checkpoints, engineOpts)
	return err
}

func newEngine(build func() (*workflow.Graph, error), store *badger.CheckpointRepository, opts []workflow.EngineOption) (*workflow.Engine, error) {
	g, err := build()
	if err != nil {
		return nil, err
	}
	return workflow.NewEngine(g, store, opts...)
}

// Close releases the worker pools, the AI provider and the stores.
func (a *Agent) Close() error {
	if a.discovery != nil {
		a.discovery.Release()
	}
	if a.ingestion != nil {
		a.ingestion.Release()
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Error("error closing AI provider", "err", err)
		}
	}

	var errs []error
	if a.checkpointBackend != nil {
		if err := a.checkpointBackend.Close(); err != nil {
			a.logger.Error("error closing checkpoint storage", "err", err)
			errs = append(errs, err)
		}
	}
	if a.documentBackend != nil {
		if err := a.documentBackend.Close(); err != nil {
			a.logger.Error("error closing document storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Settings returns a copy of the configuration in effect.
func (a *Agent) Settings() *config.Config {
	return a.settings.Load().Clone()
}

// UpdateConfig replaces the configuration. Steps pick it up the next time
// they execute, including steps of suspended threads.
func (a *Agent) UpdateConfig(cfg *config.Config) error {
	if err := a.settings.Store(cfg); err != nil {
		return err
	}
	a.logger.Info("configuration updated", "verbosity", cfg.Verbosity, "decomposition", cfg.Decomposition)
	return nil
}

// Count returns the number of chunks in the knowledge base.
func (a *Agent) Count(ctx context.Context) (int, error) {
	return a.store.Count(ctx)
}

// Ingest adds uploads to the knowledge base outside of a conversation.
func (a *Agent) Ingest(ctx context.Context, uploads []core.Upload, monitor ingestion.Monitor) (*ingestion.Report, error) {
	return a.ingestion.Ingest(ctx, uploads, monitor)
}

func (a *Agent) lock(thread string) func() {
	mu, _ := a.threads.LoadOrStore(thread, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Start begins a turn on thread. Text starting with "/" is an ingestion
// command ("/Create" or "/Update") optionally followed by file paths;
// anything else is a request. A pending suspension on the thread is
// discarded.
func (a *Agent) Start(ctx context.Context, thread, text string, uploads []core.Upload) (*workflow.Outcome, error) {
	if thread == "" {
		return nil, workflow.ErrThreadRequired
	}
	unlock := a.lock(thread)
	defer unlock()

	initial, err := a.turnState(ctx, thread, text, uploads)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("turn started", "thread", thread, "command", initial.Command.String(), "uploads", len(initial.Uploads))
	out, err := a.supervisor.Run(ctx, thread, initial)
	return a.finish(ctx, thread, out, err)
}

// Resume answers the pending suspension on thread. A nil input means the
// user did not answer in time.
func (a *Agent) Resume(ctx context.Context, thread string, in *workflow.HumanInput) (*workflow.Outcome, error) {
	unlock := a.lock(thread)
	defer unlock()

	out, err := a.supervisor.Resume(ctx, thread, in)
	return a.finish(ctx, thread, out, err)
}

// Handle runs a turn to completion, asking the channel whenever the
// workflow suspends.
func (a *Agent) Handle(ctx context.Context, thread, text string, uploads []core.Upload) (*workflow.Outcome, error) {
	out, err := a.Start(ctx, thread, text, uploads)
	for err == nil && out.Suspended != nil {
		susp := out.Suspended
		reply, askErr := a.channel.Ask(ctx, formatPrompt(susp), susp.Remaining(a.now()))

		var in *workflow.HumanInput
		switch {
		case errors.Is(askErr, core.ErrTimeoutExpired):
			a.logger.Debug("no reply before deadline", "thread", thread, "kind", susp.Kind)
		case askErr != nil:
			return nil, askErr
		default:
			in = &workflow.HumanInput{Text: reply}
		}
		out, err = a.Resume(ctx, thread, in)
	}
	return out, err
}

// Suspension returns the pending suspension on thread, or nil.
func (a *Agent) Suspension(ctx context.Context, thread string) (*workflow.Suspension, error) {
	return a.supervisor.Suspension(ctx, thread)
}

// Forget drops the checkpoints of thread and of its sub-pipelines.
func (a *Agent) Forget(ctx context.Context, thread string) error {
	unlock := a.lock(thread)
	defer unlock()

	return errors.Join(
		a.supervisor.Forget(ctx, thread),
		a.qa.Forget(ctx, supervisor.SubThread(thread, qa.GraphName)),
		a.exploration.Forget(ctx, supervisor.SubThread(thread, discovery.GraphName)),
	)
}

// turnState carries the conversation history of thread into a new turn.
func (a *Agent) turnState(ctx context.Context, thread, text string, uploads []core.Upload) (workflow.State, error) {
	var st workflow.State
	prev, err := a.supervisor.State(ctx, thread)
	switch {
	case err == nil:
		st.Messages = prev.Messages
	case !errors.Is(err, workflow.ErrThreadNotFound):
		return st, err
	}

	text = strings.TrimSpace(text)
	st.Uploads = slices.Clone(uploads)
	if strings.HasPrefix(text, "/") {
		name, rest, _ := strings.Cut(text, " ")
		cmd, err := core.ParseIngestCommand(name)
		if err != nil {
			return st, err
		}
		st.Command = cmd
		st.Uploads = append(st.Uploads, supervisor.ParseUploads(rest)...)
		return st, nil
	}
	if text != "" {
		st.Request = text
		st.Messages = append(st.Messages, core.HumanMessage(text))
	}
	return st, nil
}

// finish reports service failures to the user. Other errors are returned as they are.
func (a *Agent) finish(ctx context.Context, thread string, out *workflow.Outcome, err error) (*workflow.Outcome, error) {
	if err == nil {
		return out, nil
	}
	var se *core.ServiceError
	if errors.As(err, &se) {
		a.logger.Error("turn failed", "thread", thread, "op", se.Op, "err", err)
		if sendErr := a.channel.Send(ctx, fmt.Sprintf(msgApology, se)); sendErr != nil {
			a.logger.Warn("failed to send apology", "err", sendErr)
		}
	}
	return nil, err
}

func formatPrompt(s *workflow.Suspension) string {
	if len(s.Payload) == 0 {
		return s.Prompt
	}
	var sb strings.Builder
	for _, item := range s.Payload {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteByte('\n')
	}
	sb.WriteString(s.Prompt)
	return sb.String()
}
