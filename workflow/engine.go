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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/storage"
)

// DefaultMaxSteps bounds the number of steps a single Run or Resume may execute.
const DefaultMaxSteps = 100

const tracerName = "github.com/poiesic/pairreader/workflow"

// Engine executes a graph over a thread, checkpointing after every step.
// Calls for the same thread must not overlap; callers serialize them.
type Engine struct {
	graph    *Graph
	store    storage.CheckpointRepository
	monitor  Monitor
	maxSteps int
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine) error

// WithMonitor sets the step monitor.
func WithMonitor(monitor Monitor) EngineOption {
	return func(e *Engine) error {
		if monitor == nil {
			monitor = noopMonitor{}
		}
		e.monitor = monitor
		return nil
	}
}

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("max steps must be positive, got %d", n)
		}
		e.maxSteps = n
		return nil
	}
}

// WithTracerProvider sets the provider for step spans.
// Default is the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(e *Engine) error {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithClock replaces time.Now for deadline computation.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) error {
		if now != nil {
			e.now = now
		}
		return nil
	}
}

// NewEngine creates an engine for g storing checkpoints in store under the
// graph name.
func NewEngine(g *Graph, store storage.CheckpointRepository, opts ...EngineOption) (*Engine, error) {
	if g == nil {
		return nil, ErrGraphRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	e := &Engine{
		graph:    g,
		store:    store,
		monitor:  noopMonitor{},
		maxSteps: DefaultMaxSteps,
		tracer:   otel.GetTracerProvider().Tracer(tracerName),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "engine", "graph", g.name)
	return e, nil
}

// Graph returns the graph executed by the engine.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Run executes the graph from its entry with initial. A pending suspension
// on the thread is discarded.
func (e *Engine) Run(ctx context.Context, threadID string, initial State) (*Outcome, error) {
	if threadID == "" {
		return nil, ErrThreadRequired
	}
	latest, err := e.latest(ctx, threadID)
	if err != nil {
		return nil, err
	}
	var seq uint64
	if latest != nil {
		seq = latest.Sequence
		if latest.Suspension != nil {
			e.logger.Warn("discarding pending suspension", "thread", threadID, "step", latest.Suspension.Step, "kind", latest.Suspension.Kind)
		}
	}
	return e.loop(ctx, threadID, e.graph.entry, initial.Clone(), nil, seq)
}

// Resume re-executes the suspended step of a thread with in. A nil input or
// one arriving after the deadline is replaced by a timed-out input.
func (e *Engine) Resume(ctx context.Context, threadID string, in *HumanInput) (*Outcome, error) {
	latest, err := e.latest(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	susp := latest.Suspension
	if susp == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotSuspended, threadID)
	}
	if in == nil || susp.Expired(e.now()) {
		e.logger.Debug("suspension timed out", "thread", threadID, "step", susp.Step, "kind", susp.Kind)
		in = &HumanInput{TimedOut: true}
	}
	return e.loop(ctx, threadID, latest.Cursor, latest.State, in, latest.Sequence)
}

// State returns the latest checkpointed state of a thread.
func (e *Engine) State(ctx context.Context, threadID string) (State, error) {
	latest, err := e.latest(ctx, threadID)
	if err != nil {
		return State{}, err
	}
	if latest == nil {
		return State{}, fmt.Errorf("%w: %s", ErrThreadNotFound, threadID)
	}
	return latest.State, nil
}

// Suspension returns the pending suspension of a thread, or nil.
func (e *Engine) Suspension(ctx context.Context, threadID string) (*Suspension, error) {
	latest, err := e.latest(ctx, threadID)
	if err != nil || latest == nil {
		return nil, err
	}
	return latest.Suspension, nil
}

// History returns every checkpoint of a thread, oldest first.
func (e *Engine) History(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	stored, err := e.store.ListCheckpoints(ctx, e.graph.name, threadID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	out := make([]*Checkpoint, 0, len(stored))
	for _, sc := range stored {
		cp, err := decodeCheckpoint(sc)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// Forget deletes every checkpoint of a thread.
func (e *Engine) Forget(ctx context.Context, threadID string) error {
	return e.store.DeleteThread(ctx, e.graph.name, threadID)
}

func (e *Engine) latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	sc, err := e.store.LoadCheckpoint(ctx, e.graph.name, threadID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if sc == nil {
		return nil, nil
	}
	return decodeCheckpoint(sc)
}

func (e *Engine) loop(ctx context.Context, threadID, cursor string, state State, in *HumanInput, seq uint64) (*Outcome, error) {
	for steps := 0; cursor != End; steps++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if steps >= e.maxSteps {
			return nil, &core.GraphError{Graph: e.graph.name, Node: cursor, Reason: fmt.Sprintf("exceeded %d steps", e.maxSteps)}
		}
		fn, ok := e.graph.steps[cursor]
		if !ok {
			return nil, &core.GraphError{Graph: e.graph.name, Node: cursor, Reason: "cursor names unknown step"}
		}

		info := StepInfo{Graph: e.graph.name, Thread: threadID, Step: cursor, Resumed: in != nil, Sequence: seq + 1}
		patch, elapsed, err := e.execute(ctx, info, fn, state, in)
		in = nil

		var intr *Interrupt
		if errors.As(err, &intr) {
			state = state.Apply(patch)
			susp := &Suspension{
				ThreadID: threadID,
				Graph:    e.graph.name,
				Step:     cursor,
				Kind:     intr.Kind,
				Prompt:   intr.Prompt,
				Payload:  intr.Payload,
			}
			if intr.Timeout > 0 {
				susp.Deadline = e.now().Add(intr.Timeout).UTC()
			}
			seq++
			if err := e.save(ctx, threadID, cursor, seq, state, susp); err != nil {
				return nil, err
			}
			e.logger.Debug("step suspended", "thread", threadID, "step", cursor, "kind", intr.Kind)
			e.monitor.StepSuspended(ctx, info, susp)
			return &Outcome{State: state.Clone(), Suspended: susp}, nil
		}
		if err != nil {
			e.logger.Error("step failed", "thread", threadID, "step", cursor, "err", err)
			e.monitor.StepFailed(ctx, info, err)
			return nil, fmt.Errorf("%s/%s: %w", e.graph.name, cursor, err)
		}

		state = state.Apply(patch)
		next := e.graph.edges[cursor](state)
		if next != End && !e.graph.has(next) {
			gerr := &core.GraphError{Graph: e.graph.name, Node: next, Reason: fmt.Sprintf("edge from %q names unknown node", cursor)}
			e.monitor.StepFailed(ctx, info, gerr)
			return nil, gerr
		}

		seq++
		if err := e.save(ctx, threadID, next, seq, state, nil); err != nil {
			return nil, err
		}
		e.monitor.StepFinished(ctx, info, next, elapsed)
		cursor = next
	}
	return &Outcome{State: state.Clone()}, nil
}

func (e *Engine) execute(ctx context.Context, info StepInfo, fn StepFunc, state State, in *HumanInput) (Patch, time.Duration, error) {
	ctx, span := e.tracer.Start(ctx, "graph.step", trace.WithAttributes(
		attribute.String("workflow.graph", info.Graph),
		attribute.String("workflow.thread", info.Thread),
		attribute.String("workflow.step", info.Step),
		attribute.Bool("workflow.resumed", info.Resumed),
		attribute.Int64("workflow.sequence", int64(info.Sequence)),
	))
	defer span.End()
	ctx = context.WithValue(ctx, stepInfoKey{}, info)

	e.logger.Debug("step started", "thread", info.Thread, "step", info.Step, "resumed", info.Resumed)
	e.monitor.StepStarted(ctx, info)

	start := time.Now()
	patch, err := fn(ctx, state.Clone(), in)
	elapsed := time.Since(start)

	var intr *Interrupt
	switch {
	case errors.As(err, &intr):
		span.SetAttributes(attribute.String("workflow.suspended", intr.Kind))
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return patch, elapsed, err
}

func (e *Engine) save(ctx context.Context, threadID, cursor string, seq uint64, state State, susp *Suspension) error {
	sc, err := encodeCheckpoint(&Checkpoint{
		ID:         uuid.NewString(),
		Graph:      e.graph.name,
		ThreadID:   threadID,
		Cursor:     cursor,
		Sequence:   seq,
		State:      state,
		Suspension: susp,
		CreatedAt:  e.now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := e.store.SaveCheckpoint(ctx, sc); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
