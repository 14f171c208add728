package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/storage"
	"github.com/poiesic/pairreader/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newTestStore(t *testing.T) storage.CheckpointRepository {
	t.Helper()
	_, checkpoints, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return checkpoints
}

// recordingMonitor captures monitor callbacks.
type recordingMonitor struct {
	mu        sync.Mutex
	started   []string
	finished  []string
	suspended []string
	failed    []string
}

func (m *recordingMonitor) StepStarted(_ context.Context, info StepInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, info.Step)
}

func (m *recordingMonitor) StepFinished(_ context.Context, info StepInfo, next string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, info.Step+"->"+next)
}

func (m *recordingMonitor) StepSuspended(_ context.Context, info StepInfo, _ *Suspension) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = append(m.suspended, info.Step)
}

func (m *recordingMonitor) StepFailed(_ context.Context, info StepInfo, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, info.Step)
}

func appendStep(text string) StepFunc {
	return func(_ context.Context, s State, _ *HumanInput) (Patch, error) {
		return Patch{Messages: []core.Message{core.AIMessage(text)}, Answer: Set(s.Answer + text)}, nil
	}
}

func newLinearEngine(t *testing.T, store storage.CheckpointRepository, opts ...EngineOption) *Engine {
	t.Helper()
	g, err := NewGraph("linear").
		AddStep("a", appendStep("a")).
		AddStep("b", appendStep("b")).
		AddEdge("a", "b").
		AddEdge("b", End).
		SetEntry("a").
		Compile()
	require.NoError(t, err)
	e, err := NewEngine(g, store, opts...)
	require.NoError(t, err)
	return e
}

// approvalGraph suspends at "ask" and records the human input in Request.
func approvalGraph(t *testing.T, timeout time.Duration) *Graph {
	t.Helper()
	g, err := NewGraph("approval").
		AddStep("prepare", func(context.Context, State, *HumanInput) (Patch, error) {
			return Patch{SubRequests: Set([]string{"one", "two"})}, nil
		}).
		AddStep("ask", func(_ context.Context, s State, in *HumanInput) (Patch, error) {
			if in == nil {
				return Patch{Messages: []core.Message{core.AIMessage("please review")}},
					Suspend(KindApproval, "approve?", timeout, s.SubRequests...)
			}
			if in.TimedOut {
				return Patch{Request: Set("timeout")}, nil
			}
			return Patch{Request: Set(in.Text)}, nil
		}).
		AddStep("finish", appendStep("done")).
		AddEdge("prepare", "ask").
		AddEdge("ask", "finish").
		AddEdge("finish", End).
		SetEntry("prepare").
		Compile()
	require.NoError(t, err)
	return g
}

func TestNewEngine_RequiresDeps(t *testing.T) {
	g, err := NewGraph("g").AddStep("a", nop).AddEdge("a", End).SetEntry("a").Compile()
	require.NoError(t, err)

	_, err = NewEngine(nil, newTestStore(t))
	assert.ErrorIs(t, err, ErrGraphRequired)

	_, err = NewEngine(g, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewEngine(g, newTestStore(t), WithMaxSteps(0))
	assert.Error(t, err)
}

func TestEngine_RunToCompletion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	monitor := &recordingMonitor{}
	e := newLinearEngine(t, store, WithMonitor(monitor), WithTracerProvider(noop.NewTracerProvider()))

	out, err := e.Run(ctx, "t1", State{Request: "q"})
	require.NoError(t, err)
	assert.True(t, out.Done())
	assert.Equal(t, "ab", out.State.Answer)
	assert.Equal(t, "q", out.State.Request)
	assert.Len(t, out.State.Messages, 2)

	assert.Equal(t, []string{"a", "b"}, monitor.started)
	assert.Equal(t, []string{"a->b", "b->" + End}, monitor.finished)

	history, err := e.History(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, history, 2, "one checkpoint per step")
	assert.Equal(t, "b", history[0].Cursor)
	assert.Equal(t, End, history[1].Cursor)
	assert.Equal(t, uint64(1), history[0].Sequence)
	assert.Equal(t, uint64(2), history[1].Sequence)
	assert.Equal(t, "a", history[0].State.Answer)
	assert.NotEqual(t, history[0].ID, history[1].ID)

	state, err := e.State(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "ab", state.Answer)
}

func TestEngine_StepReceivesCopy(t *testing.T) {
	ctx := context.Background()
	g, err := NewGraph("copy").
		AddStep("mutate", func(_ context.Context, s State, _ *HumanInput) (Patch, error) {
			s.SubRequests[0] = "mutated"
			s.Request = "mutated"
			return Patch{}, nil
		}).
		AddEdge("mutate", End).
		SetEntry("mutate").
		Compile()
	require.NoError(t, err)
	e, err := NewEngine(g, newTestStore(t))
	require.NoError(t, err)

	initial := State{Request: "q", SubRequests: []string{"q"}}
	out, err := e.Run(ctx, "t1", initial)
	require.NoError(t, err)
	assert.Equal(t, "q", out.State.Request)
	assert.Equal(t, []string{"q"}, out.State.SubRequests)
	assert.Equal(t, []string{"q"}, initial.SubRequests)
}

func TestEngine_SuspendAndResume(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	monitor := &recordingMonitor{}
	e, err := NewEngine(approvalGraph(t, 30*time.Second), newTestStore(t),
		WithMonitor(monitor), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	out, err := e.Run(ctx, "t1", State{})
	require.NoError(t, err)
	require.False(t, out.Done())
	susp := out.Suspended
	assert.Equal(t, "ask", susp.Step)
	assert.Equal(t, KindApproval, susp.Kind)
	assert.Equal(t, "approve?", susp.Prompt)
	assert.Equal(t, []string{"one", "two"}, susp.Payload)
	assert.Equal(t, now.Add(30*time.Second), susp.Deadline)
	assert.Len(t, out.State.Messages, 1, "patch of the suspending step is merged")
	assert.Equal(t, []string{"ask"}, monitor.suspended)

	pending, err := e.Suspension(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "ask", pending.Step)

	history, err := e.History(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "ask", history[1].Cursor, "checkpoint stays at the suspended step")

	out, err = e.Resume(ctx, "t1", &HumanInput{Text: "yes"})
	require.NoError(t, err)
	assert.True(t, out.Done())
	assert.Equal(t, "yes", out.State.Request)
	assert.Equal(t, "done", out.State.Answer)

	pending, err = e.Suspension(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestEngine_ResumeTimeouts(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   *HumanInput
		elapsed time.Duration
		want    string
	}{
		{name: "nil input", input: nil, elapsed: time.Second, want: "timeout"},
		{name: "deadline passed", input: &HumanInput{Text: "late"}, elapsed: time.Minute, want: "timeout"},
		{name: "within deadline", input: &HumanInput{Text: "ok"}, elapsed: 10 * time.Second, want: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := start
			e, err := NewEngine(approvalGraph(t, 30*time.Second), newTestStore(t),
				WithClock(func() time.Time { return now }))
			require.NoError(t, err)

			_, err = e.Run(ctx, "t1", State{})
			require.NoError(t, err)

			now = start.Add(tt.elapsed)
			out, err := e.Resume(ctx, "t1", tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.State.Request)
		})
	}
}

func TestEngine_ResumeErrors(t *testing.T) {
	ctx := context.Background()
	e := newLinearEngine(t, newTestStore(t))

	_, err := e.Resume(ctx, "missing", &HumanInput{Text: "x"})
	assert.ErrorIs(t, err, ErrThreadNotFound)

	_, err = e.Run(ctx, "t1", State{})
	require.NoError(t, err)
	_, err = e.Resume(ctx, "t1", &HumanInput{Text: "x"})
	assert.ErrorIs(t, err, ErrNotSuspended)

	_, err = e.State(ctx, "missing")
	assert.ErrorIs(t, err, ErrThreadNotFound)

	_, err = e.Run(ctx, "", State{})
	assert.ErrorIs(t, err, ErrThreadRequired)
}

func TestEngine_RunDiscardsSuspension(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(approvalGraph(t, 0), newTestStore(t))
	require.NoError(t, err)

	out, err := e.Run(ctx, "t1", State{})
	require.NoError(t, err)
	require.NotNil(t, out.Suspended)
	assert.True(t, out.Suspended.Deadline.IsZero(), "zero timeout means no deadline")

	out, err = e.Run(ctx, "t1", State{})
	require.NoError(t, err)
	require.NotNil(t, out.Suspended)
	assert.Len(t, out.State.Messages, 1, "fresh run starts from the new initial state")

	history, err := e.History(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, history, 4)
	assert.Equal(t, uint64(4), history[3].Sequence)
}

func TestEngine_HistoryBoundedAcrossRuns(t *testing.T) {
	ctx := context.Background()
	backend, err := badger.OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	e := newLinearEngine(t, badger.NewCheckpointRepository(backend, badger.WithHistoryLimit(4)))

	for range 50 {
		out, err := e.Run(ctx, "t1", State{Request: "q"})
		require.NoError(t, err)
		require.True(t, out.Done())
	}

	history, err := e.History(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, uint64(100), history[3].Sequence)
	assert.Equal(t, End, history[3].Cursor)

	st, err := e.State(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "ab", st.Answer)
}

func TestEngine_UnknownEdgeTarget(t *testing.T) {
	ctx := context.Background()
	g, err := NewGraph("broken").
		AddStep("a", appendStep("a")).
		AddStep("b", appendStep("b")).
		AddEdge("a", "b").
		AddConditionalEdge("b", func(State) string { return "missing" }).
		SetEntry("a").
		Compile()
	require.NoError(t, err)
	monitor := &recordingMonitor{}
	e, err := NewEngine(g, newTestStore(t), WithMonitor(monitor))
	require.NoError(t, err)

	_, err = e.Run(ctx, "t1", State{})
	var gerr *core.GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "missing", gerr.Node)
	assert.Equal(t, []string{"b"}, monitor.failed)

	history, err := e.History(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, history, 1, "no checkpoint past the last good step")
	assert.Equal(t, "b", history[0].Cursor)
}

func TestEngine_MaxSteps(t *testing.T) {
	g, err := NewGraph("loop").
		AddStep("spin", nop).
		AddEdge("spin", "spin").
		SetEntry("spin").
		Compile()
	require.NoError(t, err)
	e, err := NewEngine(g, newTestStore(t), WithMaxSteps(5))
	require.NoError(t, err)

	_, err = e.Run(context.Background(), "t1", State{})
	var gerr *core.GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "spin", gerr.Node)

	history, err := e.History(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, history, 5)
}

func TestEngine_StepError(t *testing.T) {
	boom := core.NewServiceError("generate", errors.New("boom"))
	g, err := NewGraph("failing").
		AddStep("a", appendStep("a")).
		AddStep("b", func(context.Context, State, *HumanInput) (Patch, error) {
			return Patch{Answer: Set("partial")}, boom
		}).
		AddEdge("a", "b").
		AddEdge("b", End).
		SetEntry("a").
		Compile()
	require.NoError(t, err)
	e, err := NewEngine(g, newTestStore(t))
	require.NoError(t, err)

	_, err = e.Run(context.Background(), "t1", State{})
	require.Error(t, err)
	assert.True(t, core.IsServiceError(err))
	assert.ErrorIs(t, err, boom)

	state, err := e.State(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "a", state.Answer, "failed step patch is not merged")
}

func TestEngine_ConditionalLoop(t *testing.T) {
	g, err := NewGraph("counter").
		AddStep("inc", func(_ context.Context, s State, _ *HumanInput) (Patch, error) {
			return Patch{SubRequests: Set(append(s.SubRequests, "x"))}, nil
		}).
		AddConditionalEdge("inc", func(s State) string {
			if len(s.SubRequests) < 3 {
				return "inc"
			}
			return End
		}).
		SetEntry("inc").
		Compile()
	require.NoError(t, err)
	e, err := NewEngine(g, newTestStore(t))
	require.NoError(t, err)

	out, err := e.Run(context.Background(), "t1", State{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "x", "x"}, out.State.SubRequests)
}

func TestEngine_Forget(t *testing.T) {
	ctx := context.Background()
	e := newLinearEngine(t, newTestStore(t))
	_, err := e.Run(ctx, "t1", State{})
	require.NoError(t, err)

	require.NoError(t, e.Forget(ctx, "t1"))
	_, err = e.State(ctx, "t1")
	assert.ErrorIs(t, err, ErrThreadNotFound)
}

func TestEngine_ThreadsShareStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	linear := newLinearEngine(t, store)
	approval, err := NewEngine(approvalGraph(t, 0), store)
	require.NoError(t, err)

	_, err = linear.Run(ctx, "t1", State{})
	require.NoError(t, err)
	_, err = approval.Run(ctx, "t1", State{})
	require.NoError(t, err)

	s, err := linear.Suspension(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, s, "graphs use separate namespaces")
	s, err = approval.Suspension(ctx, "t1")
	require.NoError(t, err)
	assert.NotNil(t, s)
}
