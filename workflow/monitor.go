package workflow

import (
	"context"
	"time"
)

// StepInfo identifies a step execution.
type StepInfo struct {
	Graph    string
	Thread   string
	Step     string
	Resumed  bool
	Sequence uint64
}

type stepInfoKey struct{}

// StepInfoFromContext returns the step a context was handed to by the engine.
func StepInfoFromContext(ctx context.Context) (StepInfo, bool) {
	info, ok := ctx.Value(stepInfoKey{}).(StepInfo)
	return info, ok
}

// Monitor provides hooks to observe step execution.
type Monitor interface {
	StepStarted(ctx context.Context, info StepInfo)
	StepFinished(ctx context.Context, info StepInfo, next string, elapsed time.Duration)
	StepSuspended(ctx context.Context, info StepInfo, suspension *Suspension)
	StepFailed(ctx context.Context, info StepInfo, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = noopMonitor{}

func (noopMonitor) StepStarted(context.Context, StepInfo)                         {}
func (noopMonitor) StepFinished(context.Context, StepInfo, string, time.Duration) {}
func (noopMonitor) StepSuspended(context.Context, StepInfo, *Suspension)          {}
func (noopMonitor) StepFailed(context.Context, StepInfo, error)                   {}
