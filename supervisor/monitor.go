package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/pairreader/channel"
	"github.com/poiesic/pairreader/config"
	"github.com/poiesic/pairreader/workflow"
)

// StepReporter is a workflow.Monitor that posts step progress to a channel
// once verbosity reaches config.VerbositySteps.
type StepReporter struct {
	channel  channel.Channel
	settings *config.Live
	logger   *slog.Logger
}

var _ workflow.Monitor = (*StepReporter)(nil)

// NewStepReporter creates a reporter writing to ch.
func NewStepReporter(ch channel.Channel, settings *config.Live) *StepReporter {
	return &StepReporter{channel: ch, settings: settings, logger: slog.Default().With("component", "step_reporter")}
}

func (r *StepReporter) enabled() bool {
	return r.settings.Load().Verbosity >= config.VerbositySteps
}

func (r *StepReporter) post(ctx context.Context, msg string) {
	if err := r.channel.Send(ctx, msg); err != nil {
		r.logger.Warn("failed to send step notice", "err", err)
	}
}

func (r *StepReporter) StepStarted(ctx context.Context, info workflow.StepInfo) {
	if r.enabled() {
		r.post(ctx, fmt.Sprintf(msgStepStarted, info.Graph, info.Step))
	}
}

func (r *StepReporter) StepFinished(ctx context.Context, info workflow.StepInfo, _ string, elapsed time.Duration) {
	if r.enabled() {
		r.post(ctx, fmt.Sprintf(msgStepFinished, info.Graph, info.Step, elapsed.Round(time.Millisecond)))
	}
}

func (r *StepReporter) StepSuspended(ctx context.Context, info workflow.StepInfo, s *workflow.Suspension) {
	if r.settings.Load().Verbosity >= config.VerbosityDebug {
		r.post(ctx, fmt.Sprintf("… %s/%s waiting for %s", info.Graph, info.Step, s.Kind))
	}
}

func (r *StepReporter) StepFailed(_ context.Context, info workflow.StepInfo, err error) {
	r.logger.Debug("step failed", "graph", info.Graph, "step", info.Step, "err", err)
}
