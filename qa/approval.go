package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/pairreader/ai"
	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/workflow"
)

// approvalReply is the structured form of the user's review.
type approvalReply struct {
	Action      string   `json:"action" jsonschema:"enum=proceed,enum=revise"`
	SubRequests []string `json:"sub_requests,omitempty" jsonschema_description:"Edited sub-queries, only when the user changed them"`
	Feedback    string   `json:"feedback,omitempty" jsonschema_description:"User guidance for regenerating the sub-queries"`
}

var approvalSchema = ai.MustSchemaFor[approvalReply]("approval_decision")

func (r approvalReply) decision() (*core.ApprovalDecision, error) {
	d := &core.ApprovalDecision{SubRequests: r.SubRequests, Feedback: r.Feedback}
	switch r.Action {
	case "proceed":
		d.Action = core.ApprovalProceed
	case "revise":
		d.Action = core.ApprovalRevise
	}
	if err := core.ValidateApprovalDecision(d); err != nil {
		return nil, err
	}
	return d, nil
}

// awaitApproval suspends until the user reviews the sub-requests. Without
// decomposition there is nothing to review and the step proceeds. A blank
// reply accepts the list as it is.
func (p *Pipeline) awaitApproval(ctx context.Context, s workflow.State, in *workflow.HumanInput) (workflow.Patch, error) {
	cfg := p.settings.Load()
	if !cfg.Decomposition {
		return workflow.Patch{Approval: workflow.Set(&core.ApprovalDecision{Action: core.ApprovalProceed})}, nil
	}
	if in == nil {
		return workflow.Patch{}, workflow.Suspend(workflow.KindApproval, msgAskFeedback, cfg.ApprovalTimeout, s.SubRequests...)
	}

	if in.TimedOut {
		if err := p.channel.Send(ctx, msgTimeout); err != nil {
			p.logger.Warn("failed to send notice", "err", err)
		}
		return workflow.Patch{
			Approval: workflow.Set(&core.ApprovalDecision{Action: core.ApprovalProceed, TimedOut: true}),
		}, nil
	}

	if strings.TrimSpace(in.Text) == "" {
		p.logger.Debug("empty approval reply, proceeding unmodified")
		return workflow.Patch{
			Approval: workflow.Set(&core.ApprovalDecision{Action: core.ApprovalProceed}),
		}, nil
	}

	exchange := []core.Message{core.AIMessage(msgAskFeedback), core.HumanMessage(in.Text)}
	msgs := append(append(s.Messages, exchange...), core.HumanMessage(buildApprovalPrompt(s.SubRequests, in.Text)))

	var reply approvalReply
	if err := p.generator.GenerateStructured(ctx, msgs, approvalSchema, &reply); err != nil {
		return workflow.Patch{}, fmt.Errorf("parse approval: %w", err)
	}
	decision, err := reply.decision()
	if err != nil {
		return workflow.Patch{}, core.NewServiceError("parse approval", err)
	}
	p.logger.Debug("approval parsed", "action", decision.Action, "revised", len(decision.SubRequests))

	patch := workflow.Patch{Messages: exchange, Approval: workflow.Set(decision)}
	if decision.Action == core.ApprovalProceed && len(decision.SubRequests) > 0 {
		patch.SubRequests = workflow.Set(decision.SubRequests)
	}
	return patch, nil
}
