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
	"time"
)

// Suspension kinds raised by the pipelines.
const (
	KindApproval = "approval"
	KindUpload   = "upload"
)

// Interrupt is returned as the error of a step that needs human input.
// The step's patch is still merged; the run stops and the step is executed
// again on Resume with the human input.
type Interrupt struct {
	Kind    string
	Prompt  string
	Payload []string
	// Timeout bounds how long the engine waits for input. Zero means no deadline.
	Timeout time.Duration
}

// Suspend builds an Interrupt.
func Suspend(kind, prompt string, timeout time.Duration, payload ...string) *Interrupt {
	return &Interrupt{Kind: kind, Prompt: prompt, Payload: payload, Timeout: timeout}
}

func (i *Interrupt) Error() string {
	return "workflow suspended for " + i.Kind
}

// HumanInput resumes a suspended step.
type HumanInput struct {
	Text string
	// TimedOut is set by the engine when no input arrived before the deadline.
	TimedOut bool
}

// Suspension describes a pending interrupt on a thread.
type Suspension struct {
	ThreadID string    `json:"thread_id"`
	Graph    string    `json:"graph"`
	Step     string    `json:"step"`
	Kind     string    `json:"kind"`
	Prompt   string    `json:"prompt"`
	Payload  []string  `json:"payload,omitempty"`
	Deadline time.Time `json:"deadline,omitzero"`
}

// Remaining returns the time left until the deadline, or zero when the
// suspension has no deadline.
func (s *Suspension) Remaining(now time.Time) time.Duration {
	if s.Deadline.IsZero() {
		return 0
	}
	return max(s.Deadline.Sub(now), time.Nanosecond)
}

// Expired reports whether the deadline has passed at now.
func (s *Suspension) Expired(now time.Time) bool {
	return !s.Deadline.IsZero() && !now.Before(s.Deadline)
}

// Outcome is the result of Run or Resume. Suspended is nil when the run
// reached the end of the graph.
type Outcome struct {
	State     State
	Suspended *Suspension
}

// Done reports whether the run completed.
func (o *Outcome) Done() bool {
	return o.Suspended == nil
}
