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
	"maps"
	"reflect"
	"slices"

	"github.com/poiesic/pairreader/core"
)

// State is the record threaded through every step of a run. Steps receive
// a private copy and describe changes by returning a Patch.
type State struct {
	Messages    []core.Message          `json:"messages,omitempty"`
	Request     string                  `json:"request,omitempty"`
	Command     core.IngestCommand      `json:"command,omitempty"`
	Uploads     []core.Upload           `json:"uploads,omitempty"`
	SubRequests []string                `json:"sub_requests,omitempty"`
	Approval    *core.ApprovalDecision  `json:"approval,omitempty"`
	Passages    []core.Passage          `json:"passages,omitempty"`
	Sample      []core.ID               `json:"sample,omitempty"`
	Clusters    *core.ClusterAssignment `json:"clusters,omitempty"`
	Summaries   []core.ClusterSummary   `json:"summaries,omitempty"`
	Route       core.Route              `json:"route,omitempty"`
	Answer      string                  `json:"answer,omitempty"`
	// Streamed reports that Answer already reached the user chunk by chunk.
	Streamed bool `json:"streamed,omitempty"`
}

// Field is an optional patch value. The zero Field leaves the state unchanged.
type Field[T any] struct {
	Value T
	Set   bool
}

// Set wraps v as a Field that overwrites the state value.
func Set[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

func (f Field[T]) apply(dst *T) {
	if f.Set {
		*dst = f.Value
	}
}

// Patch is the partial update returned by a step. Messages are appended to
// the history; every other set field overwrites its state counterpart.
type Patch struct {
	Messages    []core.Message
	Request     Field[string]
	Command     Field[core.IngestCommand]
	Uploads     Field[[]core.Upload]
	SubRequests Field[[]string]
	Approval    Field[*core.ApprovalDecision]
	Passages    Field[[]core.Passage]
	Sample      Field[[]core.ID]
	Clusters    Field[*core.ClusterAssignment]
	Summaries   Field[[]core.ClusterSummary]
	Route       Field[core.Route]
	Answer      Field[string]
	Streamed    Field[bool]
}

// IsEmpty reports whether applying p would change nothing.
func (p Patch) IsEmpty() bool {
	return reflect.ValueOf(p).IsZero()
}

// Apply returns s with p merged in. s is not modified.
func (s State) Apply(p Patch) State {
	out := s
	if len(p.Messages) > 0 {
		out.Messages = append(slices.Clip(s.Messages), p.Messages...)
	}
	p.Request.apply(&out.Request)
	p.Command.apply(&out.Command)
	p.Uploads.apply(&out.Uploads)
	p.SubRequests.apply(&out.SubRequests)
	p.Approval.apply(&out.Approval)
	p.Passages.apply(&out.Passages)
	p.Sample.apply(&out.Sample)
	p.Clusters.apply(&out.Clusters)
	p.Summaries.apply(&out.Summaries)
	p.Route.apply(&out.Route)
	p.Answer.apply(&out.Answer)
	p.Streamed.apply(&out.Streamed)
	return out
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Messages = slices.Clone(s.Messages)
	out.Uploads = slices.Clone(s.Uploads)
	out.SubRequests = slices.Clone(s.SubRequests)
	out.Sample = slices.Clone(s.Sample)
	out.Summaries = slices.Clone(s.Summaries)

	if s.Passages != nil {
		out.Passages = make([]core.Passage, len(s.Passages))
		for i, p := range s.Passages {
			p.Metadata = maps.Clone(p.Metadata)
			out.Passages[i] = p
		}
	}
	if s.Approval != nil {
		a := *s.Approval
		a.SubRequests = slices.Clone(a.SubRequests)
		out.Approval = &a
	}
	if s.Clusters != nil {
		c := &core.ClusterAssignment{Noise: slices.Clone(s.Clusters.Noise)}
		for _, cl := range s.Clusters.Clusters {
			c.Clusters = append(c.Clusters, core.Cluster{Label: cl.Label, Members: slices.Clone(cl.Members)})
		}
		out.Clusters = c
	}
	return out
}

// Diff returns the patch that turns before into after. Messages appended
// after the common prefix become the patch messages.
func Diff(before, after State) Patch {
	var p Patch
	if n := len(before.Messages); len(after.Messages) > n && slices.Equal(before.Messages, after.Messages[:n]) {
		p.Messages = slices.Clone(after.Messages[n:])
	}
	diffField(&p.Request, before.Request, after.Request)
	diffField(&p.Command, before.Command, after.Command)
	diffField(&p.Uploads, before.Uploads, after.Uploads)
	diffField(&p.SubRequests, before.SubRequests, after.SubRequests)
	diffField(&p.Approval, before.Approval, after.Approval)
	diffField(&p.Passages, before.Passages, after.Passages)
	diffField(&p.Sample, before.Sample, after.Sample)
	diffField(&p.Clusters, before.Clusters, after.Clusters)
	diffField(&p.Summaries, before.Summaries, after.Summaries)
	diffField(&p.Route, before.Route, after.Route)
	diffField(&p.Answer, before.Answer, after.Answer)
	diffField(&p.Streamed, before.Streamed, after.Streamed)
	return p
}

func diffField[T any](dst *Field[T], before, after T) {
	if !reflect.DeepEqual(before, after) {
		*dst = Set(after)
	}
}
