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
	"fmt"

	"github.com/poiesic/pairreader/core"
)

// End is the terminal pseudo-node.
const End = "__end__"

// StepFunc executes one node. in is nil on first execution and carries the
// human input when the step is re-executed after a suspension.
type StepFunc func(ctx context.Context, state State, in *HumanInput) (Patch, error)

// EdgeFunc picks the next node from the merged state. It must be pure.
type EdgeFunc func(state State) string

// Graph is a compiled, immutable set of steps and edges.
type Graph struct {
	name  string
	entry string
	steps map[string]StepFunc
	edges map[string]EdgeFunc
	order []string
}

// Name returns the graph name, used as checkpoint namespace.
func (g *Graph) Name() string { return g.name }

// Entry returns the first step.
func (g *Graph) Entry() string { return g.entry }

// Steps returns step names in insertion order.
func (g *Graph) Steps() []string { return append([]string(nil), g.order...) }

func (g *Graph) has(step string) bool {
	_, ok := g.steps[step]
	return ok
}

// Builder assembles a Graph. Errors are collected and reported by Compile.
type Builder struct {
	g      *Graph
	static []staticEdge // unconditional targets, checked in Compile
	err    error
}

type staticEdge struct{ from, to string }

// NewGraph starts building a graph.
func NewGraph(name string) *Builder {
	return &Builder{g: &Graph{
		name:  name,
		steps: make(map[string]StepFunc),
		edges: make(map[string]EdgeFunc),
	}}
}

func (b *Builder) fail(node, format string, args ...any) *Builder {
	if b.err == nil {
		b.err = &core.GraphError{Graph: b.g.name, Node: node, Reason: fmt.Sprintf(format, args...)}
	}
	return b
}

// AddStep registers a step.
func (b *Builder) AddStep(name string, fn StepFunc) *Builder {
	switch {
	case name == "" || name == End:
		return b.fail(name, "reserved or empty step name")
	case fn == nil:
		return b.fail(name, "nil step function")
	case b.g.has(name):
		return b.fail(name, "duplicate step")
	}
	b.g.steps[name] = fn
	b.g.order = append(b.g.order, name)
	return b
}

// AddEdge adds an unconditional edge.
func (b *Builder) AddEdge(from, to string) *Builder {
	if to == "" {
		return b.fail(from, "empty edge target")
	}
	if to != End {
		b.static = append(b.static, staticEdge{from, to})
	}
	return b.addEdge(from, func(State) string { return to })
}

// AddConditionalEdge adds an edge whose target depends on the state.
// Targets are validated when the edge is taken.
func (b *Builder) AddConditionalEdge(from string, fn EdgeFunc) *Builder {
	if fn == nil {
		return b.fail(from, "nil edge function")
	}
	return b.addEdge(from, fn)
}

func (b *Builder) addEdge(from string, fn EdgeFunc) *Builder {
	if _, dup := b.g.edges[from]; dup {
		return b.fail(from, "step already has an outgoing edge")
	}
	b.g.edges[from] = fn
	return b
}

// SetEntry sets the first step.
func (b *Builder) SetEntry(name string) *Builder {
	b.g.entry = name
	return b
}

// Compile validates and returns the graph.
func (b *Builder) Compile() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	g := b.g
	if g.name == "" {
		return nil, &core.GraphError{Reason: "graph has no name"}
	}
	if !g.has(g.entry) {
		return nil, &core.GraphError{Graph: g.name, Node: g.entry, Reason: "entry is not a step"}
	}
	for _, e := range b.static {
		if !g.has(e.to) {
			return nil, &core.GraphError{Graph: g.name, Node: e.to, Reason: fmt.Sprintf("edge from %q names unknown node", e.from)}
		}
	}
	for from := range g.edges {
		if !g.has(from) {
			return nil, &core.GraphError{Graph: g.name, Node: from, Reason: "edge from unknown step"}
		}
	}
	for _, name := range g.order {
		if _, ok := g.edges[name]; !ok {
			return nil, &core.GraphError{Graph: g.name, Node: name, Reason: "step has no outgoing edge"}
		}
	}
	return g, nil
}
