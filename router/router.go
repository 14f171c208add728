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

// Package router classifies a request as targeted QA or exploration.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/pairreader/ai"
	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/workflow"
)

// Tool names offered to the model.
const (
	ToolQA        = "qa_agent"
	ToolDiscovery = "discovery_agent"
)

var tools = []ai.Tool{
	{
		Name:        ToolQA,
		Description: "Handoff to the QA agent. Use for ALL regular questions and information requests (DEFAULT).",
		Parameters:  ai.EmptyObjectSchema(ToolQA),
	},
	{
		Name:        ToolDiscovery,
		Description: "Handoff to the discovery agent. Use ONLY when the user explicitly requests an overview, themes or exploration.",
		Parameters:  ai.EmptyObjectSchema(ToolDiscovery),
	},
}

// routes maps tool names onto routes. Anything else routes to QA.
var routes = map[string]core.Route{
	ToolQA:        core.RouteQA,
	ToolDiscovery: core.RouteExploration,
}

// ToolName returns the tool that selects route.
func ToolName(route core.Route) string {
	if route == core.RouteExploration {
		return ToolDiscovery
	}
	return ToolQA
}

// Router picks the pipeline for a request with one tool-selection call.
type Router struct {
	generator ai.Generator
	logger    *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a router. generator should already carry any fallback.
func New(generator ai.Generator, opts ...Option) (*Router, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	r := &Router{
		generator: generator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "router")
	return r, nil
}

// Classify returns the route for request. An unrecognized or missing tool
// selection routes to QA. Service failures are returned unchanged.
func (r *Router) Classify(ctx context.Context, request string) (core.Route, error) {
	msgs := []core.Message{core.HumanMessage(buildClassifyPrompt(request))}
	resp, err := r.generator.GenerateWithTools(ctx, msgs, tools)
	if err != nil {
		return core.RouteUnset, fmt.Errorf("classify: %w", err)
	}
	if resp == nil || resp.Call == nil {
		r.logger.Debug("no tool selected, defaulting to qa")
		return core.RouteQA, nil
	}
	route, ok := routes[resp.Call.Name]
	if !ok {
		r.logger.Warn("unknown tool selected, defaulting to qa", "tool", resp.Call.Name)
		return core.RouteQA, nil
	}
	return route, nil
}

// Step classifies the state request and records the route.
func (r *Router) Step(ctx context.Context, state workflow.State, _ *workflow.HumanInput) (workflow.Patch, error) {
	route, err := r.Classify(ctx, state.Request)
	if err != nil {
		return workflow.Patch{}, err
	}
	r.logger.Info("request routed", "route", route)
	return workflow.Patch{
		Route:    workflow.Set(route),
		Messages: []core.Message{core.AIMessage("Routing to " + ToolName(route))},
	}, nil
}
