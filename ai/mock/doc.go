// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Generator, ai.Embedder
// and ai.Provider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	gen := mock.NewMockGenerator().
//	    WithGenerateFunc(func(ctx context.Context, msgs []core.Message) (string, error) {
//	        return "an answer", nil
//	    })
//
//	// Select a tool
//	gen.WithToolFunc(func(ctx context.Context, msgs []core.Message, tools []ai.Tool) (*ai.ToolResponse, error) {
//	    return mock.ToolChoice("qa_agent"), nil
//	})
//
//	// Check call counts
//	count := gen.GenerateCalls()
//
// # Default Behavior
//
//   - MockGenerator: echoes the last message, streams it as a single chunk, leaves structured output zero-valued and selects no tool
//   - MockEmbedder: returns deterministic unit vectors based on a text hash
//   - MockProvider: aggregates a mock generator and embedder
package mock
