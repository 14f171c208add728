package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/poiesic/pairreader/ai"
	"github.com/poiesic/pairreader/core"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields and is safe for
// concurrent use.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, echoes the content of the last message.
	GenerateFunc func(ctx context.Context, msgs []core.Message) (string, error)

	// StructuredFunc is called by GenerateStructured if set.
	// If nil, out is left untouched.
	StructuredFunc func(ctx context.Context, msgs []core.Message, schema *ai.Schema, out any) error

	// ToolFunc is called by GenerateWithTools if set.
	// If nil, no tool is selected.
	ToolFunc func(ctx context.Context, msgs []core.Message, tools []ai.Tool) (*ai.ToolResponse, error)

	mu              sync.Mutex
	generateCalls   int
	structuredCalls int
	toolCalls       int
	history         [][]core.Message
}

var _ ai.Generator = (*MockGenerator)(nil)

// NewMockGenerator creates a mock generator with default behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// WithGenerateFunc sets GenerateFunc and returns the mock for chaining.
func (m *MockGenerator) WithGenerateFunc(fn func(ctx context.Context, msgs []core.Message) (string, error)) *MockGenerator {
	m.GenerateFunc = fn
	return m
}

// WithStructuredFunc sets StructuredFunc and returns the mock for chaining.
func (m *MockGenerator) WithStructuredFunc(fn func(ctx context.Context, msgs []core.Message, schema *ai.Schema, out any) error) *MockGenerator {
	m.StructuredFunc = fn
	return m
}

// WithToolFunc sets ToolFunc and returns the mock for chaining.
func (m *MockGenerator) WithToolFunc(fn func(ctx context.Context, msgs []core.Message, tools []ai.Tool) (*ai.ToolResponse, error)) *MockGenerator {
	m.ToolFunc = fn
	return m
}

func (m *MockGenerator) record(msgs []core.Message, counter *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter++
	m.history = append(m.history, append([]core.Message(nil), msgs...))
}

// Generate returns the injected or default completion and streams it as one chunk.
func (m *MockGenerator) Generate(ctx context.Context, msgs []core.Message, stream ai.StreamFunc) (string, error) {
	m.record(msgs, &m.generateCalls)

	var text string
	if m.GenerateFunc != nil {
		var err error
		text, err = m.GenerateFunc(ctx, msgs)
		if err != nil {
			return "", err
		}
	} else if len(msgs) > 0 {
		text = msgs[len(msgs)-1].Content
	}

	if stream != nil && text != "" {
		if err := stream(ctx, text); err != nil {
			return "", err
		}
	}
	return text, nil
}

// GenerateStructured delegates to StructuredFunc when set.
func (m *MockGenerator) GenerateStructured(ctx context.Context, msgs []core.Message, schema *ai.Schema, out any) error {
	m.record(msgs, &m.structuredCalls)

	if m.StructuredFunc != nil {
		return m.StructuredFunc(ctx, msgs, schema, out)
	}
	return nil
}

// GenerateWithTools delegates to ToolFunc when set.
func (m *MockGenerator) GenerateWithTools(ctx context.Context, msgs []core.Message, tools []ai.Tool) (*ai.ToolResponse, error) {
	m.record(msgs, &m.toolCalls)

	if m.ToolFunc != nil {
		return m.ToolFunc(ctx, msgs, tools)
	}
	return &ai.ToolResponse{}, nil
}

// GenerateCalls returns the number of Generate calls.
func (m *MockGenerator) GenerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls
}

// StructuredCalls returns the number of GenerateStructured calls.
func (m *MockGenerator) StructuredCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.structuredCalls
}

// ToolCalls returns the number of GenerateWithTools calls.
func (m *MockGenerator) ToolCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toolCalls
}

// CallCount returns the number of times any method was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls + m.structuredCalls + m.toolCalls
}

// History returns copies of the message lists passed to every call, in call order.
func (m *MockGenerator) History() [][]core.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]core.Message, len(m.history))
	copy(out, m.history)
	return out
}

// Reset clears the call counters, history and custom functions.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateCalls = 0
	m.structuredCalls = 0
	m.toolCalls = 0
	m.history = nil
	m.GenerateFunc = nil
	m.StructuredFunc = nil
	m.ToolFunc = nil
}

// ToolChoice builds a response selecting the named tool without arguments.
func ToolChoice(name string) *ai.ToolResponse {
	return &ai.ToolResponse{Call: &ai.ToolCall{Name: name, Arguments: "{}"}}
}

// StructuredValue returns a StructuredFunc that decodes v into out through JSON,
// the same path a real generator takes.
func StructuredValue(v any) func(ctx context.Context, msgs []core.Message, schema *ai.Schema, out any) error {
	return func(_ context.Context, _ []core.Message, _ *ai.Schema, out any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, out)
	}
}
