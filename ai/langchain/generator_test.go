package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/pairreader/ai"
	"github.com/poiesic/pairreader/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel replays scripted choices and records the options it was called with.
type fakeModel struct {
	responses []*llms.ContentChoice
	err       error
	calls     int
	lastOpts  llms.CallOptions
	lastMsgs  []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.lastMsgs = messages
	f.lastOpts = llms.CallOptions{}
	for _, opt := range options {
		opt(&f.lastOpts)
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &llms.ContentResponse{}, nil
	}
	choice := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	if f.lastOpts.StreamingFunc != nil {
		if err := f.lastOpts.StreamingFunc(ctx, []byte(choice.Content)); err != nil {
			return nil, err
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

type verdict struct {
	Action string `json:"action" jsonschema:"enum=proceed,enum=revise"`
}

func TestGeneratorGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns content and streams", func(t *testing.T) {
		model := &fakeModel{responses: []*llms.ContentChoice{{Content: "hello there"}}}
		gen := newGeneratorFromModel(model, "openai:test", 0.3)

		var streamed string
		text, err := gen.Generate(ctx, []core.Message{core.HumanMessage("hi")}, func(_ context.Context, c string) error {
			streamed += c
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "hello there", text)
		assert.Equal(t, "hello there", streamed)
		assert.InDelta(t, 0.3, model.lastOpts.Temperature, 1e-9)
	})

	t.Run("wraps failures as service errors", func(t *testing.T) {
		model := &fakeModel{err: errors.New("503")}
		gen := newGeneratorFromModel(model, "openai:test", 0)

		_, err := gen.Generate(ctx, []core.Message{core.HumanMessage("hi")}, nil)
		require.Error(t, err)
		assert.True(t, core.IsServiceError(err))
	})

	t.Run("empty choices is a service error", func(t *testing.T) {
		gen := newGeneratorFromModel(&fakeModel{}, "openai:test", 0)
		_, err := gen.Generate(ctx, []core.Message{core.HumanMessage("hi")}, nil)
		assert.ErrorIs(t, err, errNoChoices)
		assert.True(t, core.IsServiceError(err))
	})
}

func TestGeneratorGenerateStructured(t *testing.T) {
	ctx := context.Background()
	schema := ai.MustSchemaFor[verdict]("verdict")

	t.Run("decodes fenced json", func(t *testing.T) {
		model := &fakeModel{responses: []*llms.ContentChoice{{Content: "```json\n{\"action\": \"revise\"}\n```"}}}
		gen := newGeneratorFromModel(model, "openai:test", 0.5)

		var out verdict
		require.NoError(t, gen.GenerateStructured(ctx, []core.Message{core.HumanMessage("no, redo it")}, schema, &out))
		assert.Equal(t, "revise", out.Action)
		assert.True(t, model.lastOpts.JSONMode)
		assert.Equal(t, llms.ChatMessageTypeSystem, model.lastMsgs[0].Role)
	})

	t.Run("retries schema violations", func(t *testing.T) {
		model := &fakeModel{responses: []*llms.ContentChoice{
			{Content: `{"action": "maybe"}`},
			{Content: `{"action": "proceed"}`},
		}}
		gen := newGeneratorFromModel(model, "openai:test", 0)

		var out verdict
		require.NoError(t, gen.GenerateStructured(ctx, nil, schema, &out))
		assert.Equal(t, "proceed", out.Action)
		assert.Equal(t, 2, model.calls)
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		model := &fakeModel{responses: []*llms.ContentChoice{{Content: "not json at all"}}}
		gen := newGeneratorFromModel(model, "openai:test", 0)

		var out verdict
		err := gen.GenerateStructured(ctx, nil, schema, &out)
		require.Error(t, err)
		assert.True(t, core.IsServiceError(err))
		assert.Equal(t, structuredAttempts, model.calls)
	})
}

func TestGeneratorGenerateWithTools(t *testing.T) {
	ctx := context.Background()
	tools := []ai.Tool{{Name: "qa_agent", Description: "default"}, {Name: "discovery_agent", Description: "overview"}}

	t.Run("tool call", func(t *testing.T) {
		model := &fakeModel{responses: []*llms.ContentChoice{{
			ToolCalls: []llms.ToolCall{{ID: "1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "discovery_agent", Arguments: "{}"}}},
		}}}
		gen := newGeneratorFromModel(model, "openai:test", 0)

		resp, err := gen.GenerateWithTools(ctx, []core.Message{core.HumanMessage("overview please")}, tools)
		require.NoError(t, err)
		require.NotNil(t, resp.Call)
		assert.Equal(t, "discovery_agent", resp.Call.Name)
		require.Len(t, model.lastOpts.Tools, 2)
		assert.Equal(t, "qa_agent", model.lastOpts.Tools[0].Function.Name)
	})

	t.Run("text answer", func(t *testing.T) {
		model := &fakeModel{responses: []*llms.ContentChoice{{Content: "I am not sure"}}}
		gen := newGeneratorFromModel(model, "openai:test", 0)

		resp, err := gen.GenerateWithTools(ctx, nil, tools)
		require.NoError(t, err)
		assert.Nil(t, resp.Call)
		assert.Equal(t, "I am not sure", resp.Text)
	})
}

func TestNewGeneratorOpenAICompatibleHost(t *testing.T) {
	gen, err := NewGenerator("openai:qwen2.5:3b", "http://localhost:11434/v1", 0)
	require.NoError(t, err)
	assert.NotNil(t, gen)

	_, err = NewGenerator("anthropic:", "", 0)
	assert.Error(t, err)
}
