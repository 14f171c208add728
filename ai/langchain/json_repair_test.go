package langchain

import (
	"encoding/json"
	"testing"

	"github.com/poiesic/pairreader/ai"
	"github.com/poiesic/pairreader/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "already valid", in: `{"action":"proceed"}`, want: `{"action":"proceed"}`},
		{name: "code fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "preamble", in: `Sure! Here it is: {"a":1} hope that helps`, want: `{"a":1}`},
		{name: "trailing comma", in: `{"a":[1,2,],}`, want: `{"a":[1,2]}`},
		{name: "comma inside string kept", in: `{"a":"x, }"}`, want: `{"a":"x, }"}`},
		{name: "missing opening key quote", in: `{"a":1, type":"x"}`, want: `{"a":1, "type":"x"}`},
		{name: "array literal untouched", in: `{"a":[true, false]}`, want: `{"a":[true, false]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanJSON(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, json.Valid([]byte(got)), "result should be valid JSON: %s", got)
		})
	}
}

func TestSchemaValidator(t *testing.T) {
	v := newSchemaValidator()
	schema := ai.MustSchemaFor[verdict]("verdict")

	assert.NoError(t, v.validate(schema, []byte(`{"action":"revise"}`)))
	assert.NoError(t, v.validate(nil, []byte(`{"anything":true}`)))

	err := v.validate(schema, []byte(`{"action":"revise","extra":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verdict")

	assert.Error(t, v.validate(schema, []byte(`{}`)))
	assert.Len(t, v.compiled, 1)
}

func TestToMessageContent(t *testing.T) {
	msgs := []core.Message{
		core.SystemMessage("rules"),
		core.HumanMessage("question"),
		core.AIMessage(""),
		core.AIMessage("answer"),
	}
	content := toMessageContent(msgs)
	require.Len(t, content, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, content[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, content[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, content[2].Role)
	assert.Equal(t, llms.TextPart("answer"), content[2].Parts[0])
}

func TestToolCallFromChoice(t *testing.T) {
	assert.Nil(t, toolCallFromChoice(&llms.ContentChoice{Content: "text"}))

	legacy := &llms.ContentChoice{FuncCall: &llms.FunctionCall{Name: "qa_agent"}}
	call := toolCallFromChoice(legacy)
	require.NotNil(t, call)
	assert.Equal(t, "qa_agent", call.Name)
}
