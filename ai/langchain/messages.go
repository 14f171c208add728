package langchain

import (
	"github.com/poiesic/pairreader/ai"
	"github.com/poiesic/pairreader/core"
	"github.com/tmc/langchaingo/llms"
)

// toMessageContent converts conversation history to langchaingo messages.
// Empty messages are dropped since some providers reject them.
func toMessageContent(msgs []core.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		content = append(content, llms.MessageContent{
			Role:  chatMessageType(m.Role),
			Parts: []llms.ContentPart{llms.TextPart(m.Content)},
		})
	}
	return content
}

func chatMessageType(role core.Role) llms.ChatMessageType {
	switch role {
	case core.RoleSystem:
		return llms.ChatMessageTypeSystem
	case core.RoleAI:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func toTools(tools []ai.Tool) []llms.Tool {
	out := make([]llms.Tool, len(tools))
	for i, t := range tools {
		out[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters.Map(),
			},
		}
	}
	return out
}

// toolCallFromChoice extracts the first function call from a choice, if any.
func toolCallFromChoice(choice *llms.ContentChoice) *ai.ToolCall {
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall != nil && tc.FunctionCall.Name != "" {
			return &ai.ToolCall{Name: tc.FunctionCall.Name, Arguments: tc.FunctionCall.Arguments}
		}
	}
	if choice.FuncCall != nil && choice.FuncCall.Name != "" {
		return &ai.ToolCall{Name: choice.FuncCall.Name, Arguments: choice.FuncCall.Arguments}
	}
	return nil
}
