package router

import "fmt"

const classifyPromptTemplate = `You are a pair-reader agent that helps users chat with information from a knowledge base containing their uploaded documents.
You have two sub-agents: %[1]s (DEFAULT) and %[2]s (SPECIAL CASES ONLY).

%[1]s handles ALL regular questions and information requests:
- any question seeking specific information from the documents
- questions asking what, how, why, when or where about the content
- requests to explain concepts, summarize specific topics or find information

%[2]s is used ONLY when the user explicitly asks for exploration:
- "overview", "explore", "discover", "main themes", "main ideas", "key ideas", "overall summary"
- high-level exploration without a specific question

Default to %[1]s unless the user explicitly uses exploration keywords.
Select exactly one tool.

User query: %[3]s`

func buildClassifyPrompt(request string) string {
	return fmt.Sprintf(classifyPromptTemplate, ToolQA, ToolDiscovery, request)
}
