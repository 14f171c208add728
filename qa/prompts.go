package qa

import (
	"fmt"
	"strings"

	"github.com/poiesic/pairreader/core"
)

const decomposePromptTemplate = `You are a query retrieval optimizer for vector store semantic search. Decompose the following query into simpler, smaller sub-queries better suited for vector store search. Decide yourself how many sub-queries are optimal for retrieval. Write each sub-query on its own line, with no numbering and no other text.
User query: %s`

const revisePromptTemplate = `
The user rejected the previous sub-queries:
%s
User feedback: %s`

const approvalPromptTemplate = `The user was asked to review these sub-queries:
%s
User reply: %s

Decide what the user wants. Use action "proceed" when the user approves; include sub_requests only if the user edited the list. Use action "revise" when the user wants new sub-queries, and put the user's guidance in feedback.`

const synthesizePromptTemplate = `You are a helpful summarization assistant. Create a comprehensive summary of the retrieved information that directly addresses the user's query. Focus on relevant information and maintain accuracy.

User query: %s

Retrieved information:
%s`

// User-facing notices.
const (
	msgAskFeedback = "Please review the generated sub-queries and state explicitly whether you approve them or what should change."
	msgTimeout     = "You didn't review the generated sub-queries in time, so they are used as they are."
	msgQuerying    = "Querying knowledge base with %d optimized queries..."
	msgRetrieved   = "✓ Retrieved %d relevant document chunks."
	msgSynthesis   = "Synthesizing answer from %d retrieved documents..."
)

func bulletList(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(item)
	}
	return sb.String()
}

func buildDecomposePrompt(request string, previous *core.ApprovalDecision, subRequests []string) string {
	prompt := fmt.Sprintf(decomposePromptTemplate, request)
	if previous != nil && previous.Action == core.ApprovalRevise {
		prompt += fmt.Sprintf(revisePromptTemplate, bulletList(subRequests), previous.Feedback)
	}
	return prompt
}

func buildApprovalPrompt(subRequests []string, reply string) string {
	return fmt.Sprintf(approvalPromptTemplate, bulletList(subRequests), reply)
}

func buildSynthesizePrompt(request string, passages []core.Passage) string {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	return fmt.Sprintf(synthesizePromptTemplate, request, strings.Join(texts, "\n\n"))
}
