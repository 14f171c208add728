package langchain

import "fmt"

const structuredPromptTemplate = `Return the answer as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.
- Use only the values allowed by the schema for enumerated fields.`

const retryPromptTemplate = `Your previous response could not be used: %v
Reply again with JSON only, following the schema exactly.`

func buildStructuredPrompt(schemaJSON []byte) string {
	return fmt.Sprintf(structuredPromptTemplate, schemaJSON)
}

func buildRetryPrompt(err error) string {
	return fmt.Sprintf(retryPromptTemplate, err)
}
