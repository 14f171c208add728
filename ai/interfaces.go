package ai

import (
	"context"

	"github.com/poiesic/pairreader/core"
)

// StreamFunc receives incremental output while a generation is in progress.
// Returning an error aborts the generation.
type StreamFunc func(ctx context.Context, chunk string) error

// Generator produces text from a conversation history.
// Implementations must be thread-safe for concurrent use and must report
// failures of the underlying service as *core.ServiceError.
type Generator interface {
	// Generate returns the completion for msgs. When stream is non-nil it
	// receives chunks as they are produced; the returned text is the full output.
	Generate(ctx context.Context, msgs []core.Message, stream StreamFunc) (string, error)

	// GenerateStructured asks for output conforming to schema and decodes it into out,
	// which must be a pointer to the type the schema was built from.
	GenerateStructured(ctx context.Context, msgs []core.Message, schema *Schema, out any) error

	// GenerateWithTools offers tools to the model. The response carries either
	// the selected tool call or plain text when no tool was chosen.
	GenerateWithTools(ctx context.Context, msgs []core.Message, tools []Tool) (*ToolResponse, error)
}

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Tool is an action the model may select in GenerateWithTools.
type Tool struct {
	Name        string
	Description string
	// Parameters describes the tool arguments. Nil means no arguments.
	Parameters *Schema
}

// ToolCall is the model's selection of a tool.
type ToolCall struct {
	Name      string
	Arguments string // raw JSON
}

// ToolResponse is the result of GenerateWithTools.
type ToolResponse struct {
	Call *ToolCall // nil when the model answered in text
	Text string
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	// Generator returns the generation service, already composed with any fallback.
	Generator() Generator

	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	Close() error
}
