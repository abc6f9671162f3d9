package engine

import "context"

// Engine abstracts a hosted text-generation backend (Bedrock or Gemini).
// The agent service and health probe use this interface instead of
// depending on a concrete SDK client.
type Engine interface {
	// Generate sends a single prompt and returns the completion.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (Generation, error)

	// Name identifies the backend and model, e.g. "bedrock:amazon.titan-text-premier-v1:0".
	Name() string
}
