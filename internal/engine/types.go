package engine

import "time"

// GenerateOptions controls a single generation call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Generation is the text produced by a backend plus token accounting when
// the backend reports it.
type Generation struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Provider names a generation backend.
type Provider string

const (
	ProviderBedrock Provider = "bedrock"
	ProviderGemini  Provider = "gemini"
)

// Config selects and configures a backend.
type Config struct {
	Provider    Provider
	Region      string
	ModelID     string
	GeminiKey   string
	GeminiModel string
	Timeout     time.Duration
}

const (
	DefaultModelID     = "amazon.titan-text-premier-v1:0"
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultTimeout     = 30 * time.Second
)
