package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GenerateContentAPI is the subset of genai.Models used here.
type GenerateContentAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiEngine generates text with a Google Gemini model.
type GeminiEngine struct {
	api     GenerateContentAPI
	model   string
	timeout time.Duration
}

// NewGeminiClient creates the genai client for apiKey.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiEngine wraps the Models service of a genai client.
func NewGeminiEngine(api GenerateContentAPI, model string, timeout time.Duration) *GeminiEngine {
	if model == "" {
		model = DefaultGeminiModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GeminiEngine{api: api, model: model, timeout: timeout}
}

func (e *GeminiEngine) Name() string { return "gemini:" + e.model }

func (e *GeminiEngine) Generate(ctx context.Context, prompt string, opts GenerateOptions) (Generation, error) {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(opts.MaxTokens),
		Temperature:     genai.Ptr(float32(opts.Temperature)),
	}
	if opts.TopP > 0 {
		config.TopP = genai.Ptr(float32(opts.TopP))
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.api.GenerateContent(ctx, e.model, genai.Text(prompt), config)
	if err != nil {
		return Generation{}, fmt.Errorf("Gemini generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Generation{}, fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}

	gen := Generation{Text: strings.TrimSpace(sb.String())}
	if u := resp.UsageMetadata; u != nil {
		gen.InputTokens = int(u.PromptTokenCount)
		gen.OutputTokens = int(u.CandidatesTokenCount)
	}
	return gen, nil
}
