package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// InvokeModelAPI is the subset of the Bedrock runtime client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockEngine generates text with an Amazon Titan text model.
type BedrockEngine struct {
	api     InvokeModelAPI
	modelID string
	timeout time.Duration
}

// NewBedrockEngine wraps a Bedrock runtime client. An empty modelID uses
// DefaultModelID.
func NewBedrockEngine(api InvokeModelAPI, modelID string, timeout time.Duration) *BedrockEngine {
	if modelID == "" {
		modelID = DefaultModelID
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &BedrockEngine{api: api, modelID: modelID, timeout: timeout}
}

func (e *BedrockEngine) Name() string { return "bedrock:" + e.modelID }

type titanConfig struct {
	MaxTokenCount int      `json:"maxTokenCount"`
	Temperature   float64  `json:"temperature"`
	TopP          *float64 `json:"topP,omitempty"`
}

type titanRequest struct {
	InputText            string      `json:"inputText"`
	TextGenerationConfig titanConfig `json:"textGenerationConfig"`
}

type titanResponse struct {
	InputTextTokenCount int `json:"inputTextTokenCount"`
	Results             []struct {
		TokenCount       int    `json:"tokenCount"`
		OutputText       string `json:"outputText"`
		CompletionReason string `json:"completionReason"`
	} `json:"results"`
}

func (e *BedrockEngine) Generate(ctx context.Context, prompt string, opts GenerateOptions) (Generation, error) {
	req := titanRequest{
		InputText: prompt,
		TextGenerationConfig: titanConfig{
			MaxTokenCount: opts.MaxTokens,
			Temperature:   opts.Temperature,
		},
	}
	if opts.TopP > 0 {
		req.TextGenerationConfig.TopP = aws.Float64(opts.TopP)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Generation{}, fmt.Errorf("marshaling titan request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return Generation{}, fmt.Errorf("model invocation failed: %w", err)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return Generation{}, fmt.Errorf("decoding titan response: %w", err)
	}
	if len(resp.Results) == 0 {
		return Generation{}, fmt.Errorf("titan response has no results")
	}

	return Generation{
		Text:         strings.TrimSpace(resp.Results[0].OutputText),
		InputTokens:  resp.InputTextTokenCount,
		OutputTokens: resp.Results[0].TokenCount,
	}, nil
}
