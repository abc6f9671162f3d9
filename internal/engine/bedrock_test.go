package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type mockInvoker struct {
	in   *bedrockruntime.InvokeModelInput
	body string
	err  error
}

func (m *mockInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	m.in = in
	if m.err != nil {
		return nil, m.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(m.body)}, nil
}

func TestBedrockEngine_Generate(t *testing.T) {
	api := &mockInvoker{body: `{"inputTextTokenCount":12,"results":[{"tokenCount":7,"outputText":"  Hello there \n","completionReason":"FINISH"}]}`}
	e := NewBedrockEngine(api, "", 0)

	gen, err := e.Generate(context.Background(), "say hi", GenerateOptions{MaxTokens: 2000, Temperature: 0.7, TopP: 0.9})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gen.Text != "Hello there" {
		t.Errorf("Text = %q", gen.Text)
	}
	if gen.InputTokens != 12 || gen.OutputTokens != 7 {
		t.Errorf("tokens = %d/%d", gen.InputTokens, gen.OutputTokens)
	}
	if aws.ToString(api.in.ModelId) != DefaultModelID {
		t.Errorf("ModelId = %q", aws.ToString(api.in.ModelId))
	}

	var req struct {
		InputText            string `json:"inputText"`
		TextGenerationConfig struct {
			MaxTokenCount int     `json:"maxTokenCount"`
			Temperature   float64 `json:"temperature"`
			TopP          float64 `json:"topP"`
		} `json:"textGenerationConfig"`
	}
	if err := json.Unmarshal(api.in.Body, &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if req.InputText != "say hi" || req.TextGenerationConfig.MaxTokenCount != 2000 ||
		req.TextGenerationConfig.Temperature != 0.7 || req.TextGenerationConfig.TopP != 0.9 {
		t.Errorf("request = %+v", req)
	}
}

func TestBedrockEngine_ProbeOmitsTopP(t *testing.T) {
	api := &mockInvoker{body: `{"results":[{"outputText":"ok"}]}`}
	e := NewBedrockEngine(api, "amazon.titan-text-express-v1", 0)
	if _, err := e.Generate(context.Background(), "x", ProbeOptions); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var raw map[string]map[string]any
	json.Unmarshal(api.in.Body, &raw)
	if _, ok := raw["textGenerationConfig"]["topP"]; ok {
		t.Error("topP sent for zero TopP")
	}
	if e.Name() != "bedrock:amazon.titan-text-express-v1" {
		t.Errorf("Name = %q", e.Name())
	}
}

func TestBedrockEngine_Errors(t *testing.T) {
	e := NewBedrockEngine(&mockInvoker{err: errors.New("throttled")}, "", 0)
	if _, err := e.Generate(context.Background(), "x", GenerateOptions{}); err == nil {
		t.Error("expected invoke error")
	}

	e = NewBedrockEngine(&mockInvoker{body: `{"results":[]}`}, "", 0)
	if _, err := e.Generate(context.Background(), "x", GenerateOptions{}); err == nil {
		t.Error("expected error for empty results")
	}

	e = NewBedrockEngine(&mockInvoker{body: `not json`}, "", 0)
	if _, err := e.Generate(context.Background(), "x", GenerateOptions{}); err == nil {
		t.Error("expected decode error")
	}
}
