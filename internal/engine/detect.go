package engine

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// Detect builds the backend named by cfg.Provider. An empty provider
// selects Bedrock.
func Detect(ctx context.Context, cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "", ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		return NewBedrockEngine(bedrockruntime.NewFromConfig(awsCfg), cfg.ModelID, cfg.Timeout), nil
	case ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg.GeminiKey)
		if err != nil {
			return nil, err
		}
		return NewGeminiEngine(client.Models, cfg.GeminiModel, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want bedrock or gemini)", cfg.Provider)
	}
}
