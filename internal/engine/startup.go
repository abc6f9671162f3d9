package engine

import (
	"context"
	"fmt"
)

// ProbeOptions is the tiny generation used to check backend connectivity.
var ProbeOptions = GenerateOptions{MaxTokens: 10, Temperature: 0.1}

const probePrompt = "Test connection"

// Probe checks that the Engine answers a minimal generation request.
func Probe(ctx context.Context, e Engine) error {
	if _, err := e.Generate(ctx, probePrompt, ProbeOptions); err != nil {
		return fmt.Errorf("%s is not reachable: %w", e.Name(), err)
	}
	return nil
}
