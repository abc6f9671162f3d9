package storage

import (
	"context"

	"github.com/kalambet/kbagent/internal/engine"
)

type echoEngine struct{}

func (echoEngine) Generate(_ context.Context, _ string, _ engine.GenerateOptions) (engine.Generation, error) {
	return engine.Generation{Text: "pong"}, nil
}

func (echoEngine) Name() string { return "echo" }
