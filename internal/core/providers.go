package core

import "context"

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// HealthProber is a cheap liveness check of the semantic backend.
type HealthProber interface {
	Health(ctx context.Context) error
}
