package image

import "context"

// Request describes a normalized generation request passed to any provider.
type Request struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string
	ModelID        string
}

// Result is a single generated image.
type Result struct {
	Data   []byte
	Format string
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}
