package image

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider generates images through the OpenAI images API (DALL-E
// models).
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds a provider over the OpenAI API. baseURL may be
// empty for the public endpoint.
func NewOpenAIProvider(apiKey, baseURL string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}, nil
}

// Generate requests one image and returns its decoded bytes. The images API
// has no negative prompt parameter, so a non-empty negative prompt is folded
// into the prompt text.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt = fmt.Sprintf("%s. Avoid: %s", prompt, req.NegativePrompt)
	}

	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          req.ModelID,
		N:              1,
		Size:           openaiSize(req.AspectRatio),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: create image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: empty image response")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("openai: decode image payload: %w", err)
	}
	return &Result{Data: data, Format: "png"}, nil
}

// openaiSize maps an aspect ratio onto the closest size the images API
// accepts.
func openaiSize(aspectRatio string) string {
	switch aspectRatio {
	case "16:9":
		return openai.CreateImageSize1792x1024
	case "9:16":
		return openai.CreateImageSize1024x1792
	default:
		return openai.CreateImageSize1024x1024
	}
}
