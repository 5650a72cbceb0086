// Package svggen produces SVG icon markup from a text description through an
// OpenAI-compatible chat completion endpoint.
package svggen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are an expert SVG icon designer. Produce a single, " +
	"complete, valid SVG document for the requested icon. Use a square viewBox, " +
	"clean vector shapes and no raster data. Respond with the SVG markup only, " +
	"no explanations and no markdown."

// ErrNoSVG indicates that the model's reply contained no SVG document.
var ErrNoSVG = errors.New("svggen: response contains no svg markup")

// Generator turns prompts into SVG markup.
type Generator struct {
	client *openai.Client
	model  string
}

// NewGenerator builds a generator over an OpenAI-compatible endpoint. baseURL
// may be empty for the public API.
func NewGenerator(apiKey, baseURL, model string) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("svggen: api key is required")
	}
	if model == "" {
		return nil, errors.New("svggen: model is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Generator{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Generate asks the model for SVG markup describing the prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("svggen: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("svggen: empty completion")
	}

	svg := CleanResponse(resp.Choices[0].Message.Content)
	if !strings.Contains(svg, "<svg") {
		return "", ErrNoSVG
	}
	return svg, nil
}

// CleanResponse strips markdown code fences and surrounding prose that chat
// models tend to wrap around the markup.
func CleanResponse(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		for _, lang := range []string{"svg", "xml", "html"} {
			if strings.HasPrefix(strings.ToLower(s), lang) {
				s = s[len(lang):]
				break
			}
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	// Drop any prose before the opening tag and after the closing one.
	if i := strings.Index(s, "<svg"); i > 0 {
		s = s[i:]
	}
	if i := strings.LastIndex(s, "</svg>"); i >= 0 {
		s = s[:i+len("</svg>")]
	}
	return strings.TrimSpace(s)
}
