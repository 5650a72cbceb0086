package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider talks to the Generative Language REST API. Imagen model ids
// go through the predict endpoint; Gemini image-capable models go through
// generateContent with image response modalities.
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// GeminiOptions configures the Gemini/Imagen client.
type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type imagenRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount    int    `json:"sampleCount"`
	AspectRatio    string `json:"aspectRatio,omitempty"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
}

type imagenResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

type generateContentRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobPart `json:"inlineData,omitempty"`
}

type geminiBlobPart struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGeminiProvider constructs a Generative Language API client.
func NewGeminiProvider(opts GeminiOptions) (*GeminiProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &GeminiProvider{apiKey: opts.APIKey, baseURL: baseURL, httpClient: httpClient}, nil
}

// Generate dispatches to the endpoint matching the model family.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.HasPrefix(req.ModelID, "imagen-") {
		return p.predict(ctx, req)
	}
	return p.generateContent(ctx, req)
}

func (p *GeminiProvider) predict(ctx context.Context, req Request) (*Result, error) {
	payload := imagenRequest{
		Instances: []imagenInstance{{Prompt: req.Prompt}},
		Parameters: imagenParameters{
			SampleCount:    1,
			AspectRatio:    req.AspectRatio,
			NegativePrompt: req.NegativePrompt,
		},
	}

	body, err := p.post(ctx, fmt.Sprintf("%s/models/%s:predict", p.baseURL, req.ModelID), payload)
	if err != nil {
		return nil, err
	}

	var out imagenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("gemini: decode predict response: %w", err)
	}
	if len(out.Predictions) == 0 {
		return nil, errors.New("gemini: predict returned no predictions")
	}
	data, err := base64.StdEncoding.DecodeString(out.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return nil, fmt.Errorf("gemini: decode image payload: %w", err)
	}
	return &Result{Data: data, Format: formatFromContentType(out.Predictions[0].MimeType)}, nil
}

func (p *GeminiProvider) generateContent(ctx context.Context, req Request) (*Result, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt = fmt.Sprintf("%s. Avoid: %s", prompt, req.NegativePrompt)
	}
	payload := generateContentRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	body, err := p.post(ctx, fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, req.ModelID), payload)
	if err != nil {
		return nil, err
	}

	var out generateContentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("gemini: decode generateContent response: %w", err)
	}
	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("gemini: decode image payload: %w", err)
			}
			return &Result{Data: data, Format: formatFromContentType(part.InlineData.MimeType)}, nil
		}
	}
	return nil, errors.New("gemini: response carried no image part")
}

func (p *GeminiProvider) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: call api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr geminiErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("gemini: api error %s: %s", apiErr.Error.Status, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("gemini: api returned %d", resp.StatusCode)
	}
	return body, nil
}
