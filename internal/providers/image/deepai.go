package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMissingAPIKey indicates that a provider was configured without
// credentials.
var ErrMissingAPIKey = errors.New("image: api key is required")

const deepAIDefaultBaseURL = "https://api.deepai.org/api"

// DeepAIProvider calls the DeepAI text2img endpoint. The API answers with a
// URL pointing at the generated image, which the provider fetches in a second
// request.
type DeepAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// DeepAIOptions configures the DeepAI client.
type DeepAIOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type deepAIResponse struct {
	ID        string `json:"id"`
	OutputURL string `json:"output_url"`
	Status    string `json:"status"`
	Err       string `json:"err"`
}

// NewDeepAIProvider constructs a DeepAI client with sane defaults.
func NewDeepAIProvider(opts DeepAIOptions) (*DeepAIProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("deepai: %w", ErrMissingAPIKey)
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = deepAIDefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 3 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &DeepAIProvider{apiKey: opts.APIKey, baseURL: baseURL, httpClient: httpClient}, nil
}

// Generate submits the prompt as form data and downloads the resulting image.
func (p *DeepAIProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	form := url.Values{}
	form.Set("text", req.Prompt)
	if req.NegativePrompt != "" {
		form.Set("negative_prompt", req.NegativePrompt)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/text2img", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("deepai: build request: %w", err)
	}
	httpReq.Header.Set("api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepai: call text2img: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("deepai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepai: text2img returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out deepAIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("deepai: decode response: %w", err)
	}
	if out.Err != "" {
		return nil, fmt.Errorf("deepai: %s", out.Err)
	}
	if out.OutputURL == "" {
		return nil, errors.New("deepai: response missing output_url")
	}

	return p.fetch(ctx, out.OutputURL)
}

func (p *DeepAIProvider) fetch(ctx context.Context, imageURL string) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("deepai: build image request: %w", err)
	}
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepai: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepai: image fetch returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("deepai: read image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("deepai: empty image payload")
	}
	return &Result{Data: data, Format: formatFromContentType(resp.Header.Get("Content-Type"))}, nil
}

// formatFromContentType maps an image MIME type onto a file format token,
// defaulting to png.
func formatFromContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	switch contentType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}
