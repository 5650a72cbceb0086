package image

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeepAIGenerate(t *testing.T) {
	imageBytes := []byte("fake-image-bytes")

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/text2img":
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method %s", r.Method)
			}
			if got := r.Header.Get("api-key"); got != "secret" {
				t.Errorf("missing api key header, got %q", got)
			}
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if got := r.PostFormValue("text"); got != "flat icon" {
				t.Errorf("unexpected prompt %q", got)
			}
			json.NewEncoder(w).Encode(map[string]string{
				"id":         "abc",
				"output_url": srv.URL + "/outputs/abc.png",
			})
		case "/outputs/abc.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(imageBytes)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p, err := NewDeepAIProvider(DeepAIOptions{APIKey: "secret", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewDeepAIProvider: %v", err)
	}

	res, err := p.Generate(context.Background(), Request{Prompt: "flat icon"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(res.Data) != string(imageBytes) {
		t.Fatalf("unexpected payload: %q", res.Data)
	}
	if res.Format != "png" {
		t.Fatalf("unexpected format: %q", res.Format)
	}
}

func TestDeepAIGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"err": "quota exceeded"})
	}))
	defer srv.Close()

	p, err := NewDeepAIProvider(DeepAIOptions{APIKey: "secret", BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewDeepAIProvider: %v", err)
	}
	if _, err := p.Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatalf("expected error from api err field")
	}
}

func TestDeepAIRequiresAPIKey(t *testing.T) {
	if _, err := NewDeepAIProvider(DeepAIOptions{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestFormatFromContentType(t *testing.T) {
	cases := map[string]string{
		"image/png":                  "png",
		"image/jpeg":                 "jpg",
		"image/jpeg; charset=binary": "jpg",
		"image/webp":                 "webp",
		"":                           "png",
	}
	for in, want := range cases {
		if got := formatFromContentType(in); got != want {
			t.Fatalf("formatFromContentType(%q) = %q, want %q", in, got, want)
		}
	}
}
