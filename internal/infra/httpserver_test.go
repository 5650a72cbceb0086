package infra

import (
	"net/http"
	"testing"
)

func TestNewHTTPServerBindsConfiguredHost(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: "8321"}
	srv := NewHTTPServer(cfg, http.NewServeMux())
	if got := srv.Addr(); got != "127.0.0.1:8321" {
		t.Fatalf("unexpected listen address: %q", got)
	}
}

func TestHTTPServerShutdownWithoutStart(t *testing.T) {
	srv := &HTTPServer{}
	if err := srv.Shutdown(); err != nil {
		t.Fatalf("Shutdown on zero server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start on zero server: %v", err)
	}
	if srv.Addr() != "" {
		t.Fatalf("zero server must report no address")
	}
}
