package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"iconforge/internal/httpapi"
	"iconforge/internal/infra"
	"iconforge/internal/providers/image"
	"iconforge/internal/providers/svggen"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	backends := initImageProviders(cfg, logger)

	var svg *svggen.Generator
	if cfg.OpenAIAPIKey != "" {
		svg, err = svggen.NewGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("configure svg generator")
		}
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set, svg generation disabled")
	}

	app := httpapi.NewApp(cfg, logger, backends, svg)
	router := httpapi.NewRouter(app, logger)
	server := infra.NewHTTPServer(cfg, router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Msgf("control API listening on %s", server.Addr())
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown()
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}

// initImageProviders registers every backend whose credentials are present.
func initImageProviders(cfg *infra.Config, logger infra.Logger) *image.Registry {
	registry := image.NewRegistry()

	if cfg.OpenAIAPIKey != "" {
		provider, err := image.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("configure openai provider")
		}
		registry.Register("dall-e-2", provider)
		registry.Register("dall-e-3", provider)
	}

	if cfg.DeepAIAPIKey != "" {
		provider, err := image.NewDeepAIProvider(image.DeepAIOptions{
			APIKey:  cfg.DeepAIAPIKey,
			BaseURL: cfg.DeepAIBaseURL,
			Timeout: cfg.ProviderTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("configure deepai provider")
		}
		registry.Register("deepai-text2img", provider)
	}

	if cfg.GeminiAPIKey != "" {
		provider, err := image.NewGeminiProvider(image.GeminiOptions{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Timeout: cfg.ProviderTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("configure gemini provider")
		}
		registry.Register("imagen-3.0-generate-002", provider)
		registry.Register("imagen-4.0-generate-001", provider)
		registry.Register("gemini-2.0-flash-preview-image-generation", provider)
	}

	if len(registry.Models()) == 0 {
		logger.Warn().Msg("no image provider credentials configured")
	}
	return registry
}
