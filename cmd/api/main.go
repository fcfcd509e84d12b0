package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ageme/internal/http/handlers"
	"ageme/internal/http/httpapi"
	"ageme/internal/infra"
	"ageme/internal/infra/geoip"
	"ageme/internal/upstream"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
		geo = nil
	}

	editor := upstream.NewClient(upstream.Options{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Size:        cfg.OpenAISize,
		SendQuality: cfg.OpenAISendQuality,
		Logger:      &logger,
		Timeout:     cfg.HTTPWriteTimeout,
	})
	if !editor.HasCredentials() {
		logger.Warn().Msg("OPENAI_API_KEY not set; age-face requests will report CONFIG_ERROR")
	}

	app, err := handlers.NewApp(cfg, logger, editor)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	router := httpapi.NewRouter(app, geo)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if closer, ok := geo.(interface{ Close() error }); ok && closer != nil {
		_ = closer.Close()
	}
	logger.Info().Msg("server stopped")
}
