package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tastehub/server/internal/config"
	"github.com/tastehub/server/internal/game"
	"github.com/tastehub/server/internal/gateway"
	"github.com/tastehub/server/internal/store"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	port := getEnv("PORT", "3000")
	adminSecret := getEnv("ADMIN_SECRET", "chips2025")
	dataFile := getEnv("DATA_FILE", "game-data.json")
	configFile := getEnv("TASTING_CONFIG", "tasting.yaml")
	autosaveInterval := getEnvAsDuration("AUTOSAVE_INTERVAL", 30*time.Second)
	natsURL := os.Getenv("NATS_URL")

	appCfg, err := config.Load(configFile)
	if err != nil {
		log.Warn().Err(err).Str("path", configFile).Msg("could not load tasting config, using defaults")
		appCfg = config.Default()
	}

	log.Info().
		Str("title", appCfg.Title).
		Str("data_file", dataFile).
		Str("port", port).
		Msg("starting tasting server")

	fileStore := store.NewFileStore(dataFile)
	engine := game.NewEngine(fileStore, appCfg, clockwork.NewRealClock())
	engine.Load(context.Background())

	gatewayConfig := gateway.DefaultConfig(adminSecret)
	if natsURL != "" {
		mirrorConfig := gateway.DefaultMirrorConfig()
		mirrorConfig.URL = natsURL
		gatewayConfig.Mirror = &mirrorConfig
	}

	gatewayService, err := gateway.NewService(gatewayConfig, engine, appCfg)
	if err != nil {
		// The mirror is an optional extra; run without it rather than abort.
		log.Error().Err(err).Msg("failed to create gateway with event mirror, retrying without")
		gatewayConfig.Mirror = nil
		gatewayService, err = gateway.NewService(gatewayConfig, engine, appCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create gateway service")
		}
	}

	server := setupServer(port, gatewayService)

	// Context for the background loops
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go gatewayService.Start(ctx)
	go engine.RunAutosave(ctx, autosaveInterval)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()

	// Final save before exit
	if err := engine.SaveNow(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("final save failed")
	}

	log.Info().Msg("tasting server shutdown complete")
}
