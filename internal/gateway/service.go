package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tastehub/server/internal/config"
	"github.com/tastehub/server/internal/game"
)

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
	AdminSecret      string
	// Mirror enables the JetStream event mirror when non-nil.
	Mirror *MirrorConfig
}

// DefaultConfig returns default gateway configuration with the mirror
// disabled.
func DefaultConfig(adminSecret string) Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		AdminSecret:      adminSecret,
	}
}

// Service ties the connection manager, the HTTP API and the optional
// event mirror together, and attaches the broadcast step to the engine.
type Service struct {
	manager *ConnectionManager
	api     *APIHandler
	mirror  *Mirror
}

// NewService creates the gateway service and wires the engine's publish
// step to the connection manager.
func NewService(cfg Config, engine *game.Engine, appCfg *config.Config) (*Service, error) {
	var mirror *Mirror
	if cfg.Mirror != nil {
		var err error
		mirror, err = NewMirror(*cfg.Mirror)
		if err != nil {
			return nil, fmt.Errorf("failed to create event mirror: %w", err)
		}
	}

	manager := NewConnectionManager(cfg.ConnectionConfig, engine, appCfg, cfg.AdminSecret, mirror)
	engine.SetBroadcaster(manager)

	return &Service{
		manager: manager,
		api:     NewAPIHandler(engine, appCfg, cfg.AdminSecret, manager),
		mirror:  mirror,
	}, nil
}

// Start runs the broadcast fan-out loop. Blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting gateway service")
	s.manager.Start(ctx)
	s.Stop()
}

// Stop shuts down the event mirror.
func (s *Service) Stop() {
	if s.mirror != nil {
		s.mirror.Close()
	}
	log.Info().Msg("gateway service stopped")
}

// RegisterRoutes registers the WebSocket and HTTP API routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.manager.HandleWS)
	s.api.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// Manager exposes the connection manager, mainly for stats.
func (s *Service) Manager() *ConnectionManager {
	return s.manager
}
