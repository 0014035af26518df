package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tastehub/server/internal/config"
	"github.com/tastehub/server/internal/game"
)

// APIHandler serves the HTTP surface next to the realtime channel. These
// endpoints are capability-checked per call with the shared admin secret
// rather than via a live session, so they work outside the WebSocket.
type APIHandler struct {
	engine      *game.Engine
	appCfg      *config.Config
	adminSecret string
	manager     *ConnectionManager
}

// NewAPIHandler creates the HTTP API handler.
func NewAPIHandler(engine *game.Engine, appCfg *config.Config, adminSecret string, manager *ConnectionManager) *APIHandler {
	return &APIHandler{
		engine:      engine,
		appCfg:      appCfg,
		adminSecret: adminSecret,
		manager:     manager,
	}
}

// RegisterRoutes registers the HTTP routes.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/api/config", h.HandleConfig)
	mux.HandleFunc("/api/game-state", h.HandleGameState)
	mux.HandleFunc("/api/backup", h.HandleBackup)
	mux.HandleFunc("/api/import", h.HandleImport)
	mux.HandleFunc("/api/rankings", h.HandleRankings)
}

func (h *APIHandler) secretMatches(provided string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.adminSecret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// HandleHealth handles GET /health. No auth; liveness plus summary
// counters.
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.engine.HealthStats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"activeUsers": stats.ActiveUsers,
		"chipCount":   stats.ChipCount,
		"totalVotes":  stats.TotalVotes,
		"revealMode":  stats.RevealMode,
		"lastUpdated": stats.LastUpdated,
		"connections": h.manager.Stats()["total_connections"],
	})
}

// HandleConfig handles GET /api/config. No auth.
func (h *APIHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.appCfg)
}

// HandleGameState handles GET /api/game-state?admin=SECRET.
func (h *APIHandler) HandleGameState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.secretMatches(r.URL.Query().Get("admin")) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.SnapshotState())
}

// HandleBackup handles GET /api/backup?admin=SECRET, returning the state
// as a downloadable document.
func (h *APIHandler) HandleBackup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.secretMatches(r.URL.Query().Get("admin")) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	doc := h.engine.Export()
	filename := fmt.Sprintf("chips-tasting-backup-%s.json", doc.BackupCreated.Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	writeJSON(w, http.StatusOK, doc)
}

// HandleImport handles POST /api/import with the secret in the
// X-Admin-Secret header and a snapshot document body.
func (h *APIHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.secretMatches(r.Header.Get("X-Admin-Secret")) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var doc game.ImportDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid data: malformed document")
		return
	}
	if doc.Chips == nil {
		writeError(w, http.StatusBadRequest, "Invalid data: chips array is required")
		return
	}
	if doc.Votes == nil {
		writeError(w, http.StatusBadRequest, "Invalid data: votes object is required")
		return
	}

	stats, err := h.engine.Import(r.Context(), doc, true)
	if err != nil {
		if errors.Is(err, game.ErrInvalidImport) {
			writeError(w, http.StatusBadRequest, "Invalid data: malformed document")
			return
		}
		log.Error().Err(err).Msg("failed to import game data")
		writeError(w, http.StatusInternalServerError, "Failed to import data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Game data imported successfully",
		"stats":   stats,
	})
}

// HandleRankings handles GET /api/rankings?criterion=overall. Rankings
// derive entirely from votes, so no auth is required.
func (h *APIHandler) HandleRankings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	criterion := r.URL.Query().Get("criterion")
	if criterion != "" && criterion != game.OverallCriterion {
		known := false
		for _, key := range h.appCfg.CriterionKeys() {
			if key == criterion {
				known = true
				break
			}
		}
		if !known {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown criterion: %s", criterion))
			return
		}
	}

	snap := h.engine.SnapshotState()
	averages := game.Averages(snap, h.appCfg.CriterionKeys())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"criterion": criterion,
		"rankings":  game.Rankings(averages, criterion),
	})
}
