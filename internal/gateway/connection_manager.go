package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tastehub/server/internal/config"
	"github.com/tastehub/server/internal/game"
	"github.com/tastehub/server/internal/store"
)

// ConnectionManager owns the pool of live viewer connections and fans
// events out to them. It implements game.Broadcaster so the engine's
// publish step stays transport-agnostic.
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	engine      *game.Engine
	appCfg      *config.Config
	adminSecret string
	sessions    *AdminSessions
	mirror      *Mirror

	broadcastCh chan broadcastMessage
}

// Connection represents a WebSocket connection to a viewer.
type Connection struct {
	ID       string
	Username string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// broadcastMessage carries an event through the fan-out channel. A nil
// target means every connection.
type broadcastMessage struct {
	event  *Event
	target *Connection
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a manager for the tasting room.
func NewConnectionManager(cfg ConnectionConfig, engine *game.Engine, appCfg *config.Config, adminSecret string, mirror *Mirror) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		config:      cfg,
		engine:      engine,
		appCfg:      appCfg,
		adminSecret: adminSecret,
		sessions:    NewAdminSessions(),
		mirror:      mirror,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// Sessions exposes the admin session registry.
func (cm *ConnectionManager) Sessions() *AdminSessions {
	return cm.sessions
}

// Start begins processing broadcast messages. Blocks until ctx is
// cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(ctx, message)
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket viewer connection.
func (cm *ConnectionManager) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	cm.sendWelcome(connection)

	log.Info().
		Str("connection_id", connection.ID).
		Msg("WebSocket connection established")
}

// sendWelcome pushes the current config, snapshot and reveal mode to a
// new connection as three independent messages, so a partial client
// still gets partial functionality.
func (cm *ConnectionManager) sendWelcome(conn *Connection) {
	cm.sendEvent(conn, EventConfig, cm.appCfg)
	snap := cm.engine.SnapshotState()
	cm.sendEvent(conn, EventGameData, snap)
	cm.sendEvent(conn, EventRevealModeUpdate, snap.RevealMode)
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and revokes any admin
// capability it held.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn]; !exists {
		return
	}
	delete(cm.connections, conn)
	close(conn.Send)
	cm.sessions.Revoke(conn.ID)

	log.Info().
		Str("connection_id", conn.ID).
		Str("user", conn.Username).
		Msg("connection unregistered")
}

// Broadcast queues an event for every connected viewer.
func (cm *ConnectionManager) Broadcast(event *Event) {
	select {
	case cm.broadcastCh <- broadcastMessage{event: event}:
	default:
		log.Warn().Str("event_type", string(event.Type)).Msg("broadcast channel full, dropping message")
	}
}

// sendTo queues an event for a single connection only.
func (cm *ConnectionManager) sendTo(conn *Connection, event *Event) {
	select {
	case cm.broadcastCh <- broadcastMessage{event: event, target: conn}:
	default:
		log.Warn().
			Str("connection_id", conn.ID).
			Str("event_type", string(event.Type)).
			Msg("broadcast channel full, dropping targeted message")
	}
}

func (cm *ConnectionManager) handleBroadcast(ctx context.Context, message broadcastMessage) {
	cm.mu.RLock()
	var targets []*Connection
	for conn := range cm.connections {
		if message.target != nil && conn != message.target {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	data, err := json.Marshal(message.event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	if message.target == nil && cm.mirror != nil {
		if err := cm.mirror.Publish(ctx, message.event); err != nil {
			log.Error().Err(err).Str("event_type", string(message.event.Type)).Msg("failed to mirror event")
		}
	}

	log.Debug().
		Str("event_type", string(message.event.Type)).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// sendEvent builds an envelope and queues it for one connection.
func (cm *ConnectionManager) sendEvent(conn *Connection, eventType EventType, payload interface{}) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	cm.sendTo(conn, event)
}

// broadcastEvent builds an envelope and queues it for everyone.
func (cm *ConnectionManager) broadcastEvent(eventType EventType, payload interface{}) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	cm.Broadcast(event)
}

// GameData implements game.Broadcaster.
func (cm *ConnectionManager) GameData(snap *store.Snapshot) {
	cm.broadcastEvent(EventGameData, snap)
}

// UserUpdate implements game.Broadcaster.
func (cm *ConnectionManager) UserUpdate(users []string) {
	cm.broadcastEvent(EventUserUpdate, users)
}

// RevealMode implements game.Broadcaster.
func (cm *ConnectionManager) RevealMode(on bool) {
	cm.broadcastEvent(EventRevealModeUpdate, on)
}

// AdminNotice implements game.Broadcaster.
func (cm *ConnectionManager) AdminNotice(message string) {
	cm.broadcastEvent(EventAdminMessage, message)
}

// Stats returns counters about active connections.
func (cm *ConnectionManager) Stats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return map[string]interface{}{
		"total_connections": len(cm.connections),
		"admin_sessions":    cm.sessions.Count(),
	}
}

// handleClientMessage dispatches one decoded client action.
func (cm *ConnectionManager) handleClientMessage(ctx context.Context, conn *Connection, msg ClientMessage) {
	isAdmin := cm.sessions.IsAdmin(conn.ID)

	switch msg.Type {
	case MessageJoinGame:
		if msg.Name == "" {
			return
		}
		conn.Username = msg.Name
		cm.engine.Join(ctx, msg.Name)

	case MessageAdminLogin:
		ok := subtle.ConstantTimeCompare([]byte(msg.Secret), []byte(cm.adminSecret)) == 1
		if ok {
			cm.sessions.Grant(conn.ID)
			log.Info().Str("connection_id", conn.ID).Msg("admin logged in")
		}
		cm.sendEvent(conn, EventAdminLoginResult, AdminLoginResult{Success: ok})

	case MessageAddChip:
		if err := cm.engine.AddChip(ctx, msg.Name, isAdmin); err != nil {
			cm.notifyError(conn, err)
		}

	case MessageRemoveChip:
		removed, err := cm.engine.RemoveChip(ctx, msg.Name, isAdmin)
		if err != nil {
			cm.notifyError(conn, err)
			return
		}
		if removed {
			cm.sendEvent(conn, EventAdminMessage, fmt.Sprintf("Chip %q removed successfully!", msg.Name))
		}

	case MessageSubmitVote:
		if err := cm.engine.SubmitVote(ctx, msg.Username, msg.Chip, msg.Criterion, msg.Rating); err != nil {
			cm.notifyError(conn, err)
		}

	case MessageToggleReveal:
		if err := cm.engine.ToggleReveal(ctx, msg.Reveal, isAdmin); err != nil {
			cm.notifyError(conn, err)
			return
		}
		action := "hidden"
		if msg.Reveal {
			action = "revealed"
		}
		cm.sendEvent(conn, EventAdminMessage, fmt.Sprintf("Names %s successfully!", action))

	case MessageAdminReset:
		if err := cm.engine.Reset(ctx, isAdmin); err != nil {
			cm.notifyError(conn, err)
		}

	default:
		log.Debug().
			Str("connection_id", conn.ID).
			Str("message_type", string(msg.Type)).
			Msg("unknown client message type")
	}
}

// notifyError converts a rejected action into a targeted notice. Rejections
// are never broadcast.
func (cm *ConnectionManager) notifyError(conn *Connection, err error) {
	var notice string
	switch {
	case errors.Is(err, game.ErrUnauthorized):
		notice = "Unauthorized: Admin access required"
	case errors.Is(err, game.ErrInvalidRating):
		notice = "Invalid rating: Must be between 1 and 5"
	default:
		notice = "Request failed"
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("client action failed")
	}
	cm.sendEvent(conn, EventAdminMessage, notice)
}

// writePump sends queued messages and pings to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump reads client actions from the WebSocket connection.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", c.ID).
				Msg("dropping malformed client message")
			c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
			continue
		}

		c.Manager.handleClientMessage(context.Background(), c, msg)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
