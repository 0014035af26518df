package gateway

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastehub/server/internal/config"
	"github.com/tastehub/server/internal/game"
	"github.com/tastehub/server/internal/store"
)

const testSecret = "test-secret"

func newTestManager(t *testing.T) *ConnectionManager {
	t.Helper()

	appCfg := config.Default()
	st := store.NewFileStore(filepath.Join(t.TempDir(), "game-data.json"))
	engine := game.NewEngine(st, appCfg, clockwork.NewRealClock())

	cm := NewConnectionManager(DefaultConnectionConfig(), engine, appCfg, testSecret, nil)
	engine.SetBroadcaster(cm)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go cm.Start(ctx)

	return cm
}

// addViewer registers a connection without a real WebSocket; events land
// on its Send channel.
func addViewer(cm *ConnectionManager) *Connection {
	conn := &Connection{
		ID:      uuid.New().String(),
		Send:    make(chan []byte, 32),
		Manager: cm,
	}
	cm.registerConnection(conn)
	return conn
}

func receiveEvent(t *testing.T, conn *Connection) Event {
	t.Helper()
	select {
	case data := <-conn.Send:
		var event Event
		require.NoError(t, json.Unmarshal(data, &event))
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func receiveEventOfType(t *testing.T, conn *Connection, eventType EventType) Event {
	t.Helper()
	for i := 0; i < 10; i++ {
		event := receiveEvent(t, conn)
		if event.Type == eventType {
			return event
		}
	}
	t.Fatalf("never received event of type %s", eventType)
	return Event{}
}

func TestAdminLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("WrongSecretDenied", func(t *testing.T) {
		cm := newTestManager(t)
		conn := addViewer(cm)

		cm.handleClientMessage(ctx, conn, ClientMessage{Type: MessageAdminLogin, Secret: "wrong"})

		assert.False(t, cm.Sessions().IsAdmin(conn.ID))
		event := receiveEventOfType(t, conn, EventAdminLoginResult)
		var result AdminLoginResult
		require.NoError(t, json.Unmarshal(event.Data, &result))
		assert.False(t, result.Success)
	})

	t.Run("CorrectSecretGrantsCapability", func(t *testing.T) {
		cm := newTestManager(t)
		conn := addViewer(cm)

		cm.handleClientMessage(ctx, conn, ClientMessage{Type: MessageAdminLogin, Secret: testSecret})

		assert.True(t, cm.Sessions().IsAdmin(conn.ID))
		event := receiveEventOfType(t, conn, EventAdminLoginResult)
		var result AdminLoginResult
		require.NoError(t, json.Unmarshal(event.Data, &result))
		assert.True(t, result.Success)
	})

	t.Run("RevokedOnDisconnect", func(t *testing.T) {
		cm := newTestManager(t)
		conn := addViewer(cm)

		cm.handleClientMessage(ctx, conn, ClientMessage{Type: MessageAdminLogin, Secret: testSecret})
		require.True(t, cm.Sessions().IsAdmin(conn.ID))

		cm.unregisterConnection(conn)
		assert.False(t, cm.Sessions().IsAdmin(conn.ID))
	})
}

func TestUnauthorizedActionIsTargetedOnly(t *testing.T) {
	ctx := context.Background()
	cm := newTestManager(t)
	requester := addViewer(cm)
	bystander := addViewer(cm)

	cm.handleClientMessage(ctx, requester, ClientMessage{Type: MessageAddChip, Name: "Foo"})

	event := receiveEventOfType(t, requester, EventAdminMessage)
	var notice string
	require.NoError(t, json.Unmarshal(event.Data, &notice))
	assert.Equal(t, "Unauthorized: Admin access required", notice)

	// The rejection was processed; nothing was queued for other viewers.
	assert.Empty(t, bystander.Send)
	assert.NotContains(t, cm.engine.SnapshotState().Chips, "Foo")
}

func TestAdminActionsBroadcast(t *testing.T) {
	ctx := context.Background()
	cm := newTestManager(t)
	admin := addViewer(cm)
	viewer := addViewer(cm)

	cm.handleClientMessage(ctx, admin, ClientMessage{Type: MessageAdminLogin, Secret: testSecret})
	receiveEventOfType(t, admin, EventAdminLoginResult)

	t.Run("AddChipReachesAllViewers", func(t *testing.T) {
		cm.handleClientMessage(ctx, admin, ClientMessage{Type: MessageAddChip, Name: "Wasabi"})

		for _, conn := range []*Connection{admin, viewer} {
			event := receiveEventOfType(t, conn, EventGameData)
			var snap store.Snapshot
			require.NoError(t, json.Unmarshal(event.Data, &snap))
			assert.Contains(t, snap.Chips, "Wasabi")
		}
	})

	t.Run("ToggleRevealPushesStandaloneUpdate", func(t *testing.T) {
		cm.handleClientMessage(ctx, admin, ClientMessage{Type: MessageToggleReveal, Reveal: true})

		event := receiveEventOfType(t, viewer, EventRevealModeUpdate)
		var on bool
		require.NoError(t, json.Unmarshal(event.Data, &on))
		assert.True(t, on)
		receiveEventOfType(t, viewer, EventGameData)

		confirmation := receiveEventOfType(t, admin, EventAdminMessage)
		var notice string
		require.NoError(t, json.Unmarshal(confirmation.Data, &notice))
		assert.Equal(t, "Names revealed successfully!", notice)
	})

	t.Run("RemoveChipConfirmsToRequester", func(t *testing.T) {
		cm.handleClientMessage(ctx, admin, ClientMessage{Type: MessageRemoveChip, Name: "Wasabi"})

		event := receiveEventOfType(t, admin, EventAdminMessage)
		var notice string
		require.NoError(t, json.Unmarshal(event.Data, &notice))
		assert.Equal(t, `Chip "Wasabi" removed successfully!`, notice)
	})
}

func TestJoinGame(t *testing.T) {
	ctx := context.Background()
	cm := newTestManager(t)
	conn := addViewer(cm)

	cm.handleClientMessage(ctx, conn, ClientMessage{Type: MessageJoinGame, Name: "alice"})

	assert.Equal(t, "alice", conn.Username)
	event := receiveEventOfType(t, conn, EventUserUpdate)
	var users []string
	require.NoError(t, json.Unmarshal(event.Data, &users))
	assert.Equal(t, []string{"alice"}, users)
}

func TestSendWelcome(t *testing.T) {
	cm := newTestManager(t)
	conn := addViewer(cm)

	cm.sendWelcome(conn)

	assert.Equal(t, EventConfig, receiveEvent(t, conn).Type)
	assert.Equal(t, EventGameData, receiveEvent(t, conn).Type)
	assert.Equal(t, EventRevealModeUpdate, receiveEvent(t, conn).Type)
}
