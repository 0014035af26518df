package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a server-to-client message.
type EventType string

const (
	EventGameData         EventType = "gameData"
	EventUserUpdate       EventType = "userUpdate"
	EventRevealModeUpdate EventType = "revealModeUpdate"
	EventAdminMessage     EventType = "adminMessage"
	EventConfig           EventType = "config"
	EventAdminLoginResult EventType = "adminLoginResult"
)

// Event is the envelope pushed to viewers over the realtime channel.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps a payload in an event envelope.
func NewEvent(eventType EventType, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// MessageType identifies a client-to-server action.
type MessageType string

const (
	MessageJoinGame     MessageType = "joinGame"
	MessageAdminLogin   MessageType = "adminLogin"
	MessageAddChip      MessageType = "addChip"
	MessageRemoveChip   MessageType = "removeChip"
	MessageSubmitVote   MessageType = "submitVote"
	MessageToggleReveal MessageType = "toggleReveal"
	MessageAdminReset   MessageType = "adminReset"
)

// ClientMessage is an action received from a connected client. Fields are
// populated per message type.
type ClientMessage struct {
	Type      MessageType `json:"type"`
	Name      string      `json:"name,omitempty"`
	Secret    string      `json:"secret,omitempty"`
	Username  string      `json:"username,omitempty"`
	Chip      string      `json:"chip,omitempty"`
	Criterion string      `json:"criterion,omitempty"`
	Rating    int         `json:"rating,omitempty"`
	Reveal    bool        `json:"reveal,omitempty"`
}

// AdminLoginResult answers an adminLogin attempt.
type AdminLoginResult struct {
	Success bool `json:"success"`
}
