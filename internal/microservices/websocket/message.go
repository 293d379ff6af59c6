package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"battleships/internal/shared"
)

// Message protocol definitions

type MessageType string

const (
	TypeEvent  MessageType = "event"  // match event pushed by the server
	TypeWatch  MessageType = "watch"  // spectator switches to one match (0 = all)
	TypeSystem MessageType = "system" // system message
)

// Message structure for WebSocket communication
type Message struct {
	Type      MessageType        `json:"type"`
	MatchID   int                `json:"match_id"`
	Event     *shared.MatchEvent `json:"event,omitempty"`
	Content   string             `json:"content,omitempty"`
	Timestamp time.Time          `json:"timestamp"` // time in UTC format
}

func NewEventMessage(ev shared.MatchEvent) *Message {
	return &Message{
		Type:      TypeEvent,
		MatchID:   ev.MatchID,
		Event:     &ev,
		Timestamp: time.Now().UTC(),
	}
}

// specify the message for system
func NewSystemMessage(matchID int, content string) *Message {
	return &Message{
		Type:      TypeSystem,
		MatchID:   matchID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON: marshal Message struct to JSON
func (m *Message) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("Failed to marshal message to JSON", "error", err)
		return nil, err
	}
	return data, nil
}

// MessageFromJSON: unmarshal JSON data to Message struct
func MessageFromJSON(data []byte) (*Message, error) {
	var msg Message
	err := json.Unmarshal(data, &msg)
	if err != nil {
		slog.Error("Failed to unmarshal message from JSON", "error", err)
		return nil, err
	}
	return &msg, nil
}
