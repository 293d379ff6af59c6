package udp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"battleships/internal/shared"
)

// NotificationType defines the type of notification
type NotificationType string

const (
	NotificationEvent       NotificationType = "EVENT"
	NotificationSubscribe   NotificationType = "SUBSCRIBE"
	NotificationUnsubscribe NotificationType = "UNSUBSCRIBE"
	NotificationPong        NotificationType = "PONG"
	NotificationError       NotificationType = "ERROR"
)

// Request types a subscriber may send
const (
	RequestSubscribe   = "SUBSCRIBE"
	RequestUnsubscribe = "UNSUBSCRIBE"
	RequestPing        = "PING"
)

// MaxDatagram bounds both directions; a notification never comes close.
const MaxDatagram = 4096

// Notification represents a datagram sent to a subscriber
type Notification struct {
	Type      NotificationType   `json:"type"`
	MatchID   int                `json:"match_id,omitempty"`
	Message   string             `json:"message,omitempty"`
	Event     *shared.MatchEvent `json:"event,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// NewEventNotification wraps a match event
func NewEventNotification(ev shared.MatchEvent) *Notification {
	return &Notification{
		Type:      NotificationEvent,
		MatchID:   ev.MatchID,
		Message:   describe(ev),
		Event:     &ev,
		Timestamp: time.Now().UTC(),
	}
}

func newReply(t NotificationType, matchID int, message string) *Notification {
	return &Notification{
		Type:      t,
		MatchID:   matchID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// describe is the human readable line of an event
func describe(ev shared.MatchEvent) string {
	switch ev.Type {
	case shared.EventMatchStarted:
		return fmt.Sprintf("Match %d started", ev.MatchID)
	case shared.EventShootingStarted:
		return fmt.Sprintf("Match %d: player %d opens fire", ev.MatchID, ev.PlayerID)
	case shared.EventShot:
		if hit, _ := ev.Data["hit"].(bool); hit {
			return fmt.Sprintf("Match %d: player %d hit", ev.MatchID, ev.PlayerID)
		}
		return fmt.Sprintf("Match %d: player %d missed", ev.MatchID, ev.PlayerID)
	case shared.EventMatchWon:
		return fmt.Sprintf("Match %d won by player %d", ev.MatchID, ev.PlayerID)
	case shared.EventMatchRematched:
		return fmt.Sprintf("Match %d: rematch", ev.MatchID)
	case shared.EventPlayerDisconnected:
		return fmt.Sprintf("Match %d: player %d left", ev.MatchID, ev.PlayerID)
	case shared.EventMatchReaped:
		return fmt.Sprintf("Match %d closed", ev.MatchID)
	}
	return string(ev.Type)
}

// ToJSON converts notification to JSON bytes
func (n *Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

// SubscribeRequest represents a request from a subscriber. MatchID 0 follows every match.
type SubscribeRequest struct {
	Type         string `json:"type"` // SUBSCRIBE, UNSUBSCRIBE or PING
	SubscriberID string `json:"subscriber_id"`
	MatchID      int    `json:"match_id,omitempty"`
}

// ParseSubscribeRequest parses an incoming datagram
func ParseSubscribeRequest(data []byte) (*SubscribeRequest, error) {
	var req SubscribeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if req.SubscriberID == "" {
		return nil, errors.New("invalid request: subscriber_id is required")
	}
	if req.MatchID < 0 {
		return nil, errors.New("invalid request: negative match_id")
	}
	return &req, nil
}
