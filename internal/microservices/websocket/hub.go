package websocket

import (
	"context"
	"log/slog"
	"sync/atomic"

	"battleships/internal/shared"
)

// Central hub fanning match events out to spectators.
// Each WebSocket connection runs its own read and write goroutines,
// they all talk to the hub through channels so rooms need no locking from Run.

const eventBuffer = 256

type watchRequest struct {
	client  *Client
	matchID int
}

type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	events  chan shared.MatchEvent
	watch   chan watchRequest
	rooms   map[int]*Room // match id -> spectators; AllMatches holds the firehose
	logger  *slog.Logger
	dropped atomic.Int64
	clients atomic.Int64
	done    chan struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		events:     make(chan shared.MatchEvent, eventBuffer),
		watch:      make(chan watchRequest),
		rooms:      make(map[int]*Room),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Publish queues ev for delivery. It never blocks: when the buffer is full the event is
// dropped, so a slow spectator can never stall the game server.
func (h *Hub) Publish(ev shared.MatchEvent) {
	select {
	case h.events <- ev:
	default:
		n := h.dropped.Add(1)
		h.logger.Warn("spectator_event_dropped",
			"event_id", ev.ID,
			"type", ev.Type,
			"match_id", ev.MatchID,
			"dropped_total", n,
		)
	}
}

// Dropped is the number of events lost to a full buffer.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// ClientCount is the number of connected spectators.
func (h *Hub) ClientCount() int { return int(h.clients.Load()) }

// Run owns the rooms until ctx ends; then every spectator is disconnected.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.Register:
			h.room(c.MatchID).AddClient(c)
			h.clients.Add(1)
			h.logger.Info("spectator_connected", "client_id", c.ID, "match_id", c.MatchID)
			if data, err := NewSystemMessage(c.MatchID, "watching").ToJSON(); err == nil {
				h.deliver(c, data)
			}

		case c := <-h.Unregister:
			h.remove(c)

		case w := <-h.watch:
			if h.rooms[w.client.MatchID] == nil || !h.rooms[w.client.MatchID].Has(w.client) {
				continue
			}
			h.leaveRoom(w.client)
			w.client.MatchID = w.matchID
			h.room(w.matchID).AddClient(w.client)
			h.logger.Debug("spectator_watching", "client_id", w.client.ID, "match_id", w.matchID)

		case ev := <-h.events:
			data, err := NewEventMessage(ev).ToJSON()
			if err != nil {
				continue
			}
			h.broadcast(AllMatches, data)
			if ev.MatchID != AllMatches {
				h.broadcast(ev.MatchID, data)
			}

		case <-ctx.Done():
			for _, r := range h.rooms {
				for _, c := range r.GetClients() {
					h.remove(c)
				}
			}
			h.logger.Info("spectator_hub_stopped")
			return
		}
	}
}

// Done is closed once Run returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) room(matchID int) *Room {
	r := h.rooms[matchID]
	if r == nil {
		r = NewRoom(matchID)
		h.rooms[matchID] = r
	}
	return r
}

func (h *Hub) leaveRoom(c *Client) {
	r := h.rooms[c.MatchID]
	if r == nil {
		return
	}
	r.RemoveClient(c)
	if c.MatchID != AllMatches && r.GetClientCount() == 0 {
		delete(h.rooms, c.MatchID)
	}
}

// remove forgets c and closes its send channel, which ends its write pump.
func (h *Hub) remove(c *Client) {
	r := h.rooms[c.MatchID]
	if r == nil || !r.Has(c) {
		return
	}
	h.leaveRoom(c)
	close(c.SendChannel)
	h.clients.Add(-1)
	h.logger.Info("spectator_disconnected", "client_id", c.ID, "match_id", c.MatchID)
}

func (h *Hub) broadcast(matchID int, data []byte) {
	r := h.rooms[matchID]
	if r == nil {
		return
	}
	for _, c := range r.GetClients() {
		h.deliver(c, data)
	}
}

// deliver hands data to c; a spectator that cannot keep up is disconnected.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.SendChannel <- data:
	default:
		h.logger.Warn("spectator_too_slow", "client_id", c.ID)
		h.remove(c)
	}
}

// unregister and changeRoom are called from client goroutines and give up once the
// hub stopped.
func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) changeRoom(c *Client, matchID int) {
	select {
	case h.watch <- watchRequest{client: c, matchID: matchID}:
	case <-h.done:
	}
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}
