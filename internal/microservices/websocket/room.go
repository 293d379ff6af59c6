package websocket

import (
	"log/slog"
	"sync"
)

// AllMatches is the room of spectators following every match.
const AllMatches = 0

// Room = spectators of one match
type Room struct {
	ID      int                // match ID, AllMatches for the firehose
	Clients map[string]*Client // map[clientID] -> *Client
	mu      sync.RWMutex       // mutex for concurrent access
}

// NewRoom creates a new spectator Room
func NewRoom(id int) *Room {
	return &Room{
		ID:      id,
		Clients: make(map[string]*Client),
	}
}

// AddClient: adds new client to the room
func (r *Room) AddClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Clients[c.ID] == nil {
		r.Clients[c.ID] = c
	} else {
		slog.Warn("Client already in room", "room_id", r.ID, "client_id", c.ID)
	}
}

// RemoveClient: removes client from the room
func (r *Room) RemoveClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Clients, c.ID)
}

// Has reports whether this exact client is in the room.
func (r *Room) Has(c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Clients[c.ID] == c
}

// GetClientCount: returns the number of clients in the room
func (r *Room) GetClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Clients)
}

// GetClients: returns copy of clients list in the room
func (r *Room) GetClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.Clients))
	for _, client := range r.Clients {
		clients = append(clients, client)
	}
	return clients
}
