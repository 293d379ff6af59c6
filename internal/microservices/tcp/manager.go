package tcp

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type hostLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ConnectionManager tracks the open request/response exchanges and rate limits new
// connections per remote host. Unlike the game state it is shared between the reader
// goroutines and the processing loop, hence the lock.
type ConnectionManager struct {
	clients  map[string]*ClientConnection
	limiters map[string]*hostLimiter
	limit    rate.Limit
	burst    int
	mu       sync.RWMutex
	logger   *slog.Logger
}

// constructor for ConnectionManager
func NewConnectionManager(limit rate.Limit, burst int) *ConnectionManager {
	return &ConnectionManager{
		clients:  make(map[string]*ClientConnection),
		limiters: make(map[string]*hostLimiter),
		limit:    limit,
		burst:    burst,
		logger:   slog.Default(),
	}
}

func (m *ConnectionManager) AddConnection(client *ClientConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.ID] = client
	m.logger.Debug("client_added",
		"client_id", client.ID,
		"remote_addr", client.RemoteAddr,
	)
}

func (m *ConnectionManager) RemoveConnection(client *ClientConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, client.ID)
}

// Count is the number of exchanges still waiting for their response.
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// CloseAllConnections drops every exchange that never got an answer.
func (m *ConnectionManager) CloseAllConnections() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*ClientConnection)
	m.mu.Unlock()

	for id, client := range clients {
		client.closeConn()
		m.logger.Info("client_connection_closed",
			"client_id", id,
		)
	}
}

// Allow consumes a token of the host's limiter.
func (m *ConnectionManager) Allow(host string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	hl, ok := m.limiters[host]
	if !ok {
		hl = &hostLimiter{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.limiters[host] = hl
	}
	hl.lastSeen = time.Now()
	return hl.limiter.Allow()
}

// CleanupLimiters forgets hosts idle for longer than maxIdle.
func (m *ConnectionManager) CleanupLimiters(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for host, hl := range m.limiters {
		if time.Since(hl.lastSeen) > maxIdle {
			delete(m.limiters, host)
			removed++
		}
	}
	return removed
}
