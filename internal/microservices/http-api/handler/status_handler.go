package handler

import (
	"net/http"
	"strconv"
	"time"

	"battleships/internal/microservices/http-api/dto"
	"battleships/internal/microservices/tcp"

	"github.com/gin-gonic/gin"
)

// SnapshotProvider is implemented by *tcp.TCPServer.
type SnapshotProvider interface {
	Snapshot() *tcp.Snapshot
}

// SpectatorCounter is implemented by the websocket hub.
type SpectatorCounter interface {
	ClientCount() int
}

type StatusHandler struct {
	snapshots      SnapshotProvider
	spectators     SpectatorCounter
	startedAt      time.Time
	rematchEnabled bool
}

func NewStatusHandler(snapshots SnapshotProvider, spectators SpectatorCounter, rematchEnabled bool) *StatusHandler {
	return &StatusHandler{
		snapshots:      snapshots,
		spectators:     spectators,
		startedAt:      time.Now(),
		rematchEnabled: rematchEnabled,
	}
}

// RegisterRoutes registers status routes
func (h *StatusHandler) RegisterRoutes(router *gin.RouterGroup) {
	status := router.Group("/status")
	{
		status.GET("", h.Summary)                 // counts only
		status.GET("/snapshot", h.Snapshot)       // full state copy
		status.GET("/matches/:match_id", h.Match) // one match
	}
}

// CheckConn is the liveness probe
// GET /check-conn
func (h *StatusHandler) CheckConn(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "battleships server is alive"})
}

// Summary returns player and match counts
// GET /api/v1/status
func (h *StatusHandler) Summary(c *gin.Context) {
	snap := h.snapshots.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "game server not running"})
		return
	}

	resp := dto.StatusResponse{
		Players:        len(snap.Players),
		Matches:        len(snap.Matches),
		Pending:        snap.Pending,
		OpenConn:       snap.OpenConn,
		TakenAt:        snap.TakenAt,
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
		RematchEnabled: h.rematchEnabled,
	}
	for _, p := range snap.Players {
		if p.Connected {
			resp.Connected++
		}
	}
	for _, m := range snap.Matches {
		if m.Active {
			resp.ActiveMatches++
		}
	}
	if h.spectators != nil {
		resp.Spectators = h.spectators.ClientCount()
	}
	c.JSON(http.StatusOK, resp)
}

// Snapshot returns the full published snapshot
// GET /api/v1/status/snapshot
func (h *StatusHandler) Snapshot(c *gin.Context) {
	snap := h.snapshots.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "game server not running"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Match returns one match of the snapshot
// GET /api/v1/status/matches/:match_id
func (h *StatusHandler) Match(c *gin.Context) {
	matchID, err := strconv.Atoi(c.Param("match_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid match ID"})
		return
	}
	snap := h.snapshots.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "game server not running"})
		return
	}
	for _, m := range snap.Matches {
		if m.ID == matchID {
			c.JSON(http.StatusOK, m)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
}
