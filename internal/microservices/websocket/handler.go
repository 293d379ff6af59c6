package websocket

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handler to WebSocket connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// spectators are read-only, any origin may watch
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades to a spectator feed. ?match_id=N watches a single match.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		matchID := AllMatches
		if raw := c.Query("match_id"); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil || id < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match_id"})
				return
			}
			matchID = id
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already replied with an HTTP error
			return
		}

		client := NewClient(uuid.NewString(), matchID, conn, hub)
		if !hub.register(client) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return
		}

		go client.ReadPump()
		go client.WritePump()
	}
}
