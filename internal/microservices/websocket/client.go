package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// Individual spectator connection

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time write a message to the peer
	PongWait       = 60 * time.Second    // max time to wait for pong from peer => no pong = no connection
	PingPeriod     = (PongWait * 9) / 10 // 90% of pong wait, leaves room for network jitter
	MaxMessageSize = 512                 // maximum message size allowed from peer
	SendBuffer     = 64                  // queued outbound messages before the spectator counts as slow
)

type Client struct {
	ID          string          // unique client ID
	MatchID     int             // watched match, AllMatches for all; owned by the hub once registered
	Conn        *websocket.Conn // WebSocket connection
	SendChannel chan []byte     // outbound messages; closed by the hub
	Hub         *Hub            // reference to the central Hub
}

// constructor new client
func NewClient(id string, matchID int, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:          id,
		MatchID:     matchID,
		Conn:        conn,
		SendChannel: make(chan []byte, SendBuffer),
		Hub:         hub,
	}
}

// ReadPump reads watch requests until the peer goes away, then unregisters.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.logger.Debug("spectator_read_failed", "client_id", c.ID, "error", err)
			}
			return
		}
		msg, err := MessageFromJSON(data)
		if err != nil {
			continue
		}
		if msg.Type == TypeWatch {
			c.Hub.changeRoom(c, msg.MatchID)
		}
	}
}

// WritePump forwards queued messages and pings until the hub closes SendChannel.
func (c *Client) WritePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.SendChannel:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
