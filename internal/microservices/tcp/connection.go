package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"battleships/internal/protocol"

	"github.com/google/uuid"
)

// ClientConnection is one request/response exchange: a single frame in, a single frame
// out, then the socket is closed.
type ClientConnection struct {
	ID         string // unique identifier = key in the manager map
	RemoteAddr string
	Host       string
	conn       net.Conn
	Manager    *ConnectionManager
	timeout    time.Duration // write deadline for the response
	closeOnce  sync.Once
}

func NewClientConnection(conn net.Conn, manager *ConnectionManager, writeTimeout time.Duration) *ClientConnection {
	remote := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	return &ClientConnection{
		ID:         uuid.NewString(),
		RemoteAddr: remote,
		Host:       host,
		conn:       conn,
		Manager:    manager,
		timeout:    writeTimeout,
	}
}

// ReadRequest reads the single request frame of the exchange.
func (c *ClientConnection) ReadRequest(readTimeout time.Duration) (protocol.Frame, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return protocol.Frame{}, fmt.Errorf("failed to set read deadline: %w", err)
	}
	f, err := protocol.ReadFrame(c.conn)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return protocol.Frame{}, fmt.Errorf("client read timeout: %w", err)
		}
		return protocol.Frame{}, err
	}
	return f, nil
}

// Respond writes the response frame and closes the exchange.
func (c *ClientConnection) Respond(f protocol.Frame) error {
	defer c.Close()
	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	return protocol.WriteFrame(c.conn, f)
}

// Close closes the socket and unregisters the exchange.
func (c *ClientConnection) Close() {
	c.closeConn()
	if c.Manager != nil {
		c.Manager.RemoveConnection(c)
	}
}

func (c *ClientConnection) closeConn() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}
