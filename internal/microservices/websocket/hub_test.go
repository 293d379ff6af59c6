package websocket

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"battleships/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws", WSHandler(hub))
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	greeting := read(t, conn)
	require.Equal(t, TypeSystem, greeting.Type)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := MessageFromJSON(data)
	require.NoError(t, err)
	return msg
}

func event(typ shared.EventType, matchID int) shared.MatchEvent {
	return shared.MatchEvent{ID: uuid.NewString(), Type: typ, MatchID: matchID, Time: time.Now().UTC()}
}

func TestHub_BroadcastsToAllSpectators(t *testing.T) {
	hub, srv, _ := startHub(t)
	a := dial(t, srv, "")
	b := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	ev := event(shared.EventMatchStarted, 1234)
	hub.Publish(ev)

	for _, conn := range []*websocket.Conn{a, b} {
		msg := read(t, conn)
		assert.Equal(t, TypeEvent, msg.Type)
		require.NotNil(t, msg.Event)
		assert.Equal(t, ev.ID, msg.Event.ID)
		assert.Equal(t, shared.EventMatchStarted, msg.Event.Type)
		assert.Equal(t, 1234, msg.MatchID)
	}
}

func TestHub_MatchFilter(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv, "?match_id=5")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(event(shared.EventShot, 6))
	hub.Publish(event(shared.EventShot, 5))

	msg := read(t, conn)
	require.NotNil(t, msg.Event)
	assert.Equal(t, 5, msg.Event.MatchID)
}

func TestHub_InvalidMatchID(t *testing.T) {
	_, srv, _ := startHub(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?match_id=abc"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub(quietLogger()) // not running

	done := make(chan struct{})
	go func() {
		for i := 0; i < eventBuffer+3; i++ {
			hub.Publish(event(shared.EventShot, 1))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}
	assert.Equal(t, int64(3), hub.Dropped())
}

func TestHub_ShutdownClosesSpectators(t *testing.T) {
	hub, srv, cancel := startHub(t)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-hub.Done()
	assert.Zero(t, hub.ClientCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "the hub closed the feed")
}

func TestHub_DisconnectedSpectatorUnregisters(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}
