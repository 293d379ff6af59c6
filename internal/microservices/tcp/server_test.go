package tcp

import (
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"battleships/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, cfg Config) *TCPServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(listener.Addr().String(), cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	served := make(chan error, 1)
	go func() { served <- s.Serve(listener) }()
	t.Cleanup(func() {
		s.Stop()
		assert.NoError(t, <-served)
	})
	return s
}

func fastConfig() Config {
	cfg := testConfig()
	cfg.AcceptTimeout = 50 * time.Millisecond
	cfg.SweepInterval = 20 * time.Millisecond
	cfg.ReadTimeout = time.Second
	cfg.WriteTimeout = time.Second
	return cfg
}

// exchange performs one request/response round trip.
func exchange(t *testing.T, addr string, id int, cmd protocol.Command, payload any) (protocol.Frame, error) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return protocol.Frame{}, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	f, err := protocol.NewFrame(id, cmd, payload)
	require.NoError(t, err)
	if err := protocol.SendRequest(conn, f); err != nil {
		return protocol.Frame{}, err
	}
	return protocol.ReadFrame(conn)
}

func connectOver(t *testing.T, addr string) int {
	t.Helper()
	f, err := exchange(t, addr, 0, protocol.CmdConnect, nil)
	require.NoError(t, err)
	var resp protocol.ConnectResponse
	require.NoError(t, f.Bind(&resp))
	require.True(t, resp.StayConnected)
	return resp.ID
}

func TestServer_ConnectAndPair(t *testing.T) {
	s := startServer(t, fastConfig())
	p1 := connectOver(t, s.Addr)
	p2 := connectOver(t, s.Addr)
	assert.NotEqual(t, p1, p2)

	type result struct {
		f   protocol.Frame
		err error
	}
	first := make(chan result, 1)
	go func() {
		f, err := exchange(t, s.Addr, p1, protocol.CmdPair, nil)
		first <- result{f, err}
	}()
	require.Eventually(t, func() bool { return s.Snapshot().Pending == 1 }, 2*time.Second, 10*time.Millisecond)

	f, err := exchange(t, s.Addr, p2, protocol.CmdPair, nil)
	require.NoError(t, err)
	var r2 protocol.PairResponse
	require.NoError(t, f.Bind(&r2))
	assert.True(t, r2.Paired)
	assert.Equal(t, p1, r2.Opponent)

	res := <-first
	require.NoError(t, res.err)
	var r1 protocol.PairResponse
	require.NoError(t, res.f.Bind(&r1))
	assert.True(t, r1.Paired)
	assert.Equal(t, p2, r1.Opponent)
	assert.Equal(t, protocol.CmdPair, res.f.Command)

	require.Eventually(t, func() bool { return len(s.Snapshot().Matches) == 1 }, 2*time.Second, 10*time.Millisecond)
	snap := s.Snapshot()
	assert.Equal(t, "PLACING", snap.Matches[0].Stage)
	assert.Len(t, snap.Players, 2)
}

func TestServer_StopAnswersPending(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := NewServer(listener.Addr().String(), fastConfig(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	served := make(chan error, 1)
	go func() { served <- s.Serve(listener) }()

	id := connectOver(t, s.Addr)
	answer := make(chan protocol.Frame, 1)
	go func() {
		f, err := exchange(t, s.Addr, id, protocol.CmdPair, nil)
		if err == nil {
			answer <- f
		}
		close(answer)
	}()
	require.Eventually(t, func() bool { return s.Snapshot().Pending == 1 }, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	require.NoError(t, <-served)

	f, ok := <-answer
	require.True(t, ok, "pending request was not answered")
	var resp protocol.PairResponse
	require.NoError(t, f.Bind(&resp))
	assert.False(t, resp.Paired)
	assert.False(t, resp.StayConnected)
	assert.Equal(t, protocol.MsgServerShutdown, resp.GameEndMsg)
	assert.Zero(t, s.Snapshot().Pending)
}

func TestServer_MalformedFrameClosesConnection(t *testing.T) {
	s := startServer(t, fastConfig())

	conn, err := net.Dial("tcp", s.Addr)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(3 * time.Second))

	body := []byte("not json")
	header := make([]byte, protocol.LengthPrefixSize)
	binary.BigEndian.PutUint64(header, uint64(len(body)))
	_, err = conn.Write(append(header, body...))
	require.NoError(t, err)
	conn.(*net.TCPConn).CloseWrite()

	_, err = protocol.ReadFrame(conn)
	assert.Error(t, err)
	assert.Empty(t, s.Snapshot().Players)
}

func TestServer_RateLimited(t *testing.T) {
	cfg := fastConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	s := startServer(t, cfg)

	id := connectOver(t, s.Addr)
	f, err := exchange(t, s.Addr, id, protocol.CmdPair, nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdError, f.Command)
	assert.Equal(t, id, f.PlayerID)

	var resp protocol.ErrorResponse
	require.NoError(t, f.Bind(&resp))
	assert.Equal(t, protocol.ErrReasonRateLimited, resp.Error)
	assert.Equal(t, string(protocol.CmdPair), resp.ErrorObj)
	assert.True(t, resp.StayConnected, "a limited request does not end the session")

	require.Eventually(t, func() bool { return len(s.Snapshot().Players) == 1 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, s.Snapshot().Matches)
}

func TestServer_StartTwice(t *testing.T) {
	s := startServer(t, fastConfig())
	require.Eventually(t, func() bool { return s.started.Load() }, time.Second, 5*time.Millisecond)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	assert.Error(t, s.Serve(listener))
}
