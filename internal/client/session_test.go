package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"battleships/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers one frame per connection through respond. respond runs on the
// connection's goroutine, so it may block to hold the answer back.
type fakeServer struct {
	t        *testing.T
	listener net.Listener
	respond  func(f protocol.Frame) protocol.Frame

	mu       sync.Mutex
	received []protocol.Frame
}

func newFakeServer(t *testing.T, respond func(f protocol.Frame) protocol.Frame) *fakeServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	fs := &fakeServer{t: t, listener: listener, respond: respond}
	go fs.serve()
	t.Cleanup(func() { listener.Close() })
	return fs
}

func (fs *fakeServer) Addr() string { return fs.listener.Addr().String() }

func (fs *fakeServer) serve() {
	for {
		conn, err := fs.listener.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			f, err := protocol.ReadFrame(conn)
			if err != nil {
				return
			}
			fs.mu.Lock()
			fs.received = append(fs.received, f)
			fs.mu.Unlock()
			protocol.WriteFrame(conn, fs.respond(f))
		}()
	}
}

// holdGate returns a channel closed when the test ends, after every session cleanup.
func holdGate(t *testing.T) chan struct{} {
	gate := make(chan struct{})
	t.Cleanup(func() { close(gate) })
	return gate
}

func (fs *fakeServer) count(cmd protocol.Command) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := 0
	for _, f := range fs.received {
		if f.Command == cmd {
			n++
		}
	}
	return n
}

func (fs *fakeServer) last(cmd protocol.Command) (protocol.Frame, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i := len(fs.received) - 1; i >= 0; i-- {
		if fs.received[i].Command == cmd {
			return fs.received[i], true
		}
	}
	return protocol.Frame{}, false
}

func frame(t *testing.T, cmd protocol.Command, payload any) protocol.Frame {
	f, err := protocol.NewFrame(0, cmd, payload)
	require.NoError(t, err)
	return f
}

// standardResponder connects as player 4242 and answers every other command with an
// empty staying response.
func standardResponder(t *testing.T) func(protocol.Frame) protocol.Frame {
	return func(f protocol.Frame) protocol.Frame {
		switch f.Command {
		case protocol.CmdConnect:
			return frame(t, f.Command, protocol.ConnectResponse{Status: protocol.Status{StayConnected: true}, ID: 4242})
		case protocol.CmdDisconnect:
			return frame(t, f.Command, protocol.DisconnectResponse{
				Status:       protocol.Disconnecting(protocol.MsgDisconnected),
				Acknowledged: true,
			})
		default:
			return frame(t, f.Command, protocol.Status{StayConnected: true})
		}
	}
}

func testOptions(addr string) Options {
	opts := DefaultOptions(addr)
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	opts.DialTimeout = time.Second
	return opts
}

func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	s := NewSession(opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		s.Close(ctx)
	})
	return s
}

// pump drains responses on the test goroutine until cond holds.
func pump(t *testing.T, s *Session, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s.LoadResponses()
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func connect(t *testing.T, s *Session) {
	t.Helper()
	sent, err := s.TryToSend(Request{Command: protocol.CmdConnect})
	require.NoError(t, err)
	require.True(t, sent)
	pump(t, s, s.Connected)
}

func TestSession_ConnectSetsID(t *testing.T) {
	fs := newFakeServer(t, standardResponder(t))
	s := newTestSession(t, testOptions(fs.Addr()))

	var got protocol.ConnectResponse
	called := false
	_, err := s.TryToSend(Request{
		Command: protocol.CmdConnect,
		Callback: func(r Response) {
			called = true
			require.NoError(t, r.Bind(&got))
		},
	})
	require.NoError(t, err)

	pump(t, s, func() bool { return called })
	assert.Equal(t, 4242, got.ID)
	assert.Equal(t, 4242, s.ID())
	assert.True(t, s.Connected())
	assert.True(t, s.Stay())
	assert.False(t, s.Outstanding(protocol.CmdConnect))

	f, ok := fs.last(protocol.CmdConnect)
	require.True(t, ok)
	assert.Zero(t, f.PlayerID)
}

func TestSession_DuplicateSuppressed(t *testing.T) {
	gate := holdGate(t)
	fs := newFakeServer(t, func(f protocol.Frame) protocol.Frame {
		if f.Command == protocol.CmdPair {
			<-gate
		}
		return standardResponder(t)(f)
	})
	s := newTestSession(t, testOptions(fs.Addr()))

	sent, err := s.TryToSend(Request{Command: protocol.CmdPair, Blocking: true})
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = s.TryToSend(Request{Command: protocol.CmdPair, Blocking: true})
	require.NoError(t, err)
	assert.False(t, sent)

	_, err = s.TryToSend(Request{Command: protocol.CmdPair, MustSend: true})
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	require.Eventually(t, func() bool { return fs.count(protocol.CmdPair) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, fs.count(protocol.CmdPair))
	assert.True(t, s.Outstanding(protocol.CmdPair))
}

func TestSession_UnknownCommandRejected(t *testing.T) {
	fs := newFakeServer(t, standardResponder(t))
	s := newTestSession(t, testOptions(fs.Addr()))

	for i := 0; i < 2*len(protocol.Commands); i++ {
		sent, err := s.TryToSend(Request{Command: protocol.Command(fmt.Sprintf("custom_%d", i))})
		require.ErrorIs(t, err, ErrUnknownCommand)
		require.False(t, sent)
	}
	assert.Zero(t, len(s.outbound))

	// the session still works after the rejected sends
	connect(t, s)
}

func TestSession_ResponsesCompleteOutOfOrder(t *testing.T) {
	pairGate := make(chan struct{})
	fs := newFakeServer(t, func(f protocol.Frame) protocol.Frame {
		if f.Command == protocol.CmdPair {
			<-pairGate
			return frame(t, f.Command, protocol.PairResponse{Status: protocol.Status{StayConnected: true}, Paired: true, Opponent: 7})
		}
		return standardResponder(t)(f)
	})
	s := newTestSession(t, testOptions(fs.Addr()))
	connect(t, s)

	var order []protocol.Command
	record := func(r Response) { order = append(order, r.Frame.Command) }

	_, err := s.TryToSend(Request{Command: protocol.CmdPair, Blocking: true, Callback: record})
	require.NoError(t, err)
	_, err = s.TryToSend(Request{Command: protocol.CmdConnectionCheck, Callback: record})
	require.NoError(t, err)

	pump(t, s, func() bool { return len(order) == 1 })
	assert.Equal(t, []protocol.Command{protocol.CmdConnectionCheck}, order)
	assert.True(t, s.Outstanding(protocol.CmdPair))

	close(pairGate)
	pump(t, s, func() bool { return len(order) == 2 })
	assert.Equal(t, protocol.CmdPair, order[1])
	assert.False(t, s.Outstanding(protocol.CmdPair))
}

func TestSession_StayFalseShutsDown(t *testing.T) {
	fs := newFakeServer(t, func(f protocol.Frame) protocol.Frame {
		if f.Command == protocol.CmdPair {
			return frame(t, f.Command, protocol.PairResponse{Status: protocol.Disconnecting(protocol.MsgOpponentDisconnected)})
		}
		return standardResponder(t)(f)
	})
	s := newTestSession(t, testOptions(fs.Addr()))
	connect(t, s)

	called := false
	_, err := s.TryToSend(Request{Command: protocol.CmdPair, Callback: func(Response) { called = true }})
	require.NoError(t, err)

	pump(t, s, func() bool { return called })
	assert.False(t, s.Stay())
	assert.False(t, s.Connected())
	assert.Equal(t, protocol.MsgOpponentDisconnected, s.EndMessage())
	assert.False(t, s.LoadResponses())

	_, err = s.TryToSend(Request{Command: protocol.CmdConnectionCheck})
	assert.ErrorIs(t, err, ErrSessionClosed)

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not shut down")
	}
	assert.True(t, s.Closed())
}

func TestSession_SafetyNetAbandonsSilentServer(t *testing.T) {
	gate := holdGate(t)
	fs := newFakeServer(t, func(f protocol.Frame) protocol.Frame {
		<-gate
		return standardResponder(t)(f)
	})
	opts := testOptions(fs.Addr())
	opts.BlockingTimeout = 50 * time.Millisecond
	opts.SafetyMargin = 50 * time.Millisecond
	s := newTestSession(t, opts)

	called := false
	_, err := s.TryToSend(Request{Command: protocol.CmdPair, Blocking: true, Callback: func(Response) { called = true }})
	require.NoError(t, err)

	pump(t, s, func() bool { return !s.Stay() })
	assert.False(t, called, "failed exchanges do not reach the callback")
	assert.Equal(t, protocol.MsgConnectionLost, s.EndMessage())
	assert.False(t, s.Outstanding(protocol.CmdPair))
}

func TestSession_ServerErrorEndsSession(t *testing.T) {
	fs := newFakeServer(t, func(f protocol.Frame) protocol.Frame {
		return frame(t, protocol.CmdError, protocol.ErrorResponse{
			Status: protocol.Disconnecting(protocol.MsgProtocolError),
			Error:  protocol.ErrReasonUnknownID,
		})
	})
	s := newTestSession(t, testOptions(fs.Addr()))

	_, err := s.TryToSend(Request{Command: protocol.CmdGameWait})
	require.NoError(t, err)

	pump(t, s, func() bool { return !s.Stay() })
	assert.Equal(t, protocol.MsgProtocolError, s.EndMessage())
}

func TestSession_RateLimitedRequestCanBeRetried(t *testing.T) {
	fs := newFakeServer(t, func(f protocol.Frame) protocol.Frame {
		if f.Command == protocol.CmdPair {
			return frame(t, protocol.CmdError, protocol.ErrorResponse{
				Status:   protocol.Status{StayConnected: true},
				Error:    protocol.ErrReasonRateLimited,
				ErrorObj: string(f.Command),
			})
		}
		return standardResponder(t)(f)
	})
	s := newTestSession(t, testOptions(fs.Addr()))
	connect(t, s)

	called := false
	_, err := s.TryToSend(Request{Command: protocol.CmdPair, Blocking: true, Callback: func(Response) { called = true }})
	require.NoError(t, err)

	pump(t, s, func() bool { return !s.Outstanding(protocol.CmdPair) })
	assert.False(t, called)
	assert.True(t, s.Stay())
	assert.True(t, s.Connected())

	sent, err := s.TryToSend(Request{Command: protocol.CmdPair, Blocking: true})
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestSession_CloseSaysGoodbye(t *testing.T) {
	fs := newFakeServer(t, standardResponder(t))
	s := NewSession(testOptions(fs.Addr()))
	connect(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
	assert.True(t, s.Closed())

	f, ok := fs.last(protocol.CmdDisconnect)
	require.True(t, ok)
	assert.Equal(t, 4242, f.PlayerID)
}

func TestSession_CloseWithoutConnectSendsNothing(t *testing.T) {
	fs := newFakeServer(t, standardResponder(t))
	s := NewSession(testOptions(fs.Addr()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
	assert.Zero(t, fs.count(protocol.CmdDisconnect))
}

func TestSession_CloseAbortsOnContext(t *testing.T) {
	gate := holdGate(t)
	fs := newFakeServer(t, func(f protocol.Frame) protocol.Frame {
		if f.Command == protocol.CmdPair {
			<-gate
		}
		return standardResponder(t)(f)
	})
	s := NewSession(testOptions(fs.Addr()))
	_, err := s.TryToSend(Request{Command: protocol.CmdPair, Blocking: true})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fs.count(protocol.CmdPair) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = s.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, s.Closed())
}

func TestSession_SpawnConnectionCheck(t *testing.T) {
	gate := holdGate(t)
	fs := newFakeServer(t, func(f protocol.Frame) protocol.Frame {
		if f.Command == protocol.CmdConnectionCheck {
			<-gate
		}
		return standardResponder(t)(f)
	})
	s := newTestSession(t, testOptions(fs.Addr()))

	s.SpawnConnectionCheck()
	assert.False(t, s.Outstanding(protocol.CmdConnectionCheck), "not connected yet")

	connect(t, s)
	s.SpawnConnectionCheck()
	assert.True(t, s.Outstanding(protocol.CmdConnectionCheck))
	require.Eventually(t, func() bool { return fs.count(protocol.CmdConnectionCheck) == 1 }, time.Second, 5*time.Millisecond)

	s.SpawnConnectionCheck()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, fs.count(protocol.CmdConnectionCheck))
}

func TestSession_DialFailure(t *testing.T) {
	opts := testOptions("127.0.0.1:1")
	opts.Dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	s := newTestSession(t, opts)

	called := false
	_, err := s.TryToSend(Request{Command: protocol.CmdConnect, Callback: func(Response) { called = true }})
	require.NoError(t, err)

	pump(t, s, func() bool { return !s.Stay() })
	assert.False(t, called)
	assert.False(t, s.Connected())
	assert.Equal(t, protocol.MsgConnectionLost, s.EndMessage())
}
