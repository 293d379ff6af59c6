package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"battleships/internal/protocol"

	"github.com/google/uuid"
)

var (
	// ErrDuplicateRequest is returned for a must-send request whose command is already
	// outstanding. It is a programming error in the caller.
	ErrDuplicateRequest = errors.New("request of this command already outstanding")
	ErrSessionClosed    = errors.New("session is shutting down")
	ErrNoResponse       = errors.New("server did not answer in time")
	ErrUnknownCommand   = errors.New("unknown command")
)

// ServerError is an error response sent by the server.
type ServerError struct {
	Reason string
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail == "" {
		return "server error: " + e.Reason
	}
	return fmt.Sprintf("server error: %s (%s)", e.Reason, e.Detail)
}

// Response is handed to a request's callback on the goroutine calling LoadResponses.
type Response struct {
	Frame  protocol.Frame
	Status protocol.Status
	Err    error // set when the exchange failed or the server answered with an error
}

// Bind decodes the response payload into v.
func (r Response) Bind(v any) error { return r.Frame.Bind(v) }

// Request is one exchange queued through TryToSend.
type Request struct {
	Command  protocol.Command
	Payload  any
	Callback func(Response)
	Blocking bool // the server may hold the answer until an event
	MustSend bool // a duplicate is an error instead of a silent no-op
}

type Options struct {
	Addr            string
	BlockingTimeout time.Duration // server bound for blocking requests
	SafetyMargin    time.Duration // added to the wait bound before a request is abandoned
	DialTimeout     time.Duration
	PollInterval    time.Duration // peek deadline per in-flight socket
	Dial            func(ctx context.Context, network, addr string) (net.Conn, error)
	Logger          *slog.Logger
}

func DefaultOptions(addr string) Options {
	return Options{
		Addr:            addr,
		BlockingTimeout: 20 * time.Second,
		SafetyMargin:    10 * time.Second,
		DialTimeout:     5 * time.Second,
		PollInterval:    5 * time.Millisecond,
	}
}

// inflight is a request on its way through the send and receive workers.
type inflight struct {
	id       string
	req      Request
	final    bool // still sent while the session shuts down
	conn     net.Conn
	reader   *bufio.Reader
	deadline time.Time
}

type completion struct {
	req  Request
	resp Response
}

// Session is the client side of the protocol. Sending and receiving happen on two
// background workers; responses are queued until the caller drains them with
// LoadResponses, so callbacks and game state stay on the caller's goroutine.
type Session struct {
	opts   Options
	logger *slog.Logger

	id        atomic.Int64
	connected atomic.Bool
	closed    atomic.Bool

	mu          sync.Mutex
	outstanding map[protocol.Command]bool
	completed   []completion
	closing     bool
	stay        bool
	endMsg      string

	outbound  chan *inflight // TryToSend -> send worker
	awaiting  chan *inflight // send worker -> receive worker
	abort     chan struct{}
	abortOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	done      chan struct{}
}

func NewSession(opts Options) *Session {
	def := DefaultOptions(opts.Addr)
	if opts.BlockingTimeout <= 0 {
		opts.BlockingTimeout = def.BlockingTimeout
	}
	if opts.SafetyMargin <= 0 {
		opts.SafetyMargin = def.SafetyMargin
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = def.DialTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.Dial == nil {
		d := &net.Dialer{}
		opts.Dial = d.DialContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		opts:        opts,
		logger:      logger,
		outstanding: make(map[protocol.Command]bool),
		stay:        true,
		// one slot per command is enough: dedup keeps at most one of each outstanding
		outbound: make(chan *inflight, len(protocol.Commands)+1),
		awaiting: make(chan *inflight, len(protocol.Commands)+1),
		abort:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.wg.Add(2)
	go s.sendWorker()
	go s.receiveWorker()
	go func() {
		s.wg.Wait()
		s.closed.Store(true)
		close(s.done)
	}()
	return s
}

// TryToSend queues req. It reports false without sending when a request of the same
// command is still outstanding; for a must-send request that is ErrDuplicateRequest.
// Only protocol commands are accepted, which bounds the outbound queue.
func (s *Session) TryToSend(req Request) (bool, error) {
	if !req.Command.Known() {
		return false, fmt.Errorf("%w: %s", ErrUnknownCommand, req.Command)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false, ErrSessionClosed
	}
	if s.outstanding[req.Command] {
		if req.MustSend {
			return false, fmt.Errorf("%w: %s", ErrDuplicateRequest, req.Command)
		}
		return false, nil
	}
	s.outstanding[req.Command] = true
	s.outbound <- &inflight{id: uuid.NewString(), req: req}
	return true, nil
}

// Outstanding reports whether a request of cmd awaits its response.
func (s *Session) Outstanding(cmd protocol.Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstanding[cmd]
}

// LoadResponses runs the callbacks of every completed request and reports whether the
// session is still connected. The first response with stay_connected false starts the
// shutdown.
func (s *Session) LoadResponses() bool {
	s.mu.Lock()
	batch := s.completed
	s.completed = nil
	for _, c := range batch {
		delete(s.outstanding, c.req.Command)
	}
	s.mu.Unlock()

	for _, c := range batch {
		resp := c.resp
		if resp.Err == nil && c.req.Command == protocol.CmdConnect {
			var cr protocol.ConnectResponse
			if err := resp.Bind(&cr); err == nil && cr.ID != 0 {
				s.id.Store(int64(cr.ID))
				s.connected.Store(resp.Status.StayConnected)
			}
		}
		if !resp.Status.StayConnected {
			s.mu.Lock()
			s.stay = false
			if s.endMsg == "" {
				s.endMsg = resp.Status.GameEndMsg
			}
			s.mu.Unlock()
			s.connected.Store(false)
		}
		if resp.Err != nil {
			s.logger.Warn("request_failed",
				"command", c.req.Command,
				"player_id", s.ID(),
				"error", resp.Err,
			)
			continue
		}
		if c.req.Callback != nil {
			c.req.Callback(resp)
		}
	}

	stay := s.Stay()
	if !stay {
		s.stop()
	}
	return stay
}

// SpawnConnectionCheck keeps the server's liveness sweep quiet while the player is idle:
// it issues a connection_check when nothing else is outstanding.
func (s *Session) SpawnConnectionCheck() {
	if !s.connected.Load() {
		return
	}
	s.mu.Lock()
	idle := len(s.outstanding) == 0 && !s.closing
	s.mu.Unlock()
	if idle {
		s.TryToSend(Request{Command: protocol.CmdConnectionCheck, Blocking: true})
	}
}

// Quit says goodbye to the server if still connected and starts the shutdown. It does
// not wait; see Close and Wait.
func (s *Session) Quit() {
	s.mu.Lock()
	if !s.closing && s.connected.Load() && !s.outstanding[protocol.CmdDisconnect] {
		s.outstanding[protocol.CmdDisconnect] = true
		s.outbound <- &inflight{
			id:    uuid.NewString(),
			req:   Request{Command: protocol.CmdDisconnect},
			final: true,
		}
	}
	s.closing = true
	s.mu.Unlock()
	s.stop()
}

// Close quits and waits until both workers returned. When ctx ends first the remaining
// sockets are closed without waiting for their answers.
func (s *Session) Close(ctx context.Context) error {
	s.Quit()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.abortOnce.Do(func() { close(s.abort) })
		<-s.done
		return ctx.Err()
	}
}

// stop lets the send worker finish: queued requests other than the goodbye are dropped
// and in-flight ones are still received.
func (s *Session) stop() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.outbound) })
}

// Wait blocks until the session is closed.
func (s *Session) Wait() { <-s.done }

// Done is closed once both workers have returned.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Closed() bool { return s.closed.Load() }

func (s *Session) ID() int { return int(s.id.Load()) }

func (s *Session) Connected() bool { return s.connected.Load() }

// Stay is the stay-connected value of the latest drained responses.
func (s *Session) Stay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stay
}

// EndMessage is the game_end_msg that ended the session, if any.
func (s *Session) EndMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endMsg
}

func (s *Session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Session) complete(fl *inflight, resp Response) {
	s.mu.Lock()
	s.completed = append(s.completed, completion{req: fl.req, resp: resp})
	s.mu.Unlock()
}

func lostResponse(cmd protocol.Command, err error) Response {
	return Response{
		Frame:  protocol.Frame{Command: cmd},
		Status: protocol.Disconnecting(protocol.MsgConnectionLost),
		Err:    err,
	}
}

func (s *Session) sendWorker() {
	defer s.wg.Done()
	defer close(s.awaiting)

	for fl := range s.outbound {
		select {
		case <-s.abort:
			continue
		default:
		}
		if !fl.final && s.isClosing() {
			s.logger.Debug("request_dropped_on_shutdown",
				"request_id", fl.id,
				"command", fl.req.Command,
			)
			continue
		}
		if err := s.transmit(fl); err != nil {
			s.logger.Warn("request_send_failed",
				"request_id", fl.id,
				"command", fl.req.Command,
				"error", err,
			)
			s.complete(fl, lostResponse(fl.req.Command, err))
			continue
		}
		select {
		case s.awaiting <- fl:
		case <-s.abort:
			fl.conn.Close()
		}
	}
}

// transmit opens the exchange socket and sends the request, half-closing the write side.
func (s *Session) transmit(fl *inflight) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.DialTimeout)
	defer cancel()
	conn, err := s.opts.Dial(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.opts.Addr, err)
	}
	f, err := protocol.NewFrame(s.ID(), fl.req.Command, fl.req.Payload)
	if err != nil {
		conn.Close()
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(s.opts.DialTimeout))
	if err := protocol.SendRequest(conn, f); err != nil {
		conn.Close()
		return fmt.Errorf("send %s: %w", fl.req.Command, err)
	}

	bound := s.opts.SafetyMargin
	if fl.req.Blocking {
		bound += s.opts.BlockingTimeout
	}
	fl.conn = conn
	fl.reader = bufio.NewReader(conn)
	fl.deadline = time.Now().Add(bound)
	s.logger.Debug("request_sent",
		"request_id", fl.id,
		"command", fl.req.Command,
		"player_id", f.PlayerID,
	)
	return nil
}

// receiveWorker polls every in-flight socket in turn and completes each request as soon
// as its answer arrived.
func (s *Session) receiveWorker() {
	defer s.wg.Done()

	var live []*inflight
	input := s.awaiting
	for {
		if len(live) == 0 {
			if input == nil {
				return
			}
			select {
			case fl, ok := <-input:
				if !ok {
					return
				}
				live = append(live, fl)
			case <-s.abort:
				return
			}
		}
		live, input = s.collect(live, input)

		select {
		case <-s.abort:
			for _, fl := range live {
				fl.conn.Close()
			}
			return
		default:
		}

		pending := live[:0]
		for _, fl := range live {
			if !s.poll(fl) {
				pending = append(pending, fl)
			}
		}
		live = pending
	}
}

// collect takes every request the send worker handed over without blocking. A nil input
// means the send worker is gone.
func (s *Session) collect(live []*inflight, input chan *inflight) ([]*inflight, chan *inflight) {
	for input != nil {
		select {
		case fl, ok := <-input:
			if !ok {
				return live, nil
			}
			live = append(live, fl)
		default:
			return live, input
		}
	}
	return live, input
}

// poll waits at most PollInterval for fl's answer. It reports whether fl is finished.
func (s *Session) poll(fl *inflight) bool {
	fl.conn.SetReadDeadline(time.Now().Add(s.opts.PollInterval))
	if _, err := fl.reader.Peek(1); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			if time.Now().Before(fl.deadline) {
				return false
			}
			err = ErrNoResponse
		}
		fl.conn.Close()
		s.logger.Warn("connection_lost",
			"request_id", fl.id,
			"command", fl.req.Command,
			"error", err,
		)
		s.complete(fl, lostResponse(fl.req.Command, err))
		return true
	}

	// the answer started arriving: read it whole
	fl.conn.SetReadDeadline(time.Now().Add(s.opts.DialTimeout))
	f, err := protocol.ReadFrame(fl.reader)
	fl.conn.Close()
	if err != nil {
		s.complete(fl, lostResponse(fl.req.Command, err))
		return true
	}
	s.complete(fl, responseFromFrame(f))
	return true
}

func responseFromFrame(f protocol.Frame) Response {
	resp := Response{Frame: f}
	if f.Command == protocol.CmdError {
		var e protocol.ErrorResponse
		if err := f.Bind(&e); err != nil {
			resp.Status = protocol.Disconnecting(protocol.MsgProtocolError)
			resp.Err = err
			return resp
		}
		resp.Status = e.Status
		resp.Err = &ServerError{Reason: e.Error, Detail: e.ErrorObj}
		return resp
	}
	if err := f.Bind(&resp.Status); err != nil {
		resp.Status = protocol.Disconnecting(protocol.MsgConnectionLost)
		resp.Err = err
	}
	return resp
}
