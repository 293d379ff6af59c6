package tcp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"battleships/internal/game"
	"battleships/internal/protocol"

	"golang.org/x/time/rate"
)

// Config holds the server bounds.
type Config struct {
	LivenessTimeout time.Duration // silence after which a player is disconnected
	BlockingTimeout time.Duration // longest a blocking request waits before its default
	AcceptTimeout   time.Duration // accept deadline, so the loop notices Stop
	SweepInterval   time.Duration // housekeeping period of the processing loop
	ReadTimeout     time.Duration // time a client gets to send its frame
	WriteTimeout    time.Duration // time a response write may take
	QueueSize       int           // capacity of the request queue
	RateLimit       float64       // new connections per second per remote host
	RateBurst       int
	RematchEnabled  bool
	Rules           game.Rules
}

func DefaultConfig() Config {
	return Config{
		LivenessTimeout: 30 * time.Second,
		BlockingTimeout: 20 * time.Second,
		AcceptTimeout:   time.Second,
		SweepInterval:   time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		QueueSize:       1024,
		RateLimit:       100,
		RateBurst:       200,
		RematchEnabled:  true,
		Rules:           game.DefaultRules(),
	}
}

// TCPServer accepts one request per connection and feeds a single processing goroutine
// that owns all game state.
type TCPServer struct {
	Addr    string
	Manager *ConnectionManager

	cfg        Config
	dispatcher *Dispatcher
	requests   chan *Request
	snapshot   atomic.Pointer[Snapshot]
	logger     *slog.Logger

	quitChan chan struct{} // closed by Stop
	done     chan struct{} // closed when Serve returned
	started  atomic.Bool
	stopOnce sync.Once
	readers  sync.WaitGroup // connection reader goroutines
	wg       sync.WaitGroup // processing goroutine
}

func NewServer(addr string, cfg Config, opts ...Option) *TCPServer {
	d := NewDispatcher(cfg, opts...)
	s := &TCPServer{
		Addr:       addr,
		Manager:    NewConnectionManager(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		cfg:        cfg,
		dispatcher: d,
		requests:   make(chan *Request, cfg.QueueSize),
		logger:     d.logger,
		quitChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	s.Manager.logger = d.logger
	s.snapshot.Store(d.Snapshot())
	return s
}

// Start listens on Addr and serves until Stop.
func (s *TCPServer) Start() error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	return s.Serve(listener)
}

// Serve runs the accept loop on listener until Stop, then drains the queue and answers
// every pending request before returning.
func (s *TCPServer) Serve(listener net.Listener) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("server already started")
	}
	defer close(s.done)
	defer listener.Close()

	s.logger.Info("tcp_server_started",
		"addr", listener.Addr().String(),
		"liveness_timeout", s.cfg.LivenessTimeout.String(),
		"blocking_timeout", s.cfg.BlockingTimeout.String(),
		"rematch_enabled", s.cfg.RematchEnabled,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processLoop()
	}()
	go func() {
		<-s.quitChan
		listener.Close()
	}()

	s.acceptLoop(listener)

	// no reader can enqueue after this point
	s.readers.Wait()
	close(s.requests)
	s.wg.Wait()
	s.Manager.CloseAllConnections()
	s.logger.Info("tcp_server_stopped")
	return nil
}

func (s *TCPServer) acceptLoop(listener net.Listener) {
	type deadliner interface {
		SetDeadline(t time.Time) error
	}
	for {
		select {
		case <-s.quitChan:
			return
		default:
		}
		if dl, ok := listener.(deadliner); ok {
			dl.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout))
		}
		conn, err := listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept_failed", "error", err)
			continue
		}
		s.readers.Add(1)
		go func(conn net.Conn) {
			defer s.readers.Done()
			s.handleConnection(conn)
		}(conn)
	}
}

// handleConnection reads one frame and queues it. It never touches game state.
func (s *TCPServer) handleConnection(conn net.Conn) {
	client := NewClientConnection(conn, s.Manager, s.cfg.WriteTimeout)
	allowed := s.Manager.Allow(client.Host)
	s.Manager.AddConnection(client)

	f, err := client.ReadRequest(s.cfg.ReadTimeout)
	if err != nil {
		// an undecodable frame cannot be trusted enough to address a response
		s.logger.Warn("request_decode_failed",
			"client_id", client.ID,
			"remote_addr", client.RemoteAddr,
			"error", err,
		)
		client.Close()
		return
	}
	if !allowed {
		s.rejectRateLimited(client, f)
		return
	}
	s.requests <- NewRequest(client.ID, client.RemoteAddr, f, time.Now(), client)
}

// rejectRateLimited answers without touching game state. The player stays connected and
// may retry once the host is under its limit again.
func (s *TCPServer) rejectRateLimited(client *ClientConnection, req protocol.Frame) {
	s.logger.Warn("rate_limit_exceeded",
		"client_id", client.ID,
		"remote_addr", client.RemoteAddr,
		"player_id", req.PlayerID,
		"command", req.Command,
	)
	resp := &protocol.ErrorResponse{
		Status:   protocol.Status{StayConnected: true},
		Error:    protocol.ErrReasonRateLimited,
		ErrorObj: string(req.Command),
	}
	f, err := protocol.NewFrame(req.PlayerID, protocol.CmdError, resp)
	if err != nil {
		client.Close()
		return
	}
	if err := client.Respond(f); err != nil {
		s.logger.Warn("response_write_failed", "client_id", client.ID, "error", err)
	}
}

func (s *TCPServer) processLoop() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case req, ok := <-s.requests:
			if !ok {
				s.dispatcher.Shutdown()
				s.snapshot.Store(s.dispatcher.Snapshot())
				return
			}
			s.dispatcher.Handle(req)
		case <-ticker.C:
			s.dispatcher.Sweep(s.dispatcher.now())
			if n := s.Manager.CleanupLimiters(5 * time.Minute); n > 0 {
				s.logger.Debug("rate_limiters_cleaned", "removed", n)
			}
		}
		s.snapshot.Store(s.dispatcher.Snapshot())
	}
}

// Snapshot returns the state published after the last processed request or sweep.
func (s *TCPServer) Snapshot() *Snapshot {
	snap := *s.snapshot.Load()
	snap.OpenConn = s.Manager.Count()
	return &snap
}

// Stop stops accepting, answers every pending request and waits for Serve to return.
func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() { close(s.quitChan) })
	if s.started.Load() {
		<-s.done
	}
}
