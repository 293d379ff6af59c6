package udp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"battleships/internal/shared"
)

// Server represents the UDP match notification server
type Server struct {
	conn            *net.UDPConn
	subManager      *SubscriberManager
	broadcaster     *Broadcaster
	logger          *slog.Logger
	cleanupInterval time.Duration
	done            chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// NewServer listens on addr ("host:port", port 0 picks one). Subscribers that do not
// PING within subscriberTimeout are forgotten.
func NewServer(addr string, subscriberTimeout time.Duration, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP: %w", err)
	}

	subManager := NewSubscriberManager(subscriberTimeout)
	return &Server{
		conn:            conn,
		subManager:      subManager,
		broadcaster:     NewBroadcaster(conn, subManager, logger),
		logger:          logger,
		cleanupInterval: max(subscriberTimeout/5, time.Second),
		done:            make(chan struct{}),
	}, nil
}

// Addr is the bound address.
func (s *Server) Addr() *net.UDPAddr { return s.conn.LocalAddr().(*net.UDPAddr) }

// Publish forwards a match event to the broadcaster. It never blocks.
func (s *Server) Publish(ev shared.MatchEvent) { s.broadcaster.Publish(ev) }

// SubscriberCount returns the number of known subscribers
func (s *Server) SubscriberCount() int { return s.subManager.Count() }

// Run serves until ctx ends or Shutdown is called.
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("udp_server_started", "addr", s.conn.LocalAddr().String())

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.broadcaster.Run(s.done)
	}()
	go func() {
		defer s.wg.Done()
		s.cleanupLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.handleIncomingMessages()
	}()

	select {
	case <-ctx.Done():
		s.Shutdown()
	case <-s.done:
	}
	s.wg.Wait()
	s.logger.Info("udp_server_stopped", "sent", s.broadcaster.Sent(), "dropped", s.broadcaster.Dropped())
}

// Shutdown stops the server; closing the socket unblocks the reader.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *Server) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.subManager.CleanupInactive(); n > 0 {
				s.logger.Info("udp_subscribers_expired", "count", n)
			}
		case <-s.done:
			return
		}
	}
}

// handleIncomingMessages handles incoming UDP messages
func (s *Server) handleIncomingMessages() {
	buffer := make([]byte, MaxDatagram)

	for {
		n, addr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("udp_read_failed", "error", err)
			continue
		}
		s.processMessage(buffer[:n], addr)
	}
}

// processMessage processes incoming messages from subscribers
func (s *Server) processMessage(data []byte, addr *net.UDPAddr) {
	req, err := ParseSubscribeRequest(data)
	if err != nil {
		s.logger.Debug("udp_bad_request", "addr", addr.String(), "error", err)
		s.reply(addr, newReply(NotificationError, 0, err.Error()))
		return
	}

	switch req.Type {
	case RequestSubscribe:
		s.subManager.Add(req.SubscriberID, req.MatchID, addr)
		s.logger.Info("udp_subscribed", "subscriber_id", req.SubscriberID, "match_id", req.MatchID, "addr", addr.String())
		msg := "Subscribed to all matches"
		if req.MatchID > 0 {
			msg = fmt.Sprintf("Subscribed to match %d", req.MatchID)
		}
		s.reply(addr, newReply(NotificationSubscribe, req.MatchID, msg))

	case RequestUnsubscribe:
		s.subManager.Remove(req.SubscriberID)
		s.logger.Info("udp_unsubscribed", "subscriber_id", req.SubscriberID)
		s.reply(addr, newReply(NotificationUnsubscribe, 0, "Successfully unsubscribed"))

	case RequestPing:
		if !s.subManager.UpdateActivity(req.SubscriberID) {
			s.reply(addr, newReply(NotificationError, 0, "not subscribed"))
			return
		}
		s.reply(addr, newReply(NotificationPong, 0, ""))

	default:
		s.reply(addr, newReply(NotificationError, 0, "unknown request type "+req.Type))
	}
}

func (s *Server) reply(addr *net.UDPAddr, n *Notification) {
	data, err := n.ToJSON()
	if err != nil {
		return
	}
	if _, err := s.conn.WriteToUDP(data, addr); err != nil {
		s.logger.Warn("udp_reply_failed", "addr", addr.String(), "error", err)
	}
}
