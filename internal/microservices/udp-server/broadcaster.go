package udp

import (
	"log/slog"
	"net"
	"sync/atomic"

	"battleships/internal/shared"
)

const eventBuffer = 256

// Broadcaster pushes match events to the subscribers following them. Publish never
// blocks the caller; delivery happens on the goroutine running Run.
type Broadcaster struct {
	conn       *net.UDPConn
	subManager *SubscriberManager
	events     chan shared.MatchEvent
	logger     *slog.Logger
	sent       atomic.Int64
	dropped    atomic.Int64
}

func NewBroadcaster(conn *net.UDPConn, subManager *SubscriberManager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		conn:       conn,
		subManager: subManager,
		events:     make(chan shared.MatchEvent, eventBuffer),
		logger:     logger,
	}
}

// Publish queues ev; a full queue drops it.
func (b *Broadcaster) Publish(ev shared.MatchEvent) {
	select {
	case b.events <- ev:
	default:
		b.dropped.Add(1)
		b.logger.Warn("udp_event_dropped", "event", ev.Type, "match_id", ev.MatchID)
	}
}

// Run delivers queued events until done is closed.
func (b *Broadcaster) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case ev := <-b.events:
			b.broadcast(ev)
		}
	}
}

func (b *Broadcaster) broadcast(ev shared.MatchEvent) {
	subscribers := b.subManager.Following(ev.MatchID)
	if len(subscribers) == 0 {
		return
	}
	data, err := NewEventNotification(ev).ToJSON()
	if err != nil {
		b.logger.Error("udp_marshal_failed", "event", ev.Type, "error", err)
		return
	}
	for i := range subscribers {
		b.sendToSubscriber(&subscribers[i], data)
	}
}

// sendToSubscriber sends data to a specific subscriber; a failed write pauses it
func (b *Broadcaster) sendToSubscriber(sub *Subscriber, data []byte) {
	if _, err := b.conn.WriteToUDP(data, sub.Addr); err != nil {
		b.subManager.MarkInactive(sub.ID)
		b.logger.Warn("udp_send_failed", "subscriber_id", sub.ID, "addr", sub.Addr.String(), "error", err)
		return
	}
	b.sent.Add(1)
}

// Sent is the number of datagrams delivered.
func (b *Broadcaster) Sent() int64 { return b.sent.Load() }

// Dropped is the number of events lost to a full queue.
func (b *Broadcaster) Dropped() int64 { return b.dropped.Load() }
