package udp

import (
	"net"
	"sync"
	"time"
)

// Subscriber represents a client listening for match events
type Subscriber struct {
	ID       string
	MatchID  int // 0 follows every match
	Addr     *net.UDPAddr
	LastSeen time.Time
	Active   bool
}

func (s *Subscriber) follows(matchID int) bool {
	return s.MatchID == 0 || s.MatchID == matchID
}

// SubscriberManager manages all subscribers
type SubscriberManager struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber // subscriber ID -> Subscriber
	timeout     time.Duration
	now         func() time.Time
}

// NewSubscriberManager creates a new subscriber manager. Subscribers silent for longer
// than timeout are dropped by CleanupInactive.
func NewSubscriberManager(timeout time.Duration) *SubscriberManager {
	return &SubscriberManager{
		subscribers: make(map[string]*Subscriber),
		timeout:     timeout,
		now:         time.Now,
	}
}

// Add adds or replaces a subscriber
func (sm *SubscriberManager) Add(id string, matchID int, addr *net.UDPAddr) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.subscribers[id] = &Subscriber{
		ID:       id,
		MatchID:  matchID,
		Addr:     addr,
		LastSeen: sm.now(),
		Active:   true,
	}
}

// Remove removes a subscriber
func (sm *SubscriberManager) Remove(id string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	_, ok := sm.subscribers[id]
	delete(sm.subscribers, id)
	return ok
}

// UpdateActivity updates the last seen time for a subscriber
func (sm *SubscriberManager) UpdateActivity(id string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sub, exists := sm.subscribers[id]
	if exists {
		sub.LastSeen = sm.now()
		sub.Active = true
	}
	return exists
}

// MarkInactive stops deliveries to a subscriber until its next PING
func (sm *SubscriberManager) MarkInactive(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sub, exists := sm.subscribers[id]; exists {
		sub.Active = false
	}
}

// Get returns a copy of a subscriber
func (sm *SubscriberManager) Get(id string) (Subscriber, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sub, exists := sm.subscribers[id]
	if !exists {
		return Subscriber{}, false
	}
	return *sub, true
}

// Following returns the active subscribers of a match, wildcard subscribers included
func (sm *SubscriberManager) Following(matchID int) []Subscriber {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs := make([]Subscriber, 0, len(sm.subscribers))
	for _, sub := range sm.subscribers {
		if sub.Active && sub.follows(matchID) {
			subs = append(subs, *sub)
		}
	}
	return subs
}

// CleanupInactive removes subscribers that stopped pinging and reports how many
func (sm *SubscriberManager) CleanupInactive() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	removed := 0
	for id, sub := range sm.subscribers {
		if now.Sub(sub.LastSeen) > sm.timeout {
			delete(sm.subscribers, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of subscribers
func (sm *SubscriberManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return len(sm.subscribers)
}
