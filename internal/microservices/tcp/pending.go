package tcp

import (
	"sort"
	"time"

	"battleships/internal/protocol"
)

// pendingRequest is a request whose answer depends on a future event.
type pendingRequest struct {
	req      *Request
	playerID int
	command  protocol.Command
	since    time.Time
	seq      uint64
	fallback protocol.Response // sent on expiry, supersession or shutdown
	known    bool              // client's current belief for opponent_ready / await_rematch
}

// pendingTable keeps at most one pending request per player.
type pendingTable struct {
	byPlayer map[int]*pendingRequest
	nextSeq  uint64
}

func newPendingTable() *pendingTable {
	return &pendingTable{byPlayer: make(map[int]*pendingRequest)}
}

// add registers p. The caller must have resolved any earlier request of the player.
func (t *pendingTable) add(p *pendingRequest) {
	t.nextSeq++
	p.seq = t.nextSeq
	t.byPlayer[p.playerID] = p
}

func (t *pendingTable) get(playerID int) (*pendingRequest, bool) {
	p, ok := t.byPlayer[playerID]
	return p, ok
}

// take removes and returns the player's pending request.
func (t *pendingTable) take(playerID int) (*pendingRequest, bool) {
	p, ok := t.byPlayer[playerID]
	if ok {
		delete(t.byPlayer, playerID)
	}
	return p, ok
}

// takeIf removes the player's pending request only when it waits on command.
func (t *pendingTable) takeIf(playerID int, command protocol.Command) (*pendingRequest, bool) {
	p, ok := t.byPlayer[playerID]
	if !ok || p.command != command {
		return nil, false
	}
	delete(t.byPlayer, playerID)
	return p, true
}

// oldestPair returns the longest-waiting pair request not sent by exclude.
func (t *pendingTable) oldestPair(exclude int) (*pendingRequest, bool) {
	var oldest *pendingRequest
	for id, p := range t.byPlayer {
		if id == exclude || p.command != protocol.CmdPair {
			continue
		}
		if oldest == nil || p.seq < oldest.seq {
			oldest = p
		}
	}
	return oldest, oldest != nil
}

// expired returns requests older than bound, oldest first.
func (t *pendingTable) expired(now time.Time, bound time.Duration) []*pendingRequest {
	var out []*pendingRequest
	for _, p := range t.byPlayer {
		if now.Sub(p.since) > bound {
			out = append(out, p)
		}
	}
	sortBySeq(out)
	return out
}

// all returns every pending request, oldest first.
func (t *pendingTable) all() []*pendingRequest {
	out := make([]*pendingRequest, 0, len(t.byPlayer))
	for _, p := range t.byPlayer {
		out = append(out, p)
	}
	sortBySeq(out)
	return out
}

func (t *pendingTable) len() int { return len(t.byPlayer) }

func sortBySeq(ps []*pendingRequest) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].seq < ps[j].seq })
}
