package tcp

import (
	"sort"
	"time"
)

// Snapshot is an immutable copy of the dispatcher state, published for read-only
// consumers such as the status API.
type Snapshot struct {
	Players  []PlayerSnapshot `json:"players"`
	Matches  []MatchSnapshot  `json:"matches"`
	Pending  int              `json:"pending"`
	OpenConn int              `json:"open_connections"`
	TakenAt  time.Time        `json:"taken_at"`
}

type PlayerSnapshot struct {
	ID          int       `json:"id"`
	Connected   bool      `json:"connected"`
	MatchID     int       `json:"match_id,omitempty"`
	LastRequest time.Time `json:"last_request"`
	Waiting     string    `json:"waiting,omitempty"` // command of the pending request
}

type MatchSnapshot struct {
	ID           int    `json:"id"`
	Active       bool   `json:"active"`
	Stage        string `json:"stage"`
	Players      [2]int `json:"players"`
	PlayerOnTurn int    `json:"player_on_turn,omitempty"`
	Round        int    `json:"round"`
	Winner       int    `json:"winner,omitempty"`
}

// Snapshot copies the current state.
func (d *Dispatcher) Snapshot() *Snapshot {
	snap := &Snapshot{
		Players: make([]PlayerSnapshot, 0, len(d.players)),
		Matches: make([]MatchSnapshot, 0, len(d.matches)),
		Pending: d.pending.len(),
		TakenAt: d.now(),
	}
	for _, id := range d.playerIDs() {
		p := d.players[id]
		ps := PlayerSnapshot{
			ID:          p.ID,
			Connected:   p.Connected,
			MatchID:     p.MatchID,
			LastRequest: p.LastRequest,
		}
		if w, ok := d.pending.get(id); ok {
			ps.Waiting = w.command.String()
		}
		snap.Players = append(snap.Players, ps)
	}
	for _, m := range d.matches {
		snap.Matches = append(snap.Matches, MatchSnapshot{
			ID:           m.ID,
			Active:       m.Active,
			Stage:        m.Stage.String(),
			Players:      m.Players(),
			PlayerOnTurn: m.PlayerOnTurn,
			Round:        m.Round,
			Winner:       m.Winner,
		})
	}
	sort.Slice(snap.Matches, func(i, j int) bool { return snap.Matches[i].ID < snap.Matches[j].ID })
	return snap
}
