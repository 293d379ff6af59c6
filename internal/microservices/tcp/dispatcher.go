package tcp

import (
	"log/slog"
	"sort"
	"time"

	"battleships/internal/game"
	"battleships/internal/protocol"
	"battleships/internal/shared"

	"github.com/google/uuid"
)

// EventPublisher receives match events. Publish must not block.
type EventPublisher interface {
	Publish(ev shared.MatchEvent)
}

type publishers []EventPublisher

func (ps publishers) Publish(ev shared.MatchEvent) {
	for _, p := range ps {
		p.Publish(ev)
	}
}

// ResultRecorder receives finished matches. Record must not block.
type ResultRecorder interface {
	Record(result shared.MatchResult)
}

// Option customizes a Dispatcher (and the TCPServer owning it).
type Option func(*Dispatcher)

func WithRand(rng game.Rand) Option { return func(d *Dispatcher) { d.rng = rng } }

func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

func WithLogger(logger *slog.Logger) Option { return func(d *Dispatcher) { d.logger = logger } }

// WithEventPublisher sends every match event to each of ps in order.
func WithEventPublisher(ps ...EventPublisher) Option {
	return func(d *Dispatcher) {
		if len(ps) == 1 {
			d.events = ps[0]
			return
		}
		d.events = publishers(ps)
	}
}

func WithResultRecorder(r ResultRecorder) Option { return func(d *Dispatcher) { d.results = r } }

// Dispatcher owns every player, match and pending request. It is not safe for concurrent
// use: the server calls it from the processing goroutine only.
type Dispatcher struct {
	cfg     Config
	players map[int]*Player
	matches map[int]*game.Match
	pending *pendingTable

	rng     game.Rand
	now     func() time.Time
	logger  *slog.Logger
	events  EventPublisher
	results ResultRecorder

	shuttingDown bool
}

func NewDispatcher(cfg Config, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:     cfg,
		players: make(map[int]*Player),
		matches: make(map[int]*game.Match),
		pending: newPendingTable(),
		rng:     game.NewRand(0),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle processes one request to completion. Requests are handled strictly in the order
// Handle is called.
func (d *Dispatcher) Handle(req *Request) {
	f := req.Frame
	player := d.players[f.PlayerID]
	if player == nil || !player.Connected {
		if f.Command == protocol.CmdConnect {
			d.connect(req)
			return
		}
		d.logger.Warn("unknown_player",
			"player_id", f.PlayerID,
			"command", f.Command,
			"remote_addr", req.Remote,
		)
		d.sendError(req, f.PlayerID, violation(protocol.ErrReasonUnknownID, "player %d", f.PlayerID))
		return
	}
	player.LastRequest = d.now()

	// a player never holds two pending requests
	if w, ok := d.pending.take(player.ID); ok {
		d.logger.Debug("blocking_request_superseded",
			"player_id", player.ID,
			"pending_command", w.command,
			"new_command", f.Command,
		)
		d.respond(w.req, w.playerID, w.fallback, true, "")
		if !player.Connected {
			return
		}
	}

	handle, ok := handlers[f.Command]
	if !ok {
		d.reject(req, player, violation(protocol.ErrReasonUnrecognizedCmd, "%q", f.Command))
		return
	}

	var m *game.Match
	if !f.Command.StageIndependent() {
		m = d.matches[player.MatchID]
		if m == nil {
			d.reject(req, player, violation(protocol.ErrReasonNotInMatch, "%s", f.Command))
			return
		}
		if !m.Active {
			d.answerInactive(req, player, m)
			return
		}
	}
	if err := handle(d, req, player, m); err != nil {
		d.reject(req, player, violationFromGame(f.Command, err))
	}
}

func (d *Dispatcher) connect(req *Request) {
	id := game.NewID(d.rng, func(id int) bool {
		_, taken := d.players[id]
		return taken
	})
	d.players[id] = &Player{
		ID:          id,
		Connected:   true,
		LastRequest: d.now(),
		Remote:      req.Remote,
	}
	d.logger.Info("player_connected",
		"player_id", id,
		"remote_addr", req.Remote,
	)
	d.respond(req, id, &protocol.ConnectResponse{ID: id}, true, "")
}

// wait parks a request until an event, expiry, supersession or match end answers it.
func (d *Dispatcher) wait(req *Request, p *Player, fallback protocol.Response, known bool) {
	d.pending.add(&pendingRequest{
		req:      req,
		playerID: p.ID,
		command:  req.Frame.Command,
		since:    d.now(),
		fallback: fallback,
		known:    known,
	})
	d.logger.Debug("blocking_request_added",
		"player_id", p.ID,
		"command", req.Frame.Command,
	)
}

// respond sends the single answer of req. A response that does not keep the connection
// finalizes the player's disconnect before respond returns.
func (d *Dispatcher) respond(req *Request, playerID int, resp protocol.Response, stay bool, msg string) {
	st := resp.StatusRef()
	st.StayConnected = stay && !d.shuttingDown
	switch {
	case d.shuttingDown:
		st.GameEndMsg = protocol.MsgServerShutdown
	case msg != "":
		st.GameEndMsg = msg
	case !st.StayConnected:
		st.GameEndMsg = protocol.MsgDisconnected
	}

	cmd := req.Frame.Command
	if _, isErr := resp.(*protocol.ErrorResponse); isErr {
		cmd = protocol.CmdError
	}
	f, err := protocol.NewFrame(playerID, cmd, resp)
	if err != nil {
		d.logger.Error("response_encode_failed", "player_id", playerID, "command", cmd, "error", err)
	} else if err := req.conn.Respond(f); err != nil {
		d.logger.Warn("response_write_failed",
			"player_id", playerID,
			"command", cmd,
			"conn_id", req.ConnID,
			"error", err,
		)
	}

	if !st.StayConnected {
		if p := d.players[playerID]; p != nil {
			d.disconnectPlayer(p, "stay_connected_false")
		}
	}
}

func (d *Dispatcher) sendError(req *Request, playerID int, v *ProtocolViolation) {
	d.respond(req, playerID, &protocol.ErrorResponse{Error: v.Reason, ErrorObj: v.Detail}, false, protocol.MsgProtocolError)
}

func (d *Dispatcher) reject(req *Request, p *Player, v *ProtocolViolation) {
	d.logger.Warn("protocol_violation",
		"player_id", p.ID,
		"command", req.Frame.Command,
		"reason", v.Reason,
		"detail", v.Detail,
	)
	d.sendError(req, p.ID, v)
}

// answerInactive serves a match-bound request after the opponent left: the shot that
// ended the game is still handed over, everything else gets its default.
func (d *Dispatcher) answerInactive(req *Request, p *Player, m *game.Match) {
	if req.Frame.Command == protocol.CmdOpponentShot && m.ShotPending(p.ID) {
		d.deliverShot(m, p.ID, req)
		return
	}
	d.respond(req, p.ID, withOpponentGone(fallbackFor(req)), false, protocol.MsgOpponentDisconnected)
}

// disconnectPlayer marks p gone. Unmatched players are forgotten at once; matched ones
// stay until their match is reaped.
func (d *Dispatcher) disconnectPlayer(p *Player, reason string) {
	if !p.Connected {
		return
	}
	p.Connected = false
	d.logger.Info("player_disconnected",
		"player_id", p.ID,
		"match_id", p.MatchID,
		"reason", reason,
	)
	if w, ok := d.pending.take(p.ID); ok {
		d.respond(w.req, p.ID, w.fallback, false, "")
	}

	m := d.matches[p.MatchID]
	if m == nil {
		delete(d.players, p.ID)
		return
	}
	d.publish(shared.EventPlayerDisconnected, m.ID, p.ID, map[string]any{"reason": reason})
	if !m.Active {
		return
	}
	m.Deactivate()
	opp := m.Opponent(p.ID)
	if w, ok := d.pending.take(opp); ok {
		d.respond(w.req, opp, withOpponentGone(w.fallback), false, protocol.MsgOpponentDisconnected)
	}
}

func (d *Dispatcher) newMatch(first, second int) *game.Match {
	id := game.NewID(d.rng, func(id int) bool {
		_, taken := d.matches[id]
		return taken
	})
	m := game.NewMatch(id, first, second, d.cfg.Rules, d.rng)
	m.SetClock(d.now)
	d.matches[id] = m
	d.players[first].MatchID = id
	d.players[second].MatchID = id
	d.logger.Info("match_started",
		"match_id", id,
		"players", []int{first, second},
	)
	d.publish(shared.EventMatchStarted, id, 0, map[string]any{"players": []int{first, second}})
	return m
}

func (d *Dispatcher) finishMatch(m *game.Match, winner int) {
	loser := m.Opponent(winner)
	result := shared.MatchResult{
		MatchID:     m.ID,
		Round:       m.Round,
		WinnerID:    winner,
		LoserID:     loser,
		WinnerShots: m.Seat(winner).Shots,
		LoserShots:  m.Seat(loser).Shots,
		StartedAt:   m.StartedAt,
		FinishedAt:  d.now(),
	}
	d.logger.Info("match_won",
		"match_id", m.ID,
		"round", m.Round,
		"winner_id", winner,
		"loser_id", loser,
		"shots", result.WinnerShots,
	)
	if d.results != nil {
		d.results.Record(result)
	}
	d.publish(shared.EventMatchWon, m.ID, winner, map[string]any{
		"round":        m.Round,
		"loser_id":     loser,
		"winner_shots": result.WinnerShots,
	})
}

func (d *Dispatcher) publish(typ shared.EventType, matchID, playerID int, data map[string]any) {
	if d.events == nil {
		return
	}
	d.events.Publish(shared.MatchEvent{
		ID:       uuid.NewString(),
		Type:     typ,
		MatchID:  matchID,
		PlayerID: playerID,
		Data:     data,
		Time:     d.now(),
	})
}

// Sweep runs the periodic housekeeping: blocking request expiry, answering waits of
// inactive matches, the liveness check and match reaping.
func (d *Dispatcher) Sweep(now time.Time) {
	for _, w := range d.pending.expired(now, d.cfg.BlockingTimeout) {
		if _, ok := d.pending.take(w.playerID); !ok {
			continue
		}
		d.logger.Debug("blocking_request_expired",
			"player_id", w.playerID,
			"command", w.command,
			"waited", now.Sub(w.since).String(),
		)
		d.respond(w.req, w.playerID, w.fallback, true, "")
	}

	for _, w := range d.pending.all() {
		p := d.players[w.playerID]
		if p == nil {
			continue
		}
		if m := d.matches[p.MatchID]; m != nil && !m.Active {
			if _, ok := d.pending.take(w.playerID); ok {
				d.respond(w.req, w.playerID, withOpponentGone(w.fallback), false, protocol.MsgOpponentDisconnected)
			}
		}
	}

	for _, id := range d.playerIDs() {
		p := d.players[id]
		if p == nil || !p.Connected {
			continue
		}
		if now.Sub(p.LastRequest) > d.cfg.LivenessTimeout {
			d.logger.Info("player_liveness_timeout",
				"player_id", p.ID,
				"silent_for", now.Sub(p.LastRequest).String(),
			)
			d.disconnectPlayer(p, "liveness_timeout")
		}
	}

	d.reap()
}

// reap removes inactive matches whose players are both gone and have nothing pending.
func (d *Dispatcher) reap() {
	for id, m := range d.matches {
		if m.Active {
			continue
		}
		busy := false
		for _, pid := range m.Players() {
			if p := d.players[pid]; p != nil && p.Connected {
				busy = true
			}
			if _, ok := d.pending.get(pid); ok {
				busy = true
			}
		}
		if busy {
			continue
		}
		for _, pid := range m.Players() {
			delete(d.players, pid)
		}
		delete(d.matches, id)
		d.logger.Info("match_reaped", "match_id", id)
		d.publish(shared.EventMatchReaped, id, 0, nil)
	}
}

// Shutdown answers every pending request with its default and a terminating status.
func (d *Dispatcher) Shutdown() {
	d.shuttingDown = true
	for _, w := range d.pending.all() {
		if _, ok := d.pending.take(w.playerID); !ok {
			continue
		}
		d.respond(w.req, w.playerID, w.fallback, false, protocol.MsgServerShutdown)
	}
	d.logger.Info("dispatcher_shutdown",
		"players", len(d.players),
		"matches", len(d.matches),
	)
}

func (d *Dispatcher) playerIDs() []int {
	ids := make([]int, 0, len(d.players))
	for id := range d.players {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
