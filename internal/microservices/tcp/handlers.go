package tcp

import (
	"battleships/internal/game"
	"battleships/internal/protocol"
	"battleships/internal/shared"
)

// handlerFunc serves one command. m is nil for stage-independent commands and an active
// match otherwise. A returned error is turned into a protocol violation.
type handlerFunc func(d *Dispatcher, req *Request, p *Player, m *game.Match) error

var handlers = map[protocol.Command]handlerFunc{
	protocol.CmdConnect:         (*Dispatcher).handleConnect,
	protocol.CmdConnectionCheck: (*Dispatcher).handleConnectionCheck,
	protocol.CmdPair:            (*Dispatcher).handlePair,
	protocol.CmdDisconnect:      (*Dispatcher).handleDisconnect,
	protocol.CmdOpponentReady:   (*Dispatcher).handleOpponentReady,
	protocol.CmdGameReadiness:   (*Dispatcher).handleGameReadiness,
	protocol.CmdGameWait:        (*Dispatcher).handleGameWait,
	protocol.CmdShoot:           (*Dispatcher).handleShoot,
	protocol.CmdOpponentShot:    (*Dispatcher).handleOpponentShot,
	protocol.CmdUpdateRematch:   (*Dispatcher).handleUpdateRematch,
	protocol.CmdAwaitRematch:    (*Dispatcher).handleAwaitRematch,
}

// handleConnect answers a connect from an already registered player with its own id.
func (d *Dispatcher) handleConnect(req *Request, p *Player, _ *game.Match) error {
	d.respond(req, p.ID, &protocol.ConnectResponse{ID: p.ID}, true, "")
	return nil
}

func (d *Dispatcher) handleDisconnect(req *Request, p *Player, _ *game.Match) error {
	d.respond(req, p.ID, &protocol.DisconnectResponse{Acknowledged: true}, false, protocol.MsgDisconnected)
	return nil
}

// handleConnectionCheck is a long poll: it only returns early when the match is over.
func (d *Dispatcher) handleConnectionCheck(req *Request, p *Player, _ *game.Match) error {
	if m := d.matches[p.MatchID]; m != nil && !m.Active {
		d.respond(req, p.ID, &protocol.ConnectionCheckResponse{OpponentDisconnected: true}, false, protocol.MsgOpponentDisconnected)
		return nil
	}
	d.wait(req, p, &protocol.ConnectionCheckResponse{}, false)
	return nil
}

// handlePair matches the player with the longest-waiting pair request, or parks it.
func (d *Dispatcher) handlePair(req *Request, p *Player, _ *game.Match) error {
	if p.MatchID != 0 {
		m := d.matches[p.MatchID]
		if m == nil || !m.Active {
			d.respond(req, p.ID, &protocol.PairResponse{}, false, protocol.MsgOpponentDisconnected)
			return nil
		}
		rematched, err := m.AcknowledgePair(p.ID)
		if err != nil {
			return err
		}
		d.respond(req, p.ID, &protocol.PairResponse{Paired: true, Opponent: m.Opponent(p.ID), Rematched: rematched}, true, "")
		return nil
	}

	waiter, ok := d.pending.oldestPair(p.ID)
	if !ok {
		d.wait(req, p, &protocol.PairResponse{}, false)
		return nil
	}
	d.pending.take(waiter.playerID)
	d.newMatch(waiter.playerID, p.ID)
	d.respond(waiter.req, waiter.playerID, &protocol.PairResponse{Paired: true, Opponent: p.ID}, true, "")
	d.respond(req, p.ID, &protocol.PairResponse{Paired: true, Opponent: waiter.playerID}, true, "")
	return nil
}

func (d *Dispatcher) handleOpponentReady(req *Request, p *Player, m *game.Match) error {
	var body protocol.OpponentReadyRequest
	if err := req.Frame.Bind(&body); err != nil {
		return err
	}
	switch m.Stage {
	case game.StagePlacing, game.StageGameWait, game.StageShooting:
	default:
		return violation(protocol.ErrReasonWrongStage, "opponent_ready in %s", m.Stage)
	}
	if ready := m.OpponentReady(p.ID); ready != body.Known {
		d.respond(req, p.ID, &protocol.OpponentReadyResponse{OpponentReady: ready}, true, "")
		return nil
	}
	d.wait(req, p, &protocol.OpponentReadyResponse{OpponentReady: body.Known}, body.Known)
	return nil
}

// handleGameReadiness submits or withdraws a layout. Refusals are answered, not fatal.
func (d *Dispatcher) handleGameReadiness(req *Request, p *Player, m *game.Match) error {
	var body protocol.GameReadinessRequest
	if err := req.Frame.Bind(&body); err != nil {
		return err
	}
	approved, err := m.SetReadiness(p.ID, body.Ready, body.Ships)
	resp := &protocol.GameReadinessResponse{Approved: approved, OpponentReady: m.OpponentReady(p.ID)}
	switch {
	case err != nil:
		resp.Reason = err.Error()
	case !approved:
		resp.Reason = protocol.ErrReasonWrongStage
	}
	d.logger.Info("game_readiness",
		"player_id", p.ID,
		"match_id", m.ID,
		"ready", body.Ready,
		"approved", approved,
		"stage", m.Stage.String(),
	)
	d.respond(req, p.ID, resp, true, "")
	if !approved || !m.Active {
		return nil
	}

	opp := m.Opponent(p.ID)
	ready := m.Seat(p.ID).Ready
	if w, ok := d.pending.get(opp); ok && w.command == protocol.CmdOpponentReady && w.known != ready {
		d.pending.take(opp)
		d.respond(w.req, opp, &protocol.OpponentReadyResponse{OpponentReady: ready}, true, "")
	}
	if m.Stage == game.StageShooting {
		d.startShooting(m)
	}
	return nil
}

func (d *Dispatcher) startShooting(m *game.Match) {
	d.logger.Info("shooting_started",
		"match_id", m.ID,
		"on_turn", m.PlayerOnTurn,
	)
	d.publish(shared.EventShootingStarted, m.ID, m.PlayerOnTurn, map[string]any{"round": m.Round})
	for _, id := range m.Players() {
		if w, ok := d.pending.takeIf(id, protocol.CmdGameWait); ok {
			d.respond(w.req, id, &protocol.GameWaitResponse{Started: true, OnTurn: m.PlayerOnTurn}, true, "")
		}
	}
}

// handleGameWait waits for the shooting stage. A player that is not ready gets the
// default at once.
func (d *Dispatcher) handleGameWait(req *Request, p *Player, m *game.Match) error {
	switch m.Stage {
	case game.StageShooting:
		d.respond(req, p.ID, &protocol.GameWaitResponse{Started: true, OnTurn: m.PlayerOnTurn}, true, "")
	case game.StagePlacing, game.StageGameWait:
		if !m.Seat(p.ID).Ready {
			d.respond(req, p.ID, &protocol.GameWaitResponse{}, true, "")
			return nil
		}
		d.wait(req, p, &protocol.GameWaitResponse{}, false)
	default:
		return violation(protocol.ErrReasonWrongStage, "game_wait in %s", m.Stage)
	}
	return nil
}

// handleShoot fires at the opponent. Shooting out of turn is fatal.
func (d *Dispatcher) handleShoot(req *Request, p *Player, m *game.Match) error {
	var body protocol.ShootRequest
	if err := req.Frame.Bind(&body); err != nil {
		return err
	}
	if m.Stage != game.StageShooting {
		return violation(protocol.ErrReasonWrongStage, "shoot in %s", m.Stage)
	}
	res, err := m.Shoot(p.ID, body.Pos)
	if err != nil {
		return err
	}
	victim := m.Opponent(p.ID)
	d.publish(shared.EventShot, m.ID, p.ID, map[string]any{
		"pos":  body.Pos,
		"hit":  res.Hit,
		"sunk": res.Sunk != nil,
	})
	if res.Won {
		d.finishMatch(m, p.ID)
	}
	if w, ok := d.pending.takeIf(victim, protocol.CmdOpponentShot); ok {
		d.deliverShot(m, victim, w.req)
	}

	resp := &protocol.ShootResponse{Hitted: res.Hit, SunkenShip: res.Sunk, GameWon: res.Won}
	stay, msg := true, ""
	if res.Won {
		resp.OpponentShips = m.Ships(victim)
		stay, msg = d.cfg.RematchEnabled, protocol.MsgYouWon
	}
	if !m.Active {
		stay = false
		if msg == "" {
			msg = protocol.MsgOpponentDisconnected
		}
	}
	d.respond(req, p.ID, resp, stay, msg)
	return nil
}

// deliverShot hands the pending shot to the victim, which passes the turn.
func (d *Dispatcher) deliverShot(m *game.Match, victim int, req *Request) {
	pos, lost := m.TakeShot(victim)
	resp := &protocol.OpponentShotResponse{Shotted: true, Pos: pos, Lost: lost}
	stay, msg := true, ""
	if lost {
		resp.OpponentShips = m.Ships(m.Opponent(victim))
		stay, msg = d.cfg.RematchEnabled, protocol.MsgYouLost
	}
	if !m.Active {
		stay = false
		if msg == "" {
			resp.OpponentDisconnected = true
			msg = protocol.MsgOpponentDisconnected
		}
	}
	d.respond(req, victim, resp, stay, msg)
}

// handleOpponentShot waits until the opponent's shot lands.
func (d *Dispatcher) handleOpponentShot(req *Request, p *Player, m *game.Match) error {
	if m.ShotPending(p.ID) {
		d.deliverShot(m, p.ID, req)
		return nil
	}
	if m.Stage != game.StageShooting {
		return violation(protocol.ErrReasonWrongStage, "opponent_shot in %s", m.Stage)
	}
	d.wait(req, p, &protocol.OpponentShotResponse{Pos: game.NoPosition}, false)
	return nil
}

func (d *Dispatcher) handleUpdateRematch(req *Request, p *Player, m *game.Match) error {
	var body protocol.UpdateRematchRequest
	if err := req.Frame.Bind(&body); err != nil {
		return err
	}
	if !d.cfg.RematchEnabled {
		d.respond(req, p.ID, &protocol.UpdateRematchResponse{}, true, "")
		return nil
	}
	oppWants := m.OpponentRematching(p.ID)
	approved, rematched, err := m.SetRematch(p.ID, body.Rematch)
	if err != nil {
		return err
	}
	d.respond(req, p.ID, &protocol.UpdateRematchResponse{
		Approved:           approved,
		OpponentRematching: oppWants,
		Rematched:          rematched,
	}, true, "")
	if !approved {
		return nil
	}

	opp := m.Opponent(p.ID)
	if rematched {
		d.logger.Info("match_rematched", "match_id", m.ID, "round", m.Round)
		d.publish(shared.EventMatchRematched, m.ID, 0, map[string]any{"round": m.Round})
		if w, ok := d.pending.takeIf(opp, protocol.CmdAwaitRematch); ok {
			d.respond(w.req, opp, &protocol.AwaitRematchResponse{Changed: true, OpponentRematching: true, Rematched: true}, true, "")
		}
		return nil
	}
	if w, ok := d.pending.get(opp); ok && w.command == protocol.CmdAwaitRematch && w.known != body.Rematch {
		d.pending.take(opp)
		d.respond(w.req, opp, &protocol.AwaitRematchResponse{Changed: true, OpponentRematching: body.Rematch}, true, "")
	}
	return nil
}

// handleAwaitRematch waits for the opponent's rematch wish to differ from what the
// client knows.
func (d *Dispatcher) handleAwaitRematch(req *Request, p *Player, m *game.Match) error {
	var body protocol.AwaitRematchRequest
	if err := req.Frame.Bind(&body); err != nil {
		return err
	}
	if m.Seat(p.ID).Rematched {
		d.respond(req, p.ID, &protocol.AwaitRematchResponse{Changed: true, OpponentRematching: true, Rematched: true}, true, "")
		return nil
	}
	if m.Stage != game.StageGameEnd {
		return violation(protocol.ErrReasonWrongStage, "await_rematch in %s", m.Stage)
	}
	if wants := m.OpponentRematching(p.ID); wants != body.Known {
		d.respond(req, p.ID, &protocol.AwaitRematchResponse{Changed: true, OpponentRematching: wants}, true, "")
		return nil
	}
	d.wait(req, p, &protocol.AwaitRematchResponse{OpponentRematching: body.Known}, body.Known)
	return nil
}

// fallbackFor is the default answer of a command that cannot be served.
func fallbackFor(req *Request) protocol.Response {
	switch req.Frame.Command {
	case protocol.CmdConnectionCheck:
		return &protocol.ConnectionCheckResponse{}
	case protocol.CmdPair:
		return &protocol.PairResponse{}
	case protocol.CmdOpponentReady:
		var body protocol.OpponentReadyRequest
		_ = req.Frame.Bind(&body)
		return &protocol.OpponentReadyResponse{OpponentReady: body.Known}
	case protocol.CmdGameReadiness:
		return &protocol.GameReadinessResponse{}
	case protocol.CmdGameWait:
		return &protocol.GameWaitResponse{}
	case protocol.CmdShoot:
		return &protocol.ShootResponse{}
	case protocol.CmdOpponentShot:
		return &protocol.OpponentShotResponse{Pos: game.NoPosition}
	case protocol.CmdAwaitRematch:
		var body protocol.AwaitRematchRequest
		_ = req.Frame.Bind(&body)
		return &protocol.AwaitRematchResponse{OpponentRematching: body.Known}
	case protocol.CmdUpdateRematch:
		return &protocol.UpdateRematchResponse{}
	case protocol.CmdDisconnect:
		return &protocol.DisconnectResponse{Acknowledged: true}
	}
	return &protocol.ConnectResponse{}
}

// withOpponentGone flags a default answer as caused by the opponent leaving.
func withOpponentGone(resp protocol.Response) protocol.Response {
	switch r := resp.(type) {
	case *protocol.ConnectionCheckResponse:
		r.OpponentDisconnected = true
	case *protocol.OpponentReadyResponse:
		r.OpponentDisconnected = true
	case *protocol.GameWaitResponse:
		r.OpponentDisconnected = true
	case *protocol.OpponentShotResponse:
		r.OpponentDisconnected = true
	case *protocol.AwaitRematchResponse:
		r.OpponentDisconnected = true
	}
	return resp
}
