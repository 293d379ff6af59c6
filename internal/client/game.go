package client

import (
	"errors"
	"log/slog"

	"battleships/internal/game"
	"battleships/internal/protocol"
)

// Transport is the part of Session the game drives. Tests replace it with a fake.
type Transport interface {
	TryToSend(req Request) (bool, error)
	LoadResponses() bool
	SpawnConnectionCheck()
	Outstanding(cmd protocol.Command) bool
	ID() int
	Connected() bool
	EndMessage() string
	Quit()
	Closed() bool
}

var _ Transport = (*Session)(nil)

var (
	ErrWrongStage = errors.New("action not available in this stage")
	ErrCellTaken  = errors.New("cell already shot")
)

// Stage is the screen the client is on.
type Stage int

const (
	StageMainMenu Stage = iota
	StageConnecting
	StagePairing
	StagePlacing
	StageGameWait
	StageShooting
	StageGettingShot
	StageWon
	StageLost
	StageRematch // asked for a rematch, waiting for the opponent
	StageClosing
)

var stageNames = [...]string{
	"MAIN_MENU", "CONNECTING", "PAIRING", "PLACING", "GAME_WAIT",
	"SHOOTING", "GETTING_SHOT", "WON", "LOST", "REMATCH", "CLOSING",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}

// InMatch reports whether the stage belongs to a running round.
func (s Stage) InMatch() bool {
	switch s {
	case StagePlacing, StageGameWait, StageShooting, StageGettingShot:
		return true
	}
	return false
}

// Finished reports whether the round is over.
func (s Stage) Finished() bool {
	return s == StageWon || s == StageLost || s == StageRematch
}

// DrawableState is a snapshot of everything a front end renders.
type DrawableState struct {
	Stage              Stage
	PlayerID           int
	OpponentID         int
	Banner             string
	Ships              []game.Ship
	Cursor             *game.Ship
	Remaining          map[int]int
	Shots              [][]Shot
	Incoming           [][]Shot
	Sunk               []game.Ship
	OpponentShips      []game.Ship
	OpponentReady      bool
	Ready              bool
	WantRematch        bool
	OpponentRematching bool
	Round              int
}

// Game is the client state machine. It issues the request each stage needs and applies
// the answers. All methods, callbacks included, run on the caller's goroutine; Game is
// not safe for concurrent use.
type Game struct {
	transport Transport
	rules     game.Rules
	logger    *slog.Logger

	stage              Stage
	grid               *Grid
	opponent           int
	banner             string
	won                bool
	ready              bool
	opponentReady      bool
	wantRematch        bool
	opponentRematching bool
	opponentShips      []game.Ship
	pendingShot        game.Position
	round              int
}

func NewGame(transport Transport, rules game.Rules, logger *slog.Logger) *Game {
	if logger == nil {
		logger = slog.Default()
	}
	return &Game{
		transport:   transport,
		rules:       rules,
		logger:      logger,
		grid:        NewGrid(rules),
		pendingShot: game.NoPosition,
	}
}

func (g *Game) Stage() Stage { return g.stage }

func (g *Game) Grid() *Grid { return g.grid }

// Play leaves the main menu and connects.
func (g *Game) Play() error {
	if g.stage != StageMainMenu {
		return ErrWrongStage
	}
	g.setStage(StageConnecting)
	return nil
}

// Quit says goodbye and moves to the closing screen.
func (g *Game) Quit() {
	g.transport.Quit()
	g.setStage(StageClosing)
}

// HandleRequests drains the answers that arrived and issues whatever the current stage
// waits for. Front ends call it once per frame. It reports whether the game still runs.
func (g *Game) HandleRequests() bool {
	if !g.transport.LoadResponses() {
		g.connectionEnded(g.transport.EndMessage())
	}
	if g.stage == StageClosing {
		return !g.transport.Closed()
	}

	var err error
	switch g.stage {
	case StageConnecting:
		_, err = g.transport.TryToSend(Request{Command: protocol.CmdConnect, Callback: g.onConnect})
	case StagePairing:
		_, err = g.transport.TryToSend(Request{Command: protocol.CmdPair, Blocking: true, Callback: g.onPair})
	case StagePlacing:
		_, err = g.transport.TryToSend(Request{
			Command:  protocol.CmdOpponentReady,
			Payload:  protocol.OpponentReadyRequest{Known: g.opponentReady},
			Blocking: true,
			Callback: g.onOpponentReady,
		})
	case StageGameWait:
		if !g.transport.Outstanding(protocol.CmdGameReadiness) {
			_, err = g.transport.TryToSend(Request{Command: protocol.CmdGameWait, Blocking: true, Callback: g.onGameWait})
		}
	case StageGettingShot:
		_, err = g.transport.TryToSend(Request{Command: protocol.CmdOpponentShot, Blocking: true, Callback: g.onOpponentShot})
	case StageWon, StageLost, StageRematch:
		if g.transport.Connected() {
			_, err = g.transport.TryToSend(Request{
				Command:  protocol.CmdAwaitRematch,
				Payload:  protocol.AwaitRematchRequest{Known: g.opponentRematching},
				Blocking: true,
				Callback: g.onAwaitRematch,
			})
		}
	}
	if err != nil && !errors.Is(err, ErrSessionClosed) {
		g.logger.Error("request_not_queued", "stage", g.stage.String(), "error", err)
	}
	g.transport.SpawnConnectionCheck()
	return true
}

// connectionEnded applies the terminating banner. Losing the opponent mid-round counts
// as a win; a finished round keeps its result.
func (g *Game) connectionEnded(msg string) {
	switch {
	case g.stage == StageClosing || g.stage == StageMainMenu:
	case g.stage.Finished():
		if g.stage == StageRematch {
			g.stage = g.result()
		}
		if msg == protocol.MsgOpponentDisconnected {
			g.banner = msg
		}
	case g.stage.InMatch() && msg == protocol.MsgOpponentDisconnected:
		g.won = true
		g.banner = msg
		g.setStage(StageWon)
	default:
		g.banner = msg
		g.setStage(StageClosing)
	}
}

func (g *Game) result() Stage {
	if g.won {
		return StageWon
	}
	return StageLost
}

func (g *Game) setStage(s Stage) {
	if g.stage == s {
		return
	}
	g.logger.Debug("stage_changed", "from", g.stage.String(), "to", s.String(), "player_id", g.transport.ID())
	g.stage = s
}

func (g *Game) onConnect(resp Response) {
	if g.stage == StageConnecting && g.transport.Connected() {
		g.setStage(StagePairing)
	}
}

func (g *Game) onPair(resp Response) {
	var body protocol.PairResponse
	if err := resp.Bind(&body); err != nil || !body.Paired || g.stage != StagePairing {
		return
	}
	g.opponent = body.Opponent
	g.startRound()
	g.setStage(StagePlacing)
}

// startRound clears everything a new round starts without.
func (g *Game) startRound() {
	g.grid.Reset()
	g.round++
	g.banner = ""
	g.won = false
	g.ready = false
	g.opponentReady = false
	g.wantRematch = false
	g.opponentRematching = false
	g.opponentShips = nil
	g.pendingShot = game.NoPosition
}

func (g *Game) onOpponentReady(resp Response) {
	var body protocol.OpponentReadyResponse
	if err := resp.Bind(&body); err != nil {
		return
	}
	if g.stage == StagePlacing || g.stage == StageGameWait {
		g.opponentReady = body.OpponentReady
	}
}

// ClickOwn places or picks up a ship while placing.
func (g *Game) ClickOwn(pos game.Position, right bool) bool {
	if g.stage != StagePlacing {
		return false
	}
	return g.grid.Click(pos, right)
}

func (g *Game) Rotate() {
	if g.stage == StagePlacing {
		g.grid.Rotate()
	}
}

func (g *Game) ChangeSize(increment int) {
	if g.stage == StagePlacing {
		g.grid.ChangeSize(increment)
	}
}

// Autoplace completes the fleet while placing.
func (g *Game) Autoplace() bool {
	if g.stage != StagePlacing {
		return false
	}
	return g.grid.Autoplace()
}

// SetReady submits the fleet or withdraws it. The stage changes at once and is reverted
// if the server refuses.
func (g *Game) SetReady(ready bool) error {
	switch {
	case ready && g.stage != StagePlacing, !ready && g.stage != StageGameWait:
		return ErrWrongStage
	case ready && !g.grid.AllPlaced():
		return game.ErrInvalidLayout
	}
	var ships []game.Ship
	if ready {
		ships = g.grid.Ships()
	}
	sent, err := g.transport.TryToSend(Request{
		Command:  protocol.CmdGameReadiness,
		Payload:  protocol.GameReadinessRequest{Ready: ready, Ships: ships},
		Callback: func(resp Response) { g.onGameReadiness(ready, resp) },
		MustSend: true,
	})
	if err != nil || !sent {
		return err
	}
	g.ready = ready
	if ready {
		g.setStage(StageGameWait)
	} else {
		g.setStage(StagePlacing)
	}
	return nil
}

func (g *Game) onGameReadiness(ready bool, resp Response) {
	var body protocol.GameReadinessResponse
	if err := resp.Bind(&body); err != nil {
		return
	}
	g.opponentReady = body.OpponentReady
	if body.Approved {
		return
	}
	g.logger.Info("readiness_refused", "ready", ready, "reason", body.Reason)
	switch {
	case ready && g.stage == StageGameWait:
		g.ready = false
		g.setStage(StagePlacing)
	case !ready && g.stage == StagePlacing:
		g.ready = true
		g.setStage(StageGameWait)
	}
}

func (g *Game) onGameWait(resp Response) {
	var body protocol.GameWaitResponse
	if err := resp.Bind(&body); err != nil || !body.Started || g.stage != StageGameWait {
		return
	}
	if body.OnTurn == g.transport.ID() {
		g.setStage(StageShooting)
	} else {
		g.setStage(StageGettingShot)
	}
}

// Shoot fires at pos when on turn. Cells already shot or blocked are refused.
func (g *Game) Shoot(pos game.Position) error {
	if g.stage != StageShooting || g.pendingShot != game.NoPosition {
		return ErrWrongStage
	}
	if !pos.InBoard(g.rules.Width, g.rules.Height) {
		return game.ErrOutsideBoard
	}
	if !g.grid.MarkShot(pos) {
		return ErrCellTaken
	}
	sent, err := g.transport.TryToSend(Request{
		Command:  protocol.CmdShoot,
		Payload:  protocol.ShootRequest{Pos: pos},
		Callback: g.onShoot,
		MustSend: true,
	})
	if err != nil || !sent {
		g.grid.shots[pos.Y()][pos.X()] = ShotNone
		return err
	}
	g.pendingShot = pos
	return nil
}

func (g *Game) onShoot(resp Response) {
	pos := g.pendingShot
	g.pendingShot = game.NoPosition
	var body protocol.ShootResponse
	if err := resp.Bind(&body); err != nil {
		return
	}
	g.grid.UpdateShot(pos, body.Hitted, body.SunkenShip)
	if body.GameWon {
		g.won = true
		g.opponentShips = body.OpponentShips
		g.banner = bannerOr(resp.Status.GameEndMsg, protocol.MsgYouWon)
		g.setStage(StageWon)
		return
	}
	if g.stage == StageShooting {
		g.setStage(StageGettingShot)
	}
}

func (g *Game) onOpponentShot(resp Response) {
	var body protocol.OpponentShotResponse
	if err := resp.Bind(&body); err != nil || !body.Shotted || g.stage != StageGettingShot {
		return
	}
	g.grid.OpponentShot(body.Pos)
	if body.Lost {
		g.won = false
		g.opponentShips = body.OpponentShips
		g.banner = bannerOr(resp.Status.GameEndMsg, protocol.MsgYouLost)
		g.setStage(StageLost)
		return
	}
	g.setStage(StageShooting)
}

// ToggleRematch flips the rematch wish after a round.
func (g *Game) ToggleRematch() error {
	if !g.stage.Finished() || !g.transport.Connected() {
		return ErrWrongStage
	}
	want := !g.wantRematch
	_, err := g.transport.TryToSend(Request{
		Command:  protocol.CmdUpdateRematch,
		Payload:  protocol.UpdateRematchRequest{Rematch: want},
		Callback: func(resp Response) { g.onUpdateRematch(want, resp) },
		MustSend: true,
	})
	return err
}

func (g *Game) onUpdateRematch(want bool, resp Response) {
	var body protocol.UpdateRematchResponse
	if err := resp.Bind(&body); err != nil || !body.Approved || !g.stage.Finished() {
		return
	}
	g.wantRematch = want
	g.opponentRematching = body.OpponentRematching
	if body.Rematched {
		g.setStage(StagePairing)
		return
	}
	if want {
		g.setStage(StageRematch)
	} else {
		g.setStage(g.result())
	}
}

func (g *Game) onAwaitRematch(resp Response) {
	var body protocol.AwaitRematchResponse
	if err := resp.Bind(&body); err != nil || !g.stage.Finished() {
		return
	}
	g.opponentRematching = body.OpponentRematching
	if body.Rematched {
		g.setStage(StagePairing)
	}
}

func bannerOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// State returns a copy of what a front end needs to draw the current frame.
func (g *Game) State() DrawableState {
	st := DrawableState{
		Stage:              g.stage,
		PlayerID:           g.transport.ID(),
		OpponentID:         g.opponent,
		Banner:             g.banner,
		Ships:              g.grid.Ships(),
		Remaining:          g.grid.Remaining(),
		Shots:              copyShotMap(g.grid.shots),
		Incoming:           copyShotMap(g.grid.incoming),
		Sunk:               game.CloneShips(g.grid.sunk),
		OpponentShips:      game.CloneShips(g.opponentShips),
		OpponentReady:      g.opponentReady,
		Ready:              g.ready,
		WantRematch:        g.wantRematch,
		OpponentRematching: g.opponentRematching,
		Round:              g.round,
	}
	if cursor, ok := g.grid.Cursor(); ok && g.stage == StagePlacing {
		st.Cursor = &cursor
	}
	return st
}
