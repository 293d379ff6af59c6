package game

import (
	"errors"
	"fmt"
	"time"
)

// Stage is the phase a match is in.
type Stage int

const (
	StagePairing Stage = iota + 1
	StagePlacing
	StageGameWait
	StageShooting
	StageGameEnd
)

func (s Stage) String() string {
	switch s {
	case StagePairing:
		return "PAIRING"
	case StagePlacing:
		return "PLACING"
	case StageGameWait:
		return "GAME_WAIT"
	case StageShooting:
		return "SHOOTING"
	case StageGameEnd:
		return "GAME_END"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrNotInMatch   = errors.New("player is not part of this match")
	ErrWrongStage   = errors.New("command not allowed in the current stage")
	ErrNotOnTurn    = errors.New("player is not on turn")
	ErrShotPending  = errors.New("previous shot not yet collected by the opponent")
	ErrOutsideBoard = errors.New("position outside the board")
)

// Seat is one player's side of a match.
type Seat struct {
	PlayerID int
	Ready    bool
	Ships    []Ship
	Rematch  bool
	Shots    int

	// Rematched is set when a rematch reset the board and cleared once the player
	// acknowledged it with a pair request.
	Rematched bool
}

// ShotResult is the outcome of a single shot.
type ShotResult struct {
	Hit  bool
	Sunk *Ship
	Won  bool
}

// Match holds the state of one paired couple. It is not safe for concurrent use; the
// server mutates it from a single goroutine.
type Match struct {
	ID           int
	Active       bool
	Stage        Stage
	PlayerOnTurn int
	LastShot     Position
	Winner       int
	Round        int
	StartedAt    time.Time

	rules Rules
	rng   Rand
	now   func() time.Time
	order [2]int
	seats map[int]*Seat
}

// NewMatch pairs two distinct players. The match starts in PLACING: both players have
// been cross-matched by their pair requests.
func NewMatch(id, first, second int, rules Rules, rng Rand) *Match {
	m := &Match{
		ID:       id,
		Active:   true,
		Stage:    StagePlacing,
		LastShot: NoPosition,
		Round:    1,
		rules:    rules,
		rng:      rng,
		now:      time.Now,
		order:    [2]int{first, second},
		seats: map[int]*Seat{
			first:  {PlayerID: first},
			second: {PlayerID: second},
		},
	}
	return m
}

// SetClock overrides the time source used for StartedAt.
func (m *Match) SetClock(now func() time.Time) { m.now = now }

// Rules returns the rules layouts are validated against.
func (m *Match) Rules() Rules { return m.rules }

// Players returns both player ids in pairing order.
func (m *Match) Players() [2]int { return m.order }

// Has reports whether id is one of the two players.
func (m *Match) Has(id int) bool {
	_, ok := m.seats[id]
	return ok
}

// Seat returns the player's side of the match, or nil.
func (m *Match) Seat(id int) *Seat { return m.seats[id] }

// Opponent returns the other player's id, or 0 when id is not part of the match.
func (m *Match) Opponent(id int) int {
	switch id {
	case m.order[0]:
		return m.order[1]
	case m.order[1]:
		return m.order[0]
	}
	return 0
}

// OpponentReady reports the readiness of id's opponent.
func (m *Match) OpponentReady(id int) bool {
	if s := m.seats[m.Opponent(id)]; s != nil {
		return s.Ready
	}
	return false
}

// Ships returns a copy of the player's authoritative ship list.
func (m *Match) Ships(id int) []Ship {
	if s := m.seats[id]; s != nil {
		return CloneShips(s.Ships)
	}
	return nil
}

// AcknowledgePair handles a pair request from a player that is already matched. After a
// rematch reset it moves the match back to PLACING and reports whether the player still
// had to learn about the rematch.
func (m *Match) AcknowledgePair(id int) (rematched bool, err error) {
	seat := m.seats[id]
	if seat == nil {
		return false, ErrNotInMatch
	}
	rematched = seat.Rematched
	seat.Rematched = false
	if m.Stage == StagePairing {
		m.Stage = StagePlacing
	}
	return rematched, nil
}

// CanChangeReadiness reports whether layouts may be submitted or withdrawn.
func (m *Match) CanChangeReadiness() bool {
	return m.Active && (m.Stage == StagePlacing || m.Stage == StageGameWait)
}

// SetReadiness submits (ready) or withdraws (not ready) a layout. A false approval with
// a nil error means the stage does not accept readiness changes. Shooting starts the
// moment both players are ready.
func (m *Match) SetReadiness(id int, ready bool, ships []Ship) (bool, error) {
	seat := m.seats[id]
	if seat == nil {
		return false, ErrNotInMatch
	}
	if !m.CanChangeReadiness() {
		return false, nil
	}
	if ready {
		if err := m.rules.Validate(ships); err != nil {
			return false, err
		}
		seat.Ships = CloneShips(ships)
	}
	seat.Ready = ready

	switch {
	case m.bothReady():
		m.startShooting()
	case seat.Ready || m.OpponentReady(id):
		m.Stage = StageGameWait
	default:
		m.Stage = StagePlacing
	}
	return true, nil
}

func (m *Match) bothReady() bool {
	for _, s := range m.seats {
		if !s.Ready {
			return false
		}
	}
	return true
}

func (m *Match) startShooting() {
	m.Stage = StageShooting
	m.PlayerOnTurn = m.order[m.rng.Intn(2)]
	m.LastShot = NoPosition
	m.StartedAt = m.now()
}

// IsOnTurn reports whether id holds the turn. In SHOOTING exactly one player does.
func (m *Match) IsOnTurn(id int) bool {
	return m.Stage == StageShooting && m.PlayerOnTurn == id
}

// CanShoot reports whether id may fire now: on turn and the previous shot already
// collected by the victim.
func (m *Match) CanShoot(id int) bool {
	return m.IsOnTurn(id) && m.LastShot == NoPosition
}

// Shoot fires at the opponent's board. The turn does not pass until the victim
// collects the shot with TakeShot.
func (m *Match) Shoot(id int, pos Position) (ShotResult, error) {
	seat := m.seats[id]
	if seat == nil {
		return ShotResult{}, ErrNotInMatch
	}
	if m.Stage != StageShooting {
		return ShotResult{}, ErrWrongStage
	}
	if !m.IsOnTurn(id) {
		return ShotResult{}, ErrNotOnTurn
	}
	if m.LastShot != NoPosition {
		return ShotResult{}, ErrShotPending
	}
	if !pos.InBoard(m.rules.Width, m.rules.Height) {
		return ShotResult{}, fmt.Errorf("%w: %s", ErrOutsideBoard, pos)
	}

	m.LastShot = pos
	seat.Shots++

	var res ShotResult
	target := m.seats[m.Opponent(id)]
	for i := range target.Ships {
		ship := &target.Ships[i]
		seg := ship.Segment(pos)
		if seg < 0 {
			continue
		}
		ship.Hitted[seg] = true
		res.Hit = true
		if ship.Sunk() {
			sunk := ship.Clone()
			res.Sunk = &sunk
		}
		break
	}
	if res.Hit && allSunk(target.Ships) {
		res.Won = true
		m.Stage = StageGameEnd
		m.Winner = id
	}
	return res, nil
}

func allSunk(ships []Ship) bool {
	for _, s := range ships {
		if !s.Sunk() {
			return false
		}
	}
	return len(ships) > 0
}

// ShotPending reports whether a shot at id is waiting to be collected.
func (m *Match) ShotPending(id int) bool {
	return m.Has(id) && m.LastShot != NoPosition && m.PlayerOnTurn != id
}

// TakeShot hands the pending shot to the victim, passes the turn and reports whether the
// shot ended the game.
func (m *Match) TakeShot(id int) (Position, bool) {
	pos := m.LastShot
	m.PlayerOnTurn = m.Opponent(m.PlayerOnTurn)
	m.LastShot = NoPosition
	return pos, m.Stage == StageGameEnd && m.Winner != id
}

// OpponentRematching reports the opponent's current rematch wish.
func (m *Match) OpponentRematching(id int) bool {
	if s := m.seats[m.Opponent(id)]; s != nil {
		return s.Rematch
	}
	return false
}

// SetRematch records a rematch wish. When both players want one the board is reset and
// rematched is true.
func (m *Match) SetRematch(id int, want bool) (approved, rematched bool, err error) {
	seat := m.seats[id]
	if seat == nil {
		return false, false, ErrNotInMatch
	}
	if !m.Active || m.Stage != StageGameEnd {
		return false, false, nil
	}
	seat.Rematch = want
	if want && m.OpponentRematching(id) {
		m.resetForRematch()
		return true, true, nil
	}
	return true, false, nil
}

func (m *Match) resetForRematch() {
	m.Stage = StagePairing
	m.PlayerOnTurn = 0
	m.LastShot = NoPosition
	m.Winner = 0
	m.Round++
	m.StartedAt = time.Time{}
	for _, s := range m.seats {
		*s = Seat{PlayerID: s.PlayerID, Rematched: true}
	}
}

// Deactivate marks the match as no longer playable.
func (m *Match) Deactivate() { m.Active = false }
