package client

import (
	"errors"

	"battleships/internal/game"
)

// Bot plays a Game without a human: it places the fleet automatically, fires at the
// first unknown cell and asks for a rematch until Rounds rounds were played.
type Bot struct {
	game      *Game
	Rounds    int // 0 plays a single round
	requested int // round the rematch was last asked for
}

func NewBot(g *Game, rounds int) *Bot {
	return &Bot{game: g, Rounds: rounds}
}

// Step applies the bot's intent for the current stage. Call it after every
// HandleRequests. It reports whether the bot is done and the game may be quit.
func (b *Bot) Step() (bool, error) {
	g := b.game
	switch g.Stage() {
	case StageMainMenu:
		return false, g.Play()
	case StagePlacing:
		if !g.Grid().AllPlaced() && !g.Autoplace() {
			return true, game.ErrInvalidLayout
		}
		return false, ignoreBusy(g.SetReady(true))
	case StageShooting:
		pos, ok := b.target()
		if !ok {
			return false, nil
		}
		return false, ignoreBusy(g.Shoot(pos))
	case StageWon, StageLost:
		st := g.State()
		if st.Round >= max(b.Rounds, 1) || !g.transport.Connected() {
			return true, nil
		}
		if b.requested == st.Round || st.WantRematch {
			return false, nil
		}
		b.requested = st.Round
		return false, ignoreBusy(g.ToggleRematch())
	case StageClosing:
		return true, nil
	}
	return false, nil
}

// target is the first cell not fired at yet, scanning rows top down.
func (b *Bot) target() (game.Position, bool) {
	shots := b.game.grid.shots
	for y := range shots {
		for x := range shots[y] {
			if shots[y][x] == ShotNone {
				return game.Pos(x, y), true
			}
		}
	}
	return game.NoPosition, false
}

// ignoreBusy drops the errors of an intent repeated while its request is in flight.
func ignoreBusy(err error) error {
	if errors.Is(err, ErrWrongStage) || errors.Is(err, ErrDuplicateRequest) {
		return nil
	}
	return err
}
