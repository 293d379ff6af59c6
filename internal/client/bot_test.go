package client

import (
	"testing"

	"battleships/internal/game"
	"battleships/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBot_PlaysThroughPlacementAndShooting(t *testing.T) {
	g, tr := newTestGame(t)
	bot := NewBot(g, 1)

	done, err := bot.Step()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, StageConnecting, g.Stage())

	g.HandleRequests()
	step(g, tr, protocol.CmdConnect, &protocol.ConnectResponse{ID: 1001})
	step(g, tr, protocol.CmdPair, &protocol.PairResponse{Paired: true, Opponent: 1002})
	require.Equal(t, StagePlacing, g.Stage())

	_, err = bot.Step()
	require.NoError(t, err)
	assert.Equal(t, StageGameWait, g.Stage())
	payload, ok := tr.lastPayload(protocol.CmdGameReadiness).(protocol.GameReadinessRequest)
	require.True(t, ok)
	assert.True(t, payload.Ready)
	assert.NoError(t, g.rules.Validate(payload.Ships))

	step(g, tr, protocol.CmdGameReadiness, &protocol.GameReadinessResponse{Approved: true})
	step(g, tr, protocol.CmdGameWait, &protocol.GameWaitResponse{Started: true, OnTurn: 1001})
	require.Equal(t, StageShooting, g.Stage())

	_, err = bot.Step()
	require.NoError(t, err)
	assert.Equal(t, protocol.ShootRequest{Pos: game.Pos(0, 0)}, tr.lastPayload(protocol.CmdShoot))

	// a second step while the shot is in flight is a no-op
	_, err = bot.Step()
	require.NoError(t, err)
	assert.Len(t, tr.sent, 6)
}

func TestBot_SkipsBlockedCells(t *testing.T) {
	g, tr := shootingGame(t, 1001)
	bot := NewBot(g, 1)

	_, err := bot.Step()
	require.NoError(t, err)
	sunk := game.NewShip(game.Pos(0, 0), 1, true)
	step(g, tr, protocol.CmdShoot, &protocol.ShootResponse{Hitted: true, SunkenShip: &sunk})
	step(g, tr, protocol.CmdOpponentShot, &protocol.OpponentShotResponse{Shotted: true, Pos: game.Pos(9, 9)})
	require.Equal(t, StageShooting, g.Stage())

	_, err = bot.Step()
	require.NoError(t, err)
	assert.Equal(t, protocol.ShootRequest{Pos: game.Pos(2, 0)}, tr.lastPayload(protocol.CmdShoot),
		"the halo around the sunk ship is skipped")
}

func TestBot_AsksForRematchUntilRoundLimit(t *testing.T) {
	g, tr := shootingGame(t, 1001)
	bot := NewBot(g, 2)

	_, err := bot.Step()
	require.NoError(t, err)
	step(g, tr, protocol.CmdShoot, &protocol.ShootResponse{Hitted: true, GameWon: true})
	require.Equal(t, StageWon, g.Stage())

	done, err := bot.Step()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, protocol.UpdateRematchRequest{Rematch: true}, tr.lastPayload(protocol.CmdUpdateRematch))

	// not asked twice for the same round
	_, err = bot.Step()
	require.NoError(t, err)
	step(g, tr, protocol.CmdUpdateRematch, &protocol.UpdateRematchResponse{Approved: true, Rematched: true})
	require.Equal(t, StagePairing, g.Stage())

	step(g, tr, protocol.CmdPair, &protocol.PairResponse{Paired: true, Opponent: 1002, Rematched: true})
	require.Equal(t, 2, g.State().Round)
	_, err = bot.Step()
	require.NoError(t, err)
	step(g, tr, protocol.CmdGameReadiness, &protocol.GameReadinessResponse{Approved: true})
	step(g, tr, protocol.CmdGameWait, &protocol.GameWaitResponse{Started: true, OnTurn: 1002})
	require.Equal(t, StageGettingShot, g.Stage())
	step(g, tr, protocol.CmdOpponentShot, &protocol.OpponentShotResponse{Shotted: true, Pos: game.Pos(0, 0), Lost: true})
	require.Equal(t, StageLost, g.Stage())

	done, err = bot.Step()
	require.NoError(t, err)
	assert.True(t, done, "two rounds played")
}

func TestBot_DoneWhenServerClosed(t *testing.T) {
	g, tr := placedGame(t)
	tr.stay = false
	tr.endMsg = protocol.MsgServerShutdown
	g.HandleRequests()
	require.Equal(t, StageClosing, g.Stage())

	done, err := NewBot(g, 1).Step()
	require.NoError(t, err)
	assert.True(t, done)
}
