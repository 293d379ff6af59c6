package shared

import "time"

// shared types across the application
// 1st: finished match results, produced by the game server and stored by the results repositories
// 2nd: match events, produced by the game server and streamed to spectators

type MatchResult struct {
	MatchID     int       `json:"match_id"`     // match identifier, stable across rematches
	Round       int       `json:"round"`        // 1 for the first game, +1 per rematch
	WinnerID    int       `json:"winner_id"`    // player who sank the last ship
	LoserID     int       `json:"loser_id"`     // the other player
	WinnerShots int       `json:"winner_shots"` // shots fired by the winner this round
	LoserShots  int       `json:"loser_shots"`  // shots fired by the loser this round
	StartedAt   time.Time `json:"started_at"`   // moment shooting started
	FinishedAt  time.Time `json:"finished_at"`  // moment of the winning shot
}

type EventType string

const (
	EventMatchStarted       EventType = "match_started"
	EventShootingStarted    EventType = "shooting_started"
	EventShot               EventType = "shot"
	EventMatchWon           EventType = "match_won"
	EventMatchRematched     EventType = "match_rematched"
	EventPlayerDisconnected EventType = "player_disconnected"
	EventMatchReaped        EventType = "match_reaped"
)

type MatchEvent struct {
	ID       string         `json:"id"`                  // uuid
	Type     EventType      `json:"type"`                // what happened
	MatchID  int            `json:"match_id"`            // match the event belongs to
	PlayerID int            `json:"player_id,omitempty"` // acting player, if any
	Data     map[string]any `json:"data,omitempty"`      // event specific details
	Time     time.Time      `json:"time"`
}
