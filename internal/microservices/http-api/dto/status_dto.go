package dto

import (
	"time"

	"battleships/internal/results"
	"battleships/internal/shared"
)

// StatusResponse summarises the game server state
type StatusResponse struct {
	Players        int       `json:"players"`
	Connected      int       `json:"connected"`
	Matches        int       `json:"matches"`
	ActiveMatches  int       `json:"active_matches"`
	Pending        int       `json:"pending"`
	OpenConn       int       `json:"open_connections"`
	Spectators     int       `json:"spectators"`
	TakenAt        time.Time `json:"taken_at"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	RematchEnabled bool      `json:"rematch_enabled"`
}

// LeaderboardResponse for returning the top players
type LeaderboardResponse struct {
	Data  []LeaderboardEntryResponse `json:"data"`
	Limit int                        `json:"limit"`
}

type LeaderboardEntryResponse struct {
	Rank     int     `json:"rank"`
	PlayerID int     `json:"player_id"`
	Wins     int64   `json:"wins"`
	Losses   int64   `json:"losses"`
	WinRate  float64 `json:"win_rate"`
}

// NewLeaderboardResponse ranks entries in the order the repository returned them
func NewLeaderboardResponse(entries []results.LeaderboardEntry, limit int) *LeaderboardResponse {
	data := make([]LeaderboardEntryResponse, 0, len(entries))
	for i, e := range entries {
		resp := LeaderboardEntryResponse{
			Rank:     i + 1,
			PlayerID: e.PlayerID,
			Wins:     e.Wins,
			Losses:   e.Losses,
		}
		if played := e.Wins + e.Losses; played > 0 {
			resp.WinRate = float64(e.Wins) / float64(played)
		}
		data = append(data, resp)
	}
	return &LeaderboardResponse{Data: data, Limit: limit}
}

// RecentResultsResponse for returning the latest finished rounds
type RecentResultsResponse struct {
	Data  []MatchResultResponse `json:"data"`
	Limit int                   `json:"limit"`
}

type MatchResultResponse struct {
	shared.MatchResult
	DurationSeconds float64 `json:"duration_seconds"`
}

func NewRecentResultsResponse(list []shared.MatchResult, limit int) *RecentResultsResponse {
	data := make([]MatchResultResponse, 0, len(list))
	for _, r := range list {
		resp := MatchResultResponse{MatchResult: r}
		if !r.StartedAt.IsZero() && r.FinishedAt.After(r.StartedAt) {
			resp.DurationSeconds = r.FinishedAt.Sub(r.StartedAt).Seconds()
		}
		data = append(data, resp)
	}
	return &RecentResultsResponse{Data: data, Limit: limit}
}
