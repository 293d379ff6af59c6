package results

import (
	"context"
	"errors"
	"time"

	"battleships/internal/shared"
)

var ErrRepositoryClosed = errors.New("results repository is closed")

// LeaderboardEntry aggregates the finished rounds of one player.
type LeaderboardEntry struct {
	PlayerID int   `json:"player_id"`
	Wins     int64 `json:"wins"`
	Losses   int64 `json:"losses"`
}

// ResultRepository stores finished matches. A match that is rematched produces one
// result per round, keyed by (MatchID, Round).
type ResultRepository interface {
	SaveResult(ctx context.Context, result *shared.MatchResult) error
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	RecentResults(ctx context.Context, limit int) ([]shared.MatchResult, error)
	Close() error
}

// MatchResultRecord is the PostgreSQL row of a finished round.
type MatchResultRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID     int       `gorm:"not null;uniqueIndex:idx_match_round" json:"match_id"`
	Round       int       `gorm:"not null;uniqueIndex:idx_match_round" json:"round"`
	WinnerID    int       `gorm:"not null;index" json:"winner_id"`
	LoserID     int       `gorm:"not null;index" json:"loser_id"`
	WinnerShots int       `gorm:"not null;default:0" json:"winner_shots"`
	LoserShots  int       `gorm:"not null;default:0" json:"loser_shots"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `gorm:"index" json:"finished_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (MatchResultRecord) TableName() string {
	return "match_results"
}

func recordFromResult(r *shared.MatchResult) MatchResultRecord {
	return MatchResultRecord{
		MatchID:     r.MatchID,
		Round:       r.Round,
		WinnerID:    r.WinnerID,
		LoserID:     r.LoserID,
		WinnerShots: r.WinnerShots,
		LoserShots:  r.LoserShots,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
}

func (rec MatchResultRecord) toResult() shared.MatchResult {
	return shared.MatchResult{
		MatchID:     rec.MatchID,
		Round:       rec.Round,
		WinnerID:    rec.WinnerID,
		LoserID:     rec.LoserID,
		WinnerShots: rec.WinnerShots,
		LoserShots:  rec.LoserShots,
		StartedAt:   rec.StartedAt,
		FinishedAt:  rec.FinishedAt,
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 100 {
		return 100
	}
	return limit
}
