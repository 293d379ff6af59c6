package results

import (
	"context"
	"fmt"

	"battleships/internal/shared"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresResultRepo is the durable archive of finished rounds.
type PostgresResultRepo struct {
	db *gorm.DB
}

func NewPostgresResultRepo(db *gorm.DB) *PostgresResultRepo {
	return &PostgresResultRepo{db: db}
}

// SaveResult inserts the round; a round already archived is left untouched.
func (r *PostgresResultRepo) SaveResult(ctx context.Context, result *shared.MatchResult) error {
	rec := recordFromResult(result)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save result to postgres: %w", err)
	}
	return nil
}

// BatchInsert inserts multiple rounds in a single transaction.
func (r *PostgresResultRepo) BatchInsert(ctx context.Context, batch []*shared.MatchResult) error {
	if len(batch) == 0 {
		return nil
	}
	records := make([]MatchResultRecord, 0, len(batch))
	for _, res := range batch {
		records = append(records, recordFromResult(res))
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(&records, 100).Error
	})
	if err != nil {
		return fmt.Errorf("failed to batch insert results: %w", err)
	}
	return nil
}

func (r *PostgresResultRepo) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	var board []LeaderboardEntry
	err := r.db.WithContext(ctx).Raw(`
		SELECT player_id, SUM(wins) AS wins, SUM(losses) AS losses
		FROM (
			SELECT winner_id AS player_id, 1 AS wins, 0 AS losses FROM match_results
			UNION ALL
			SELECT loser_id AS player_id, 0 AS wins, 1 AS losses FROM match_results
		) AS rounds
		GROUP BY player_id
		ORDER BY wins DESC, losses ASC, player_id ASC
		LIMIT ?`, clampLimit(limit)).
		Scan(&board).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	return board, nil
}

func (r *PostgresResultRepo) RecentResults(ctx context.Context, limit int) ([]shared.MatchResult, error) {
	var records []MatchResultRecord
	err := r.db.WithContext(ctx).
		Order("finished_at DESC").
		Limit(clampLimit(limit)).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read recent results: %w", err)
	}
	out := make([]shared.MatchResult, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.toResult())
	}
	return out, nil
}

func (r *PostgresResultRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
