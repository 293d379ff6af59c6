package results

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"battleships/internal/shared"
)

// HybridResultRepository combines Redis and PostgreSQL for match history
// Redis: live leaderboard, updated on every finished round
// PostgreSQL: durable archive, written in batches
type HybridResultRepository struct {
	redis     *RedisResultRepo
	postgres  *PostgresResultRepo
	writeChan chan *shared.MatchResult
	stopChan  chan struct{}
	doneChan  chan struct{} // closed when the batch writer returned
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	started   atomic.Bool
	closed    atomic.Bool
}

func NewHybridResultRepository(redis *RedisResultRepo, postgres *PostgresResultRepo, interval time.Duration) *HybridResultRepository {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HybridResultRepository{
		redis:     redis,
		postgres:  postgres,
		writeChan: make(chan *shared.MatchResult, 1000),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
		interval:  interval,
		batchSize: 100,
		logger:    slog.Default(),
	}
}

// SaveResult writes to Redis immediately and queues the PostgreSQL write. When the queue is
// full the row is written directly with a short timeout.
func (r *HybridResultRepository) SaveResult(ctx context.Context, result *shared.MatchResult) error {
	if r.closed.Load() {
		return ErrRepositoryClosed
	}
	if err := r.redis.SaveResult(ctx, result); err != nil {
		r.logger.Error("redis_save_failed",
			"match_id", result.MatchID,
			"round", result.Round,
			"error", err,
		)
		return fmt.Errorf("redis write failed: %w", err)
	}

	if depth := len(r.writeChan); depth > cap(r.writeChan)/2 {
		r.logger.Warn("write_queue_high_watermark", "queue_depth", depth)
	}

	queued := *result
	select {
	case r.writeChan <- &queued:
	default:
		r.logger.Warn("write_queue_full_direct_write", "match_id", result.MatchID)
		directCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		if err := r.postgres.SaveResult(directCtx, result); err != nil {
			r.logger.Error("postgres_direct_write_failed", "error", err)
			return fmt.Errorf("postgres direct write failed: %w", err)
		}
	}
	return nil
}

// Leaderboard reads Redis and falls back to PostgreSQL.
func (r *HybridResultRepository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	board, err := r.redis.Leaderboard(ctx, limit)
	if err == nil && len(board) > 0 {
		return board, nil
	}
	r.logger.Debug("redis_miss_fallback_to_postgres", "query", "leaderboard")
	return r.postgres.Leaderboard(ctx, limit)
}

func (r *HybridResultRepository) RecentResults(ctx context.Context, limit int) ([]shared.MatchResult, error) {
	recent, err := r.redis.RecentResults(ctx, limit)
	if err == nil && len(recent) > 0 {
		return recent, nil
	}
	r.logger.Debug("redis_miss_fallback_to_postgres", "query", "recent_results")
	return r.postgres.RecentResults(ctx, limit)
}

// StartBatchWriter flushes queued rows to PostgreSQL until ctx ends or Close is called.
// Run it in its own goroutine.
func (r *HybridResultRepository) StartBatchWriter(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	defer close(r.doneChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	batch := make([]*shared.MatchResult, 0, r.batchSize)
	r.logger.Info("batch_writer_started",
		"interval", r.interval.String(),
		"batch_size", r.batchSize,
	)

	for {
		select {
		case <-ctx.Done():
			r.drain(batch)
			return
		case <-r.stopChan:
			r.drain(batch)
			return
		case res := <-r.writeChan:
			batch = append(batch, res)
			if len(batch) >= r.batchSize {
				r.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.logger.Info("periodic_batch_flush", "count", len(batch))
				r.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

// drain flushes what is queued at shutdown.
func (r *HybridResultRepository) drain(batch []*shared.MatchResult) {
	for {
		select {
		case res := <-r.writeChan:
			batch = append(batch, res)
			continue
		default:
		}
		break
	}
	r.logger.Info("batch_writer_shutting_down", "remaining", len(batch))
	if len(batch) > 0 {
		r.flushBatch(batch)
	}
}

func (r *HybridResultRepository) flushBatch(batch []*shared.MatchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := r.postgres.BatchInsert(ctx, batch); err != nil {
		r.logger.Error("batch_insert_failed",
			"count", len(batch),
			"error", err,
		)
		return
	}
	r.logger.Info("batch_insert_success",
		"count", len(batch),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Close stops the batch writer after its final flush and closes both stores.
func (r *HybridResultRepository) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stopChan)
	if r.started.Load() {
		<-r.doneChan
	}

	if err := r.redis.Close(); err != nil {
		r.logger.Error("failed_to_close_redis", "error", err)
	}
	if err := r.postgres.Close(); err != nil {
		r.logger.Error("failed_to_close_postgres", "error", err)
	}
	return nil
}
