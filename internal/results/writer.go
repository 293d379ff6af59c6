package results

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"battleships/internal/shared"
)

// ResultWriter decouples the game loop from the repository: Record only enqueues, Run
// saves in the background.
type ResultWriter struct {
	repo      ResultRepository
	queue     chan shared.MatchResult
	interval  time.Duration
	batchSize int
	timeout   time.Duration // per save
	logger    *slog.Logger
	dropped   atomic.Int64
	saved     atomic.Int64
}

func NewResultWriter(repo ResultRepository, queueSize int, interval time.Duration) *ResultWriter {
	if queueSize <= 0 {
		queueSize = 256
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ResultWriter{
		repo:      repo,
		queue:     make(chan shared.MatchResult, queueSize),
		interval:  interval,
		batchSize: 32,
		timeout:   3 * time.Second,
		logger:    slog.Default(),
	}
}

// Record queues result without blocking; a full queue drops it.
func (w *ResultWriter) Record(result shared.MatchResult) {
	select {
	case w.queue <- result:
	default:
		w.dropped.Add(1)
		w.logger.Warn("result_dropped_queue_full",
			"match_id", result.MatchID,
			"round", result.Round,
		)
	}
}

// Run saves queued results until ctx ends, then flushes what is left.
func (w *ResultWriter) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	batch := make([]shared.MatchResult, 0, w.batchSize)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case res := <-w.queue:
					batch = append(batch, res)
					continue
				default:
				}
				break
			}
			w.flush(batch)
			w.logger.Info("result_writer_stopped",
				"saved", w.saved.Load(),
				"dropped", w.dropped.Load(),
			)
			return
		case res := <-w.queue:
			batch = append(batch, res)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (w *ResultWriter) flush(batch []shared.MatchResult) {
	for i := range batch {
		// repositories may keep the pointer past the call; the batch array is reused
		res := batch[i]
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := w.repo.SaveResult(ctx, &res)
		cancel()
		if err != nil {
			w.logger.Error("result_save_failed",
				"match_id", batch[i].MatchID,
				"round", batch[i].Round,
				"error", err,
			)
			continue
		}
		w.saved.Add(1)
	}
}

// Saved is the number of results the repository accepted.
func (w *ResultWriter) Saved() int64 { return w.saved.Load() }

// Dropped is the number of results lost to a full queue.
func (w *ResultWriter) Dropped() int64 { return w.dropped.Load() }
