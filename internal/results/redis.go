package results

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"battleships/internal/shared"

	"github.com/redis/go-redis/v9"
)

const (
	winsKey      = "leaderboard:wins"
	lossesKey    = "leaderboard:losses"
	recentKey    = "results:recent"
	recentLength = 100
	resultTTL    = 30 * 24 * time.Hour
)

// RedisResultRepo keeps the live leaderboard in two sorted sets and every round in a
// hash that expires after 30 days.
type RedisResultRepo struct {
	client *redis.Client
}

// NewRedisResultRepo accepts a redis:// URL or a bare host:port.
func NewRedisResultRepo(redisURL, password string) (*RedisResultRepo, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		opts = &redis.Options{Addr: strings.TrimPrefix(redisURL, "redis://")}
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	rdb := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisResultRepo{client: rdb}, nil
}

func NewRedisResultRepoFromClient(client *redis.Client) *RedisResultRepo {
	return &RedisResultRepo{client: client}
}

func resultKey(matchID, round int) string {
	return fmt.Sprintf("result:%d:%d", matchID, round)
}

// SaveResult stores the round once; replays of the same round do not count twice.
func (r *RedisResultRepo) SaveResult(ctx context.Context, result *shared.MatchResult) error {
	if r == nil || r.client == nil {
		// No-op for testing/mock mode
		return nil
	}
	key := resultKey(result.MatchID, result.Round)

	fresh, err := r.client.HSetNX(ctx, key, "match_id", result.MatchID).Result()
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	if !fresh {
		return nil
	}

	fields := map[string]any{
		"round":        result.Round,
		"winner_id":    result.WinnerID,
		"loser_id":     result.LoserID,
		"winner_shots": result.WinnerShots,
		"loser_shots":  result.LoserShots,
		"started_at":   result.StartedAt.Format(time.RFC3339Nano),
		"finished_at":  result.FinishedAt.Format(time.RFC3339Nano),
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, resultTTL)
	pipe.ZIncrBy(ctx, winsKey, 1, strconv.Itoa(result.WinnerID))
	pipe.ZIncrBy(ctx, lossesKey, 1, strconv.Itoa(result.LoserID))
	pipe.LPush(ctx, recentKey, key)
	pipe.LTrim(ctx, recentKey, 0, recentLength-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// Leaderboard ranks players with at least one win.
func (r *RedisResultRepo) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if r == nil || r.client == nil {
		return []LeaderboardEntry{}, nil
	}
	limit = clampLimit(limit)
	top, err := r.client.ZRevRangeWithScores(ctx, winsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	board := make([]LeaderboardEntry, 0, len(top))
	for _, z := range top {
		member := fmt.Sprint(z.Member)
		id, err := strconv.Atoi(member)
		if err != nil {
			continue
		}
		losses, err := r.client.ZScore(ctx, lossesKey, member).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to read losses of %d: %w", id, err)
		}
		board = append(board, LeaderboardEntry{
			PlayerID: id,
			Wins:     int64(z.Score),
			Losses:   int64(losses),
		})
	}
	sortLeaderboard(board)
	return board, nil
}

// RecentResults skips rounds whose hash already expired.
func (r *RedisResultRepo) RecentResults(ctx context.Context, limit int) ([]shared.MatchResult, error) {
	if r == nil || r.client == nil {
		return []shared.MatchResult{}, nil
	}
	keys, err := r.client.LRange(ctx, recentKey, 0, int64(clampLimit(limit)-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent results: %w", err)
	}
	out := make([]shared.MatchResult, 0, len(keys))
	for _, key := range keys {
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if len(fields) == 0 {
			continue
		}
		res, err := resultFromHash(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", key, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func resultFromHash(fields map[string]string) (shared.MatchResult, error) {
	var res shared.MatchResult
	ints := []struct {
		name   string
		target *int
	}{
		{"match_id", &res.MatchID},
		{"round", &res.Round},
		{"winner_id", &res.WinnerID},
		{"loser_id", &res.LoserID},
		{"winner_shots", &res.WinnerShots},
		{"loser_shots", &res.LoserShots},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(fields[f.name])
		if err != nil {
			return res, fmt.Errorf("field %s: %w", f.name, err)
		}
		*f.target = v
	}
	var err error
	if res.StartedAt, err = time.Parse(time.RFC3339Nano, fields["started_at"]); err != nil {
		return res, fmt.Errorf("field started_at: %w", err)
	}
	if res.FinishedAt, err = time.Parse(time.RFC3339Nano, fields["finished_at"]); err != nil {
		return res, fmt.Errorf("field finished_at: %w", err)
	}
	return res, nil
}

func (r *RedisResultRepo) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
