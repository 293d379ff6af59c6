package results

import (
	"context"
	"sort"
	"sync"

	"battleships/internal/shared"
)

// MemoryResultRepo keeps results in process. Used when neither Redis nor PostgreSQL is
// configured, and in tests.
type MemoryResultRepo struct {
	mu      sync.RWMutex
	results []shared.MatchResult
	seen    map[[2]int]bool
	closed  bool
}

func NewMemoryResultRepo() *MemoryResultRepo {
	return &MemoryResultRepo{seen: make(map[[2]int]bool)}
}

// SaveResult ignores a round that was already stored.
func (r *MemoryResultRepo) SaveResult(_ context.Context, result *shared.MatchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRepositoryClosed
	}
	key := [2]int{result.MatchID, result.Round}
	if r.seen[key] {
		return nil
	}
	r.seen[key] = true
	r.results = append(r.results, *result)
	return nil
}

func (r *MemoryResultRepo) Leaderboard(_ context.Context, limit int) ([]LeaderboardEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byPlayer := make(map[int]*LeaderboardEntry)
	entry := func(id int) *LeaderboardEntry {
		e, ok := byPlayer[id]
		if !ok {
			e = &LeaderboardEntry{PlayerID: id}
			byPlayer[id] = e
		}
		return e
	}
	for _, res := range r.results {
		entry(res.WinnerID).Wins++
		entry(res.LoserID).Losses++
	}

	board := make([]LeaderboardEntry, 0, len(byPlayer))
	for _, e := range byPlayer {
		board = append(board, *e)
	}
	sortLeaderboard(board)
	if limit = clampLimit(limit); len(board) > limit {
		board = board[:limit]
	}
	return board, nil
}

// RecentResults returns the latest results first.
func (r *MemoryResultRepo) RecentResults(_ context.Context, limit int) ([]shared.MatchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	limit = clampLimit(limit)
	out := make([]shared.MatchResult, 0, limit)
	for i := len(r.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.results[i])
	}
	return out, nil
}

func (r *MemoryResultRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// most wins first, then fewest losses, then lowest id
func sortLeaderboard(board []LeaderboardEntry) {
	sort.Slice(board, func(i, j int) bool {
		if board[i].Wins != board[j].Wins {
			return board[i].Wins > board[j].Wins
		}
		if board[i].Losses != board[j].Losses {
			return board[i].Losses < board[j].Losses
		}
		return board[i].PlayerID < board[j].PlayerID
	})
}
