package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"battleships/internal/microservices/http-api/dto"
	"battleships/internal/microservices/http-api/handler"
	"battleships/internal/microservices/tcp"
	"battleships/internal/results"
	"battleships/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- MOCKS ---

type MockSnapshots struct {
	mock.Mock
}

func (m *MockSnapshots) Snapshot() *tcp.Snapshot {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*tcp.Snapshot)
}

type MockResults struct {
	mock.Mock
}

func (m *MockResults) Leaderboard(ctx context.Context, limit int) ([]results.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]results.LeaderboardEntry), args.Error(1)
}

func (m *MockResults) RecentResults(ctx context.Context, limit int) ([]shared.MatchResult, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]shared.MatchResult), args.Error(1)
}

type fixedSpectators int

func (f fixedSpectators) ClientCount() int { return int(f) }

// --- SETUP ---

func setupRouter(snaps handler.SnapshotProvider, repo handler.ResultReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	status := handler.NewStatusHandler(snaps, fixedSpectators(3), true)
	r.GET("/check-conn", status.CheckConn)
	api := r.Group("/api/v1")
	status.RegisterRoutes(api)
	handler.NewLeaderboardHandler(repo).RegisterRoutes(api)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleSnapshot() *tcp.Snapshot {
	return &tcp.Snapshot{
		Players: []tcp.PlayerSnapshot{
			{ID: 1001, Connected: true, MatchID: 5000},
			{ID: 1002, Connected: true, MatchID: 5000, Waiting: "opponent_shot"},
			{ID: 1003, Connected: false},
		},
		Matches: []tcp.MatchSnapshot{
			{ID: 5000, Active: true, Stage: "SHOOTING", Players: [2]int{1001, 1002}, PlayerOnTurn: 1001, Round: 1},
			{ID: 5001, Active: false, Stage: "GAME_END", Players: [2]int{1003, 1004}, Round: 2, Winner: 1004},
		},
		Pending:  1,
		OpenConn: 1,
		TakenAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// --- TESTS ---

func TestStatusHandler_CheckConn(t *testing.T) {
	r := setupRouter(new(MockSnapshots), new(MockResults))
	w := get(r, "/check-conn")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
}

func TestStatusHandler_Summary(t *testing.T) {
	snaps := new(MockSnapshots)
	r := setupRouter(snaps, new(MockResults))

	t.Run("Success", func(t *testing.T) {
		snaps.On("Snapshot").Return(sampleSnapshot()).Once()

		w := get(r, "/api/v1/status")
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.StatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.Players)
		assert.Equal(t, 2, resp.Connected)
		assert.Equal(t, 2, resp.Matches)
		assert.Equal(t, 1, resp.ActiveMatches)
		assert.Equal(t, 1, resp.Pending)
		assert.Equal(t, 3, resp.Spectators)
		assert.True(t, resp.RematchEnabled)
	})

	t.Run("NotRunning", func(t *testing.T) {
		snaps.On("Snapshot").Return(nil).Once()
		w := get(r, "/api/v1/status")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	snaps.AssertExpectations(t)
}

func TestStatusHandler_Snapshot(t *testing.T) {
	snaps := new(MockSnapshots)
	snaps.On("Snapshot").Return(sampleSnapshot())
	r := setupRouter(snaps, new(MockResults))

	w := get(r, "/api/v1/status/snapshot")
	require.Equal(t, http.StatusOK, w.Code)

	var snap tcp.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Len(t, snap.Players, 3)
	assert.Equal(t, "opponent_shot", snap.Players[1].Waiting)
}

func TestStatusHandler_Match(t *testing.T) {
	snaps := new(MockSnapshots)
	snaps.On("Snapshot").Return(sampleSnapshot())
	r := setupRouter(snaps, new(MockResults))

	t.Run("Found", func(t *testing.T) {
		w := get(r, "/api/v1/status/matches/5001")
		require.Equal(t, http.StatusOK, w.Code)
		var m tcp.MatchSnapshot
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
		assert.Equal(t, "GAME_END", m.Stage)
		assert.Equal(t, 1004, m.Winner)
	})

	t.Run("NotFound", func(t *testing.T) {
		w := get(r, "/api/v1/status/matches/9999")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("InvalidID", func(t *testing.T) {
		w := get(r, "/api/v1/status/matches/abc")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLeaderboardHandler_Leaderboard(t *testing.T) {
	repo := new(MockResults)
	r := setupRouter(new(MockSnapshots), repo)

	t.Run("Success", func(t *testing.T) {
		repo.On("Leaderboard", mock.Anything, 2).Return([]results.LeaderboardEntry{
			{PlayerID: 1001, Wins: 3, Losses: 1},
			{PlayerID: 1002, Wins: 0, Losses: 0},
		}, nil).Once()

		w := get(r, "/api/v1/leaderboard?limit=2")
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.LeaderboardResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 2)
		assert.Equal(t, 2, resp.Limit)
		assert.Equal(t, 1, resp.Data[0].Rank)
		assert.Equal(t, 1001, resp.Data[0].PlayerID)
		assert.InDelta(t, 0.75, resp.Data[0].WinRate, 1e-9)
		assert.Zero(t, resp.Data[1].WinRate)
	})

	t.Run("DefaultAndCappedLimit", func(t *testing.T) {
		repo.On("Leaderboard", mock.Anything, 10).Return([]results.LeaderboardEntry{}, nil).Once()
		assert.Equal(t, http.StatusOK, get(r, "/api/v1/leaderboard").Code)

		repo.On("Leaderboard", mock.Anything, 100).Return([]results.LeaderboardEntry{}, nil).Once()
		assert.Equal(t, http.StatusOK, get(r, "/api/v1/leaderboard?limit=500").Code)
	})

	t.Run("InvalidLimit", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/leaderboard?limit=-1").Code)
		assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/leaderboard?limit=ten").Code)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		repo.On("Leaderboard", mock.Anything, 10).Return([]results.LeaderboardEntry(nil), errors.New("redis down")).Once()
		w := get(r, "/api/v1/leaderboard")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "redis down")
	})

	repo.AssertExpectations(t)
}

func TestLeaderboardHandler_Recent(t *testing.T) {
	repo := new(MockResults)
	r := setupRouter(new(MockSnapshots), repo)

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.On("RecentResults", mock.Anything, 10).Return([]shared.MatchResult{
		{MatchID: 5000, Round: 1, WinnerID: 1001, LoserID: 1002, StartedAt: started, FinishedAt: started.Add(90 * time.Second)},
	}, nil).Once()

	w := get(r, "/api/v1/results/recent")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.RecentResultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 5000, resp.Data[0].MatchID)
	assert.Equal(t, 90.0, resp.Data[0].DurationSeconds)
	repo.AssertExpectations(t)
}
