package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"battleships/internal/microservices/http-api/dto"
	"battleships/internal/results"
	"battleships/internal/shared"

	"github.com/gin-gonic/gin"
)

// ResultReader is the read side of results.ResultRepository.
type ResultReader interface {
	Leaderboard(ctx context.Context, limit int) ([]results.LeaderboardEntry, error)
	RecentResults(ctx context.Context, limit int) ([]shared.MatchResult, error)
}

type LeaderboardHandler struct {
	repo ResultReader
}

func NewLeaderboardHandler(repo ResultReader) *LeaderboardHandler {
	return &LeaderboardHandler{repo: repo}
}

// RegisterRoutes registers match history routes
func (h *LeaderboardHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/leaderboard", h.Leaderboard)
	router.GET("/results/recent", h.Recent)
}

// parseLimit reads ?limit, defaulting to 10 and capped at 100
func parseLimit(c *gin.Context) (int, bool) {
	limit := 10
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return 0, false
		}
		limit = min(parsed, 100)
	}
	return limit, true
}

// Leaderboard returns the players with the most wins
// GET /api/v1/leaderboard?limit=N
func (h *LeaderboardHandler) Leaderboard(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	entries, err := h.repo.Leaderboard(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.NewLeaderboardResponse(entries, limit))
}

// Recent returns the latest finished rounds, newest first
// GET /api/v1/results/recent?limit=N
func (h *LeaderboardHandler) Recent(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	list, err := h.repo.RecentResults(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.NewRecentResultsResponse(list, limit))
}
