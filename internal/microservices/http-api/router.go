package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"battleships/internal/microservices/http-api/handler"
	"battleships/internal/microservices/http-api/middleware"
	"battleships/internal/microservices/websocket"

	"github.com/gin-gonic/gin"
)

// Deps are the read-only views the status API serves.
type Deps struct {
	Snapshots      handler.SnapshotProvider
	Results        handler.ResultReader // nil disables the history routes
	Hub            *websocket.Hub       // nil disables /ws
	RematchEnabled bool
	Logger         *slog.Logger
}

// NewRouter wires the status API routes.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	var spectators handler.SpectatorCounter
	if d.Hub != nil {
		spectators = d.Hub
	}
	status := handler.NewStatusHandler(d.Snapshots, spectators, d.RematchEnabled)
	r.GET("/check-conn", status.CheckConn)

	api := r.Group("/api/v1")
	status.RegisterRoutes(api)
	if d.Results != nil {
		handler.NewLeaderboardHandler(d.Results).RegisterRoutes(api)
	}
	if d.Hub != nil {
		r.GET("/ws", websocket.WSHandler(d.Hub))
	}
	return r
}

// NewHTTPServer wraps the router with the server timeouts.
func NewHTTPServer(addr string, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
