package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"battleships/database"
	"battleships/internal/config"
	"battleships/internal/game"
	httpapi "battleships/internal/microservices/http-api"
	"battleships/internal/microservices/tcp"
	udp "battleships/internal/microservices/udp-server"
	"battleships/internal/microservices/websocket"
	"battleships/internal/results"
)

func main() {
	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	rules := game.DefaultRules()
	if cfg.FleetFile != "" {
		ff, err := game.LoadFleetFile(cfg.FleetFile)
		if err != nil {
			logger.Error("fleet_file_invalid", "path", cfg.FleetFile, "error", err)
			os.Exit(1)
		}
		rules = *ff.Rules
		logger.Info("fleet_file_loaded", "path", cfg.FleetFile, "ships", rules.ShipCount(), "layouts", len(ff.Layouts))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openResults(cfg, logger)
	if err != nil {
		logger.Error("results_store_unavailable", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	// the writer outlives the signal so results of the final requests are kept
	writerCtx, stopWriter := context.WithCancel(context.Background())
	defer stopWriter()
	writer := results.NewResultWriter(repo, 256, 5*time.Second)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writer.Run(writerCtx)
	}()

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)
	publishers := []tcp.EventPublisher{hub}

	udpDone := make(chan struct{})
	if addr := cfg.UDPAddr(); addr != "" {
		notifier, err := udp.NewServer(addr, cfg.UDPSubscriberTimeout, logger)
		if err != nil {
			logger.Error("udp_server_unavailable", "addr", addr, "error", err)
			os.Exit(1)
		}
		publishers = append(publishers, notifier)
		go func() {
			defer close(udpDone)
			notifier.Run(ctx)
		}()
	} else {
		close(udpDone)
	}

	serverCfg := tcp.DefaultConfig()
	serverCfg.LivenessTimeout = cfg.LivenessTimeout
	serverCfg.BlockingTimeout = cfg.BlockingTimeout
	serverCfg.AcceptTimeout = cfg.AcceptTimeout
	serverCfg.QueueSize = cfg.RequestQueueSize
	serverCfg.RateLimit = cfg.RateLimit
	serverCfg.RateBurst = cfg.RateBurst
	serverCfg.RematchEnabled = cfg.RematchEnabled
	serverCfg.Rules = rules

	server := tcp.NewServer(cfg.TCPAddr(), serverCfg,
		tcp.WithLogger(logger),
		tcp.WithEventPublisher(publishers...),
		tcp.WithResultRecorder(writer),
	)

	logger.Info("starting_tcp_server",
		"tcp_addr", cfg.TCPAddr(),
		"http_addr", cfg.HTTPAddr(),
		"udp_addr", cfg.UDPAddr(),
		"env", cfg.GoEnv,
	)

	errChan := make(chan error, 2)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	var httpServer *http.Server
	if addr := cfg.HTTPAddr(); addr != "" {
		router := httpapi.NewRouter(httpapi.Deps{
			Snapshots:      server,
			Results:        repo,
			Hub:            hub,
			RematchEnabled: cfg.RematchEnabled,
			Logger:         logger,
		})
		httpServer = httpapi.NewHTTPServer(addr, router)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	// Wait for shutdown signal or error
	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		logger.Error("server_error", "error", err.Error())
		exitCode = 1
	}

	server.Stop()
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http_shutdown_failed", "error", err)
		}
		cancel()
	}
	stop()
	stopWriter()
	<-writerDone
	<-hub.Done()
	<-udpDone
	logger.Info("server_stopped_gracefully", "results_saved", writer.Saved(), "results_dropped", writer.Dropped())
	if exitCode != 0 {
		repo.Close()
		os.Exit(exitCode)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// openResults picks the match history store: Redis and PostgreSQL together use the hybrid
// repository, either alone is used directly, neither keeps history in memory.
func openResults(cfg *config.Config, logger *slog.Logger) (results.ResultRepository, error) {
	var (
		redisRepo *results.RedisResultRepo
		pgRepo    *results.PostgresResultRepo
	)
	if cfg.RedisURL != "" {
		r, err := results.NewRedisResultRepo(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		redisRepo = r
	}
	if cfg.DatabaseURL != "" {
		db, err := database.ConnectDB(cfg.DatabaseURL, logger, &results.MatchResultRecord{})
		if err != nil {
			if redisRepo != nil {
				redisRepo.Close()
			}
			return nil, err
		}
		pgRepo = results.NewPostgresResultRepo(db)
	}

	switch {
	case redisRepo != nil && pgRepo != nil:
		hybrid := results.NewHybridResultRepository(redisRepo, pgRepo, time.Minute)
		go hybrid.StartBatchWriter(context.Background()) // stopped by Close
		logger.Info("results_store", "kind", "hybrid")
		return hybrid, nil
	case redisRepo != nil:
		logger.Info("results_store", "kind", "redis")
		return redisRepo, nil
	case pgRepo != nil:
		logger.Info("results_store", "kind", "postgres")
		return pgRepo, nil
	default:
		logger.Info("results_store", "kind", "memory")
		return results.NewMemoryResultRepo(), nil
	}
}
