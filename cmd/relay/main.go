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

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/actionrelay/internal/adapter/httpserver"
	"github.com/pscheid92/actionrelay/internal/adapter/metrics"
	"github.com/pscheid92/actionrelay/internal/adapter/redis"
	"github.com/pscheid92/actionrelay/internal/platform/config"
	"github.com/pscheid92/actionrelay/internal/platform/logging"
	"github.com/pscheid92/actionrelay/internal/relay"
	goredis "github.com/redis/go-redis/v9"
)

func setupConfig() *config.Relay {
	cfg, err := config.LoadRelay()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Relay) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(cfg *config.Relay, srv *httpserver.Server, hub *relay.Hub, cancelFanout context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		cancelFanout()
		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Relay starting", "env", cfg.AppEnv, "port", cfg.Port)

	reg := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(reg)

	hub := relay.NewHub(clock, relayMetrics)
	opts := []relay.ServerOption{relay.WithMetrics(relayMetrics)}

	var checks []httpserver.HealthCheck
	fanoutCtx, cancelFanout := context.WithCancel(context.Background())
	defer cancelFanout()

	var fanout *redis.Fanout
	if cfg.RedisURL != "" {
		redisClient := setupRedis(context.Background(), cfg)
		defer func() { _ = redisClient.Close() }()

		fanout = redis.NewFanout(redisClient, cfg.RedisChannel)
		opts = append(opts, relay.WithFanout(fanout))
		checks = append(checks, httpserver.HealthCheck{Name: "redis", Check: redis.Ping(redisClient)})
		slog.Info("Broadcast fan-out enabled", "channel", cfg.RedisChannel)
	}

	relaySrv := relay.NewServer(hub, opts...)

	if fanout != nil {
		go func() {
			if err := fanout.Listen(fanoutCtx, relaySrv.Deliver); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Fan-out listener stopped", "error", err)
			}
		}()
	}

	srv := httpserver.NewServer(cfg, relaySrv, checks, httpserver.WithMetrics(reg))

	done := runGracefulShutdown(cfg, srv, hub, cancelFanout)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
