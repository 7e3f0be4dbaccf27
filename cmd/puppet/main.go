package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/actionrelay/internal/adapter/metrics"
	"github.com/pscheid92/actionrelay/internal/app"
	"github.com/pscheid92/actionrelay/internal/dispatch"
	"github.com/pscheid92/actionrelay/internal/domain"
	"github.com/pscheid92/actionrelay/internal/platform/config"
	"github.com/pscheid92/actionrelay/internal/platform/logging"
	"github.com/pscheid92/actionrelay/internal/queue"
	"github.com/pscheid92/actionrelay/internal/target"
	"github.com/pscheid92/actionrelay/internal/transport"
)

const maxTriggerLine = 1 << 20

func setupConfig() *config.Client {
	cfg, err := config.LoadClient()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// readTriggers feeds newline-delimited action JSON from r into the controller,
// the same path relay frames take.
func readTriggers(ctx context.Context, r io.Reader, controller *app.Controller) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxTriggerLine)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := controller.SubmitRaw(line); err != nil {
			slog.Warn("Ignoring local trigger", "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("Local trigger input closed", "error", err)
	}
}

func startMetricsServer(addr string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("Metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server error", "error", err)
		}
	}()
	return srv
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	url, err := cfg.URL()
	if err != nil {
		slog.Error("Invalid relay address", "error", err)
		os.Exit(1)
	}
	slog.Info("Puppet starting", "url", url, "name", cfg.Name)

	reg := metrics.NewRegistry()
	queueMetrics := metrics.NewQueueMetrics(reg)

	model := target.NewHeadless(clock, target.Options{
		Expressions:    cfg.Expressions,
		SpeechDuration: cfg.SpeechDuration,
	})

	dispatcher := dispatch.New(clock)
	dispatcher.Attach(model)

	q := queue.New(dispatcher, queue.WithObserver(queueMetrics), queue.WithClock(clock))
	controller := app.NewController(q, dispatcher)

	client := transport.New(url, controller,
		transport.WithName(cfg.Name),
		transport.WithReconnectInterval(cfg.ReconnectInterval),
		transport.WithStateFunc(func(s domain.ConnState) {
			slog.Info("Relay connection state changed", "state", s.String())
		}),
		transport.WithSignalFunc(func(env domain.Envelope) {
			slog.Info("Listen toggle requested", "from", env.From)
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = startMetricsServer(cfg.MetricsAddr, metrics.Handler(reg))
	}

	go readTriggers(ctx, os.Stdin, controller)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := client.Run(ctx); err != nil {
			slog.Error("Relay client stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutdown signal received, cleaning up...")
	wg.Wait()

	q.Close()
	model.Close()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}
}
