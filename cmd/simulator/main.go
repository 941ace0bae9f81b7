// Command simulator hosts a runner pool (or several) backed by the
// in-process kernel, an optional Redis-backed trace sink, and the admin
// HTTP/WebSocket surface for observing and controlling them.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nilrun/statekit/internal/admin"
	"github.com/nilrun/statekit/internal/config"
	"github.com/nilrun/statekit/internal/logger"
	"github.com/nilrun/statekit/internal/runner"
	"github.com/nilrun/statekit/internal/trace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, os.Getenv("ENV") != "production")
	log := logger.Get()
	log.Info().Msg("starting simulator...")

	var sink *trace.Sink
	if cfg.Redis.Addr != "" {
		sink, err = trace.NewSink(&cfg.Redis, &cfg.Kernel)
		if err != nil {
			log.Warn().Err(err).Msg("trace sink unavailable, running without kernel tracing")
			sink = nil
		} else {
			defer sink.Close()
		}
	}

	handlers := map[string]runner.Handler{
		"echo":    echoHandler,
		"sleep":   sleepHandler,
		"compute": computeHandler,
		"fail":    failHandler,
	}

	pool := runner.New(&cfg.Runner, &cfg.Kernel, handlers, sink, cfg.Kernel.DefaultPriority)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start runner pool")
	}

	server := admin.NewServer(cfg, sink)
	server.RegisterPool(pool)
	server.Start(ctx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.AdminPort),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("admin surface listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("admin server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down simulator...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Runner.ShutdownTimeout)
	defer shutdownCancel()

	if err := pool.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("runner pool shutdown error")
	}
	server.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server shutdown error")
	}

	log.Info().Msg("simulator stopped")
}

func echoHandler(ctx context.Context, j *runner.Job) (interface{}, error) {
	logger.Info().Str("job_id", j.ID).Interface("payload", j.Payload).Msg("echo handler processing job")
	return map[string]interface{}{"echoed": j.Payload}, nil
}

func sleepHandler(ctx context.Context, j *runner.Job) (interface{}, error) {
	duration := 1 * time.Second
	if payload, ok := j.Payload.(map[string]interface{}); ok {
		if d, ok := payload["duration_ms"].(float64); ok {
			duration = time.Duration(d) * time.Millisecond
		}
	}

	logger.Info().Str("job_id", j.ID).Dur("duration", duration).Msg("sleep handler processing job")

	select {
	case <-time.After(duration):
		return map[string]interface{}{"slept_for": duration.String()}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func computeHandler(ctx context.Context, j *runner.Job) (interface{}, error) {
	iterations := 1000000
	if payload, ok := j.Payload.(map[string]interface{}); ok {
		if n, ok := payload["iterations"].(float64); ok {
			iterations = int(n)
		}
	}

	sum := 0
	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			sum += i
		}
	}

	return map[string]interface{}{"result": sum}, nil
}

func failHandler(ctx context.Context, j *runner.Job) (interface{}, error) {
	if rand.Intn(2) == 0 {
		return nil, fmt.Errorf("intentional failure for testing")
	}
	return map[string]interface{}{"result": "succeeded this time"}, nil
}
