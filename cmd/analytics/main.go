// Command analytics aggregates the query events searchers publish to Kafka
// and serves the running totals at GET /api/v1/analytics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	port := flag.Int("port", 0, "HTTP port (default: server.port from config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port, "topic", cfg.Kafka.QueryTopic)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, aggregator.HandleMessage)
	var consumerFailed atomic.Bool
	go func() {
		if err := consumer.Start(ctx); err != nil {
			consumerFailed.Store(true)
			slog.Error("analytics consumer error", "error", err)
		}
	}()

	checker := health.NewChecker(time.Second)
	checker.Register("kafka", true, func(ctx context.Context) (string, error) {
		if consumerFailed.Load() {
			return "", errors.New("consumer stopped")
		}
		return "consuming " + cfg.Kafka.QueryTopic, nil
	})

	m := metrics.New(nil)
	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/analytics", aggregator)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", m.Handler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
