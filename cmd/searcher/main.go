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
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dictPath := flag.String("d", "", "dictionary file")
	postingsPath := flag.String("p", "", "postings file")
	queriesPath := flag.String("q", "", "queries file, one query per line")
	outputPath := flag.String("o", "", "results file, one line per query")
	serve := flag.Bool("serve", false, "serve queries over HTTP instead of running a batch")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}
	if *dictPath != "" {
		cfg.Index.DictionaryFile = *dictPath
	}
	if *postingsPath != "" {
		cfg.Index.PostingsFile = *postingsPath
	}
	if *queriesPath != "" {
		cfg.Search.QueriesFile = *queriesPath
	}
	if *outputPath != "" {
		cfg.Search.OutputFile = *outputPath
	}
	if err := cfg.ValidateSearching(!*serve); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *serve); err != nil {
		slog.Error("searcher failed", "error", err)
		if errors.Is(err, apperrors.ErrConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// app holds the long-lived pieces shared by batch and server mode.
type app struct {
	exec    *executor.Executor
	service *searcher.Service
	metrics *metrics.Metrics
	cache   *cache.QueryCache
	redis   *pkgredis.Client
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(ctx context.Context, cfg *config.Config, serve bool) error {
	a := &app{}
	defer a.close()
	if err := a.build(ctx, cfg, serve); err != nil {
		return err
	}

	if serve {
		return a.serve(ctx, cfg)
	}
	return a.batch(ctx, cfg)
}

func (a *app) build(ctx context.Context, cfg *config.Config, serve bool) error {
	if serve || cfg.Metrics.Enabled {
		a.metrics = metrics.New(nil)
	}
	if !serve && cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, a.metrics)
		a.closers = append(a.closers, func() { shutdown(context.Background()) })
	}

	var execOpts []executor.Option
	var opts []searcher.Option
	if a.metrics != nil {
		execOpts = append(execOpts, executor.WithMetrics(a.metrics))
		opts = append(opts, searcher.WithMetrics(a.metrics))
	}

	exec, err := executor.Open(cfg.Index.DictionaryFile, cfg.Index.PostingsFile, execOpts...)
	if err != nil {
		return err
	}
	a.exec = exec
	a.closers = append(a.closers, func() { exec.Close() })
	if a.metrics != nil {
		a.metrics.IndexTerms.Set(float64(exec.Terms()))
	}
	slog.Info("index loaded",
		"dictionary", cfg.Index.DictionaryFile,
		"postings", cfg.Index.PostingsFile,
		"terms", exec.Terms(),
		"documents", len(exec.Documents()),
	)

	if cfg.Search.CacheEnabled {
		a.openCache(ctx, cfg)
		if a.cache != nil {
			opts = append(opts, searcher.WithCache(a.cache))
		}
	}
	if cfg.Search.AnalyticsEnabled {
		opts = append(opts, searcher.WithTracker(a.startAnalytics(ctx, cfg)))
	}

	tok := tokenizer.New(tokenizer.Options{})
	a.service = searcher.New(exec, parser.New(tok), opts...)
	return nil
}

func (a *app) openCache(ctx context.Context, cfg *config.Config) {
	client, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
		return
	}
	namespace, err := indexNamespace(cfg.Index.PostingsFile, a.exec.Terms())
	if err != nil {
		client.Close()
		slog.Warn("cannot identify index, query caching disabled", "error", err)
		return
	}
	a.redis = client
	store := cache.WithBreaker(client, resilience.NewBreaker("redis", 5, 30*time.Second))
	a.cache = cache.New(store, cfg.Redis.CacheTTL, namespace, a.metrics)
	a.closers = append(a.closers, func() { client.Close() })
	slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL, "namespace", namespace)
}

// indexNamespace identifies the loaded index so a rebuilt index never
// reads results cached for an older one.
func indexNamespace(postingsPath string, terms int) (string, error) {
	info, err := os.Stat(postingsPath)
	if err != nil {
		return "", apperrors.IO("stat", postingsPath, err)
	}
	return fmt.Sprintf("%d-%d-%x", info.Size(), terms, info.ModTime().UnixNano()), nil
}

// startAnalytics publishes query events to Kafka; cmd/analytics aggregates
// them.
func (a *app) startAnalytics(ctx context.Context, cfg *config.Config) *analytics.Collector {
	producer := kafka.NewProducer(cfg.Kafka)
	collector := analytics.NewCollector(producer, cfg.Kafka.BufferSize, cfg.Kafka.BatchSize, cfg.Kafka.FlushInterval)
	collector.Start(ctx)
	a.closers = append(a.closers, func() {
		collector.Close()
		producer.Close()
	})
	slog.Info("analytics collector started", "topic", cfg.Kafka.QueryTopic)
	return collector
}

func (a *app) batch(ctx context.Context, cfg *config.Config) error {
	in, err := os.Open(cfg.Search.QueriesFile)
	if err != nil {
		return apperrors.IO("opening", cfg.Search.QueriesFile, err)
	}
	defer in.Close()
	out, err := os.Create(cfg.Search.OutputFile)
	if err != nil {
		return apperrors.IO("creating", cfg.Search.OutputFile, err)
	}
	if err := searcher.RunBatch(ctx, a.service, in, out, cfg.Search.Workers); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return apperrors.IO("closing", cfg.Search.OutputFile, err)
	}
	slog.Info("results written", "output", cfg.Search.OutputFile)
	return nil
}

func (a *app) serve(ctx context.Context, cfg *config.Config) error {
	checker := health.NewChecker(5 * time.Second)
	checker.Register("index", true, func(ctx context.Context) (string, error) {
		return fmt.Sprintf("%d terms, %d documents", a.exec.Terms(), len(a.exec.Documents())), nil
	})
	if cfg.Search.CacheEnabled {
		checker.Register("redis", false, func(ctx context.Context) (string, error) {
			if a.redis == nil {
				return "", errors.New("not connected")
			}
			return cfg.Redis.Addr, a.redis.Ping(ctx)
		})
	}

	h := handler.New(a.service, a.cache)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", a.metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(a.metrics)(chain)
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return apperrors.Wrap(apperrors.ErrIO, err, "serving on %s", server.Addr)
	}
	slog.Info("search service stopped")
	return nil
}
