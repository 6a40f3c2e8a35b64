package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	corpusDir := flag.String("i", "", "corpus directory of numerically named documents")
	dictPath := flag.String("d", "", "dictionary output file")
	postingsPath := flag.String("p", "", "postings output file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}
	if *corpusDir != "" {
		cfg.Corpus.Source = "dir"
		cfg.Corpus.Dir = *corpusDir
	}
	if *dictPath != "" {
		cfg.Index.DictionaryFile = *dictPath
	}
	if *postingsPath != "" {
		cfg.Index.PostingsFile = *postingsPath
	}
	if err := cfg.ValidateIndexing(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("indexing failed", "error", err)
		if errors.Is(err, apperrors.ErrConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	start := time.Now()
	slog.Info("starting indexer",
		"source", cfg.Corpus.Source,
		"dictionary", cfg.Index.DictionaryFile,
		"postings", cfg.Index.PostingsFile,
	)

	var opts []indexer.Option
	if cfg.Metrics.Enabled {
		m := metrics.New(nil)
		shutdown := metrics.StartServer(cfg.Metrics.Port, m)
		defer shutdown(context.Background())
		opts = append(opts, indexer.WithMetrics(m))
	}

	tok, err := newTokenizer(cfg.Analysis)
	if err != nil {
		return err
	}
	src, err := corpus.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	ix := indexer.New(opts...)
	if err := ix.Build(ctx, src, tok); err != nil {
		return err
	}
	stats, err := ix.Write(cfg.Index.DictionaryFile, cfg.Index.PostingsFile)
	if err != nil {
		return err
	}

	slog.Info("indexer finished",
		"documents", stats.Documents,
		"terms", stats.Terms,
		"postings_size", humanize.Bytes(uint64(stats.PostingsBytes)),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func newTokenizer(cfg config.AnalysisConfig) (*tokenizer.Tokenizer, error) {
	opts := tokenizer.Options{RemoveNumbers: cfg.RemoveNumbers}
	switch {
	case cfg.StopWordsFile != "":
		words, err := tokenizer.LoadStopWords(cfg.StopWordsFile)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfig, err, "loading stop words")
		}
		opts.StopWords = words
	case cfg.RemoveStopWords:
		opts.StopWords = tokenizer.DefaultStopWords()
	}
	return tokenizer.New(opts), nil
}
