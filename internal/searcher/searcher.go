// Package searcher answers Boolean queries against a built index. A Service
// parses a query to postfix, consults the optional result cache, evaluates
// the query and reports what happened to metrics and analytics.
package searcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/metrics"
)

// Evaluator runs a postfix query against an index.
type Evaluator interface {
	Evaluate(ctx context.Context, postfix []parser.Token) (index.PostingList, error)
}

// Tracker receives one event per answered or rejected query.
type Tracker interface {
	Track(event analytics.QueryEvent)
}

// Searcher is what the batch runner and the HTTP handler need.
type Searcher interface {
	Search(ctx context.Context, query string) (*Result, error)
}

type Result struct {
	Query    string            `json:"query"`
	Postfix  string            `json:"postfix"`
	IDs      index.PostingList `json:"ids"`
	Total    int               `json:"total"`
	CacheHit bool              `json:"cache_hit"`
}

type Service struct {
	eval    Evaluator
	parser  *parser.Parser
	cache   *cache.QueryCache
	tracker Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithCache(c *cache.QueryCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithTracker(t Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(eval Evaluator, p *parser.Parser, opts ...Option) *Service {
	s := &Service{
		eval:   eval,
		parser: p,
		logger: slog.Default().With("component", "searcher"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search evaluates query. A malformed query returns an error wrapping
// apperrors.ErrMalformedQuery; a blank query returns an empty result.
func (s *Service) Search(ctx context.Context, query string) (*Result, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	postfix, err := s.parser.Parse(query)
	if err != nil {
		s.observe(ctx, query, "", nil, false, start, err)
		return nil, err
	}
	key := parser.Format(postfix)

	var ids index.PostingList
	hit := false
	if s.cache != nil && len(postfix) > 0 {
		ids, hit, err = s.cache.GetOrCompute(ctx, key, func() (index.PostingList, error) {
			return s.eval.Evaluate(ctx, postfix)
		})
	} else {
		ids, err = s.eval.Evaluate(ctx, postfix)
	}
	s.observe(ctx, query, key, ids, hit, start, err)
	if err != nil {
		return nil, err
	}

	log.Debug("query evaluated",
		"query", query,
		"postfix", key,
		"results", len(ids),
		"cache_hit", hit,
		"latency", time.Since(start),
	)
	return &Result{
		Query:    query,
		Postfix:  key,
		IDs:      ids,
		Total:    len(ids),
		CacheHit: hit,
	}, nil
}

func (s *Service) observe(ctx context.Context, query, postfix string, ids index.PostingList, hit bool, start time.Time, err error) {
	elapsed := time.Since(start)
	malformed := errors.Is(err, apperrors.ErrMalformedQuery)

	if s.metrics != nil {
		outcome := "hit"
		switch {
		case malformed:
			outcome = "malformed"
		case err != nil:
			outcome = "error"
		case len(ids) == 0:
			outcome = "zero_result"
		}
		s.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
		if err == nil {
			status := "disabled"
			if s.cache != nil {
				status = "miss"
				if hit {
					status = "hit"
				}
			}
			s.metrics.SearchLatency.WithLabelValues(status).Observe(elapsed.Seconds())
			s.metrics.SearchResultsCount.Observe(float64(len(ids)))
		}
	}

	if s.tracker == nil || (err != nil && !malformed) {
		return
	}
	event := analytics.QueryEvent{
		Type:      analytics.EventQuery,
		Query:     query,
		Postfix:   postfix,
		Results:   len(ids),
		LatencyUs: elapsed.Microseconds(),
		CacheHit:  hit,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestID(ctx),
	}
	switch {
	case malformed:
		event.Type = analytics.EventMalformed
	case len(ids) == 0:
		event.Type = analytics.EventZeroResult
	}
	s.tracker.Track(event)
}
