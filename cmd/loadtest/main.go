// Command loadtest replays Boolean queries against a running searcher
// (-serve mode) and reports throughput, latency percentiles and the cache
// hit rate.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

var defaultQueries = []string{
	"cat",
	"cat AND dog",
	"cat OR fish",
	"NOT dog",
	"dog AND NOT cat",
	"(cat OR dog) AND fish",
	"fish OR mat AND NOT cat",
	"unicorn",
}

type stats struct {
	total     atomic.Int64
	failed    atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func (s *stats) record(d time.Duration, code int, cacheHit bool, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	if code < 200 || code >= 300 {
		s.failed.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[code]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	queriesPath := flag.String("q", "", "queries file, one query per line (default: built-in set)")
	flag.Parse()

	queries := defaultQueries
	if *queriesPath != "" {
		f, err := os.Open(*queriesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening queries: %v\n", err)
			os.Exit(2)
		}
		queries, err = loadQueries(f)
		f.Close()
		if err != nil || len(queries) == 0 {
			fmt.Fprintf(os.Stderr, "no usable queries in %s: %v\n", *queriesPath, err)
			os.Exit(2)
		}
	}

	fmt.Printf("target %s, %d workers, %s, %d distinct queries\n",
		*baseURL, *concurrency, *duration, len(queries))
	s := run(*baseURL, queries, max(*concurrency, 1), *duration)
	if !report(os.Stdout, s, *duration) {
		os.Exit(1)
	}
}

// loadQueries returns the non-blank lines of r.
func loadQueries(r io.Reader) ([]string, error) {
	var queries []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			queries = append(queries, q)
		}
	}
	return queries, sc.Err()
}

func run(baseURL string, queries []string, workers int, d time.Duration) *stats {
	s := &stats{codes: make(map[int]int64)}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        workers * 2,
			MaxIdleConnsPerHost: workers * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ctx.Err() == nil; i++ {
				target := baseURL + "/api/v1/search?limit=10&q=" + url.QueryEscape(queries[i%len(queries)])
				start := time.Now()
				code, hit, err := search(ctx, client, target)
				if ctx.Err() != nil {
					return
				}
				s.record(time.Since(start), code, hit, err)
			}
		}()
	}
	wg.Wait()
	return s
}

func search(ctx context.Context, client *http.Client, target string) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	var body struct {
		CacheHit bool `json:"cache_hit"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, body.CacheHit, nil
}

// report prints the summary and returns false if nothing completed.
func report(w io.Writer, s *stats, d time.Duration) bool {
	total := s.total.Load()
	fmt.Fprintf(w, "requests:   %s (%.1f/s)\n", humanize.Comma(total), float64(total)/d.Seconds())
	fmt.Fprintf(w, "failed:     %s\n", humanize.Comma(s.failed.Load()))
	if total == 0 {
		fmt.Fprintln(w, "no requests completed; is the searcher running with -serve?")
		return false
	}
	fmt.Fprintf(w, "cache hits: %.1f%%\n", float64(s.cacheHits.Load())/float64(total)*100)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.latencies) > 0 {
		slices.Sort(s.latencies)
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "p%-3.0f       %s\n", p, percentile(s.latencies, p))
		}
		fmt.Fprintf(w, "max        %s\n", s.latencies[len(s.latencies)-1])
	}
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "status %d: %s\n", code, humanize.Comma(s.codes[code]))
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
