package searcher

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/redis"
)

var corpus = []string{
	"The cat sat on the mat.",
	"Dogs chase cats.",
	"A dog and a fish.",
	"Fish swim.",
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	tok := tokenizer.New(tokenizer.Options{})
	ix := indexer.New()
	for i, text := range corpus {
		if err := ix.Add(indexer.Document{ID: i + 1, Terms: tok.Terms(text)}); err != nil {
			t.Fatal(err)
		}
	}
	dir := t.TempDir()
	dictPath := filepath.Join(dir, "dictionary.json")
	postingsPath := filepath.Join(dir, "postings.txt")
	if _, err := ix.Write(dictPath, postingsPath); err != nil {
		t.Fatal(err)
	}
	exec, err := executor.Open(dictPath, postingsPath)
	if err != nil {
		t.Fatalf("executor.Open() error: %v", err)
	}
	t.Cleanup(func() { exec.Close() })
	return New(exec, parser.New(tok), opts...)
}

type recorder struct {
	mu     sync.Mutex
	events []analytics.QueryEvent
}

func (r *recorder) Track(e analytics.QueryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return "", pkgredis.ErrNil
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = string(value.([]byte))
	return nil
}

func (s *memStore) FlushByPattern(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	s.data = map[string]string{}
	return n, nil
}

func TestSearch(t *testing.T) {
	s := newService(t)
	tests := []struct {
		query   string
		want    index.PostingList
		postfix string
	}{
		{"cat", index.PostingList{1, 2}, "cat"},
		{"Cats AND Dogs", index.PostingList{2}, "cat dog AND"},
		{"fish OR mat", index.PostingList{1, 3, 4}, "fish mat OR"},
		{"NOT fish", index.PostingList{1, 2}, "fish NOT"},
		{"dog AND NOT cat", index.PostingList{3}, "dog cat AND_NOT"},
		{"(cat OR fish) AND dog", index.PostingList{2, 3}, "cat fish OR dog AND"},
		{"unicorn", index.PostingList{}, "unicorn"},
		{"", index.PostingList{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, err := s.Search(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Search(%q) error: %v", tt.query, err)
			}
			if diff := cmp.Diff(tt.want, res.IDs); diff != "" {
				t.Errorf("Search(%q) ids mismatch (-want +got):\n%s", tt.query, diff)
			}
			if res.Postfix != tt.postfix {
				t.Errorf("Postfix = %q, want %q", res.Postfix, tt.postfix)
			}
			if res.Total != len(tt.want) {
				t.Errorf("Total = %d, want %d", res.Total, len(tt.want))
			}
		})
	}
}

func TestSearchMalformed(t *testing.T) {
	s := newService(t)
	for _, q := range []string{"cat AND", "cat dog", "(cat", "cat )"} {
		if _, err := s.Search(context.Background(), q); !errors.Is(err, apperrors.ErrMalformedQuery) {
			t.Errorf("Search(%q) error = %v, want ErrMalformedQuery", q, err)
		}
	}
}

func TestSearchUsesCache(t *testing.T) {
	store := &memStore{data: map[string]string{}}
	qc := cache.New(store, time.Minute, "test", nil)
	s := newService(t, WithCache(qc))

	first, err := s.Search(context.Background(), "cat AND dog")
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Errorf("first search CacheHit = true")
	}
	second, err := s.Search(context.Background(), "CATS   AND dogs")
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit {
		t.Errorf("equivalent query CacheHit = false, want true")
	}
	if diff := cmp.Diff(first.IDs, second.IDs); diff != "" {
		t.Errorf("cached ids mismatch (-first +second):\n%s", diff)
	}
	if hits, misses := qc.Stats(); hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses, want 1, 1", hits, misses)
	}
}

func TestSearchTracksEvents(t *testing.T) {
	rec := &recorder{}
	s := newService(t, WithTracker(rec))
	ctx := logger.WithRequestID(context.Background(), "req-1")

	s.Search(ctx, "cat")
	s.Search(ctx, "unicorn")
	s.Search(ctx, "cat OR")

	got := make([]analytics.EventType, 0, len(rec.events))
	for _, e := range rec.events {
		got = append(got, e.Type)
		if e.RequestID != "req-1" {
			t.Errorf("event %q RequestID = %q, want req-1", e.Query, e.RequestID)
		}
	}
	want := []analytics.EventType{analytics.EventQuery, analytics.EventZeroResult, analytics.EventMalformed}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("event types mismatch (-want +got):\n%s", diff)
	}
	if rec.events[0].Results != 2 || rec.events[0].Postfix != "cat" {
		t.Errorf("first event = %+v", rec.events[0])
	}
}

func TestSearchRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := newService(t, WithMetrics(m))
	s.Search(context.Background(), "cat")
	s.Search(context.Background(), "unicorn")
	s.Search(context.Background(), "AND cat")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`boolean_queries_total{outcome="hit"} 1`,
		`boolean_queries_total{outcome="zero_result"} 1`,
		`boolean_queries_total{outcome="malformed"} 1`,
		`boolean_query_latency_seconds_count{cache_status="disabled"} 2`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

type stubSearcher struct {
	results map[string]index.PostingList
	fail    string
}

func (s stubSearcher) Search(_ context.Context, q string) (*Result, error) {
	if q == s.fail {
		return nil, apperrors.IO("reading", "postings", errors.New("disk gone"))
	}
	ids, ok := s.results[q]
	if !ok {
		return nil, apperrors.New(apperrors.ErrMalformedQuery, 0, "bad query")
	}
	return &Result{Query: q, IDs: ids, Total: len(ids)}, nil
}

func TestRunBatch(t *testing.T) {
	s := newService(t)
	in := strings.NewReader("cat\r\n\ndog AND NOT cat\ncat AND\n   \nunicorn\nfish OR mat\n")
	var out strings.Builder
	if err := RunBatch(context.Background(), s, in, &out, 3); err != nil {
		t.Fatalf("RunBatch() error: %v", err)
	}
	want := "1 2\n\n3\n\n\n\n1 3 4\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunBatchKeepsOrder(t *testing.T) {
	results := map[string]index.PostingList{}
	var input, want strings.Builder
	for i := range 200 {
		q := "q" + strings.Repeat("x", i)
		results[q] = index.PostingList{i, i + 1}
		input.WriteString(q + "\n")
		want.WriteString(results[q].String() + "\n")
	}
	var out strings.Builder
	if err := RunBatch(context.Background(), stubSearcher{results: results}, strings.NewReader(input.String()), &out, 8); err != nil {
		t.Fatal(err)
	}
	if out.String() != want.String() {
		t.Errorf("batch output out of order")
	}
}

func TestRunBatchStopsOnFailure(t *testing.T) {
	s := stubSearcher{results: map[string]index.PostingList{"a": {1}}, fail: "b"}
	var out strings.Builder
	err := RunBatch(context.Background(), s, strings.NewReader("a\nb\na\n"), &out, 1)
	if !errors.Is(err, apperrors.ErrIO) {
		t.Fatalf("RunBatch() error = %v, want ErrIO", err)
	}
	if out.Len() != 0 {
		t.Errorf("partial output written: %q", out.String())
	}
}

func TestRunBatchEmptyInput(t *testing.T) {
	var out strings.Builder
	if err := RunBatch(context.Background(), stubSearcher{}, strings.NewReader(""), &out, 2); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty", out.String())
	}
}
