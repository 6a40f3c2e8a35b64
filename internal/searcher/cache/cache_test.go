package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/index"
	pkgredis "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/resilience"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
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

func (s *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key := range s.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(s.data, key)
			n++
		}
	}
	return n, nil
}

func TestGetOrComputeCachesResult(t *testing.T) {
	c := New(newMemStore(), time.Minute, "idx1", nil)
	ctx := context.Background()
	calls := 0
	compute := func() (index.PostingList, error) {
		calls++
		return index.PostingList{1, 3}, nil
	}

	first, hit, err := c.GetOrCompute(ctx, "cat dog AND", compute)
	if err != nil || hit {
		t.Fatalf("first GetOrCompute() = hit %v, err %v; want miss", hit, err)
	}
	second, hit, err := c.GetOrCompute(ctx, "cat dog AND", compute)
	if err != nil || !hit {
		t.Fatalf("second GetOrCompute() = hit %v, err %v; want hit", hit, err)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached result differs (-computed +cached):\n%s", diff)
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses; want 1, 1", hits, misses)
	}
}

func TestComputeErrorIsNotCached(t *testing.T) {
	c := New(newMemStore(), time.Minute, "idx1", nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "cat", func() (index.PostingList, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("GetOrCompute() error = %v, want boom", err)
	}
	if _, ok := c.Get(context.Background(), "cat"); ok {
		t.Errorf("failed computation was cached")
	}
}

func TestStoreFailureIsAMiss(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c := New(store, time.Minute, "idx1", nil)
	ids, hit, err := c.GetOrCompute(context.Background(), "cat", func() (index.PostingList, error) {
		return index.PostingList{7}, nil
	})
	if err != nil || hit {
		t.Fatalf("GetOrCompute() = hit %v, err %v; want computed result", hit, err)
	}
	if diff := cmp.Diff(index.PostingList{7}, ids); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	c := New(newMemStore(), time.Minute, "idx1", nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (index.PostingList, error) {
		calls.Add(1)
		<-release
		return index.PostingList{1}, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrCompute(context.Background(), "fish", compute)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := calls.Load(); n < 1 || n > 8 {
		t.Fatalf("compute called %d times", n)
	}
	if _, ok := c.Get(context.Background(), "fish"); !ok {
		t.Errorf("result not cached after concurrent computation")
	}
}

func TestInvalidateOnlyTouchesNamespace(t *testing.T) {
	store := newMemStore()
	a := New(store, time.Minute, "idx1", nil)
	b := New(store, time.Minute, "idx2", nil)
	ctx := context.Background()
	a.Set(ctx, "cat", index.PostingList{1})
	b.Set(ctx, "cat", index.PostingList{2})

	deleted, err := a.Invalidate(ctx)
	if err != nil || deleted != 1 {
		t.Fatalf("Invalidate() = %d, %v; want 1, nil", deleted, err)
	}
	if _, ok := a.Get(ctx, "cat"); ok {
		t.Errorf("idx1 entry survived invalidation")
	}
	if ids, ok := b.Get(ctx, "cat"); !ok || ids[0] != 2 {
		t.Errorf("idx2 entry = %v, %v; want [2], true", ids, ok)
	}
}

type countingStore struct {
	*memStore
	gets atomic.Int32
}

func (s *countingStore) Get(ctx context.Context, key string) (string, error) {
	s.gets.Add(1)
	return s.memStore.Get(ctx, key)
}

func TestBreakerIgnoresMisses(t *testing.T) {
	b := resilience.NewBreaker("redis", 2, time.Minute)
	c := New(WithBreaker(newMemStore(), b), time.Minute, "idx1", nil)
	for range 5 {
		c.Get(context.Background(), "absent")
	}
	if b.State() != resilience.StateClosed {
		t.Errorf("breaker state after misses = %s, want closed", b.State())
	}
}

func TestBreakerStopsCallingFailingStore(t *testing.T) {
	store := &countingStore{memStore: newMemStore()}
	store.err = errors.New("connection refused")
	b := resilience.NewBreaker("redis", 2, time.Minute)
	c := New(WithBreaker(store, b), time.Minute, "idx1", nil)

	for range 5 {
		if _, ok := c.Get(context.Background(), "cat"); ok {
			t.Fatal("Get() hit on a failing store")
		}
	}
	if n := store.gets.Load(); n != 2 {
		t.Errorf("store called %d times, want 2 before the breaker opened", n)
	}
	if _, misses := c.Stats(); misses != 5 {
		t.Errorf("misses = %d, want 5", misses)
	}
}
