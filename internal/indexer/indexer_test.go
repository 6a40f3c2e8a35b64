package indexer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/metrics"
)

func addAll(t *testing.T, ix *Indexer, docs [][]string) {
	t.Helper()
	for i, terms := range docs {
		if err := ix.Add(Document{ID: i + 1, Terms: slices.Values(terms)}); err != nil {
			t.Fatalf("Add(%d) error: %v", i+1, err)
		}
	}
}

func TestAddBuildsSortedPostingsAndFrequencies(t *testing.T) {
	ix := New()
	addAll(t, ix, [][]string{
		{"cat", "dog"},
		{"cat"},
		{"dog", "fish"},
	})

	tests := []struct {
		term     string
		postings index.PostingList
	}{
		{"cat", index.PostingList{1, 2}},
		{"dog", index.PostingList{1, 3}},
		{"fish", index.PostingList{3}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.postings, ix.Postings(tt.term)); diff != "" {
			t.Errorf("Postings(%q) (-want +got):\n%s", tt.term, diff)
		}
		entry, ok := ix.Dictionary().Lookup(tt.term)
		if !ok || entry.Frequency != len(tt.postings) {
			t.Errorf("Lookup(%q) = %+v, %v, want frequency %d", tt.term, entry, ok, len(tt.postings))
		}
	}
}

func TestRepeatedTermInDocumentIsIdempotent(t *testing.T) {
	once := New()
	addAll(t, once, [][]string{{"cat"}, {"cat", "dog"}})
	repeated := New()
	addAll(t, repeated, [][]string{{"cat", "cat", "cat"}, {"cat", "dog", "cat", "dog"}})

	for _, term := range []string{"cat", "dog"} {
		if diff := cmp.Diff(once.Postings(term), repeated.Postings(term)); diff != "" {
			t.Errorf("Postings(%q) changed by repeats (-once +repeated):\n%s", term, diff)
		}
		a, _ := once.Dictionary().Lookup(term)
		b, _ := repeated.Dictionary().Lookup(term)
		if a.Frequency != b.Frequency {
			t.Errorf("frequency of %q = %d with repeats, want %d", term, b.Frequency, a.Frequency)
		}
	}
}

func TestAddRejectsNonAscendingIDs(t *testing.T) {
	ix := New()
	if err := ix.Add(Document{ID: 5, Terms: slices.Values([]string{"a"})}); err != nil {
		t.Fatal(err)
	}
	for _, id := range []int{5, 4} {
		err := ix.Add(Document{ID: id, Terms: slices.Values([]string{"a"})})
		if !errors.Is(err, apperrors.ErrInvalidState) {
			t.Errorf("Add(%d) error = %v, want ErrInvalidState", id, err)
		}
	}
}

// Frequencies and postings are checked against a set-based reference over
// random documents with heavy term repetition.
func TestRandomCorpusMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	vocab := make([]string, 40)
	for i := range vocab {
		vocab[i] = fmt.Sprintf("t%d", i)
	}

	ix := New()
	want := make(map[string]index.PostingList)
	for id := 1; id <= 300; id++ {
		terms := make([]string, rng.IntN(25))
		seen := make(map[string]bool)
		for i := range terms {
			terms[i] = vocab[rng.IntN(len(vocab))]
			if !seen[terms[i]] {
				seen[terms[i]] = true
				want[terms[i]] = append(want[terms[i]], id)
			}
		}
		if err := ix.Add(Document{ID: id, Terms: slices.Values(terms)}); err != nil {
			t.Fatal(err)
		}
	}

	if ix.Dictionary().Len() != len(want) {
		t.Fatalf("dictionary has %d terms, want %d", ix.Dictionary().Len(), len(want))
	}
	for term, postings := range want {
		if diff := cmp.Diff(postings, ix.Postings(term)); diff != "" {
			t.Errorf("Postings(%q) (-want +got):\n%s", term, diff)
		}
		entry, _ := ix.Dictionary().Lookup(term)
		if entry.Frequency != len(postings) {
			t.Errorf("frequency of %q = %d, want %d", term, entry.Frequency, len(postings))
		}
	}
}

func TestBuildAndWrite(t *testing.T) {
	corpusDir := t.TempDir()
	docs := map[string]string{
		"1": "The cat chased a dog.",
		"2": "Cats!",
		"3": "dogs and fish",
	}
	for name, text := range docs {
		if err := os.WriteFile(filepath.Join(corpusDir, name), []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	out := t.TempDir()
	dictPath := filepath.Join(out, "dictionary.json")
	postingsPath := filepath.Join(out, "postings.txt")

	ix := New()
	src := corpus.NewDirSource(corpusDir, false)
	terms := tokenizer.New(tokenizer.Options{StopWords: tokenizer.DefaultStopWords()})
	if err := ix.Build(context.Background(), src, terms); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	stats, err := ix.Write(dictPath, postingsPath)
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if stats.Documents != 3 || stats.Terms != 4 {
		t.Errorf("stats = %+v, want 3 documents and 4 terms", stats)
	}

	dict, err := segment.OpenDictionary(dictPath)
	if err != nil {
		t.Fatal(err)
	}
	reader, err := segment.OpenReader(postingsPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if reader.Size() != stats.PostingsBytes {
		t.Errorf("postings size = %d, stats say %d", reader.Size(), stats.PostingsBytes)
	}
	if diff := cmp.Diff(index.PostingList{1, 2, 3}, reader.Documents()); diff != "" {
		t.Errorf("documents (-want +got):\n%s", diff)
	}
	want := map[string]index.PostingList{
		"cat":   {1, 2},
		"chase": {1},
		"dog":   {1, 3},
		"fish":  {3},
	}
	for term, postings := range want {
		entry, ok := dict.Lookup(term)
		if !ok {
			t.Errorf("term %q missing from dictionary", term)
			continue
		}
		got, err := reader.ReadLine(entry.Location)
		if err != nil {
			t.Fatalf("ReadLine(%q) error: %v", term, err)
		}
		if diff := cmp.Diff(postings, got); diff != "" {
			t.Errorf("postings of %q (-want +got):\n%s", term, diff)
		}
	}
}

func TestWriteOnlyOnce(t *testing.T) {
	ix := New()
	addAll(t, ix, [][]string{{"cat"}})
	dir := t.TempDir()
	if _, err := ix.Write(filepath.Join(dir, "d"), filepath.Join(dir, "p")); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Write(filepath.Join(dir, "d"), filepath.Join(dir, "p")); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("second Write() error = %v, want ErrInvalidState", err)
	}
	if err := ix.Add(Document{ID: 2, Terms: slices.Values([]string{"dog"})}); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Errorf("Add() after Write error = %v, want ErrInvalidState", err)
	}
}

func TestWriteEmptyIndex(t *testing.T) {
	dir := t.TempDir()
	postingsPath := filepath.Join(dir, "p")
	if _, err := New().Write(filepath.Join(dir, "d"), postingsPath); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	reader, err := segment.OpenReader(postingsPath)
	if err != nil {
		t.Fatalf("OpenReader() error: %v", err)
	}
	defer reader.Close()
	if len(reader.Documents()) != 0 {
		t.Errorf("documents = %v, want none", reader.Documents())
	}
}

func TestWriteRetryAfterDictionaryFailure(t *testing.T) {
	ix := New()
	addAll(t, ix, [][]string{
		{"a", "b"},
		{"b", "c"},
		{"a", "c", "d"},
		{"d"},
	})
	want := make(map[string]index.PostingList)
	for _, term := range ix.Dictionary().Terms() {
		want[term] = ix.Postings(term)
	}

	dir := t.TempDir()
	dictPath := filepath.Join(dir, "d")
	postingsPath := filepath.Join(dir, "p")
	// A directory in the way of the dictionary's temporary file.
	if err := os.Mkdir(dictPath+".tmp", 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Write(dictPath, postingsPath); !errors.Is(err, apperrors.ErrIO) {
		t.Fatalf("Write() error = %v, want ErrIO", err)
	}
	for _, path := range []string{postingsPath, postingsPath + ".tmp", dictPath} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s exists after failed Write: %v", path, err)
		}
	}

	if err := os.Remove(dictPath + ".tmp"); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Write(dictPath, postingsPath); err != nil {
		t.Fatalf("retried Write() error: %v", err)
	}
	dict, err := segment.OpenDictionary(dictPath)
	if err != nil {
		t.Fatal(err)
	}
	reader, err := segment.OpenReader(postingsPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	for term, postings := range want {
		entry, ok := dict.Lookup(term)
		if !ok {
			t.Errorf("term %q missing from dictionary", term)
			continue
		}
		got, err := reader.ReadLine(entry.Location)
		if err != nil {
			t.Fatalf("ReadLine(%q) error: %v", term, err)
		}
		if diff := cmp.Diff(postings, got); diff != "" {
			t.Errorf("postings of %q (-want +got):\n%s", term, diff)
		}
	}
}

func TestAddRejectsNonPositiveIDs(t *testing.T) {
	for _, id := range []int{0, -3} {
		ix := New()
		err := ix.Add(Document{ID: id, Terms: slices.Values([]string{"a"})})
		if !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("Add(%d) error = %v, want ErrInvalidInput", id, err)
		}
		if got := ix.Dictionary().Len(); got != 0 {
			t.Errorf("Add(%d) left %d terms in the dictionary", id, got)
		}
	}
}

func TestAddRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	ix := New(WithMetrics(m))
	addAll(t, ix, [][]string{{"cat", "dog"}, {"dog", "fish"}})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	for _, want := range []string{"docs_indexed_total 2", "index_terms 3"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
