// Package indexer builds a Boolean inverted index. Documents are added in
// ascending ID order; each new term starts a posting list and every later
// document containing it is appended once. Write persists the postings file
// first, since the dictionary records the byte offsets it produces.
package indexer

import (
	"context"
	"iter"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/corpus"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/metrics"
)

// TermSource turns raw document text into normalized terms.
type TermSource interface {
	Terms(text string) iter.Seq[string]
}

// Document is one numbered document's normalized term stream.
type Document struct {
	ID    int
	Terms iter.Seq[string]
}

// Stats summarizes a written index.
type Stats struct {
	Documents     int
	Terms         int
	PostingsBytes int64
}

type Indexer struct {
	store   *index.Store
	dict    *index.Dictionary
	lastID  int
	started bool
	written bool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Indexer)

// WithMetrics counts indexed documents and tracks the term count.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Indexer) { ix.metrics = m }
}

func New(opts ...Option) *Indexer {
	ix := &Indexer{
		store:  index.NewStore(),
		dict:   index.NewDictionary(),
		logger: slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Add indexes one document. IDs must be positive and strictly ascending
// across calls.
func (ix *Indexer) Add(doc Document) error {
	if ix.written {
		return apperrors.New(apperrors.ErrInvalidState, 0, "index already written")
	}
	if doc.ID < 1 {
		return apperrors.Newf(apperrors.ErrInvalidInput, 0, "document id %d is not positive", doc.ID)
	}
	if ix.started && doc.ID <= ix.lastID {
		return apperrors.Newf(apperrors.ErrInvalidState, 0,
			"document %d added after document %d", doc.ID, ix.lastID)
	}
	ix.started = true
	ix.lastID = doc.ID
	ix.store.RecordDocument(doc.ID)

	for term := range doc.Terms {
		entry, ok := ix.dict.Lookup(term)
		if !ok {
			ix.dict.Insert(term, ix.store.BeginTerm(doc.ID))
			continue
		}
		if ix.store.Append(int(entry.Location), doc.ID) {
			ix.dict.IncrementFrequency(term)
		}
	}
	if ix.metrics != nil {
		ix.metrics.DocsIndexedTotal.Inc()
		ix.metrics.IndexTerms.Set(float64(ix.dict.Len()))
	}
	return nil
}

// Build adds every document src yields, normalizing its text with terms.
func (ix *Indexer) Build(ctx context.Context, src corpus.Source, terms TermSource) error {
	err := src.Scan(ctx, func(id int, text string) error {
		if err := ix.Add(Document{ID: id, Terms: terms.Terms(text)}); err != nil {
			return err
		}
		ix.logger.Debug("document indexed", "doc_id", id, "terms", ix.dict.Len())
		return nil
	})
	if err != nil {
		return err
	}
	ix.logger.Info("corpus indexed",
		"documents", len(ix.store.Documents()),
		"terms", ix.dict.Len(),
	)
	return nil
}

// Write persists the index. Once it succeeds the dictionary locations are
// postings offsets rather than store references and Write cannot be called
// again; a failed Write leaves the index unchanged.
func (ix *Indexer) Write(dictPath, postingsPath string) (Stats, error) {
	if ix.written {
		return Stats{}, apperrors.New(apperrors.ErrInvalidState, 0, "index already written")
	}
	size, err := segment.NewWriter(dictPath, postingsPath).Write(ix.store, ix.dict)
	if err != nil {
		return Stats{}, err
	}
	ix.written = true
	stats := Stats{
		Documents:     len(ix.store.Documents()),
		Terms:         ix.dict.Len(),
		PostingsBytes: size,
	}
	ix.logger.Info("index written",
		"dictionary", dictPath,
		"postings", postingsPath,
		"documents", stats.Documents,
		"terms", stats.Terms,
	)
	return stats, nil
}

// Dictionary exposes the term dictionary built so far.
func (ix *Indexer) Dictionary() *index.Dictionary {
	return ix.dict
}

// Postings returns the in-memory posting list of term, or nil. Only valid
// before Write.
func (ix *Indexer) Postings(term string) index.PostingList {
	entry, ok := ix.dict.Lookup(term)
	if !ok || ix.written {
		return nil
	}
	return ix.store.Postings(int(entry.Location))
}
