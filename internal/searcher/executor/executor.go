// Package executor evaluates postfix Boolean queries against a persisted
// index. An Executor is built once from the dictionary and the postings
// file and is safe for concurrent use: the dictionary is read-only and every
// postings read has its own cursor.
package executor

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/metrics"
)

// PostingsReader gives random access to posting lines by byte offset.
type PostingsReader interface {
	ReadLine(offset int64) (index.PostingList, error)
	Documents() index.PostingList
}

type Executor struct {
	dict     *index.Dictionary
	postings PostingsReader
	closer   func() error
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Executor)

// WithMetrics counts postings reads.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

func New(dict *index.Dictionary, postings PostingsReader, opts ...Option) *Executor {
	e := &Executor{
		dict:     dict,
		postings: postings,
		logger:   slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open loads the dictionary and opens the postings file. Close releases
// the postings file.
func Open(dictPath, postingsPath string, opts ...Option) (*Executor, error) {
	dict, err := segment.OpenDictionary(dictPath)
	if err != nil {
		return nil, err
	}
	reader, err := segment.OpenReader(postingsPath)
	if err != nil {
		return nil, err
	}
	e := New(dict, reader, opts...)
	e.closer = reader.Close
	e.logger.Info("index opened",
		"dictionary", dictPath,
		"postings", postingsPath,
		"terms", dict.Len(),
		"documents", len(reader.Documents()),
	)
	return e, nil
}

func (e *Executor) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

// Terms reports the dictionary size.
func (e *Executor) Terms() int {
	return e.dict.Len()
}

// Documents returns the document list. Callers must not modify it.
func (e *Executor) Documents() index.PostingList {
	return e.postings.Documents()
}

// operand is either a term not yet looked up or a resolved posting list.
type operand struct {
	term     string
	ids      index.PostingList
	resolved bool
}

// Evaluate runs a postfix query. The stack starts with an empty resolved
// operand so a blank query yields an empty result; an operator that would
// consume it, or operands left unconsumed at the end, make the query
// malformed.
func (e *Executor) Evaluate(ctx context.Context, postfix []parser.Token) (index.PostingList, error) {
	stack := []operand{{resolved: true}}
	pop := func(tok parser.Token) (operand, error) {
		if len(stack) < 2 {
			return operand{}, apperrors.Newf(apperrors.ErrMalformedQuery, 0, "%s is missing an operand", tok.Kind)
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top, nil
	}

	for _, tok := range postfix {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !tok.Kind.IsOperator() {
			stack = append(stack, operand{term: tok.Term})
			continue
		}

		right, err := pop(tok)
		if err != nil {
			return nil, err
		}
		rightIDs, err := e.resolve(right)
		if err != nil {
			return nil, err
		}
		if tok.Kind == parser.KindNot {
			stack = append(stack, operand{ids: merger.Complement(e.postings.Documents(), rightIDs), resolved: true})
			continue
		}

		left, err := pop(tok)
		if err != nil {
			return nil, err
		}
		leftIDs, err := e.resolve(left)
		if err != nil {
			return nil, err
		}
		var ids index.PostingList
		switch tok.Kind {
		case parser.KindAnd:
			ids = merger.Intersect(leftIDs, rightIDs)
		case parser.KindOr:
			ids = merger.Union(leftIDs, rightIDs)
		case parser.KindAndNot:
			ids = merger.Difference(leftIDs, rightIDs)
		}
		stack = append(stack, operand{ids: ids, resolved: true})
	}

	switch len(stack) {
	case 1:
		return index.PostingList{}, nil
	case 2:
		return e.resolve(stack[1])
	default:
		return nil, apperrors.Newf(apperrors.ErrMalformedQuery, 0, "%d operands left without an operator", len(stack)-1)
	}
}

// Resolve returns the posting list of a normalized term. A term missing
// from the dictionary has no postings and costs no read.
func (e *Executor) Resolve(term string) (index.PostingList, error) {
	entry, ok := e.dict.Lookup(term)
	if !ok {
		return index.PostingList{}, nil
	}
	if e.metrics != nil {
		e.metrics.PostingsReadsTotal.Inc()
	}
	return e.postings.ReadLine(entry.Location)
}

func (e *Executor) resolve(op operand) (index.PostingList, error) {
	if op.resolved {
		return op.ids, nil
	}
	return e.Resolve(op.term)
}
