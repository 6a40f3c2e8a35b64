package searcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
)

// RunBatch answers every line of in as one query and writes one result line
// per query to out, in input order. A blank or malformed query produces an
// empty line; any other failure stops the run.
func RunBatch(ctx context.Context, s Searcher, in io.Reader, out io.Writer, workers int) error {
	log := slog.Default().With("component", "batch")

	var queries []string
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		queries = append(queries, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return apperrors.IO("reading", "queries", err)
	}

	lines := make([][]byte, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, q := range queries {
		if strings.TrimSpace(q) == "" {
			lines[i] = []byte{'\n'}
			continue
		}
		g.Go(func() error {
			res, err := s.Search(gctx, q)
			switch {
			case errors.Is(err, apperrors.ErrMalformedQuery):
				log.Warn("skipping malformed query", "line", i+1, "query", q, "error", err)
				lines[i] = []byte{'\n'}
				return nil
			case err != nil:
				return fmt.Errorf("query on line %d: %w", i+1, err)
			}
			lines[i] = res.IDs.AppendLine(nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			return apperrors.IO("writing", "results", err)
		}
	}
	if err := w.Flush(); err != nil {
		return apperrors.IO("writing", "results", err)
	}
	log.Info("batch complete", "queries", len(queries))
	return nil
}
