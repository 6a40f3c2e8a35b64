package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type row struct {
	ID   int    `db:"id"`
	Body string `db:"body"`
}

// SQLSource reads documents from the id and body columns of a table.
type SQLSource struct {
	db     *sqlx.DB
	table  string
	logger *slog.Logger
}

// NewSQLSource creates a source over table. The table name is interpolated
// into the query, so only plain identifiers are accepted.
func NewSQLSource(db *sqlx.DB, table string) (*SQLSource, error) {
	if !identifier.MatchString(table) {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, 0, "invalid table name %q", table)
	}
	return &SQLSource{
		db:     db,
		table:  table,
		logger: slog.Default().With("component", "corpus-sql"),
	}, nil
}

func (s *SQLSource) Scan(ctx context.Context, fn ScanFunc) error {
	query := fmt.Sprintf("SELECT id, body FROM %s ORDER BY id", s.table)
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var r row
		if err := rows.StructScan(&r); err != nil {
			return fmt.Errorf("scanning %s row: %w", s.table, err)
		}
		if err := fn(r.ID, r.Body); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s: %w", s.table, err)
	}
	s.logger.Info("corpus table scanned", "table", s.table, "documents", count)
	return nil
}

func (s *SQLSource) Close() error {
	return s.db.Close()
}
