// Package corpus enumerates the documents an index is built from. Every
// Source yields documents in ascending ID order, which the indexer relies on
// to keep posting lists sorted without re-scanning them.
package corpus

import "context"

// ScanFunc receives one document. Returning an error stops the scan.
type ScanFunc func(id int, text string) error

// Source is a numbered document collection.
type Source interface {
	Scan(ctx context.Context, fn ScanFunc) error
	Close() error
}
