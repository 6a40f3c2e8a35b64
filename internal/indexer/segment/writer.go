package segment

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
)

// Writer persists a built index as a postings file and a dictionary file.
type Writer struct {
	dictPath     string
	postingsPath string
	logger       *slog.Logger
}

// NewWriter creates a Writer for the given dictionary and postings paths.
func NewWriter(dictPath, postingsPath string) *Writer {
	return &Writer{
		dictPath:     dictPath,
		postingsPath: postingsPath,
		logger:       slog.Default().With("component", "segment-writer"),
	}
}

// Write serializes the postings, persists a copy of dict holding the
// resulting offsets, and renames both files into place once both are
// synced. dict itself receives the offsets only after both renames, so a
// failed Write leaves it holding store references and can be retried. It
// returns the postings file size.
func (w *Writer) Write(store *index.Store, dict *index.Dictionary) (int64, error) {
	var offsets map[string]int64
	postingsTmp, postingsSize, err := writeTemp(w.postingsPath, func(out io.Writer) error {
		var err error
		offsets, err = store.Serialize(out, dict)
		return err
	})
	if err != nil {
		return 0, err
	}
	defer os.Remove(postingsTmp)

	placed := dict.Clone()
	if err := placed.ApplyOffsets(offsets); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternal, err, "applying postings offsets")
	}
	w.logger.Debug("postings staged", "path", postingsTmp, "bytes", postingsSize, "terms", len(offsets))

	dictTmp, dictSize, err := writeTemp(w.dictPath, placed.Persist)
	if err != nil {
		return 0, err
	}
	defer os.Remove(dictTmp)

	if err := rename(postingsTmp, w.postingsPath); err != nil {
		return 0, err
	}
	if err := rename(dictTmp, w.dictPath); err != nil {
		return 0, err
	}
	if err := dict.ApplyOffsets(offsets); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternal, err, "applying postings offsets")
	}
	w.logger.Debug("index files written",
		"postings", w.postingsPath,
		"dictionary", w.dictPath,
		"dictionary_bytes", dictSize,
	)
	return postingsSize, nil
}

// writeTemp fills and syncs the .tmp sibling of path and returns its name
// and size. The caller renames or removes it.
func writeTemp(path string, fill func(io.Writer) error) (string, int64, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", 0, apperrors.IO("creating directory", dir, err)
		}
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", 0, apperrors.IO("creating", tmpPath, err)
	}
	defer f.Close()

	fail := func(op string, err error) (string, int64, error) {
		os.Remove(tmpPath)
		return "", 0, apperrors.IO(op, tmpPath, err)
	}
	if err := fill(f); err != nil {
		return fail("writing", err)
	}
	size, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return fail("seeking", err)
	}
	if err := f.Sync(); err != nil {
		return fail("syncing", err)
	}
	if err := f.Close(); err != nil {
		return fail("closing", err)
	}
	return tmpPath, size, nil
}

func rename(tmpPath, path string) error {
	if err := os.Rename(tmpPath, path); err != nil {
		return apperrors.IO("renaming", fmt.Sprintf("%s to %s", tmpPath, path), err)
	}
	return nil
}
