package corpus

import (
	"cmp"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
)

// DirSource reads one document per file. File names are the document IDs.
type DirSource struct {
	dir    string
	html   bool
	logger *slog.Logger
}

// NewDirSource creates a source over dir. When html is set, each file is
// parsed as HTML and only its visible text is indexed.
func NewDirSource(dir string, html bool) *DirSource {
	return &DirSource{
		dir:    dir,
		html:   html,
		logger: slog.Default().With("component", "corpus-dir"),
	}
}

func (s *DirSource) Scan(ctx context.Context, fn ScanFunc) error {
	files, err := s.documentFiles()
	if err != nil {
		return err
	}
	s.logger.Info("scanning corpus directory", "dir", s.dir, "documents", len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(s.dir, file.name)
		data, err := os.ReadFile(path)
		if err != nil {
			return apperrors.IO("reading", path, err)
		}
		text := string(data)
		if s.html {
			if text, err = ExtractText(data); err != nil {
				return apperrors.Wrap(apperrors.ErrInvalidInput, err, "parsing html document %s", path)
			}
		}
		if err := fn(file.id, text); err != nil {
			return err
		}
	}
	return nil
}

type documentFile struct {
	id   int
	name string
}

// documentFiles lists the numerically named files of the directory in
// ascending ID order. Subdirectories are ignored. Names such as "007" keep
// their spelling for reading; two names for the same ID are rejected.
func (s *DirSource) documentFiles() ([]documentFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperrors.IO("listing", s.dir, err)
	}
	files := make([]documentFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, err := strconv.Atoi(entry.Name())
		if err != nil || id < 1 {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 0,
				"corpus file %q in %s is not a document number", entry.Name(), s.dir)
		}
		files = append(files, documentFile{id: id, name: entry.Name()})
	}
	slices.SortFunc(files, func(a, b documentFile) int { return cmp.Compare(a.id, b.id) })
	for i := 1; i < len(files); i++ {
		if files[i].id == files[i-1].id {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, 0,
				"corpus files %q and %q in %s are both document %d",
				files[i-1].name, files[i].name, s.dir, files[i].id)
		}
	}
	return files, nil
}

func (s *DirSource) Close() error {
	return nil
}
