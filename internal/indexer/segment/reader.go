package segment

import (
	"bufio"
	"errors"
	"io"
	"math"
	"os"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
)

// Reader gives random access to the lines of a postings file. All reads go
// through ReadAt, so one Reader can serve concurrent queries.
type Reader struct {
	file     *os.File
	filePath string
	size     int64
	docs     index.PostingList
}

// OpenReader opens a postings file and decodes its first line, the list of
// every indexed document.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IO("opening", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperrors.IO("stat", path, err)
	}
	r := &Reader{
		file:     f,
		filePath: path,
		size:     info.Size(),
	}
	docs, err := r.ReadLine(0)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.docs = docs
	return r, nil
}

// ReadLine decodes the single line that starts at offset.
func (r *Reader) ReadLine(offset int64) (index.PostingList, error) {
	if offset < 0 || offset >= r.size {
		return nil, apperrors.Malformed(r.filePath, "offset %d outside file of %d bytes", offset, r.size)
	}
	br := bufio.NewReader(io.NewSectionReader(r.file, offset, math.MaxInt64-offset))
	line, err := br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.Malformed(r.filePath, "unterminated line at offset %d", offset)
		}
		return nil, apperrors.IO("reading", r.filePath, err)
	}
	list, err := index.ParseLine(line)
	if err != nil {
		return nil, apperrors.Malformed(r.filePath, "line at offset %d: %v", offset, err)
	}
	return list, nil
}

// Documents returns the full document list. Callers must not modify it.
func (r *Reader) Documents() index.PostingList {
	return r.docs
}

func (r *Reader) Size() int64 {
	return r.size
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// OpenDictionary loads a dictionary file written by Writer.
func OpenDictionary(path string) (*index.Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.IO("opening", path, err)
	}
	defer f.Close()
	dict, err := index.LoadDictionary(bufio.NewReader(f))
	if err != nil {
		return nil, apperrors.Malformed(path, "%v", err)
	}
	return dict, nil
}
