package index

import (
	"bufio"
	"fmt"
	"io"
)

// Store holds the in-memory posting lists while an index is built. Lists
// are addressed by the reference BeginTerm returns. Documents must be fed in
// ascending ID order; that is what keeps every list sorted and duplicate
// free without re-scanning.
type Store struct {
	lists []PostingList
	docs  PostingList
}

func NewStore() *Store {
	return &Store{}
}

// BeginTerm allocates a posting list seeded with docID and returns its
// reference.
func (s *Store) BeginTerm(docID int) int {
	s.lists = append(s.lists, PostingList{docID})
	return len(s.lists) - 1
}

// Append adds docID to the referenced list unless it is already the last
// entry. It reports whether the list grew.
func (s *Store) Append(ref int, docID int) bool {
	list := s.lists[ref]
	if list[len(list)-1] == docID {
		return false
	}
	s.lists[ref] = append(list, docID)
	return true
}

// RecordDocument appends docID to the document list.
func (s *Store) RecordDocument(docID int) {
	s.docs = append(s.docs, docID)
}

func (s *Store) Documents() PostingList {
	return s.docs
}

func (s *Store) Postings(ref int) PostingList {
	return s.lists[ref]
}

func (s *Store) Terms() int {
	return len(s.lists)
}

// Serialize writes the document list followed by one line per dictionary
// term, in a single sequential pass. It returns the byte offset at which
// each term's line starts; the dictionary itself is left untouched.
func (s *Store) Serialize(w io.Writer, dict *Dictionary) (map[string]int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	buf := s.docs.AppendLine(make([]byte, 0, 4096))
	if _, err := bw.Write(buf); err != nil {
		return nil, fmt.Errorf("writing document list: %w", err)
	}

	offsets := make(map[string]int64, dict.Len())
	for _, term := range dict.Terms() {
		entry, _ := dict.Lookup(term)
		ref := int(entry.Location)
		if ref < 0 || ref >= len(s.lists) {
			return nil, fmt.Errorf("term %q references unknown posting list %d", term, ref)
		}
		offsets[term] = cw.n + int64(bw.Buffered())
		buf = s.lists[ref].AppendLine(buf[:0])
		if _, err := bw.Write(buf); err != nil {
			return nil, fmt.Errorf("writing postings for term %q: %w", term, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("flushing postings: %w", err)
	}
	return offsets, nil
}

// countingWriter tracks the stream position of everything written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
