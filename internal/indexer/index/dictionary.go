package index

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Entry is what the dictionary knows about a term. Before the postings file
// is written Location is the term's Store reference; afterwards it is the
// byte offset of the term's line in the postings file.
type Entry struct {
	Frequency int
	Location  int64
}

// dictRecord is the persisted form of one entry.
type dictRecord struct {
	Term      string `json:"t"`
	Frequency int    `json:"d"`
	Location  int64  `json:"o"`
}

// Dictionary maps normalized terms to their document frequency and location.
type Dictionary struct {
	terms map[string]*Entry
}

func NewDictionary() *Dictionary {
	return &Dictionary{terms: make(map[string]*Entry)}
}

func (d *Dictionary) Lookup(term string) (Entry, bool) {
	e, ok := d.terms[term]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Insert adds term with a document frequency of one, located at ref.
func (d *Dictionary) Insert(term string, ref int) {
	d.terms[term] = &Entry{Frequency: 1, Location: int64(ref)}
}

// IncrementFrequency must be called once per new document containing term.
func (d *Dictionary) IncrementFrequency(term string) {
	if e, ok := d.terms[term]; ok {
		e.Frequency++
	}
}

func (d *Dictionary) SetLocation(term string, offset int64) {
	if e, ok := d.terms[term]; ok {
		e.Location = offset
	}
}

// ApplyOffsets merges the offsets returned by Store.Serialize.
func (d *Dictionary) ApplyOffsets(offsets map[string]int64) error {
	if len(offsets) != len(d.terms) {
		return fmt.Errorf("got offsets for %d terms, dictionary has %d", len(offsets), len(d.terms))
	}
	for term, offset := range offsets {
		if _, ok := d.terms[term]; !ok {
			return fmt.Errorf("offset for unknown term %q", term)
		}
		d.SetLocation(term, offset)
	}
	return nil
}

// Clone returns an independent copy of d.
func (d *Dictionary) Clone() *Dictionary {
	c := &Dictionary{terms: make(map[string]*Entry, len(d.terms))}
	for term, e := range d.terms {
		entry := *e
		c.terms[term] = &entry
	}
	return c
}

func (d *Dictionary) Len() int {
	return len(d.terms)
}

// Terms returns every term in ascending order.
func (d *Dictionary) Terms() []string {
	terms := make([]string, 0, len(d.terms))
	for t := range d.terms {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

// Persist encodes the dictionary as a JSON array sorted by term, so the
// same dictionary always produces the same bytes.
func (d *Dictionary) Persist(w io.Writer) error {
	records := make([]dictRecord, 0, len(d.terms))
	for _, t := range d.Terms() {
		e := d.terms[t]
		records = append(records, dictRecord{Term: t, Frequency: e.Frequency, Location: e.Location})
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}
	return nil
}

// LoadDictionary decodes a dictionary written by Persist.
func LoadDictionary(r io.Reader) (*Dictionary, error) {
	var records []dictRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding dictionary: %w", err)
	}
	d := &Dictionary{terms: make(map[string]*Entry, len(records))}
	for i, rec := range records {
		if _, dup := d.terms[rec.Term]; dup {
			return nil, fmt.Errorf("entry %d: duplicate term %q", i, rec.Term)
		}
		if rec.Frequency < 1 || rec.Location < 0 {
			return nil, fmt.Errorf("entry %d: invalid frequency %d or offset %d for term %q",
				i, rec.Frequency, rec.Location, rec.Term)
		}
		d.terms[rec.Term] = &Entry{Frequency: rec.Frequency, Location: rec.Location}
	}
	return d, nil
}
