package index

import (
	"fmt"
	"strconv"
	"strings"
)

// PostingList is a strictly increasing sequence of document IDs.
type PostingList []int

// AppendLine appends the list as space-separated integers followed by a
// newline, the on-disk form of every postings file line.
func (p PostingList) AppendLine(buf []byte) []byte {
	for i, id := range p {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = strconv.AppendInt(buf, int64(id), 10)
	}
	return append(buf, '\n')
}

func (p PostingList) String() string {
	return strings.TrimSuffix(string(p.AppendLine(nil)), "\n")
}

// ParseLine decodes one postings line. It rejects anything that is not a
// strictly increasing run of non-negative integers.
func ParseLine(line string) (PostingList, error) {
	fields := strings.Fields(line)
	list := make(PostingList, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("parsing document id %q: %w", f, err)
		}
		if id < 0 {
			return nil, fmt.Errorf("negative document id %d", id)
		}
		if n := len(list); n > 0 && list[n-1] >= id {
			return nil, fmt.Errorf("document ids not increasing: %d then %d", list[n-1], id)
		}
		list = append(list, id)
	}
	return list, nil
}
