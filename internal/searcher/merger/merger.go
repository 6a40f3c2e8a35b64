// Package merger combines sorted, duplicate-free posting lists. Intersect
// and Difference use skip pointers: at every position that is a multiple of
// a list's skip step, floor(sqrt(len)), the walk jumps a full step when the
// landing value is still below the other list's head. Steps depend only on
// the lengths of the lists passed to each call.
package merger

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/index"
)

// Union returns every ID in a or b.
func Union(a, b index.PostingList) index.PostingList {
	out := make(index.PostingList, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// Intersect returns the IDs present in both lists. The longer list is
// walked as the primary one; the result does not depend on argument order.
func Intersect(a, b index.PostingList) index.PostingList {
	p1, p2 := a, b
	if len(p1) < len(p2) {
		p1, p2 = p2, p1
	}
	n1, n2 := len(p1), len(p2)
	s1, s2 := skipStep(n1), skipStep(n2)

	out := make(index.PostingList, 0, n2)
	i, j := 0, 0
	for i < n1 && j < n2 {
		x, y := p1[i], p2[j]
		switch {
		case x == y:
			out = append(out, x)
			i++
			j++
		case x < y:
			if i%s1 == 0 && i+s1 < n1 && p1[i+s1] < y {
				i += s1
			} else {
				i++
			}
		default:
			if j%s2 == 0 && j+s2 < n2 && p2[j+s2] < x {
				j += s2
			} else {
				j++
			}
		}
	}
	return out
}

// Difference returns the IDs of keep that are not in drop. Only drop is
// skipped, since every keep value has to be visited.
func Difference(keep, drop index.PostingList) index.PostingList {
	n1, n2 := len(keep), len(drop)
	s2 := skipStep(n2)

	out := make(index.PostingList, 0, n1)
	i, j := 0, 0
	for i < n1 && j < n2 {
		x, y := keep[i], drop[j]
		switch {
		case x < y:
			out = append(out, x)
			i++
		case x == y:
			i++
			j++
		default:
			if j%s2 == 0 && j+s2 < n2 && drop[j+s2] < x {
				j += s2
			} else {
				j++
			}
		}
	}
	return append(out, keep[i:]...)
}

// Complement returns the IDs of universe missing from p. The result never
// aliases universe.
func Complement(universe, p index.PostingList) index.PostingList {
	out := make(index.PostingList, 0, len(universe)-min(len(universe), len(p)))
	j := 0
	for _, id := range universe {
		for j < len(p) && p[j] < id {
			j++
		}
		if j < len(p) && p[j] == id {
			j++
			continue
		}
		out = append(out, id)
	}
	return out
}

func skipStep(n int) int {
	return int(math.Sqrt(float64(n)))
}
