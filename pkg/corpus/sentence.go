// Package corpus holds the immutable per-sentence records that the suffix
// array indexes and the rule extractor walks.
package corpus

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// AlignedSentence is one parallel sentence: source/target word ids, the
// forward (source→targets) and reverse (target→sources) alignment, and a
// precomputed bitset of which target positions are aligned to anything.
//
// Invariants (checked by Validate, not on every access):
//   - every index in F2E[i] is in [0, len(Target))
//   - AlignedTgt.Test(j) == true iff some i has j in F2E[i]
//   - F2E and E2F are transposes of each other
type AlignedSentence struct {
	Source     []uint32
	Target     []uint32
	F2E        [][]uint32 // per source position, sorted ascending target positions
	E2F        [][]uint32 // per target position, sorted ascending source positions
	AlignedTgt *bitset.BitSet
}

// NewAlignedSentence builds an AlignedSentence from source/target id
// sequences and a list of (sourcePos, targetPos) alignment links. Links need
// not be sorted or deduplicated; NewAlignedSentence sorts and dedups them.
func NewAlignedSentence(source, target []uint32, links [][2]int) (*AlignedSentence, error) {
	for _, l := range links {
		if l[0] < 0 || l[0] >= len(source) {
			return nil, fmt.Errorf("corpus: alignment source index %d out of range [0,%d)", l[0], len(source))
		}
		if l[1] < 0 || l[1] >= len(target) {
			return nil, fmt.Errorf("corpus: alignment target index %d out of range [0,%d)", l[1], len(target))
		}
	}

	f2e := make([][]uint32, len(source))
	e2f := make([][]uint32, len(target))
	for _, l := range links {
		f2e[l[0]] = insertSortedUnique(f2e[l[0]], uint32(l[1]))
		e2f[l[1]] = insertSortedUnique(e2f[l[1]], uint32(l[0]))
	}

	aligned := bitset.New(uint(len(target)))
	for j, srcs := range e2f {
		if len(srcs) > 0 {
			aligned.Set(uint(j))
		}
	}

	return &AlignedSentence{
		Source:     source,
		Target:     target,
		F2E:        f2e,
		E2F:        e2f,
		AlignedTgt: aligned,
	}, nil
}

func insertSortedUnique(xs []uint32, v uint32) []uint32 {
	i := 0
	for i < len(xs) && xs[i] < v {
		i++
	}
	if i < len(xs) && xs[i] == v {
		return xs
	}
	xs = append(xs, 0)
	copy(xs[i+1:], xs[i:])
	xs[i] = v
	return xs
}

// FromCSR reconstructs an AlignedSentence directly from already-computed CSR
// alignment rows, as produced by deserializing a persisted index. Unlike
// NewAlignedSentence it performs no range validation — callers that load
// from an untrusted source should follow up with Validate.
func FromCSR(source, target []uint32, f2e, e2f [][]uint32) *AlignedSentence {
	aligned := bitset.New(uint(len(target)))
	for j, srcs := range e2f {
		if len(srcs) > 0 {
			aligned.Set(uint(j))
		}
	}
	return &AlignedSentence{
		Source:     source,
		Target:     target,
		F2E:        f2e,
		E2F:        e2f,
		AlignedTgt: aligned,
	}
}

// Validate checks the documented invariants explicitly. Loading a persisted
// index calls this once per sentence; it is not re-checked on the hot path.
func (s *AlignedSentence) Validate() error {
	if len(s.F2E) != len(s.Source) {
		return fmt.Errorf("corpus: F2E has %d rows, want %d (len(Source))", len(s.F2E), len(s.Source))
	}
	if len(s.E2F) != len(s.Target) {
		return fmt.Errorf("corpus: E2F has %d rows, want %d (len(Target))", len(s.E2F), len(s.Target))
	}
	if s.AlignedTgt == nil || s.AlignedTgt.Len() != uint(len(s.Target)) {
		return fmt.Errorf("corpus: AlignedTgt has wrong length")
	}

	for i, tgts := range s.F2E {
		for _, j := range tgts {
			if int(j) >= len(s.Target) {
				return fmt.Errorf("corpus: F2E[%d] references out-of-range target %d", i, j)
			}
			found := false
			for _, k := range s.E2F[j] {
				if int(k) == i {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("corpus: F2E[%d]->%d has no matching E2F[%d] entry", i, j, j)
			}
		}
	}
	for j, srcs := range s.E2F {
		wantAligned := len(srcs) > 0
		if s.AlignedTgt.Test(uint(j)) != wantAligned {
			return fmt.Errorf("corpus: AlignedTgt bit %d disagrees with E2F occupancy", j)
		}
	}
	return nil
}

// MinMaxTargetSpan returns the tightest target position range [min,max]
// touched by alignment links from any source position in [start,end), and
// whether any such link exists at all. Used by the rule extractor.
func (s *AlignedSentence) MinMaxTargetSpan(start, end int) (min, max int, ok bool) {
	min, max = -1, -1
	for i := start; i < end; i++ {
		for _, j := range s.F2E[i] {
			jj := int(j)
			if min == -1 || jj < min {
				min = jj
			}
			if jj > max {
				max = jj
			}
		}
	}
	return min, max, min != -1
}
