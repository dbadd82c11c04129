// Package suffixarray implements the parallel (source+target) suffix array
// index over a bilingual corpus: exact substring location, counting, and
// bounded uniform sampling of occurrences.
package suffixarray

import (
	"fmt"
	"sort"
	"time"

	"github.com/latticemt/dynamictm/pkg/corpus"
	"github.com/latticemt/dynamictm/pkg/vocab"
)

// Side selects which half of the parallel corpus an operation addresses.
type Side int

const (
	Source Side = iota
	Target
)

// position is one suffix-array entry: a sentence index and the word
// position within that sentence where the suffix begins.
type position struct {
	Sentence int32
	WordPos  int32
}

// BuildStats summarizes a completed Build, for operational visibility.
type BuildStats struct {
	Sentences      int
	SourceTokens   int
	TargetTokens   int
	SourceSuffixes int
	TargetSuffixes int

	// BuildWallTime is the time Build spent sorting both suffix arrays. Zero
	// for an index reconstituted by Load, which does not rebuild them.
	BuildWallTime time.Duration
	// SentinelCount is the number of sentence-boundary sentinel markers (the
	// shifted value 0 that at() returns past the end of a sentence) the
	// index carries: one per sentence per side.
	SentinelCount int
}

// ParallelSuffixArray is the static, read-only index over a corpus built
// once by Build or reconstituted by Load.
type ParallelSuffixArray struct {
	Corpus *corpus.Corpus
	Vocab  *vocab.Vocabulary

	srcSA []position
	tgtSA []position

	// globalSeed seeds the deterministic pattern-derived sampling RNG.
	globalSeed uint64

	Stats BuildStats
}

// Build constructs the two suffix arrays over c and keeps v as the index's
// vocabulary. The underlying sort performs O(L log L) suffix comparisons,
// each bounded by the sentence length, where L is total corpus length; any correct suffix-array
// construction is acceptable per the index contract, so this uses a plain
// comparison sort over position entries rather than a linear-time SA
// construction algorithm.
func Build(c *corpus.Corpus, v *vocab.Vocabulary, seed uint64) *ParallelSuffixArray {
	start := time.Now()

	sa := &ParallelSuffixArray{
		Corpus:     c,
		Vocab:      v,
		globalSeed: seed,
	}

	sa.srcSA = buildSide(c, Source)
	sa.tgtSA = buildSide(c, Target)

	sa.Stats = BuildStats{
		Sentences:      c.NumSentences(),
		SourceTokens:   len(c.SourceIDs),
		TargetTokens:   len(c.TargetIDs),
		SourceSuffixes: len(sa.srcSA),
		TargetSuffixes: len(sa.tgtSA),
		BuildWallTime:  time.Since(start),
		SentinelCount:  sentinelCount(c),
	}
	return sa
}

// sentinelCount returns the number of sentence-boundary sentinels at()
// exposes to suffix comparisons: every sentence contributes exactly one
// sentinel position on each side.
func sentinelCount(c *corpus.Corpus) int {
	return 2 * c.NumSentences()
}

func buildSide(c *corpus.Corpus, side Side) []position {
	total := 0
	for _, s := range c.Sentences {
		total += sideLen(s, side)
	}

	positions := make([]position, 0, total)
	for si, s := range c.Sentences {
		n := sideLen(s, side)
		for wp := 0; wp < n; wp++ {
			positions = append(positions, position{Sentence: int32(si), WordPos: int32(wp)})
		}
	}

	sort.Slice(positions, func(i, j int) bool {
		return compareSuffixes(c, side, positions[i], positions[j]) < 0
	})
	return positions
}

func sideLen(s *corpus.AlignedSentence, side Side) int {
	if side == Source {
		return len(s.Source)
	}
	return len(s.Target)
}

func sideWords(s *corpus.AlignedSentence, side Side) []uint32 {
	if side == Source {
		return s.Source
	}
	return s.Target
}

// at returns the shifted token value at sentence-relative position p: real
// ids are shifted by +1 so that 0 is free to serve as the sentence-boundary
// sentinel, which is guaranteed to compare less than every real id.
func at(s *corpus.AlignedSentence, side Side, p int) int64 {
	words := sideWords(s, side)
	if p >= len(words) {
		return 0
	}
	return int64(words[p]) + 1
}

func compareSuffixes(c *corpus.Corpus, side Side, a, b position) int {
	sa := c.Sentences[a.Sentence]
	sb := c.Sentences[b.Sentence]
	i, j := int(a.WordPos), int(b.WordPos)
	for {
		va := at(sa, side, i)
		vb := at(sb, side, j)
		if va != vb {
			if va < vb {
				return -1
			}
			return 1
		}
		if va == 0 { // both hit sentence boundary simultaneously
			return 0
		}
		i++
		j++
	}
}

// comparePatternPrefix compares pattern against the suffix beginning at pos,
// restricted to len(pattern) tokens. Returns <0, 0, or >0 the same way
// compareSuffixes does, treating the sentence boundary sentinel (0) as less
// than any shifted pattern token (which is always >=1).
func comparePatternPrefix(c *corpus.Corpus, side Side, pos position, pattern []uint32) int {
	s := c.Sentences[pos.Sentence]
	for i, id := range pattern {
		v := at(s, side, int(pos.WordPos)+i)
		pv := int64(id) + 1
		if v != pv {
			if v < pv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (sa *ParallelSuffixArray) saFor(side Side) []position {
	if side == Source {
		return sa.srcSA
	}
	return sa.tgtSA
}

// Locate returns the half-open range [lo,hi) of suffix-array positions whose
// prefix equals pattern. An empty pattern is an error. A pattern that
// cannot occur in the corpus (because it contains an id past the end of any
// sentence, or simply never occurs) returns an empty range with no error.
func (sa *ParallelSuffixArray) Locate(pattern []uint32, side Side) (lo, hi int, err error) {
	if len(pattern) == 0 {
		return 0, 0, fmt.Errorf("suffixarray: empty pattern")
	}

	entries := sa.saFor(side)
	lo = sort.Search(len(entries), func(i int) bool {
		return comparePatternPrefix(sa.Corpus, side, entries[i], pattern) >= 0
	})
	hi = sort.Search(len(entries), func(i int) bool {
		return comparePatternPrefix(sa.Corpus, side, entries[i], pattern) > 0
	})
	return lo, hi, nil
}

// Count returns the number of occurrences of pattern.
func (sa *ParallelSuffixArray) Count(pattern []uint32, side Side) (int, error) {
	lo, hi, err := sa.Locate(pattern, side)
	if err != nil {
		return 0, err
	}
	return hi - lo, nil
}

// QueryResult is one occurrence: the sentence it was found in, and the word
// position inside that sentence where the pattern begins.
type QueryResult struct {
	Sentence *corpus.AlignedSentence
	WordPos  int
}

// Query materializes one QueryResult per suffix-array position in the
// pattern's range.
func (sa *ParallelSuffixArray) Query(pattern []uint32, side Side) ([]QueryResult, error) {
	lo, hi, err := sa.Locate(pattern, side)
	if err != nil {
		return nil, err
	}
	entries := sa.saFor(side)
	out := make([]QueryResult, 0, hi-lo)
	for i := lo; i < hi; i++ {
		p := entries[i]
		out = append(out, QueryResult{
			Sentence: sa.Corpus.Sentences[p.Sentence],
			WordPos:  int(p.WordPos),
		})
	}
	return out, nil
}
