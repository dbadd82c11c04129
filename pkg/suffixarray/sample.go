package suffixarray

import (
	"hash/fnv"
	"math/rand"
)

// SampleResult is the outcome of a bounded sample: the drawn occurrences and
// the true total hit count they were drawn from.
type SampleResult struct {
	Samples []QueryResult
	NumHits int
}

// Sample draws a uniform, without-replacement subset of at most k
// occurrences of pattern. The draw is deterministic given the index's global
// seed and the pattern content, which is required for test reproducibility:
// two Sample calls for the same pattern against the same index always
// return the same set.
//
// An empty pattern is an error. A pattern with zero hits (including one
// built from an id that never occurs in the corpus) returns an empty,
// non-error SampleResult.
func (sa *ParallelSuffixArray) Sample(pattern []uint32, side Side, k int) (SampleResult, error) {
	lo, hi, err := sa.Locate(pattern, side)
	if err != nil {
		return SampleResult{}, err
	}
	numHits := hi - lo
	if numHits == 0 {
		return SampleResult{NumHits: 0}, nil
	}
	if k > numHits {
		k = numHits
	}

	entries := sa.saFor(side)
	seed := sa.sampleSeed(pattern)
	rng := rand.New(rand.NewSource(seed))

	// Partial Fisher-Yates over the index set [0, numHits): draw k distinct
	// indices uniformly without materializing the full permutation.
	idx := make([]int, numHits)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(numHits-i)
		idx[i], idx[j] = idx[j], idx[i]
	}

	samples := make([]QueryResult, k)
	for i := 0; i < k; i++ {
		p := entries[lo+idx[i]]
		samples[i] = QueryResult{
			Sentence: sa.Corpus.Sentences[p.Sentence],
			WordPos:  int(p.WordPos),
		}
	}

	return SampleResult{Samples: samples, NumHits: numHits}, nil
}

func (sa *ParallelSuffixArray) sampleSeed(pattern []uint32) int64 {
	h := fnv.New64a()
	var buf [4]byte
	for _, id := range pattern {
		buf[0] = byte(id)
		buf[1] = byte(id >> 8)
		buf[2] = byte(id >> 16)
		buf[3] = byte(id >> 24)
		_, _ = h.Write(buf[:])
	}
	return int64(h.Sum64() ^ sa.globalSeed)
}
