package rule

import (
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/latticemt/dynamictm/pkg/suffixarray"
)

// Extractor extracts admissible SampledRules from sampled source
// occurrences, following the standard pattern-matching extraction rules
// (Lopez 2008): target alignment contiguity, a maximum target phrase
// length, and boundary growth restricted to unaligned target positions.
//
// A pool of scratch coverage bitsets is reused across calls to avoid a heap
// allocation per extraction on the query hot path.
type Extractor struct {
	MaxTgtLen int
	pool      sync.Pool
}

// NewExtractor returns an Extractor bounding target phrase length at
// maxTgtLen.
func NewExtractor(maxTgtLen int) *Extractor {
	return &Extractor{
		MaxTgtLen: maxTgtLen,
		pool: sync.Pool{
			New: func() any { return bitset.New(64) },
		},
	}
}

// Extract enumerates every admissible SampledRule for the source span
// [qr.WordPos, qr.WordPos+spanLen) inside qr.Sentence. Returns nil if the
// span has no target alignment, exceeds MaxTgtLen, or is non-contiguous
// (some target position it tightly covers is aligned to a source word
// outside the span).
func (e *Extractor) Extract(qr suffixarray.QueryResult, spanLen int) []SampledRule {
	s := qr.Sentence
	start := qr.WordPos
	end := start + spanLen

	minT, maxT, ok := s.MinMaxTargetSpan(start, end)
	if !ok {
		return nil
	}
	if maxT-minT >= e.MaxTgtLen {
		return nil
	}

	cov := e.pool.Get().(*bitset.BitSet)
	defer e.pool.Put(cov)
	cov.ClearAll()
	for k := start; k < end; k++ {
		for _, j := range s.F2E[k] {
			cov.Set(uint(j))
		}
	}

	// A position strictly inside the tight span that is aligned overall but
	// not covered by this span's own alignments is pulling in a source word
	// from outside [start,end) — the span is non-contiguous.
	for p := minT; p <= maxT; p++ {
		if s.AlignedTgt.Test(uint(p)) && !cov.Test(uint(p)) {
			return nil
		}
	}

	var rules []SampledRule
	for startT := minT; startT >= 0 && startT > maxT-e.MaxTgtLen && (startT == minT || !s.AlignedTgt.Test(uint(startT))); startT-- {
		for endT := maxT; endT < len(s.Target) && endT < startT+e.MaxTgtLen && (endT == maxT || !s.AlignedTgt.Test(uint(endT))); endT++ {
			rules = append(rules, SampledRule{
				Sentence: s,
				SrcStart: start,
				SrcEnd:   end,
				TgtStart: startT,
				TgtEnd:   endT + 1,
			})
		}
	}
	return rules
}
