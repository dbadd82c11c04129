package lexcooc

import (
	"runtime"
	"sync"

	"github.com/latticemt/dynamictm/pkg/corpus"
)

// BuildFromCorpus populates a new Table by walking every aligned sentence in
// c once: each source word increments its marginal by its aligned-position
// count (or by 1, paired with NullID, when unaligned) and records one joint
// count per aligned target partner; the target side is symmetric over e2f.
//
// Sentences are partitioned across goroutines for data-parallel
// construction — increment-only counters make races on key creation benign,
// so no single-threaded barrier is required during this pass.
func BuildFromCorpus(c *corpus.Corpus) *Table {
	t := New()

	n := c.NumSentences()
	if n == 0 {
		return t
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= n {
			break
		}
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for si := lo; si < hi; si++ {
				accumulateSentence(t, c.Sentences[si])
			}
		}(start, end)
	}
	wg.Wait()

	return t
}

func accumulateSentence(t *Table, s *corpus.AlignedSentence) {
	for i, src := range s.Source {
		tgts := s.F2E[i]
		if len(tgts) == 0 {
			t.IncrSrcMarginal(int64(src), 1)
			t.AddCooc(int64(src), NullID)
			continue
		}
		t.IncrSrcMarginal(int64(src), int64(len(tgts)))
		for _, j := range tgts {
			t.AddCooc(int64(src), int64(s.Target[j]))
		}
	}

	for j, tgt := range s.Target {
		srcs := s.E2F[j]
		if len(srcs) == 0 {
			t.IncrTgtMarginal(int64(tgt), 1)
			t.AddCooc(NullID, int64(tgt))
			continue
		}
		t.IncrTgtMarginal(int64(tgt), int64(len(srcs)))
	}
}
