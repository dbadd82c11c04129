package dynamictm

import (
	"runtime"
	"sync"

	"github.com/latticemt/dynamictm/pkg/rule"
	"github.com/latticemt/dynamictm/pkg/scorer"
	"github.com/latticemt/dynamictm/pkg/suffixarray"
	"github.com/latticemt/dynamictm/pkg/vocab"
)

// cachedRule is one precomputed scored rule in the unigram cache: resolved
// target words plus its feature vector. The source-coverage bitmap is added
// at query time, since the same cached entry is reused at every position
// where its unigram occurs in the input.
type cachedRule struct {
	TargetWords []string
	Features    scorer.FeatureVector
}

// buildUnigramCache precomputes scored rules for every source unigram id
// whose raw corpus hit count exceeds cacheThreshold. Vocabulary ids are
// data-parallel and independent of one another, so the id space is
// partitioned across goroutines the same way lexcooc.BuildFromCorpus
// partitions sentences.
func buildUnigramCache(sa *suffixarray.ParallelSuffixArray, sc *scorer.Scorer, extractor *rule.Extractor, sampleSize, cacheThreshold int) (map[uint32][]cachedRule, error) {
	n := sa.Vocab.Size()
	cache := make(map[uint32][]cachedRule)
	if n == 0 {
		return cache, nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		firstEr error
		errOnce sync.Once
	)
	chunk := (n + workers - 1) / workers

	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if lo >= n {
			break
		}
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for id := lo; id < hi; id++ {
				entries, err := scoreUnigram(sa, sc, extractor, uint32(id), sampleSize, cacheThreshold)
				if err != nil {
					errOnce.Do(func() { firstEr = err })
					return
				}
				if entries == nil {
					continue
				}
				mu.Lock()
				cache[uint32(id)] = entries
				mu.Unlock()
			}
		}(lo, hi)
	}
	wg.Wait()

	if firstEr != nil {
		return nil, firstEr
	}
	return cache, nil
}

func scoreUnigram(sa *suffixarray.ParallelSuffixArray, sc *scorer.Scorer, extractor *rule.Extractor, id uint32, sampleSize, cacheThreshold int) ([]cachedRule, error) {
	pattern := []uint32{id}

	numHits, err := sa.Count(pattern, suffixarray.Source)
	if err != nil {
		return nil, err
	}
	if numHits <= cacheThreshold {
		return nil, nil
	}

	sampled, err := sa.Sample(pattern, suffixarray.Source, sampleSize)
	if err != nil {
		return nil, err
	}
	if sampled.NumHits == 0 {
		return nil, nil
	}

	var rules []rule.SampledRule
	reps := make(map[string]rule.SampledRule)
	for _, qr := range sampled.Samples {
		for _, r := range extractor.Extract(qr, 1) {
			rules = append(rules, r)
			if _, ok := reps[r.Key()]; !ok {
				reps[r.Key()] = r
			}
		}
	}
	if len(rules) == 0 {
		return nil, nil
	}

	sampleRate := float32(len(sampled.Samples)) / float32(sampled.NumHits)
	fvs, err := sc.Score(rules, sa, sampleRate)
	if err != nil {
		return nil, err
	}

	entries := make([]cachedRule, 0, len(fvs))
	for key, fv := range fvs {
		entries = append(entries, cachedRule{
			TargetWords: resolveWords(sa.Vocab, reps[key].TargetWords()),
			Features:    fv,
		})
	}
	return entries, nil
}

func resolveWords(v *vocab.Vocabulary, ids []uint32) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = v.Get(id)
	}
	return out
}
