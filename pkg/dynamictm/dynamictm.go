// Package dynamictm is the public facade of the dynamic translation-rule
// extractor: it owns the suffix-array index, the lexical co-occurrence
// cache, and the unigram rule cache, and answers GetRules queries by
// running sampling + extraction + scoring for one source-span length at a
// time, in parallel across the span start positions.
package dynamictm

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/latticemt/dynamictm/pkg/lexcooc"
	"github.com/latticemt/dynamictm/pkg/rule"
	"github.com/latticemt/dynamictm/pkg/scorer"
	"github.com/latticemt/dynamictm/pkg/suffixarray"
	"github.com/latticemt/dynamictm/pkg/vocab"
)

// ConcreteRule is one scored rule returned to the decoder: the source span
// it covers in the query, the resolved target word strings, its feature
// vector, and a coverage bitmap over source positions for the decoder's own
// bookkeeping.
type ConcreteRule struct {
	SourceStart    int
	SourceEnd      int
	TargetWords    []string
	Features       scorer.FeatureVector
	SourceCoverage *roaring.Bitmap
}

// Stats reports cache sizes for tests and operators.
type Stats struct {
	UnigramCacheEntries int
	LexCoocDistinctIDs  int
}

// DynamicTM is the loaded, initialized extractor. The zero value is not
// usable; construct with Load.
type DynamicTM struct {
	sa  *suffixarray.ParallelSuffixArray
	cfg Config

	configLocked bool
	initialized  bool

	lex          *lexcooc.Table
	unigramCache map[uint32][]cachedRule
	extractor    *rule.Extractor
	scorer       *scorer.Scorer
	queryVocab   *vocab.Vocabulary
}

// Load reads the persisted index at path and returns a DynamicTM configured
// with DefaultConfig. Call Init before GetRules.
func Load(path string) (*DynamicTM, error) {
	sa, err := suffixarray.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return &DynamicTM{
		sa:  sa,
		cfg: DefaultConfig(),
	}, nil
}

// SetFeatureTemplate selects DENSE or DENSE_EXT. Must be called before
// Init.
func (d *DynamicTM) SetFeatureTemplate(t FeatureTemplateName) error {
	if d.configLocked {
		return fmt.Errorf("%w: feature template cannot change after Init", ErrConfig)
	}
	if t != Dense && t != DenseExt {
		return fmt.Errorf("%w: unknown feature template %d", ErrConfig, t)
	}
	d.cfg.FeatureTemplate = t
	return nil
}

// SetMaxSourcePhrase bounds the source span length GetRules will query.
// Must be called before Init.
func (d *DynamicTM) SetMaxSourcePhrase(n int) error {
	if d.configLocked {
		return fmt.Errorf("%w: max source phrase cannot change after Init", ErrConfig)
	}
	d.cfg.MaxSourcePhrase = n
	return nil
}

// SetMaxTargetPhrase bounds the admissible target span length the
// extractor will grow to. Must be called before Init.
func (d *DynamicTM) SetMaxTargetPhrase(n int) error {
	if d.configLocked {
		return fmt.Errorf("%w: max target phrase cannot change after Init", ErrConfig)
	}
	d.cfg.MaxTargetPhrase = n
	return nil
}

// Init populates the lex co-occurrence cache and then the unigram rule
// cache; both are immutable for the life of the object afterward. Init may
// be called exactly once.
func (d *DynamicTM) Init(useSystemVocab bool, sampleSize int) error {
	if d.initialized {
		return fmt.Errorf("%w: Init called twice", ErrConfig)
	}
	d.cfg.UseSystemVocab = useSystemVocab
	d.cfg.SampleSize = sampleSize
	if err := d.cfg.Validate(); err != nil {
		return err
	}
	d.configLocked = true

	if useSystemVocab {
		vocab.SetSystem(d.sa.Vocab)
		d.queryVocab = vocab.System()
	} else {
		d.queryVocab = d.sa.Vocab
	}

	d.lex = lexcooc.BuildFromCorpus(d.sa.Corpus)
	d.extractor = rule.NewExtractor(d.cfg.MaxTargetPhrase)
	d.scorer = scorer.New(d.lex, toScorerTemplate(d.cfg.FeatureTemplate))

	cache, err := buildUnigramCache(d.sa, d.scorer, d.extractor, d.cfg.SampleSize, d.cfg.CacheThreshold)
	if err != nil {
		return fmt.Errorf("%w: building unigram cache: %v", ErrIO, err)
	}
	d.unigramCache = cache
	d.initialized = true
	return nil
}

func toScorerTemplate(t FeatureTemplateName) scorer.FeatureTemplate {
	if t == DenseExt {
		return scorer.DENSEExt
	}
	return scorer.DENSE
}

// Stats reports current cache sizes.
func (d *DynamicTM) Stats() Stats {
	return Stats{
		UnigramCacheEntries: len(d.unigramCache),
		LexCoocDistinctIDs:  int(d.lex.DistinctIDs()),
	}
}

// GetRules translates source (word strings) into corpus ids and returns
// every scored rule admissible for some span of source, up to
// min(MaxSourcePhrase, len(source)).
func (d *DynamicTM) GetRules(source []string) []ConcreteRule {
	ids := make([]uint32, len(source))
	for i, w := range source {
		ids[i] = d.queryVocab.Add(w)
	}

	n := len(ids)
	maxL := d.cfg.MaxSourcePhrase
	if n < maxL {
		maxL = n
	}

	miss := newMissTracker()
	var (
		mu      sync.Mutex
		results []ConcreteRule
	)

	for L := 1; L <= maxL; L++ {
		var wg sync.WaitGroup
		sem := make(chan struct{}, runtime.GOMAXPROCS(0))
		for i := 0; i <= n-L; i++ {
			wg.Add(1)
			sem <- struct{}{}
			go func(i, L int) {
				defer wg.Done()
				defer func() { <-sem }()
				rules := d.processSpan(ids, i, L, miss)
				if len(rules) == 0 {
					return
				}
				mu.Lock()
				results = append(results, rules...)
				mu.Unlock()
			}(i, L)
		}
		wg.Wait()
		miss.advance()
	}

	return results
}

func (d *DynamicTM) processSpan(ids []uint32, i, L int, miss *missTracker) []ConcreteRule {
	end := i + L
	if miss.overlaps(i, end) {
		miss.markRange(i, end)
		return nil
	}

	coverage := roaring.New()
	coverage.AddRange(uint64(i), uint64(end))

	if L == 1 {
		if entries, ok := d.unigramCache[ids[i]]; ok {
			out := make([]ConcreteRule, len(entries))
			for k, e := range entries {
				out[k] = ConcreteRule{
					SourceStart:    i,
					SourceEnd:      end,
					TargetWords:    e.TargetWords,
					Features:       e.Features,
					SourceCoverage: coverage.Clone(),
				}
			}
			return out
		}
	}

	pattern := ids[i:end]
	sampled, err := d.sa.Sample(pattern, suffixarray.Source, d.cfg.SampleSize)
	if err != nil || sampled.NumHits == 0 {
		miss.markRange(i, end)
		return nil
	}

	var rules []rule.SampledRule
	reps := make(map[string]rule.SampledRule)
	for _, qr := range sampled.Samples {
		for _, r := range d.extractor.Extract(qr, L) {
			rules = append(rules, r)
			if _, ok := reps[r.Key()]; !ok {
				reps[r.Key()] = r
			}
		}
	}
	if len(rules) == 0 {
		return nil
	}

	sampleRate := float32(len(sampled.Samples)) / float32(sampled.NumHits)
	fvs, err := d.scorer.Score(rules, d.sa, sampleRate)
	if err != nil {
		return nil
	}

	out := make([]ConcreteRule, 0, len(fvs))
	for key, fv := range fvs {
		out = append(out, ConcreteRule{
			SourceStart:    i,
			SourceEnd:      end,
			TargetWords:    resolveWords(d.sa.Vocab, reps[key].TargetWords()),
			Features:       fv,
			SourceCoverage: coverage.Clone(),
		})
	}
	return out
}

// missTracker is the per-query monotone set of source positions known to
// belong to a zero-hit span at some length already tried; a span touching
// any marked position is skipped at every longer length, since the
// substring that failed can never start matching inside a longer one.
type missTracker struct {
	mu      sync.Mutex
	bits    *roaring.Bitmap // marks from finished lengths; consulted by overlaps
	pending *roaring.Bitmap // marks made during the current length pass
}

func newMissTracker() *missTracker {
	return &missTracker{bits: roaring.New(), pending: roaring.New()}
}

// advance makes the current length's marks visible to longer lengths.
func (m *missTracker) advance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bits.Or(m.pending)
	m.pending.Clear()
}

func (m *missTracker) overlaps(start, end int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := start; p < end; p++ {
		if m.bits.Contains(uint32(p)) {
			return true
		}
	}
	return false
}

func (m *missTracker) markRange(start, end int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending.AddRange(uint64(start), uint64(end))
}
