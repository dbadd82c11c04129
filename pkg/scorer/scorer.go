// Package scorer turns a histogram of extracted SampledRules into dense
// feature vectors: phrase translation probabilities in both directions
// (with Germann's reverse-direction approximation) and lexical translation
// probabilities in both directions, backed by a precomputed lexical
// co-occurrence cache.
package scorer

import (
	"github.com/chewxy/math32"

	"github.com/latticemt/dynamictm/pkg/lexcooc"
	"github.com/latticemt/dynamictm/pkg/rule"
	"github.com/latticemt/dynamictm/pkg/suffixarray"
)

// Scorer computes FeatureVectors for one source phrase's extracted rules
// against a shared lexical co-occurrence table.
type Scorer struct {
	Lex      *lexcooc.Table
	Template FeatureTemplate
}

// New returns a Scorer backed by lex, producing features per template.
func New(lex *lexcooc.Table, template FeatureTemplate) *Scorer {
	return &Scorer{Lex: lex, Template: template}
}

// ruleStats accumulates the observed count and the jointly-maximal lexical
// probability pair for one distinct rule key.
type ruleStats struct {
	rule  rule.SampledRule
	count int
	lexFE float32
	lexEF float32
}

// Score aggregates rules (the multiset produced by running the extractor
// over every sample of one source phrase) into one FeatureVector per
// distinct rule key. sampleRate is samples.size()/numHits for the query
// that produced rules, used by Germann's approximation in phi_e_f. sa is
// the index queried for the target-side total count of each rule's target
// phrase.
func (sc *Scorer) Score(rules []rule.SampledRule, sa *suffixarray.ParallelSuffixArray, sampleRate float32) (map[string]FeatureVector, error) {
	stats := make(map[string]*ruleStats)
	total := 0

	for _, r := range rules {
		key := r.Key()
		st, ok := stats[key]
		if !ok {
			st = &ruleStats{rule: r}
			stats[key] = st
		}
		st.count++
		total++

		lfe, lef := sc.lexicalProbabilities(r)
		// Retain the jointly-maximal (lex_e_f, lex_f_e) pair: update only
		// if both candidate values strictly exceed the stored ones,
		// preserved as specified even though it is asymmetric with
		// respect to a per-direction argmax.
		if lfe > st.lexFE && lef > st.lexEF {
			st.lexFE = lfe
			st.lexEF = lef
		}
	}

	out := make(map[string]FeatureVector, len(stats))
	for key, st := range stats {
		fv := FeatureVector{
			LexFE: st.lexFE,
			LexEF: st.lexEF,
		}

		c := float32(st.count)
		fv.PhiFE = math32.Log(c) - math32.Log(float32(total))

		tgtCount, err := sa.Count(st.rule.TargetWords(), suffixarray.Target)
		if err != nil {
			return nil, err
		}
		num := float32(tgtCount) - c*sampleRate
		if num < 0 {
			num = 0
		}
		fv.PhiEF = math32.Log(c) - math32.Log(c+num)

		if sc.Template == DENSEExt {
			fv.LogCount = math32.Log(c)
			if st.count == 1 {
				fv.Singleton = 1
			}
		}

		out[key] = fv
	}

	return out, nil
}

// lexicalProbabilities computes the forward (lex_e_f, over the source span)
// and backward (lex_f_e, over the target span) lexical translation
// probabilities for one sampled rule occurrence.
func (sc *Scorer) lexicalProbabilities(r rule.SampledRule) (lexFE, lexEF float32) {
	s := r.Sentence

	lexEF = float32(1)
	for i := r.SrcStart; i < r.SrcEnd; i++ {
		lexEF *= sc.averageFactor(int64(s.Source[i]), s.F2E[i], s.Target, true)
	}

	lexFE = float32(1)
	for j := r.TgtStart; j < r.TgtEnd; j++ {
		lexFE *= sc.averageFactor(int64(s.Target[j]), s.E2F[j], s.Source, false)
	}

	return lexFE, lexEF
}

// averageFactor computes avg_{partner} joint(a,b)/marginal(a) over
// partners, where a is fixed (id) and the partner ids come from
// otherSideWords indexed by links; fromSource selects which marginal and
// which argument order to use when querying the joint table. An empty link
// list is treated as a single unaligned occurrence paired with NullID.
func (sc *Scorer) averageFactor(id int64, links []uint32, otherSideWords []uint32, fromSource bool) float32 {
	if len(links) == 0 {
		var j, m int64
		if fromSource {
			j = sc.Lex.Joint(id, lexcooc.NullID)
			m = sc.Lex.SrcMarginal(id)
		} else {
			j = sc.Lex.Joint(lexcooc.NullID, id)
			m = sc.Lex.TgtMarginal(id)
		}
		return factorOrMin(j, m)
	}

	sum := float32(0)
	for _, p := range links {
		partner := int64(otherSideWords[p])
		var j, m int64
		if fromSource {
			j = sc.Lex.Joint(id, partner)
			m = sc.Lex.SrcMarginal(id)
		} else {
			j = sc.Lex.Joint(partner, id)
			m = sc.Lex.TgtMarginal(id)
		}
		sum += factorOrMin(j, m)
	}
	return sum / float32(len(links))
}

func factorOrMin(joint, marginal int64) float32 {
	if joint == 0 || marginal == 0 {
		return MinLexProb
	}
	return float32(joint) / float32(marginal)
}
