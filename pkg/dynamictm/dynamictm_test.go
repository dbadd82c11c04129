package dynamictm

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticemt/dynamictm/pkg/corpus"
	"github.com/latticemt/dynamictm/pkg/suffixarray"
	"github.com/latticemt/dynamictm/pkg/vocab"
)

func toySentence(t *testing.T, v *vocab.Vocabulary, src, tgt []string, links [][2]int) *corpus.AlignedSentence {
	t.Helper()
	srcIDs := make([]uint32, len(src))
	for i, w := range src {
		srcIDs[i] = v.Add(w)
	}
	tgtIDs := make([]uint32, len(tgt))
	for i, w := range tgt {
		tgtIDs[i] = v.Add(w)
	}
	s, err := corpus.NewAlignedSentence(srcIDs, tgtIDs, links)
	require.NoError(t, err)
	return s
}

// buildToyIndex writes a small repeated-pattern corpus to disk and returns a
// loaded, uninitialized DynamicTM plus the path it was saved to.
func buildToyIndex(t *testing.T) (*DynamicTM, string) {
	t.Helper()
	v := vocab.New()
	sentences := make([]*corpus.AlignedSentence, 0, 200)
	for i := 0; i < 200; i++ {
		sentences = append(sentences, toySentence(t, v,
			[]string{"the", "cat", "sat"}, []string{"le", "chat", "assis"},
			[][2]int{{0, 0}, {1, 1}, {2, 2}}))
	}
	// A single rare sentence pair so "dog" stays below the cache threshold.
	sentences = append(sentences, toySentence(t, v,
		[]string{"the", "dog", "sat"}, []string{"le", "chien", "assis"},
		[][2]int{{0, 0}, {1, 1}, {2, 2}}))

	cp := corpus.Build(sentences)
	sa := suffixarray.Build(cp, v, 7)

	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")
	require.NoError(t, sa.Save(path))

	dtm, err := Load(path)
	require.NoError(t, err)
	return dtm, path
}

func TestLoadThenInitBuildsCaches(t *testing.T) {
	dtm, _ := buildToyIndex(t)
	require.NoError(t, dtm.Init(false, 50))
	stats := dtm.Stats()
	assert.NotZero(t, stats.UnigramCacheEntries, "expected at least one cached unigram (the)/(cat)/(sat)")
	// the/cat/sat/dog source-side plus le/chat/assis/chien target-side.
	assert.Equal(t, 8, stats.LexCoocDistinctIDs)
}

func TestInitTwiceFails(t *testing.T) {
	dtm, _ := buildToyIndex(t)
	require.NoError(t, dtm.Init(false, 50))
	assert.Error(t, dtm.Init(false, 50))
}

func TestSetConfigAfterInitFails(t *testing.T) {
	dtm, _ := buildToyIndex(t)
	require.NoError(t, dtm.Init(false, 50))
	assert.Error(t, dtm.SetMaxSourcePhrase(3))
	assert.Error(t, dtm.SetFeatureTemplate(DenseExt))
}

func TestInvalidConfigRejected(t *testing.T) {
	dtm, _ := buildToyIndex(t)
	require.NoError(t, dtm.SetMaxSourcePhrase(0), "SetMaxSourcePhrase should be accepted before Init")
	assert.Error(t, dtm.Init(false, 50), "Init should reject a zero max source phrase")
}

func TestGetRulesEndToEndYieldsRulesForKnownPhrase(t *testing.T) {
	dtm, _ := buildToyIndex(t)
	require.NoError(t, dtm.Init(false, 50))

	rules := dtm.GetRules([]string{"the", "cat", "sat"})
	require.NotEmpty(t, rules, "expected rules for a frequent, fully in-vocabulary phrase")

	for _, r := range rules {
		assert.GreaterOrEqual(t, r.SourceStart, 0)
		assert.LessOrEqual(t, r.SourceEnd, 3)
		assert.Less(t, r.SourceStart, r.SourceEnd)
		assert.NotEmpty(t, r.TargetWords)
		require.NotNil(t, r.SourceCoverage)
		assert.EqualValues(t, r.SourceEnd-r.SourceStart, r.SourceCoverage.GetCardinality())
	}
}

// Scenario S5: an out-of-vocabulary word anywhere in a span must sink every
// rule whose span includes that position, without erroring.
func TestGetRulesSkipsSpansContainingOutOfVocabularyWord(t *testing.T) {
	dtm, _ := buildToyIndex(t)
	require.NoError(t, dtm.Init(false, 50))

	rules := dtm.GetRules([]string{"the", "cat", "zzzznonexistentword", "sat", "the"})
	for _, r := range rules {
		assert.Falsef(t, r.SourceStart <= 2 && r.SourceEnd > 2, "rule %+v covers the out-of-vocabulary position", r)
	}
}

// Scenario S6: two concurrent GetRules calls each introducing the same new
// out-of-vocabulary word must leave the vocabulary in one consistent state
// (a single id for the new word), since Vocabulary.Add is safe under
// concurrent growth.
func TestConcurrentGetRulesConvergeOnOneVocabularyID(t *testing.T) {
	dtm, _ := buildToyIndex(t)
	require.NoError(t, dtm.Init(false, 50))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dtm.GetRules([]string{"the", "newwordxyz", "sat"})
		}()
	}
	wg.Wait()

	id1, ok1 := dtm.queryVocab.Lookup("newwordxyz")
	require.True(t, ok1, "expected newwordxyz to have been added to the vocabulary")
	id2, ok2 := dtm.queryVocab.Lookup("newwordxyz")
	require.True(t, ok2)
	assert.Equal(t, id1, id2, "vocabulary did not converge on a single id")
}

func TestGetRulesOnEmptySourceReturnsNoRules(t *testing.T) {
	dtm, _ := buildToyIndex(t)
	require.NoError(t, dtm.Init(false, 50))
	assert.Empty(t, dtm.GetRules(nil))
}
