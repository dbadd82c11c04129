package suffixarray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// denseCorpus builds the toy corpus and returns the pattern [b], which
// occurs once in each of its three sentences.
func denseCorpus(t *testing.T) (*ParallelSuffixArray, []uint32) {
	t.Helper()
	c, v := toyCorpus(t)
	sa := Build(c, v, 11)
	return sa, idsFor(v, "b")
}

func TestSampleIsDeterministicAcrossCalls(t *testing.T) {
	sa, pattern := denseCorpus(t)

	r1, err := sa.Sample(pattern, Source, 2)
	require.NoError(t, err)
	r2, err := sa.Sample(pattern, Source, 2)
	require.NoError(t, err)

	require.Equal(t, r1.NumHits, r2.NumHits)
	require.Len(t, r2.Samples, len(r1.Samples))
	for i := range r1.Samples {
		assert.Equalf(t, r1.Samples[i].WordPos, r2.Samples[i].WordPos, "sample %d", i)
		assert.Equalf(t, r1.Samples[i].Sentence, r2.Samples[i].Sentence, "sample %d", i)
	}
}

func TestSampleIsSubsetOfTrueOccurrences(t *testing.T) {
	sa, pattern := denseCorpus(t)

	full, err := sa.Query(pattern, Source)
	require.NoError(t, err)
	sampled, err := sa.Sample(pattern, Source, len(full))
	require.NoError(t, err)
	assert.Equal(t, len(full), sampled.NumHits)
	require.Len(t, sampled.Samples, len(full))

	seen := make(map[string]bool)
	for _, r := range full {
		seen[sentenceKey(r)] = true
	}
	for _, r := range sampled.Samples {
		assert.Truef(t, seen[sentenceKey(r)], "sample %+v is not among the true occurrences", r)
	}
}

func TestSampleNoDuplicatesWithinOneDraw(t *testing.T) {
	sa, pattern := denseCorpus(t)

	full, err := sa.Query(pattern, Source)
	require.NoError(t, err)
	if len(full) < 2 {
		t.Skip("need at least 2 occurrences to test for duplicates")
	}

	res, err := sa.Sample(pattern, Source, len(full))
	require.NoError(t, err)
	keys := make(map[string]bool)
	for _, s := range res.Samples {
		k := sentenceKey(s)
		assert.Falsef(t, keys[k], "duplicate sample %s in a without-replacement draw", k)
		keys[k] = true
	}
}

func TestSampleKGreaterThanHitsIsClamped(t *testing.T) {
	sa, pattern := denseCorpus(t)

	full, err := sa.Query(pattern, Source)
	require.NoError(t, err)

	res, err := sa.Sample(pattern, Source, len(full)+1000)
	require.NoError(t, err)
	assert.Len(t, res.Samples, len(full))
}

func TestSampleZeroHitsIsEmptyNotError(t *testing.T) {
	c, v := toyCorpus(t)
	sa := Build(c, v, 5)

	pattern := idsFor(v, "d", "a") // never adjacent
	res, err := sa.Sample(pattern, Source, 5)
	require.NoError(t, err)
	assert.Zero(t, res.NumHits)
	assert.Empty(t, res.Samples)
}

func TestSampleEmptyPatternFails(t *testing.T) {
	c, v := toyCorpus(t)
	sa := Build(c, v, 5)

	_, err := sa.Sample(nil, Source, 1)
	assert.Error(t, err)
}

func TestSampleWithDistinctSeedsIsReproducible(t *testing.T) {
	c, v := toyCorpus(t)
	saA := Build(c, v, 1)
	saB := Build(c, v, 2)

	pattern := idsFor(v, "b")
	rA, err := saA.Sample(pattern, Source, 1)
	require.NoError(t, err)
	rB, err := saB.Sample(pattern, Source, 1)
	require.NoError(t, err)

	// Not asserting inequality (a small corpus may coincidentally agree);
	// only that both calls are internally consistent and reproducible.
	rA2, err := saA.Sample(pattern, Source, 1)
	require.NoError(t, err)
	assert.Equal(t, rA.Samples[0].WordPos, rA2.Samples[0].WordPos)
	_ = rB
}
