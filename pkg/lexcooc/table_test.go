package lexcooc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticemt/dynamictm/pkg/corpus"
)

func TestAddCoocAndJointAreConsistent(t *testing.T) {
	tbl := New()
	tbl.AddCooc(1, 2)
	tbl.AddCooc(1, 2)
	tbl.AddCooc(1, 3)

	assert.EqualValues(t, 2, tbl.Joint(1, 2))
	assert.EqualValues(t, 1, tbl.Joint(1, 3))
	assert.Zero(t, tbl.Joint(1, 99), "unseen pair")
	assert.Zero(t, tbl.Joint(99, 1), "unseen outer key")
}

func TestMarginalsIncrementMonotonically(t *testing.T) {
	tbl := New()
	tbl.IncrSrcMarginal(5, 3)
	tbl.IncrSrcMarginal(5, 4)
	assert.EqualValues(t, 7, tbl.SrcMarginal(5))

	tbl.IncrTgtMarginal(9, 2)
	assert.EqualValues(t, 2, tbl.TgtMarginal(9))
	assert.Zero(t, tbl.TgtMarginal(123), "unseen id")
}

func TestNullIDPairingForUnalignedOccurrence(t *testing.T) {
	tbl := New()
	tbl.AddCooc(7, NullID)
	assert.EqualValues(t, 1, tbl.Joint(7, NullID))
}

func TestDistinctIDsCountsEachRealIDOnce(t *testing.T) {
	tbl := New()
	tbl.IncrSrcMarginal(1, 1)
	tbl.AddCooc(1, 2) // 1 already seen; 2 is new
	tbl.AddCooc(1, 3) // 3 is new
	tbl.AddCooc(1, NullID)
	tbl.IncrTgtMarginal(2, 1) // 2 already seen

	assert.EqualValues(t, 3, tbl.DistinctIDs())
}

func TestConcurrentIncrementsAreLinearizableAtCounterGranularity(t *testing.T) {
	tbl := New()
	const goroutines = 50
	const incrementsEach = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < incrementsEach; i++ {
				tbl.IncrSrcMarginal(1, 1)
				tbl.AddCooc(1, 2)
			}
		}()
	}
	wg.Wait()

	want := int64(goroutines * incrementsEach)
	assert.Equal(t, want, tbl.SrcMarginal(1))
	assert.Equal(t, want, tbl.Joint(1, 2))
}

func TestBuildFromCorpusAccumulatesMarginalsAndJoints(t *testing.T) {
	// src=[10 11 12] tgt=[20 21 22], alignments 0-0 1-1 2-2: every
	// position aligned one-to-one, no NullID pairings expected.
	s0, err := corpus.NewAlignedSentence(
		[]uint32{10, 11, 12}, []uint32{20, 21, 22},
		[][2]int{{0, 0}, {1, 1}, {2, 2}})
	require.NoError(t, err)

	// src=[11 13] tgt=[30 21 31], alignment 0-1 only: position 1 of src
	// (id 13) is unaligned, and target positions 0,2 are unaligned.
	s1, err := corpus.NewAlignedSentence(
		[]uint32{11, 13}, []uint32{30, 21, 31},
		[][2]int{{0, 1}})
	require.NoError(t, err)

	c := corpus.Build([]*corpus.AlignedSentence{s0, s1})
	tbl := BuildFromCorpus(c)

	assert.EqualValues(t, 1, tbl.Joint(10, 20))
	// id 11 occurs aligned in both sentences: to 21 (s0) and to 21 (s1).
	assert.EqualValues(t, 2, tbl.Joint(11, 21))
	// id 13 is unaligned in s1, so it should be paired with NullID once.
	assert.EqualValues(t, 1, tbl.Joint(13, NullID))
	assert.EqualValues(t, 1, tbl.SrcMarginal(13))
	// id 11's marginal is 1 (s0) + 1 (s1) = 2.
	assert.EqualValues(t, 2, tbl.SrcMarginal(11))
	// Target ids 30 and 31 are unaligned in s1, each contributing 1 to
	// their own target marginal and a NullID joint entry on the target side.
	assert.EqualValues(t, 1, tbl.TgtMarginal(30))
	assert.EqualValues(t, 1, tbl.TgtMarginal(31))
	assert.EqualValues(t, 1, tbl.Joint(NullID, 30))
	assert.EqualValues(t, 1, tbl.Joint(NullID, 31))
}
