package corpus

// Corpus is the concatenation of all AlignedSentences, stored as contiguous
// id vectors per side plus a prefix sum of sentence lengths, so that a flat
// position in either concatenated stream can be mapped back to (sentence
// index, word position) in O(log n).
type Corpus struct {
	Sentences []*AlignedSentence

	SourceIDs []uint32 // concatenation of all Source, one sentence after another
	TargetIDs []uint32

	srcOffsets []int // srcOffsets[i] = flat start of Sentences[i].Source; len = N+1
	tgtOffsets []int
}

// Build concatenates sentences into flat id streams and prefix sums.
func Build(sentences []*AlignedSentence) *Corpus {
	c := &Corpus{
		Sentences:  sentences,
		srcOffsets: make([]int, len(sentences)+1),
		tgtOffsets: make([]int, len(sentences)+1),
	}

	srcLen, tgtLen := 0, 0
	for _, s := range sentences {
		srcLen += len(s.Source)
		tgtLen += len(s.Target)
	}
	c.SourceIDs = make([]uint32, 0, srcLen)
	c.TargetIDs = make([]uint32, 0, tgtLen)

	for i, s := range sentences {
		c.srcOffsets[i] = len(c.SourceIDs)
		c.tgtOffsets[i] = len(c.TargetIDs)
		c.SourceIDs = append(c.SourceIDs, s.Source...)
		c.TargetIDs = append(c.TargetIDs, s.Target...)
	}
	c.srcOffsets[len(sentences)] = len(c.SourceIDs)
	c.tgtOffsets[len(sentences)] = len(c.TargetIDs)

	return c
}

// NumSentences returns the number of sentences in the corpus.
func (c *Corpus) NumSentences() int { return len(c.Sentences) }

// SourceOffset returns the flat start position of sentence i in SourceIDs.
func (c *Corpus) SourceOffset(i int) int { return c.srcOffsets[i] }

// TargetOffset returns the flat start position of sentence i in TargetIDs.
func (c *Corpus) TargetOffset(i int) int { return c.tgtOffsets[i] }

// SentenceAtSource maps a flat source position back to (sentenceIdx,
// wordPos) via binary search over the offset prefix sums.
func (c *Corpus) SentenceAtSource(flatPos int) (sentenceIdx, wordPos int) {
	return sentenceAt(c.srcOffsets, flatPos)
}

// SentenceAtTarget maps a flat target position back to (sentenceIdx,
// wordPos).
func (c *Corpus) SentenceAtTarget(flatPos int) (sentenceIdx, wordPos int) {
	return sentenceAt(c.tgtOffsets, flatPos)
}

func sentenceAt(offsets []int, flatPos int) (int, int) {
	lo, hi := 0, len(offsets)-2 // last valid sentence index
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if offsets[mid] <= flatPos {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, flatPos - offsets[lo]
}
