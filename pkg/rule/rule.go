// Package rule implements phrase-pair extraction: given one sampled source
// occurrence, enumerate every admissible target span under the standard
// contiguity and unaligned-boundary-growth rules.
package rule

import "github.com/latticemt/dynamictm/pkg/corpus"

// SampledRule is one extracted phrase pair: a source span and a target span
// inside the same sentence. Identity for equality/hashing purposes is the
// content of the two word sequences, not their positions — see Key.
type SampledRule struct {
	Sentence *corpus.AlignedSentence
	SrcStart int
	SrcEnd   int
	TgtStart int
	TgtEnd   int
}

// SourceWords returns the source word ids spanned by r.
func (r SampledRule) SourceWords() []uint32 {
	return r.Sentence.Source[r.SrcStart:r.SrcEnd]
}

// TargetWords returns the target word ids spanned by r.
func (r SampledRule) TargetWords() []uint32 {
	return r.Sentence.Target[r.TgtStart:r.TgtEnd]
}

// Key returns a value suitable for use as a map key that is equal for two
// SampledRules iff their source and target word sequences are identical,
// regardless of which sentence or positions produced them.
func (r SampledRule) Key() string {
	return encodeKey(r.SourceWords(), r.TargetWords())
}

func encodeKey(src, tgt []uint32) string {
	buf := make([]byte, 0, (len(src)+len(tgt))*4+4)
	for _, id := range src {
		buf = appendUint32(buf, id)
	}
	// 0xffffffff separates the two word sequences; a real id would need to
	// be at the uint32 ceiling to collide with it.
	buf = append(buf, 0xff, 0xff, 0xff, 0xff)
	for _, id := range tgt {
		buf = appendUint32(buf, id)
	}
	return string(buf)
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
