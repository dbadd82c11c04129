package suffixarray

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	kbinary "github.com/kelindar/binary"

	"github.com/latticemt/dynamictm/pkg/corpus"
	"github.com/latticemt/dynamictm/pkg/vocab"
)

// magic identifies the on-disk index format; version allows the schema to
// evolve without breaking readers of older files.
var magic = [4]byte{'D', 'Y', 'T', 'M'}

const formatVersion = 1

type saEntry struct {
	Sentence int32
	WordPos  int32
}

// payload is the schema-checked binary shape of a persisted index: a
// vocabulary string table, flat per-sentence corpus ids, CSR-packed
// alignments, and the two suffix arrays.
type payload struct {
	VocabWords []string

	SentenceSourceLen []uint32
	SentenceTargetLen []uint32
	SourceIDs         []uint32
	TargetIDs         []uint32

	F2ECounts []uint32
	F2EFlat   []uint32
	E2FCounts []uint32
	E2FFlat   []uint32

	SrcSA []saEntry
	TgtSA []saEntry

	GlobalSeed uint64
}

// Save writes the index to path. If path ends in ".gz" the payload is
// transparently gzip-compressed.
func (sa *ParallelSuffixArray) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("suffixarray: create %s: %w", path, err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := sa.WriteTo(w); err != nil {
		return fmt.Errorf("suffixarray: write %s: %w", path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("suffixarray: close gzip writer for %s: %w", path, err)
		}
	}
	return nil
}

// WriteTo encodes the index onto w: a 4-byte magic, a version byte, then the
// kelindar/binary-encoded payload.
func (sa *ParallelSuffixArray) WriteTo(w io.Writer) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{formatVersion}); err != nil {
		return err
	}

	p := sa.toPayload()
	body, err := kbinary.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = w.Write(body)
	return err
}

func (sa *ParallelSuffixArray) toPayload() payload {
	p := payload{
		GlobalSeed: sa.globalSeed,
	}

	p.VocabWords = sa.Vocab.ToSlice()

	for _, s := range sa.Corpus.Sentences {
		p.SentenceSourceLen = append(p.SentenceSourceLen, uint32(len(s.Source)))
		p.SentenceTargetLen = append(p.SentenceTargetLen, uint32(len(s.Target)))
		p.SourceIDs = append(p.SourceIDs, s.Source...)
		p.TargetIDs = append(p.TargetIDs, s.Target...)

		for _, row := range s.F2E {
			p.F2ECounts = append(p.F2ECounts, uint32(len(row)))
			p.F2EFlat = append(p.F2EFlat, row...)
		}
		for _, row := range s.E2F {
			p.E2FCounts = append(p.E2FCounts, uint32(len(row)))
			p.E2FFlat = append(p.E2FFlat, row...)
		}
	}

	p.SrcSA = make([]saEntry, len(sa.srcSA))
	for i, e := range sa.srcSA {
		p.SrcSA[i] = saEntry(e)
	}
	p.TgtSA = make([]saEntry, len(sa.tgtSA))
	for i, e := range sa.tgtSA {
		p.TgtSA[i] = saEntry(e)
	}

	return p
}

// Load reads an index previously written by Save. If path ends in ".gz" the
// payload is transparently decompressed.
func Load(path string) (*ParallelSuffixArray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("suffixarray: open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("suffixarray: gzip reader for %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	sa, err := ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("suffixarray: read %s: %w", path, err)
	}
	return sa, nil
}

// ReadFrom decodes an index from r, validating the magic header and version.
func ReadFrom(r io.Reader) (*ParallelSuffixArray, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(hdr[:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic %x", ErrCorruptIndex, hdr[:4])
	}
	if hdr[4] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptIndex, hdr[4])
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var p payload
	if err := kbinary.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrCorruptIndex, err)
	}

	return fromPayload(p)
}

func fromPayload(p payload) (*ParallelSuffixArray, error) {
	v := vocab.New()
	for _, w := range p.VocabWords {
		v.Add(w)
	}

	if len(p.SentenceSourceLen) != len(p.SentenceTargetLen) {
		return nil, fmt.Errorf("%w: mismatched sentence count (%d source lens, %d target lens)",
			ErrCorruptIndex, len(p.SentenceSourceLen), len(p.SentenceTargetLen))
	}

	sentences := make([]*corpus.AlignedSentence, len(p.SentenceSourceLen))
	srcOff, tgtOff := 0, 0
	f2eRow, e2fRow := 0, 0
	f2eFlatOff, e2fFlatOff := 0, 0

	for i := range sentences {
		srcLen := int(p.SentenceSourceLen[i])
		tgtLen := int(p.SentenceTargetLen[i])
		if srcOff+srcLen > len(p.SourceIDs) || tgtOff+tgtLen > len(p.TargetIDs) {
			return nil, fmt.Errorf("%w: corpus id arrays shorter than declared sentence lengths", ErrCorruptIndex)
		}
		source := p.SourceIDs[srcOff : srcOff+srcLen]
		target := p.TargetIDs[tgtOff : tgtOff+tgtLen]
		srcOff += srcLen
		tgtOff += tgtLen

		f2e := make([][]uint32, srcLen)
		for j := 0; j < srcLen; j++ {
			if f2eRow >= len(p.F2ECounts) {
				return nil, fmt.Errorf("%w: truncated F2E row counts", ErrCorruptIndex)
			}
			c := int(p.F2ECounts[f2eRow])
			f2eRow++
			if f2eFlatOff+c > len(p.F2EFlat) {
				return nil, fmt.Errorf("%w: truncated F2E flat array", ErrCorruptIndex)
			}
			f2e[j] = p.F2EFlat[f2eFlatOff : f2eFlatOff+c]
			f2eFlatOff += c
		}

		e2f := make([][]uint32, tgtLen)
		for j := 0; j < tgtLen; j++ {
			if e2fRow >= len(p.E2FCounts) {
				return nil, fmt.Errorf("%w: truncated E2F row counts", ErrCorruptIndex)
			}
			c := int(p.E2FCounts[e2fRow])
			e2fRow++
			if e2fFlatOff+c > len(p.E2FFlat) {
				return nil, fmt.Errorf("%w: truncated E2F flat array", ErrCorruptIndex)
			}
			e2f[j] = p.E2FFlat[e2fFlatOff : e2fFlatOff+c]
			e2fFlatOff += c
		}

		sentences[i] = corpus.FromCSR(source, target, f2e, e2f)
		if err := sentences[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: sentence %d: %v", ErrCorruptIndex, i, err)
		}
	}

	c := corpus.Build(sentences)

	srcSA := make([]position, len(p.SrcSA))
	for i, e := range p.SrcSA {
		srcSA[i] = position(e)
	}
	tgtSA := make([]position, len(p.TgtSA))
	for i, e := range p.TgtSA {
		tgtSA[i] = position(e)
	}

	return &ParallelSuffixArray{
		Corpus:     c,
		Vocab:      v,
		srcSA:      srcSA,
		tgtSA:      tgtSA,
		globalSeed: p.GlobalSeed,
		Stats: BuildStats{
			Sentences:      c.NumSentences(),
			SourceTokens:   len(c.SourceIDs),
			TargetTokens:   len(c.TargetIDs),
			SourceSuffixes: len(srcSA),
			TargetSuffixes: len(tgtSA),
			// BuildWallTime stays zero: Load reconstitutes the suffix arrays
			// from the payload rather than re-sorting them.
			SentinelCount: sentinelCount(c),
		},
	}, nil
}
