// buildindex reads a parallel corpus (plain-text source/target sentences,
// one per line, plus GIZA++-style "i-j" alignment links) and writes a
// persisted suffix-array index for the dynamic translation-rule extractor.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/latticemt/dynamictm/pkg/corpus"
	"github.com/latticemt/dynamictm/pkg/suffixarray"
	"github.com/latticemt/dynamictm/pkg/vocab"
)

var (
	sourcePath = flag.String("source", "", "path to source-side plain text, one sentence per line")
	targetPath = flag.String("target", "", "path to target-side plain text, one sentence per line")
	alignPath  = flag.String("align", "", "path to GIZA++-style alignment file, one 'i-j i-j ...' line per sentence pair")
	outPath    = flag.String("out", "index.bin", "output path for the persisted index (.gz suffix compresses)")
	seed       = flag.Uint64("seed", 1, "global seed for the deterministic sampling RNG")
)

func main() {
	flag.Parse()
	if *sourcePath == "" || *targetPath == "" || *alignPath == "" {
		log.Fatal("buildindex: -source, -target and -align are all required")
	}

	srcLines, err := readLines(*sourcePath)
	if err != nil {
		log.Fatalf("reading source: %v", err)
	}
	tgtLines, err := readLines(*targetPath)
	if err != nil {
		log.Fatalf("reading target: %v", err)
	}
	alignLines, err := readLines(*alignPath)
	if err != nil {
		log.Fatalf("reading alignment: %v", err)
	}
	if len(srcLines) != len(tgtLines) || len(srcLines) != len(alignLines) {
		log.Fatalf("mismatched line counts: %d source, %d target, %d alignment",
			len(srcLines), len(tgtLines), len(alignLines))
	}

	v := vocab.New()
	sentences := make([]*corpus.AlignedSentence, 0, len(srcLines))
	for i := range srcLines {
		srcIDs := idsForLine(v, srcLines[i])
		tgtIDs := idsForLine(v, tgtLines[i])
		links, err := parseLinks(alignLines[i])
		if err != nil {
			log.Fatalf("line %d: parsing alignment: %v", i+1, err)
		}
		s, err := corpus.NewAlignedSentence(srcIDs, tgtIDs, links)
		if err != nil {
			log.Fatalf("line %d: %v", i+1, err)
		}
		sentences = append(sentences, s)
	}

	fmt.Printf("read %d sentence pairs, %d distinct words\n", len(sentences), v.Size())

	cp := corpus.Build(sentences)
	fmt.Println("building suffix arrays...")
	sa := suffixarray.Build(cp, v, *seed)
	fmt.Printf("built index: %d sentences, %d source tokens, %d target tokens, %d sentinels, in %s\n",
		sa.Stats.Sentences, sa.Stats.SourceTokens, sa.Stats.TargetTokens,
		sa.Stats.SentinelCount, sa.Stats.BuildWallTime)

	if err := sa.Save(*outPath); err != nil {
		log.Fatalf("saving index: %v", err)
	}
	fmt.Printf("wrote %s\n", *outPath)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

func idsForLine(v *vocab.Vocabulary, line string) []uint32 {
	fields := strings.Fields(line)
	ids := make([]uint32, len(fields))
	for i, w := range fields {
		ids[i] = v.Add(w)
	}
	return ids
}

func parseLinks(line string) ([][2]int, error) {
	fields := strings.Fields(line)
	links := make([][2]int, 0, len(fields))
	for _, f := range fields {
		parts := strings.SplitN(f, "-", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed alignment token %q", f)
		}
		i, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("malformed source index in %q: %w", f, err)
		}
		j, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("malformed target index in %q: %w", f, err)
		}
		links = append(links, [2]int{i, j})
	}
	return links, nil
}
