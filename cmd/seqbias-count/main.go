// Command seqbias-count implements the `count_reads` operation of spec §6:
// tally read starts over a genomic interval from a BAM file, optionally
// correcting each contribution by a trained motif's bias at that position.
package main

import (
	"flag"
	"fmt"

	"github.com/bioc/seqbias/modelfile"
	"github.com/bioc/seqbias/predictor"
	"github.com/bioc/seqbias/readpos"
	"github.com/bioc/seqbias/refseq"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

func main() {
	var (
		bamPath   = flag.String("bam", "", "Aligned reads, BAM format")
		modelPath = flag.String("model", "", "Trained model YAML path (required with -correct)")
		refPath   = flag.String("ref", "", "Reference FASTA path (required with -correct)")
		seqName   = flag.String("seqname", "", "Reference sequence name")
		start     = flag.Int("start", 0, "1-based inclusive interval start")
		end       = flag.Int("end", 0, "1-based inclusive interval end")
		strand    = flag.String("strand", "+", "Strand to count, + or -; reads on the opposite strand are excluded")
		binary    = flag.Bool("binary", false, "Count interval occupancy (0/1) rather than read starts")
		sumCounts = flag.Bool("sum", false, "Report a single interval total instead of a per-base vector")
		correct   = flag.Bool("correct", false, "Divide each contribution by the motif's bias at the read's 5' position")
	)
	flag.Parse()

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if *bamPath == "" || *seqName == "" {
		log.Fatal("seqbias-count: -bam and -seqname are required")
	}
	if *correct && (*modelPath == "" || *refPath == "") {
		log.Fatal("seqbias-count: -correct requires -model and -ref")
	}
	if len(*strand) != 1 || (*strand != "+" && *strand != "-") {
		log.Fatal("seqbias-count: -strand must be + or -")
	}

	bamFile, err := file.Open(ctx, *bamPath)
	if err != nil {
		log.Fatalf("seqbias-count: opening BAM %s: %v", *bamPath, err)
	}
	defer func() { _ = bamFile.Close(ctx) }()
	bamReader, err := readpos.Open(bamFile.Reader(ctx))
	if err != nil {
		log.Fatalf("seqbias-count: opening BAM reader: %v", err)
	}

	var p *predictor.Predictor
	if *correct {
		modelFile, err := file.Open(ctx, *modelPath)
		if err != nil {
			log.Fatalf("seqbias-count: opening model %s: %v", *modelPath, err)
		}
		defer func() { _ = modelFile.Close(ctx) }()
		m, err := modelfile.Load(modelFile.Reader(ctx))
		if err != nil {
			log.Fatalf("seqbias-count: loading model: %v", err)
		}

		refFile, err := file.Open(ctx, *refPath)
		if err != nil {
			log.Fatalf("seqbias-count: opening reference %s: %v", *refPath, err)
		}
		defer func() { _ = refFile.Close(ctx) }()
		ref, err := refseq.Load(refFile.Reader(ctx))
		if err != nil {
			log.Fatalf("seqbias-count: loading reference %s: %v", *refPath, err)
		}
		p = predictor.New(ref, m)
	} else {
		p = predictor.New(nil, nil)
	}

	tid, ok := tidOf(bamReader, *seqName)
	if !ok {
		log.Fatalf("seqbias-count: reference %q not present in BAM header", *seqName)
	}

	var alns []readpos.Alignment
	for {
		aln, ok, err := bamReader.Next()
		if err != nil {
			// A decode error leaves the underlying bam.Reader's position
			// unchanged, so retrying would spin forever; a corrupt stream is
			// fatal, not skippable.
			log.Fatalf("seqbias-count: reading BAM record: %v", err)
		}
		if !ok {
			break
		}
		if aln.Tid != tid || !aln.IsUngapped() {
			continue
		}
		pos := int(aln.StartPos())
		if pos < *start-1 || pos > *end-1 {
			continue
		}
		alns = append(alns, aln)
	}

	vec, total, err := p.CountReads(*seqName, *start, *end, alns, (*strand)[0], *binary, *sumCounts, *correct)
	if err != nil {
		log.Fatalf("seqbias-count: %v", err)
	}
	if *sumCounts {
		fmt.Printf("%.6f\n", total)
		return
	}
	for i, v := range vec {
		fmt.Printf("%d\t%.6f\n", *start+i, v)
	}
}

func tidOf(r *readpos.Reader, seqName string) (uint32, bool) {
	for _, ref := range r.Header().Refs() {
		if ref.Name() == seqName {
			return uint32(ref.ID()), true
		}
	}
	return 0, false
}
