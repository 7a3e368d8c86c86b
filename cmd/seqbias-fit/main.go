// Command seqbias-fit implements the `fit` operation of spec §6: it ingests
// a BAM file's primary, ungapped alignments into a PosTable, trains a
// sequence-bias motif against a reference FASTA, and writes the resulting
// model as YAML.
package main

import (
	"flag"
	"math/rand"

	"github.com/bioc/seqbias/modelfile"
	"github.com/bioc/seqbias/motif"
	"github.com/bioc/seqbias/postable"
	"github.com/bioc/seqbias/readpos"
	"github.com/bioc/seqbias/refseq"
	"github.com/bioc/seqbias/trainer"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

func main() {
	var (
		refPath      = flag.String("ref", "", "Reference FASTA path")
		bamPath      = flag.String("bam", "", "Aligned reads, BAM format")
		modelPath    = flag.String("model-output", "model.yaml", "Path to write the trained model")
		maxReads     = flag.Int("max-reads", 1000000, "Maximum number of PosTable records to train on")
		maxDump      = flag.Int("max-dump", trainer.DefaultMaxDump, "Maximum number of records dumped from the PosTable before sampling")
		l            = flag.Int("L", 10, "Window positions to the left of the read start")
		r            = flag.Int("R", 10, "Window positions to the right of the read start")
		penalty      = flag.Float64("complexity-penalty", 1.0, "Structure-learning complexity penalty (overridden automatically for small training sets)")
		maxParents   = flag.Int("max-parents", motif.DefaultMaxParents, "Maximum parents per window position")
		maxDistance  = flag.Int("max-distance", motif.DefaultMaxDistance, "Maximum |i-j| between a window position and any of its parents")
		seed         = flag.Int64("seed", 1, "PRNG seed, for reproducibility (spec §5 notes the reference implementation lacks this)")
	)
	flag.Parse()

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if *refPath == "" || *bamPath == "" {
		log.Fatal("seqbias-fit: -ref and -bam are required")
	}

	refFile, err := file.Open(ctx, *refPath)
	if err != nil {
		log.Fatalf("seqbias-fit: opening reference %s: %v", *refPath, err)
	}
	defer func() { _ = refFile.Close(ctx) }()
	ref, err := refseq.Load(refFile.Reader(ctx))
	if err != nil {
		log.Fatalf("seqbias-fit: loading reference %s: %v", *refPath, err)
	}

	bamFile, err := file.Open(ctx, *bamPath)
	if err != nil {
		log.Fatalf("seqbias-fit: opening BAM %s: %v", *bamPath, err)
	}
	defer func() { _ = bamFile.Close(ctx) }()
	bamReader, err := readpos.Open(bamFile.Reader(ctx))
	if err != nil {
		log.Fatalf("seqbias-fit: opening BAM reader: %v", err)
	}

	pt := postable.New()
	var nIngested int
	for {
		aln, ok, err := bamReader.Next()
		if err != nil {
			// A decode error leaves the underlying bam.Reader's position
			// unchanged, so retrying would spin forever; a corrupt stream is
			// fatal, not skippable.
			log.Fatalf("seqbias-fit: reading BAM record: %v", err)
		}
		if !ok {
			break
		}
		if !aln.IsUngapped() {
			continue
		}
		pt.Insert(aln.Tid, aln.StartPos(), aln.Strand)
		nIngested++
	}
	log.Printf("seqbias-fit: ingested %d alignments into %d distinct (tid,pos,strand) keys",
		nIngested, pt.Len())

	m, err := trainer.Build(ref, pt, trainer.Opts{
		MaxReads:          *maxReads,
		MaxDump:           *maxDump,
		L:                 *l,
		R:                 *r,
		ComplexityPenalty: *penalty,
		MaxParents:        *maxParents,
		MaxDistance:       *maxDistance,
		Rand:              rand.New(rand.NewSource(*seed)),
	})
	if err != nil {
		log.Fatalf("seqbias-fit: training failed: %v", err)
	}

	outFile, err := file.Create(ctx, *modelPath)
	if err != nil {
		log.Fatalf("seqbias-fit: creating %s: %v", *modelPath, err)
	}
	if err := modelfile.Save(outFile.Writer(ctx), m); err != nil {
		log.Fatalf("seqbias-fit: writing model: %v", err)
	}
	if err := outFile.Close(ctx); err != nil {
		log.Fatalf("seqbias-fit: closing %s: %v", *modelPath, err)
	}
	log.Printf("seqbias-fit: wrote model to %s", *modelPath)
}
