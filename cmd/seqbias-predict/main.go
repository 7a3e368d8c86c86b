// Command seqbias-predict implements the `predict` operation of spec §6:
// load a trained model and a reference FASTA, and print the per-base bias
// vector over a genomic interval.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/bioc/seqbias/modelfile"
	"github.com/bioc/seqbias/predictor"
	"github.com/bioc/seqbias/refseq"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

func main() {
	var (
		modelPath = flag.String("model", "", "Trained model YAML path")
		refPath   = flag.String("ref", "", "Reference FASTA path")
		seqName   = flag.String("seqname", "", "Reference sequence name")
		start     = flag.Int("start", 0, "1-based inclusive interval start")
		end       = flag.Int("end", 0, "1-based inclusive interval end")
		strand    = flag.String("strand", "+", "Strand, + or -")
	)
	flag.Parse()

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	if *modelPath == "" || *refPath == "" || *seqName == "" {
		log.Fatal("seqbias-predict: -model, -ref, and -seqname are required")
	}
	if len(*strand) != 1 || (*strand != "+" && *strand != "-") {
		log.Fatal("seqbias-predict: -strand must be + or -")
	}

	modelFile, err := file.Open(ctx, *modelPath)
	if err != nil {
		log.Fatalf("seqbias-predict: opening model %s: %v", *modelPath, err)
	}
	defer func() { _ = modelFile.Close(ctx) }()
	m, err := modelfile.Load(modelFile.Reader(ctx))
	if err != nil {
		log.Fatalf("seqbias-predict: loading model: %v", err)
	}

	refFile, err := file.Open(ctx, *refPath)
	if err != nil {
		log.Fatalf("seqbias-predict: opening reference %s: %v", *refPath, err)
	}
	defer func() { _ = refFile.Close(ctx) }()
	ref, err := refseq.Load(refFile.Reader(ctx))
	if err != nil {
		log.Fatalf("seqbias-predict: loading reference %s: %v", *refPath, err)
	}

	p := predictor.New(ref, m)
	bias, err := p.Predict(*seqName, *start, *end, (*strand)[0])
	if err != nil {
		log.Fatalf("seqbias-predict: %v", err)
	}

	w := bufio.NewWriter(os.Stdout)
	defer func() { _ = w.Flush() }()
	for i, v := range bias {
		fmt.Fprintf(w, "%d\t%.6f\n", *start+i, v)
	}
}
