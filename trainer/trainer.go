// Package trainer implements the build orchestration: it turns an ingested
// PosTable and a reference sequence into a trained motif.Motif, by
// extracting foreground (read-start-anchored) and background (offset)
// sequence windows and handing them to the motif structure learner.
package trainer

import (
	"math"
	"math/rand"

	"github.com/bioc/seqbias/motif"
	"github.com/bioc/seqbias/postable"
	"github.com/bioc/seqbias/refseq"
	"github.com/bioc/seqbias/twobit"
	berrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

const (
	// DefaultMaxDump mirrors the reference implementation's dump cap (spec
	// §4.C).
	DefaultMaxDump = 10000000
	// bgSamples is the number of background windows sampled per foreground
	// read, fixed by spec §4.E.3.c.
	bgSamples = 2
	// bgSigma is the standard deviation, in bases, of the Gaussian offset
	// used to pick background sample positions.
	bgSigma = 500.0
	// bgMaxRetries bounds the inner background-sampling retry loop. The
	// spec leaves this open ("no hard retry cap"); we cap it so a
	// pathologically short or N-heavy chromosome cannot spin forever
	// (see the Open Questions note in DESIGN.md).
	bgMaxRetries = 10
	// smallTrainingSetThreshold is the |F| cutoff below which the trainer
	// overrides the caller's complexity penalty (spec §4.D.2).
	smallTrainingSetThreshold = 10000
	// smallTrainingSetPenalty is the overriding complexity penalty.
	smallTrainingSetPenalty = 0.25
)

// Opts controls a single build run.
type Opts struct {
	// MaxReads bounds the number of PosTable records consumed.
	MaxReads int
	// MaxDump bounds how many records are pulled out of the PosTable before
	// shuffling and sorting. <= 0 means DefaultMaxDump.
	MaxDump int
	// L, R define the window, per motif.Learn.
	L, R int
	// ComplexityPenalty is the caller-supplied penalty; it is overridden to
	// smallTrainingSetPenalty when the foreground sample is small.
	ComplexityPenalty float64
	// MaxParents, MaxDistance bound the structure search; zero means the
	// motif package's defaults.
	MaxParents, MaxDistance int
	// Rand drives both the ordering shuffle and the Gaussian background
	// offsets. A nil Rand uses a fixed-seed default
	// (rand.New(rand.NewSource(1))), so every such run draws the same
	// sequence; callers that want a different seed supply their own (spec
	// §5: "Implementations must expose a seed for reproducibility").
	Rand *rand.Rand
}

// Build runs the full training procedure (spec §4.E): dump the PosTable,
// shuffle and sort it by chromosome, extract foreground/background windows
// per record, and fit a motif.Motif from the results.
func Build(ref refseq.Reference, pt *postable.Table, opts Opts) (*motif.Motif, error) {
	if opts.L < 0 || opts.R < 0 {
		return nil, berrors.E(berrors.Invalid, "trainer: L and R must be non-negative")
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	maxDump := opts.MaxDump
	if maxDump <= 0 {
		maxDump = DefaultMaxDump
	}
	recs := pt.Dump(maxDump)
	rng.Shuffle(len(recs), func(i, j int) { recs[i], recs[j] = recs[j], recs[i] })
	postable.SortByTid(recs)

	if opts.MaxReads > 0 && len(recs) > opts.MaxReads {
		recs = recs[:opts.MaxReads]
	}

	names := make(map[uint32]string)
	for i, nl := range ref.SequenceLengths() {
		names[uint32(i)] = nl.Name
	}

	b := &builder{ref: ref, names: names, rng: rng}
	var fg, bg []*twobit.Seq
	for _, r := range recs {
		b.loadChromosome(r.Tid)
		if b.chrom == "" {
			continue
		}
		if w, ok := b.foregroundWindow(r, opts.L, opts.R); ok {
			fg = append(fg, w)
		} else {
			continue
		}
		for n := 0; n < bgSamples; n++ {
			if w, ok := b.backgroundWindow(r, opts.L, opts.R); ok {
				bg = append(bg, w)
			}
		}
	}

	penalty := opts.ComplexityPenalty
	if len(fg) < smallTrainingSetThreshold {
		penalty = smallTrainingSetPenalty
	}
	mOpts := motif.Opts{
		MaxParents:        opts.MaxParents,
		MaxDistance:       opts.MaxDistance,
		ComplexityPenalty: penalty,
	}
	if mOpts.MaxParents <= 0 {
		mOpts.MaxParents = motif.DefaultMaxParents
	}
	if mOpts.MaxDistance <= 0 {
		mOpts.MaxDistance = motif.DefaultMaxDistance
	}
	return motif.Learn(opts.L, opts.R, fg, bg, mOpts), nil
}

// builder holds the single resident chromosome buffer and the set of
// chromosomes already warned about as missing, so each is logged at most
// once (spec §4.E.3.a, §7).
type builder struct {
	ref   refseq.Reference
	names map[uint32]string
	rng   *rand.Rand

	tid     uint32
	haveTid bool
	chrom   string
	warned  map[uint32]bool
}

func (b *builder) loadChromosome(tid uint32) {
	if b.haveTid && b.tid == tid {
		return
	}
	b.haveTid = true
	b.tid = tid
	b.chrom = ""

	name, ok := b.names[tid]
	if !ok {
		b.warnMissingOnce(tid, "unknown reference id")
		return
	}
	nl := lookupLen(b.ref, name)
	seq, ok, err := b.ref.FetchSeq(name, 0, nl-1)
	if err != nil || !ok {
		b.warnMissingOnce(tid, name)
		return
	}
	b.chrom = seq
}

func lookupLen(ref refseq.Reference, name string) int {
	for _, nl := range ref.SequenceLengths() {
		if nl.Name == name {
			return nl.Len
		}
	}
	return 0
}

func (b *builder) warnMissingOnce(tid uint32, name string) {
	if b.warned == nil {
		b.warned = make(map[uint32]bool)
	}
	if b.warned[tid] {
		return
	}
	b.warned[tid] = true
	log.Error.Printf("trainer: reference sequence %q unavailable; skipping reads on tid %d", name, tid)
}

// foregroundWindow extracts the window anchored on r's 5' position, per
// spec §4.E.3.b, reverse-complementing on the - strand so the resulting
// TwoBitSeq always has the read start at offset L regardless of strand.
func (b *builder) foregroundWindow(r postable.ReadPos, l, rr int) (*twobit.Seq, bool) {
	return b.windowAt(r.Pos, r.Strand, l, rr)
}

// backgroundWindow extracts a window offset from r's position by a
// Gaussian-distributed integer (sigma bgSigma), rounded away from zero, per
// spec §4.E.3.c. It retries up to bgMaxRetries times to find an in-bounds,
// N-free window before giving up for this sample.
func (b *builder) backgroundWindow(r postable.ReadPos, l, rr int) (*twobit.Seq, bool) {
	for attempt := 0; attempt < bgMaxRetries; attempt++ {
		offset := roundAwayFromZero(b.rng.NormFloat64() * bgSigma)
		pos := r.Pos + int64(offset)
		if w, ok := b.windowAt(pos, r.Strand, l, rr); ok {
			return w, true
		}
	}
	return nil, false
}

func roundAwayFromZero(x float64) int64 {
	if x >= 0 {
		return int64(math.Ceil(x))
	}
	return int64(math.Floor(x))
}

// windowAt extracts and packs the window of length l+1+rr anchored at pos
// on the given strand, discarding it (ok=false) if out of bounds or
// containing N (spec §3, §4.E.3.b).
func (b *builder) windowAt(pos int64, strand postable.Strand, l, rr int) (*twobit.Seq, bool) {
	var start, end int64
	if strand == postable.Forward {
		start, end = pos-int64(l), pos+int64(rr)
	} else {
		start, end = pos-int64(rr), pos+int64(l)
	}
	if start < 0 || end >= int64(len(b.chrom)) {
		return nil, false
	}
	raw := b.chrom[start : end+1]
	if containsN(raw) {
		return nil, false
	}
	seq := twobit.FromASCII(raw, b.rng)
	if strand == postable.Reverse {
		seq = seq.ReverseComplement()
	}
	return seq, true
}

func containsN(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 'n' || s[i] == 'N' {
			return true
		}
	}
	return false
}
