// Package predictor turns a trained motif.Motif into per-base bias
// predictions over genomic intervals, and implements the bias-corrected
// read-counting operation used downstream of prediction.
package predictor

import (
	"github.com/bioc/seqbias/motif"
	"github.com/bioc/seqbias/postable"
	"github.com/bioc/seqbias/readpos"
	"github.com/bioc/seqbias/refseq"
	"github.com/bioc/seqbias/twobit"
	berrors "github.com/grailbio/base/errors"
)

// Predictor scores bias across genomic intervals using a fixed reference
// and a fixed motif.
type Predictor struct {
	ref refseq.Reference
	m   *motif.Motif
}

// New returns a Predictor bound to ref and m.
func New(ref refseq.Reference, m *motif.Motif) *Predictor {
	return &Predictor{ref: ref, m: m}
}

// Predict scores every anchor in the 1-based inclusive interval
// [start, end] of seqName, returning a vector of length end-start+1 (spec
// §6 public API). Anchors whose window falls outside the reference
// sequence (including when the interval itself reaches past a chromosome
// boundary) score 1.0, per spec §8's boundary-behavior properties.
//
// strand must be '+' or '-'. On '-', the fetched slice is
// reverse-complemented before scoring and the output vector is reversed, so
// index 0 always corresponds to genomic position start regardless of
// strand (spec §4.F).
func (p *Predictor) Predict(seqName string, start, end int, strand byte) ([]float64, error) {
	if start <= 0 || end < start {
		return nil, berrors.E(berrors.Invalid, "predictor: invalid interval", seqName)
	}
	if strand != '+' && strand != '-' {
		return nil, berrors.E(berrors.Invalid, "predictor: strand must be + or -")
	}
	chromLen, known := lookupLen(p.ref, seqName)
	if !known {
		return nil, berrors.E(berrors.Invalid, "predictor: unknown reference sequence", seqName)
	}

	// Convert to 0-based, and to the fetch window widened by the motif's
	// L/R padding (left=L,right=R on +; left=R,right=L on -, per §4.F).
	s0, e0 := start-1, end-1
	padLeft, padRight := p.m.L(), p.m.R()
	if strand == '-' {
		padLeft, padRight = p.m.R(), p.m.L()
	}
	fetchStart, fetchEnd := s0-padLeft, e0+padRight

	n := end - start + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.0
	}

	// Clamp the fetch to what the chromosome actually has; anchors whose
	// window still doesn't fit inside the clamped slice are left at the
	// default 1.0 by motif.Score's own edge check.
	clampedStart, clampedEnd := fetchStart, fetchEnd
	if clampedStart < 0 {
		clampedStart = 0
	}
	if clampedEnd >= chromLen {
		clampedEnd = chromLen - 1
	}
	if clampedEnd < clampedStart {
		return out, nil
	}
	raw, ok, err := p.ref.FetchSeq(seqName, clampedStart, clampedEnd)
	if err != nil {
		return nil, berrors.E(berrors.Temporary, err, "predictor: fetching reference sequence")
	}
	if !ok {
		return out, nil
	}

	seq := twobit.FromASCII(raw, nil)
	if strand == '-' {
		seq = seq.ReverseComplement()
	}

	l, r := p.m.L(), p.m.R()
	for i := 0; i < n; i++ {
		g := s0 + i // genomic position this output entry describes
		// Local index of g within the (possibly reverse-complemented) seq.
		// On '+', seq[0] is genomic clampedStart. On '-', seq was reversed,
		// so seq[0] is genomic clampedEnd and indices run backwards.
		var anchor int
		if strand == '+' {
			anchor = g - clampedStart
		} else {
			anchor = clampedEnd - g
		}
		if anchor < 0 || anchor >= seq.Len() {
			continue
		}
		// Skip the N-substitution twobit.FromASCII would otherwise make: an
		// all-N window must score 1.0, not a random base's score. Map the
		// window back to raw (ASCII, unreversed) coordinates, since raw is
		// what still carries N.
		wLo, wHi := anchor-l, anchor+r
		if wLo < 0 || wHi >= seq.Len() {
			continue // motif.Score's own edge clamp already yields 1.0
		}
		rawLo, rawHi := wLo, wHi
		if strand == '-' {
			rawLo, rawHi = len(raw)-1-wHi, len(raw)-1-wLo
		}
		if containsN(raw[rawLo : rawHi+1]) {
			continue
		}
		out[i] = p.m.Score(seq, anchor)
	}
	return out, nil
}

func containsN(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 'n' || s[i] == 'N' {
			return true
		}
	}
	return false
}

func lookupLen(ref refseq.Reference, name string) (int, bool) {
	for _, nl := range ref.SequenceLengths() {
		if nl.Name == name {
			return nl.Len, true
		}
	}
	return 0, false
}

// CountReads implements spec §6's count_reads: it walks alignments in an
// interval and accumulates either a per-base vector of read-start counts
// (binary=false) or a presence indicator (binary=true). In the non-binary
// mode each contribution is optionally divided by the motif's bias at the
// read's 5' position; binary mode records presence only and applies no
// correction (sumCounts selects a single scalar total instead of a per-base
// vector).
// correct selects bias correction; it is ignored (treated as false) when p
// was constructed without a motif. strand (+ or -) restricts the tally to
// alignments on that strand, matching the query interval's orientation;
// reads on the opposite strand never contribute (spec §8 scenario 5).
func (p *Predictor) CountReads(seqName string, start, end int, alns []readpos.Alignment, strand byte, binary, sumCounts, correct bool) ([]float64, float64, error) {
	n := end - start + 1
	if n <= 0 {
		return nil, 0, berrors.E(berrors.Invalid, "predictor: invalid interval", seqName)
	}
	if strand != '+' && strand != '-' {
		return nil, 0, berrors.E(berrors.Invalid, "predictor: strand must be + or -")
	}
	want := postable.Forward
	if strand == '-' {
		want = postable.Reverse
	}
	vec := make([]float64, n)
	correct = correct && p.m != nil

	var total float64
	for _, a := range alns {
		if !a.IsUngapped() || a.Strand != want {
			continue
		}
		pos := int(a.StartPos())
		idx := pos - (start - 1)
		if idx < 0 || idx >= n {
			continue
		}
		weight := 1.0
		if correct {
			if bias, ok := p.biasAt(seqName, pos, a.Strand); ok && bias > 0 {
				weight = 1.0 / bias
			}
		}
		if binary {
			if vec[idx] == 0 {
				vec[idx] = 1
				total++
			}
			continue
		}
		vec[idx] += weight
		total += weight
	}
	if sumCounts {
		return nil, total, nil
	}
	return vec, total, nil
}

// biasAt fetches just enough reference sequence around pos to score the
// motif's window at the read's 5' position, oriented per strand exactly as
// the trainer extracts foreground windows (spec §4.E.3.b).
func (p *Predictor) biasAt(seqName string, pos int, strand postable.Strand) (float64, bool) {
	l, r := p.m.L(), p.m.R()
	var start, end int
	if strand == postable.Forward {
		start, end = pos-l, pos+r
	} else {
		start, end = pos-r, pos+l
	}
	raw, ok, err := p.ref.FetchSeq(seqName, start, end)
	if err != nil || !ok {
		return 1.0, false
	}
	if containsN(raw) {
		return 1.0, true
	}
	seq := twobit.FromASCII(raw, nil)
	if strand != postable.Forward {
		seq = seq.ReverseComplement()
	}
	return p.m.Score(seq, l), true
}
