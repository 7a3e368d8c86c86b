// Package motif implements the Bayesian-network sequence-bias motif: a
// greedy per-position structure learner over window positions, and the
// log-likelihood-ratio scorer that turns a learned motif into a per-base
// bias estimate.
package motif

import (
	"math"

	"github.com/bioc/seqbias/kmermatrix"
	"github.com/bioc/seqbias/twobit"
	"github.com/pkg/errors"
)

// Default bounds on the parent search, per spec.
const (
	DefaultMaxParents   = 4
	DefaultMaxDistance  = 10
	scoreEps            = 1e-12 // only used inside the scoring logarithm
	insufficientDataMin = 100
)

// position holds the learned structure and conditional tables for one
// window position: an ordered parent set (in the order parents were added
// during learning) and the frozen foreground/background conditional
// distributions P(child | parents), stored as a single-row kmermatrix.Matrix
// of width 4^(len(Parents)+1), child in the least-significant 2 bits.
type position struct {
	parents []int
	fg, bg  *kmermatrix.Matrix
}

// Motif is an immutable-after-construction Bayesian network over a window
// of length L+1+R, where the read start sits at offset L. A frozen Motif
// is safe for concurrent read-only use by multiple scorers (spec §5).
type Motif struct {
	l, r      int
	positions []position
}

// L returns the number of window positions to the left of the read start.
func (m *Motif) L() int { return m.l }

// R returns the number of window positions to the right of the read start.
func (m *Motif) R() int { return m.r }

// NumPositions returns the window length, L+1+R.
func (m *Motif) NumPositions() int { return m.l + 1 + m.r }

// ParentsAt returns the (possibly empty) parent set of window position i, in
// the order the parents were added during learning.
func (m *Motif) ParentsAt(i int) []int {
	return append([]int(nil), m.positions[i].parents...)
}

// FGTableAt returns the flattened foreground conditional table at position
// i: a row-major array of length 4^(len(ParentsAt(i))+1), child in the
// least-significant 2 bits.
func (m *Motif) FGTableAt(i int) []float64 { return m.positions[i].fg.Row(0) }

// BGTableAt returns the background counterpart of FGTableAt.
func (m *Motif) BGTableAt(i int) []float64 { return m.positions[i].bg.Row(0) }

// NewNoOp returns a motif with empty parent sets and uniform
// foreground/background distributions at every position, so that scoring
// always yields bias 1.0. This is returned by Learn when the training data
// is insufficient (spec §4.D.3).
func NewNoOp(l, r int) *Motif {
	nw := l + 1 + r
	positions := make([]position, nw)
	for i := range positions {
		fg := kmermatrix.New(1, 1)
		fg.SetAll(0.25)
		bg := kmermatrix.New(1, 1)
		bg.SetAll(0.25)
		positions[i] = position{fg: fg, bg: bg}
	}
	return &Motif{l: l, r: r, positions: positions}
}

// FromTables reconstructs a frozen Motif from its persisted parts: L, R, a
// parent set and a flat conditional table per position for each of
// foreground and background. It is the inverse of ParentsAt/FGTableAt/
// BGTableAt, and is used by the modelfile loader.
func FromTables(l, r int, parents [][]int, fg, bg [][]float64) (*Motif, error) {
	nw := l + 1 + r
	if len(parents) != nw || len(fg) != nw || len(bg) != nw {
		return nil, errors.Errorf("motif: expected %d window positions, got parents=%d fg=%d bg=%d",
			nw, len(parents), len(fg), len(bg))
	}
	positions := make([]position, nw)
	for i := 0; i < nw; i++ {
		k := len(parents[i]) + 1
		want := 1 << uint(2*k)
		if len(fg[i]) != want || len(bg[i]) != want {
			return nil, errors.Errorf("motif: position %d: expected table length %d, got fg=%d bg=%d",
				i, want, len(fg[i]), len(bg[i]))
		}
		fgm := kmermatrix.New(1, k)
		bgm := kmermatrix.New(1, k)
		for c := 0; c < want; c++ {
			fgm.Set(0, twobit.Kmer(c), fg[i][c])
			bgm.Set(0, twobit.Kmer(c), bg[i][c])
		}
		positions[i] = position{parents: append([]int(nil), parents[i]...), fg: fgm, bg: bgm}
	}
	return &Motif{l: l, r: r, positions: positions}, nil
}

// Score computes bias(a): the multiplicative factor by which the
// probability of a read start at anchor a in seq exceeds the
// abundance-only expectation, as learned by this motif. If the window
// [a-L, a+R] falls outside seq, bias is defined as 1.0.
func (m *Motif) Score(seq *twobit.Seq, a int) float64 {
	if a-m.l < 0 || a+m.r >= seq.Len() {
		return 1.0
	}
	var logSum float64
	for i, pos := range m.positions {
		child := seq.At(a - m.l + i)
		km := twobit.Kmer(child)
		for slot, p := range pos.parents {
			pcode := seq.At(a - m.l + p)
			km |= twobit.Kmer(pcode) << uint(2*(slot+1))
		}
		fg := pos.fg.Get(0, km)
		bg := pos.bg.Get(0, km)
		if bg == 0 {
			// Zero-denominator clamp: treat this position as uninformative
			// rather than letting it dominate the product.
			continue
		}
		logSum += math.Log(fg+scoreEps) - math.Log(bg+scoreEps)
	}
	return math.Exp(logSum)
}

// buildJointKmer returns the joint k-mer for window position i (child, in
// the least-significant 2 bits) and the given ordered parent positions
// (each in turn occupying the next-higher 2-bit slot).
func buildJointKmer(seq *twobit.Seq, i int, parents []int) twobit.Kmer {
	km := twobit.Kmer(seq.At(i))
	for slot, p := range parents {
		km |= twobit.Kmer(seq.At(p)) << uint(2*(slot+1))
	}
	return km
}

// tallyJoint tallies the joint (child, parents...) distribution over seqs
// at window position i into a fresh kmermatrix.Matrix of shape (1, len(
// parents)+1), raw counts (not yet normalized).
func tallyJoint(seqs []*twobit.Seq, i int, parents []int) *kmermatrix.Matrix {
	mat := kmermatrix.New(1, len(parents)+1)
	for _, s := range seqs {
		mat.Add(0, buildJointKmer(s, i, parents), 1.0)
	}
	return mat
}

// symmetricKL computes KL(p||q) + KL(q||p) over two equal-length
// distributions, with additive smoothing eps applied to avoid log(0); the
// 0*log(0)=0 convention falls out automatically since eps>0 keeps every
// term finite.
func symmetricKL(p, q []float64, eps float64) float64 {
	var d float64
	for i := range p {
		pi := p[i] + eps
		qi := q[i] + eps
		d += pi*math.Log(pi/qi) + qi*math.Log(qi/pi)
	}
	return d
}
