package motif

import (
	"sort"

	"github.com/bioc/seqbias/kmermatrix"
	"github.com/bioc/seqbias/twobit"
	"github.com/grailbio/base/log"
)

// klEps is the additive smoothing applied only while scoring candidate
// parents during structure learning (spec §4.D.2), never persisted.
const klEps = 1e-6

// Opts controls the greedy structure-learning search.
type Opts struct {
	// MaxParents caps the size of each position's parent set.
	MaxParents int
	// MaxDistance bounds |i-j| for any parent j of position i.
	MaxDistance int
	// ComplexityPenalty is charged per added conditioning parameter; the
	// caller (typically the trainer) is responsible for scaling it to the
	// training set size.
	ComplexityPenalty float64
}

// DefaultOpts mirrors the spec's stated defaults for MaxParents and
// MaxDistance. ComplexityPenalty has no universal default; callers must set
// it explicitly.
var DefaultOpts = Opts{
	MaxParents:  DefaultMaxParents,
	MaxDistance: DefaultMaxDistance,
}

// Learn fits a Motif's parent sets and conditional tables from foreground
// windows fg and background windows bg, all of identical length L+1+R.
//
// Per spec §4.D.3, fewer than 100 foreground or background windows is
// InsufficientData: Learn returns a no-op motif (NewNoOp) rather than an
// error, so downstream pipelines continue with bias 1.0 everywhere.
func Learn(l, r int, fg, bg []*twobit.Seq, opts Opts) *Motif {
	if len(fg) < insufficientDataMin || len(bg) < insufficientDataMin {
		log.Debug.Printf("motif: insufficient training data (fg=%d, bg=%d); returning no-op motif", len(fg), len(bg))
		return NewNoOp(l, r)
	}
	nw := l + 1 + r
	positions := make([]position, nw)
	for i := 0; i < nw; i++ {
		positions[i] = learnPosition(i, nw, fg, bg, opts)
	}
	return &Motif{l: l, r: r, positions: positions}
}

// candidateOrder returns candidate parent positions for child position i,
// restricted to j < i (guaranteeing acyclicity under the fixed left-to-right
// processing order, per spec §4.D.2 step 3) and |i-j| <= maxDistance,
// ordered by the tie-break rule: smaller |i-j| first, then smaller j.
func candidateOrder(i, maxDistance int) []int {
	lo := i - maxDistance
	if lo < 0 {
		lo = 0
	}
	cands := make([]int, 0, i-lo)
	for j := lo; j < i; j++ {
		cands = append(cands, j)
	}
	sort.Slice(cands, func(a, b int) bool {
		da, db := i-cands[a], i-cands[b]
		if da != db {
			return da < db
		}
		return cands[a] < cands[b]
	})
	return cands
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// learnPosition runs the greedy per-position parent search of spec §4.D.2
// for a single window position i.
func learnPosition(i, nw int, fg, bg []*twobit.Seq, opts Opts) position {
	var parents []int
	fgJoint := tallyJoint(fg, i, parents)
	bgJoint := tallyJoint(bg, i, parents)
	bestD := symmetricKL(fgJoint.MakeDistribution().Row(0), bgJoint.MakeDistribution().Row(0), klEps)

	for len(parents) < opts.MaxParents {
		candidates := candidateOrder(i, opts.MaxDistance)
		type trial struct {
			j           int
			d           float64
			fg, bg      *kmermatrix.Matrix
		}
		var best *trial
		var bestGain float64
		prevSize := float64(int(1) << uint(2*len(parents)))
		newSize := prevSize * 4
		cost := opts.ComplexityPenalty * (newSize - prevSize)

		for _, j := range candidates {
			if contains(parents, j) {
				continue
			}
			trialParents := append(append([]int(nil), parents...), j)
			fgj := tallyJoint(fg, i, trialParents)
			bgj := tallyJoint(bg, i, trialParents)
			d := symmetricKL(fgj.MakeDistribution().Row(0), bgj.MakeDistribution().Row(0), klEps)
			gain := (d - bestD) - cost
			if gain > 0 && (best == nil || gain > bestGain) {
				best = &trial{j: j, d: d, fg: fgj, bg: bgj}
				bestGain = gain
			}
		}
		if best == nil {
			break
		}
		parents = append(parents, best.j)
		fgJoint, bgJoint = best.fg, best.bg
		bestD = best.d
	}

	return position{
		parents: parents,
		fg:      fgJoint.MakeDistribution().ConditionalizeChild(),
		bg:      bgJoint.MakeDistribution().ConditionalizeChild(),
	}
}
