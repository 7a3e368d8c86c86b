// Package kmermatrix implements a dense (window-position x kmer-index)
// table of nonnegative doubles, with the normalization and
// marginalization/conditionalization operations the motif learner needs to
// turn raw k-mer tallies into conditional probability tables.
package kmermatrix

import (
	"github.com/bioc/seqbias/twobit"
	"github.com/pkg/errors"
)

// Matrix is a row-major nRow x 4^k table of nonnegative doubles, following
// the same flat-buffer layout as the Levenshtein distance matrix in
// grailbio-bio's util package, generalized from ints to probability rows.
//
// Each row is interpretable in two modes: raw counts while tallying, or a
// probability row after MakeDistribution. Columns are indexed by a
// twobit.Kmer value whose low-order 2-bit digit is "slot 0".
type Matrix struct {
	nRow int
	k    int // number of 2-bit slots represented by each row
	data []float64
}

// New returns an nRow x 4^k matrix, all entries zero.
func New(nRow, k int) *Matrix {
	return &Matrix{
		nRow: nRow,
		k:    k,
		data: make([]float64, nRow*numCols(k)),
	}
}

func numCols(k int) int { return 1 << uint(2*k) }

// NumRows returns the number of rows.
func (m *Matrix) NumRows() int { return m.nRow }

// K returns the number of 2-bit slots (so NumCols() == 4^K()).
func (m *Matrix) K() int { return m.k }

// NumCols returns 4^K().
func (m *Matrix) NumCols() int { return numCols(m.k) }

func (m *Matrix) index(row int, km twobit.Kmer) int {
	return row*numCols(m.k) + int(km)
}

// Get returns the entry at (row, km).
func (m *Matrix) Get(row int, km twobit.Kmer) float64 {
	return m.data[m.index(row, km)]
}

// Set stores v at (row, km).
func (m *Matrix) Set(row int, km twobit.Kmer, v float64) {
	m.data[m.index(row, km)] = v
}

// Add increments the entry at (row, km) by delta. This is the common
// tallying operation: callers increment by 1 per observed k-mer.
func (m *Matrix) Add(row int, km twobit.Kmer, delta float64) {
	m.data[m.index(row, km)] += delta
}

// Row returns a copy of row's underlying 4^K() entries, row-major, child (or
// sole) slot in the least-significant 2 bits.
func (m *Matrix) Row(row int) []float64 {
	ncol := numCols(m.k)
	out := make([]float64, ncol)
	copy(out, m.data[row*ncol:(row+1)*ncol])
	return out
}

// SetAll sets every entry to v.
func (m *Matrix) SetAll(v float64) {
	for i := range m.data {
		m.data[i] = v
	}
}

// sameShape reports whether m and other have identical (nRow, k).
func (m *Matrix) sameShape(other *Matrix) bool {
	return m.nRow == other.nRow && m.k == other.k
}

// AddMatrix adds other into m in place, entry by entry. Both matrices must
// have identical shape.
func (m *Matrix) AddMatrix(other *Matrix) error {
	if !m.sameShape(other) {
		return errors.Errorf("kmermatrix: shape mismatch: (%d,%d) vs (%d,%d)", m.nRow, m.k, other.nRow, other.k)
	}
	for i := range m.data {
		m.data[i] += other.data[i]
	}
	return nil
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{nRow: m.nRow, k: m.k, data: make([]float64, len(m.data))}
	copy(out.data, m.data)
	return out
}

// MakeDistribution returns a new matrix with every row normalized to sum to
// 1. A row that sums to zero is left all-zero (there is no evidence to
// distribute). Applying MakeDistribution to an already-normalized matrix is
// a no-op, since every row already sums to 1 (or 0).
func (m *Matrix) MakeDistribution() *Matrix {
	out := m.Clone()
	ncol := numCols(m.k)
	for r := 0; r < m.nRow; r++ {
		base := r * ncol
		var sum float64
		for c := 0; c < ncol; c++ {
			sum += out.data[base+c]
		}
		if sum == 0 {
			continue
		}
		for c := 0; c < ncol; c++ {
			out.data[base+c] /= sum
		}
	}
	return out
}

func digit(km twobit.Kmer, slot int) byte {
	return byte(km>>uint(2*slot)) & 3
}

// DistConditionalize returns a new matrix of the same shape where every row,
// previously representing a joint distribution P(X_kmer) over m.K() slots,
// is reinterpreted as P(all slots | slot "over") by summing, within each
// row, the entries that share the same value at slot "over" (the marginal
// P(slot=v)) and dividing each entry by the marginal of its class. A class
// with zero marginal maps to zero entries, matching the zero-denominator
// clamp used during scoring.
//
// REQUIRES: m represents a joint distribution over K() slots (not already
// conditionalized, and not yet marginalized past the target slot).
func (m *Matrix) DistConditionalize(over int) *Matrix {
	out := m.Clone()
	ncol := numCols(m.k)
	marginal := make([]float64, 4)
	for r := 0; r < m.nRow; r++ {
		base := r * ncol
		for i := range marginal {
			marginal[i] = 0
		}
		for c := 0; c < ncol; c++ {
			marginal[digit(twobit.Kmer(c), over)] += m.data[base+c]
		}
		for c := 0; c < ncol; c++ {
			v := marginal[digit(twobit.Kmer(c), over)]
			if v == 0 {
				out.data[base+c] = 0
				continue
			}
			out.data[base+c] = m.data[base+c] / v
		}
	}
	return out
}

// ConditionalizeChild reinterprets every row, a joint distribution over K()
// slots in which slot 0 is the "child" and slots 1..K()-1 are collectively
// its "parents", as P(child | parents): entries are grouped by their
// combined parent value (everything above slot 0, i.e. km>>2) and
// normalized within each group. This is the multi-parent generalization of
// DistConditionalize used by the motif learner, where a position's
// conditional table is indexed jointly by all of its parents at once
// rather than by one slot at a time.
func (m *Matrix) ConditionalizeChild() *Matrix {
	out := m.Clone()
	ncol := numCols(m.k)
	if ncol <= 1 {
		return out
	}
	marginal := make([]float64, ncol/4)
	for r := 0; r < m.nRow; r++ {
		base := r * ncol
		for i := range marginal {
			marginal[i] = 0
		}
		for c := 0; c < ncol; c++ {
			marginal[c>>2] += m.data[base+c]
		}
		for c := 0; c < ncol; c++ {
			v := marginal[c>>2]
			if v == 0 {
				out.data[base+c] = 0
				continue
			}
			out.data[base+c] = m.data[base+c] / v
		}
	}
	return out
}

// DistMarginalize returns a new matrix with K() reduced by one, collapsing
// "slot" by summing the 4 kmers that differ only at that slot. Slots above
// "slot" shift down by one position to fill the gap; slots below "slot" are
// unaffected.
func (m *Matrix) DistMarginalize(slot int) *Matrix {
	newK := m.k - 1
	out := New(m.nRow, newK)
	ncol := numCols(m.k)
	lowMask := twobit.Kmer((1 << uint(2*slot)) - 1)
	for r := 0; r < m.nRow; r++ {
		srcBase := r * ncol
		for c := 0; c < ncol; c++ {
			km := twobit.Kmer(c)
			low := km & lowMask
			high := km >> uint(2*(slot+1))
			reduced := (high << uint(2*slot)) | low
			out.data[out.index(r, reduced)] += m.data[srcBase+c]
		}
	}
	return out
}
