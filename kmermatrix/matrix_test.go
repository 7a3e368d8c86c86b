package kmermatrix

import (
	"math"
	"testing"

	"github.com/bioc/seqbias/twobit"
	"github.com/grailbio/testutil/expect"
)

func closeTo(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestSetGetAdd(t *testing.T) {
	m := New(3, 2)
	expect.EQ(t, m.NumRows(), 3)
	expect.EQ(t, m.NumCols(), 16)
	m.Set(1, twobit.Kmer(5), 2.0)
	expect.EQ(t, m.Get(1, twobit.Kmer(5)), 2.0)
	m.Add(1, twobit.Kmer(5), 3.0)
	expect.EQ(t, m.Get(1, twobit.Kmer(5)), 5.0)
	expect.EQ(t, m.Get(0, twobit.Kmer(5)), 0.0)
}

func TestSetAll(t *testing.T) {
	m := New(2, 1)
	m.SetAll(0.25)
	for r := 0; r < m.NumRows(); r++ {
		for c := 0; c < m.NumCols(); c++ {
			expect.EQ(t, m.Get(r, twobit.Kmer(c)), 0.25)
		}
	}
}

func TestAddMatrixShapeMismatch(t *testing.T) {
	a := New(2, 2)
	b := New(2, 3)
	err := a.AddMatrix(b)
	expect.NotNil(t, err)
}

func TestAddMatrix(t *testing.T) {
	a := New(1, 1)
	b := New(1, 1)
	a.Set(0, 0, 1)
	b.Set(0, 0, 2)
	expect.NoError(t, a.AddMatrix(b))
	expect.EQ(t, a.Get(0, 0), 3.0)
}

func TestMakeDistributionIdempotent(t *testing.T) {
	m := New(2, 2)
	m.Set(0, 1, 3)
	m.Set(0, 2, 1)
	// row 1 left all-zero
	d1 := m.MakeDistribution()
	d2 := d1.MakeDistribution()
	for c := 0; c < m.NumCols(); c++ {
		expect.True(t, closeTo(d1.Get(0, twobit.Kmer(c)), d2.Get(0, twobit.Kmer(c)), 1e-12))
		expect.True(t, closeTo(d1.Get(1, twobit.Kmer(c)), d2.Get(1, twobit.Kmer(c)), 1e-12))
	}
}

func TestMakeDistributionValues(t *testing.T) {
	m := New(1, 1)
	m.Set(0, 0, 1)
	m.Set(0, 1, 3)
	d := m.MakeDistribution()
	expect.True(t, closeTo(d.Get(0, 0), 0.25, 1e-12))
	expect.True(t, closeTo(d.Get(0, 1), 0.75, 1e-12))
}

func TestMakeDistributionZeroRow(t *testing.T) {
	m := New(1, 1)
	d := m.MakeDistribution()
	for c := 0; c < 4; c++ {
		expect.EQ(t, d.Get(0, twobit.Kmer(c)), 0.0)
	}
}

func TestDistMarginalize(t *testing.T) {
	// 2-slot joint matrix: slot0 (LSB) is "child", slot1 is "parent".
	m := New(1, 2)
	for parent := twobit.Kmer(0); parent < 4; parent++ {
		for child := twobit.Kmer(0); child < 4; child++ {
			km := (parent << 2) | child
			m.Set(0, km, float64(parent+1))
		}
	}
	// Marginalize out slot 0 (the child); remaining single slot is the parent
	// value, and its mass should be 4x the original per-parent weight (since
	// 4 children were summed together).
	out := m.DistMarginalize(0)
	expect.EQ(t, out.K(), 1)
	for parent := twobit.Kmer(0); parent < 4; parent++ {
		expect.True(t, closeTo(out.Get(0, parent), float64(parent+1)*4, 1e-12))
	}
}

func TestDistConditionalize(t *testing.T) {
	// joint matrix with 2 slots: slot0=child, slot1=parent. Build a joint
	// distribution where, given parent=v, child is always v too (perfect
	// correlation).
	m := New(1, 2)
	for v := twobit.Kmer(0); v < 4; v++ {
		km := (v << 2) | v
		m.Set(0, km, 1.0)
	}
	dist := m.MakeDistribution()
	cond := dist.DistConditionalize(1) // condition on slot 1 (parent)
	for parent := twobit.Kmer(0); parent < 4; parent++ {
		for child := twobit.Kmer(0); child < 4; child++ {
			km := (parent << 2) | child
			if child == parent {
				expect.True(t, closeTo(cond.Get(0, km), 1.0, 1e-12))
			} else {
				expect.True(t, closeTo(cond.Get(0, km), 0.0, 1e-12))
			}
		}
	}
}

func TestConditionalizeChild(t *testing.T) {
	// 3 slots: child(0), parent1(1), parent2(2). child always equals
	// (parent1+parent2) mod 4.
	m := New(1, 3)
	for p1 := twobit.Kmer(0); p1 < 4; p1++ {
		for p2 := twobit.Kmer(0); p2 < 4; p2++ {
			child := (p1 + p2) % 4
			km := (p2 << 4) | (p1 << 2) | child
			m.Add(0, km, 1.0)
		}
	}
	cond := m.ConditionalizeChild()
	for p1 := twobit.Kmer(0); p1 < 4; p1++ {
		for p2 := twobit.Kmer(0); p2 < 4; p2++ {
			expectedChild := (p1 + p2) % 4
			for child := twobit.Kmer(0); child < 4; child++ {
				km := (p2 << 4) | (p1 << 2) | child
				if child == expectedChild {
					expect.True(t, closeTo(cond.Get(0, km), 1.0, 1e-12))
				} else {
					expect.True(t, closeTo(cond.Get(0, km), 0.0, 1e-12))
				}
			}
		}
	}
}

func TestDistConditionalizeZeroMarginal(t *testing.T) {
	m := New(1, 1)
	cond := m.DistConditionalize(0)
	for c := 0; c < 4; c++ {
		expect.EQ(t, cond.Get(0, twobit.Kmer(c)), 0.0)
	}
}
