// Package twobit implements a packed 2-bit nucleotide sequence, contiguous
// and masked k-mer extractors, and the Kmer type that kmermatrix and motif
// index their tables by.
package twobit

import (
	"math/bits"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
)

// codesPerWord is the number of 2-bit codes packed into one uint64, low-order
// bit-pair first.
const codesPerWord = 32

// Kmer is an unsigned integer encoding of a short nucleotide string, two bits
// per base, high-order bit pair holding the leftmost (or first-in-mask-order)
// base.
type Kmer uint64

// MaxK is the largest k this package's Kmer type can hold.
const MaxK = 32

var baseToCode [256]byte
var codeToBase = [4]byte{'a', 'c', 'g', 't'}

func init() {
	for i := range baseToCode {
		baseToCode[i] = 0xff
	}
	baseToCode['A'], baseToCode['a'] = 0, 0
	baseToCode['C'], baseToCode['c'] = 1, 1
	baseToCode['G'], baseToCode['g'] = 2, 2
	baseToCode['T'], baseToCode['t'] = 3, 3
	baseToCode['U'], baseToCode['u'] = 0, 0
}

// Seq is an immutable-after-construction packed 2-bit nucleotide sequence.
type Seq struct {
	words []uint64
	n     int
}

// NewEmpty returns a zero-length sequence.
func NewEmpty() *Seq {
	return &Seq{}
}

// FromASCII packs s into a Seq. Any byte that is not one of ACGTUacgtu is
// replaced by a uniformly random base, per the nucleotide alphabet rule: such
// positions do not carry real sequence information, so a fixed substitution
// would bias downstream k-mer statistics. rng may be nil, in which case the
// shared top-level math/rand source is used; callers that need reproducible
// packing (e.g. the trainer) should supply their own *rand.Rand.
func FromASCII(s string, rng *rand.Rand) *Seq {
	n := len(s)
	sq := &Seq{
		words: make([]uint64, (n+codesPerWord-1)/codesPerWord),
		n:     n,
	}
	for i := 0; i < n; i++ {
		code := baseToCode[s[i]]
		if code == 0xff {
			code = byte(randIntn(rng, 4))
		}
		sq.words[i/codesPerWord] |= uint64(code) << uint((i%codesPerWord)*2)
	}
	return sq
}

func randIntn(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.Intn(n)
	}
	return rng.Intn(n)
}

// Len returns the number of bases in the sequence.
func (sq *Seq) Len() int { return sq.n }

// codeAt returns the 2-bit code at position i. REQUIRES: 0 <= i < sq.Len().
func (sq *Seq) codeAt(i int) byte {
	return byte(sq.words[i/codesPerWord]>>uint((i%codesPerWord)*2)) & 3
}

// At returns the 2-bit code (0=A, 1=C, 2=G, 3=T) at position i. It panics if
// i is out of range, the same as an out-of-bounds slice index.
func (sq *Seq) At(i int) byte {
	if i < 0 || i >= sq.n {
		panic("twobit: index out of range")
	}
	return sq.codeAt(i)
}

// String reconstructs the lower-case ASCII sequence.
func (sq *Seq) String() string {
	var b strings.Builder
	b.Grow(sq.n)
	for i := 0; i < sq.n; i++ {
		b.WriteByte(codeToBase[sq.codeAt(i)])
	}
	return b.String()
}

// ErrShortSequence is returned when a k-mer extraction would read past the
// stored range of the sequence.
var ErrShortSequence = errors.New("twobit: kmer extends beyond sequence bounds")

// GetKmer extracts the contiguous k-mer ending at position pos (inclusive),
// i.e. the bases at positions [pos-k+1, pos]. The leftmost base (pos-k+1)
// occupies the high-order bit pair of the returned Kmer.
func (sq *Seq) GetKmer(k, pos int) (Kmer, error) {
	if k <= 0 || k > MaxK {
		return 0, errors.Errorf("twobit: invalid k=%d", k)
	}
	start := pos - k + 1
	if start < 0 || pos >= sq.n {
		return 0, ErrShortSequence
	}
	var km Kmer
	for i := start; i <= pos; i++ {
		km = (km << 2) | Kmer(sq.codeAt(i))
	}
	return km, nil
}

// MakeKmer extracts a masked k-mer: mask[i] selects whether the base at
// sequence position anchor+i contributes to the result. Selected codes are
// concatenated in mask order, high-order bit pair first. The returned k is
// popcount(mask); callers with an all-false mask get k=0, km=0.
func (sq *Seq) MakeKmer(anchor int, mask []bool) (km Kmer, k int, err error) {
	k = 0
	for _, m := range mask {
		if m {
			k++
		}
	}
	if k > MaxK {
		return 0, 0, errors.Errorf("twobit: mask selects too many positions (%d > %d)", k, MaxK)
	}
	for i, m := range mask {
		if !m {
			continue
		}
		pos := anchor + i
		if pos < 0 || pos >= sq.n {
			return 0, 0, ErrShortSequence
		}
		km = (km << 2) | Kmer(sq.codeAt(pos))
	}
	return km, k, nil
}

// ReverseComplement returns a new Seq holding the reverse complement of sq.
func (sq *Seq) ReverseComplement() *Seq {
	out := &Seq{
		words: make([]uint64, len(sq.words)),
		n:     sq.n,
	}
	for i := 0; i < sq.n; i++ {
		// complement(code) == code ^ 3, since A=0/T=3 and C=1/G=2 are
		// bitwise complements of each other.
		comp := sq.codeAt(i) ^ 3
		j := sq.n - 1 - i
		out.words[j/codesPerWord] |= uint64(comp) << uint((j%codesPerWord)*2)
	}
	return out
}

// MaskPopcount returns the number of true entries in mask; it is exposed so
// callers can size KmerMatrix rows for a given mask without re-deriving k
// from MakeKmer's return value.
func MaskPopcount(mask []bool) int {
	var words []uint64
	for i := 0; i < len(mask); i += 64 {
		var w uint64
		for j := i; j < len(mask) && j < i+64; j++ {
			if mask[j] {
				w |= 1 << uint(j-i)
			}
		}
		words = append(words, w)
	}
	n := 0
	for _, w := range words {
		n += bits.OnesCount64(w)
	}
	return n
}
