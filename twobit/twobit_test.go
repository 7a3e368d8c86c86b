package twobit

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestFromASCIIRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "ACGT", "acgtACGT", "GATTACA", "tttttttttt"} {
		sq := FromASCII(s, nil)
		expect.EQ(t, sq.Len(), len(s))
		expect.EQ(t, sq.String(), lower(s))
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

func TestFromASCIIRandomFallback(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sq := FromASCII("ACNGT", rng)
	expect.EQ(t, sq.Len(), 5)
	s := sq.String()
	expect.EQ(t, s[0], byte('a'))
	expect.EQ(t, s[1], byte('c'))
	expect.True(t, strings.ContainsRune("acgt", rune(s[2])))
	expect.EQ(t, s[3], byte('g'))
	expect.EQ(t, s[4], byte('t'))
}

func TestGetKmerContiguous(t *testing.T) {
	sq := FromASCII("acgtacgt", nil)
	km, err := sq.GetKmer(4, 3)
	expect.NoError(t, err)
	// bases at positions 0..3 = a,c,g,t = 0,1,2,3 -> 0b00_01_10_11 = 0x1b
	expect.EQ(t, km, Kmer(0x1b))

	km2, err := sq.GetKmer(1, 0)
	expect.NoError(t, err)
	expect.EQ(t, km2, Kmer(0))
}

func TestGetKmerBounds(t *testing.T) {
	sq := FromASCII("acgt", nil)
	_, err := sq.GetKmer(5, 3)
	expect.NotNil(t, err)
	_, err = sq.GetKmer(2, 4)
	expect.NotNil(t, err)
}

func TestMakeKmerMasked(t *testing.T) {
	sq := FromASCII("acgtacgt", nil)
	mask := []bool{true, false, true, false}
	km, k, err := sq.MakeKmer(0, mask)
	expect.NoError(t, err)
	expect.EQ(t, k, 2)
	// positions 0,2 -> a,g -> 0,2 -> 0b00_10 = 2
	expect.EQ(t, km, Kmer(2))
}

func TestMakeKmerOutOfBounds(t *testing.T) {
	sq := FromASCII("ac", nil)
	mask := []bool{true, true, true}
	_, _, err := sq.MakeKmer(0, mask)
	expect.NotNil(t, err)
}

func TestReverseComplement(t *testing.T) {
	sq := FromASCII("acgt", nil)
	rc := sq.ReverseComplement()
	expect.EQ(t, rc.String(), "acgt") // acgt is its own revcomp

	sq2 := FromASCII("aaccggtt", nil)
	rc2 := sq2.ReverseComplement()
	expect.EQ(t, rc2.String(), "aaccggtt")

	sq3 := FromASCII("gattaca", nil)
	rc3 := sq3.ReverseComplement()
	expect.EQ(t, rc3.String(), "tgtaatc")
}

func TestMaskPopcount(t *testing.T) {
	expect.EQ(t, MaskPopcount([]bool{true, false, true, true}), 3)
	expect.EQ(t, MaskPopcount(nil), 0)
	mask := make([]bool, 130)
	mask[0], mask[65], mask[129] = true, true, true
	expect.EQ(t, MaskPopcount(mask), 3)
}
