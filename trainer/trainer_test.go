package trainer

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/bioc/seqbias/postable"
	"github.com/bioc/seqbias/refseq"
	"github.com/bioc/seqbias/twobit"
	"github.com/grailbio/testutil/expect"
)

// fakeRef is a minimal in-memory refseq.Reference for tests, avoiding the
// need to round-trip through FASTA text.
type fakeRef struct {
	seqs map[string]string
}

func (f *fakeRef) FetchSeq(name string, start, end int) (string, bool, error) {
	s, ok := f.seqs[name]
	if !ok || start < 0 || end >= len(s) || end < start {
		return "", false, nil
	}
	return s[start : end+1], true, nil
}

func (f *fakeRef) SequenceLengths() []refseq.NameLen {
	return []refseq.NameLen{{Name: "chr1", Len: len(f.seqs["chr1"])}}
}

func randChromosome(n int, rng *rand.Rand) string {
	const alphabet = "acgt"
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[rng.Intn(len(alphabet))])
	}
	return b.String()
}

func TestBuildInsufficientDataYieldsNoOp(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	chrom := randChromosome(2000, rng)
	ref := &fakeRef{seqs: map[string]string{"chr1": chrom}}
	pt := postable.New()
	pt.Insert(0, 500, postable.Forward)
	pt.Insert(0, 600, postable.Forward)

	m, err := Build(ref, pt, Opts{L: 5, R: 5, ComplexityPenalty: 1.0, Rand: rand.New(rand.NewSource(2))})
	expect.NoError(t, err)
	// With only 2 records there cannot be 100 usable windows, so the
	// learner must fall back to a no-op motif.
	expect.EQ(t, m.NumPositions(), 11)
	for i := 0; i < m.NumPositions(); i++ {
		expect.EQ(t, len(m.ParentsAt(i)), 0)
	}
}

func TestBuildRejectsNegativeWindow(t *testing.T) {
	ref := &fakeRef{seqs: map[string]string{"chr1": randChromosome(2000, rand.New(rand.NewSource(5)))}}
	pt := postable.New()
	pt.Insert(0, 500, postable.Forward)

	_, err := Build(ref, pt, Opts{L: -1, R: 5, ComplexityPenalty: 1.0})
	expect.NotNil(t, err)

	_, err = Build(ref, pt, Opts{L: 5, R: -1, ComplexityPenalty: 1.0})
	expect.NotNil(t, err)
}

func TestBuildProducesDiscriminatingMotif(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var b strings.Builder
	// Plant "acgta" immediately before 200 evenly spaced positions.
	b.WriteString(randChromosome(1000, rng))
	positions := make([]int64, 0, 200)
	for i := 0; i < 200; i++ {
		b.WriteString("acgta")
		readStart := int64(b.Len())
		b.WriteByte("acgt"[rng.Intn(4)])
		positions = append(positions, readStart)
		b.WriteString(randChromosome(20, rng))
	}
	chrom := b.String()
	ref := &fakeRef{seqs: map[string]string{"chr1": chrom}}

	pt := postable.New()
	for _, p := range positions {
		pt.Insert(0, p, postable.Forward)
	}

	m, err := Build(ref, pt, Opts{
		L: 5, R: 0, ComplexityPenalty: 0.25,
		Rand: rand.New(rand.NewSource(4)),
	})
	expect.NoError(t, err)
	expect.EQ(t, m.NumPositions(), 6)
	// A window reading "acgta" before the anchor must score well above 1.
	expect.True(t, m.Score(twobit.FromASCII("acgtaa", nil), 5) > 3.0)
}
