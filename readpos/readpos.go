// Package readpos implements the BAM external collaborator: it iterates
// primary alignments out of a BAM file, discarding secondary, supplementary
// and unmapped records, and exposes the (tid, pos, strand) triple each
// surviving record contributes to a postable.Table. Records with more than
// one CIGAR block are still returned; callers drop them with IsUngapped.
package readpos

import (
	"io"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/bioc/seqbias/postable"
	"github.com/pkg/errors"
)

// Alignment is the minimal information readpos exposes per primary
// alignment, per spec §6: (tid, pos, strand, cigar_block_count,
// aligned_end).
type Alignment struct {
	Tid             uint32
	Pos             int64 // 0-based leftmost reference position
	Strand          postable.Strand
	CigarBlockCount int
	AlignedEnd      int64 // 0-based inclusive
}

// StartPos returns the 5' genomic position of the alignment: Pos on the
// forward strand, AlignedEnd on the reverse strand.
func (a Alignment) StartPos() int64 {
	if a.Strand == postable.Reverse {
		return a.AlignedEnd
	}
	return a.Pos
}

// Reader iterates primary alignments out of a BAM file.
// Reader wraps a bam.Reader. It does not own the underlying file: callers
// open and close that themselves (per spec §5, resources are scoped to the
// operation that acquired them), matching how grailbio-bio's cmd/bio-fusion
// separates file.File lifecycle from the format-specific reader built on
// top of it.
type Reader struct {
	br *bam.Reader
}

// Open wraps an already-open BAM byte stream.
func Open(r io.Reader) (*Reader, error) {
	br, err := bam.NewReader(r, 0)
	if err != nil {
		return nil, errors.Wrap(err, "readpos: opening BAM file")
	}
	return &Reader{br: br}, nil
}

// Header returns the BAM header, giving access to reference names/lengths
// via Header().Refs().
func (rd *Reader) Header() *sam.Header { return rd.br.Header() }

// isPrimary reports whether rec should be considered at all: unmapped,
// secondary, and supplementary alignments are discarded outright (spec §6
// speaks only of "primary alignments").
func isPrimary(rec *sam.Record) bool {
	const skip = sam.Unmapped | sam.Secondary | sam.Supplementary
	return rec.Flags&skip == 0
}

// Next reads the next primary alignment, skipping non-primary records. It
// returns (Alignment{}, false, nil) at end of file.
func (rd *Reader) Next() (Alignment, bool, error) {
	for {
		rec, err := rd.br.Read()
		if err == io.EOF {
			return Alignment{}, false, nil
		}
		if err != nil {
			return Alignment{}, false, errors.Wrap(err, "readpos: reading BAM record")
		}
		if !isPrimary(rec) {
			continue
		}
		return toAlignment(rec), true, nil
	}
}

func toAlignment(rec *sam.Record) Alignment {
	strand := postable.Forward
	if rec.Flags&sam.Reverse != 0 {
		strand = postable.Reverse
	}
	return Alignment{
		Tid:             uint32(rec.Ref.ID()),
		Pos:             int64(rec.Pos),
		Strand:          strand,
		CigarBlockCount: len(rec.Cigar),
		AlignedEnd:      int64(rec.End()) - 1,
	}
}

// IsUngapped reports whether a's CigarBlockCount qualifies it for inclusion
// (spec §6: "Reads with cigar_block_count != 1 are discarded").
func (a Alignment) IsUngapped() bool { return a.CigarBlockCount == 1 }

// QueryRegion iterates the primary alignments overlapping [start, end) on
// the reference named refName, using idx (loaded from the BAM's .bai file
// via ReadIndex) to seek directly to the relevant chunks. Gapped records are
// not filtered out here; callers check IsUngapped.
func (rd *Reader) QueryRegion(idx *bam.Index, refName string, start, end int) (*RegionIterator, error) {
	ref, ok := findRef(rd.br.Header(), refName)
	if !ok {
		return nil, errors.Errorf("readpos: reference %q not present in BAM header", refName)
	}
	chunks, err := idx.Chunks(ref, start, end)
	if err != nil {
		return nil, errors.Wrapf(err, "readpos: indexing region %s:%d-%d", refName, start, end)
	}
	it, err := bam.NewIterator(rd.br, chunks)
	if err != nil {
		return nil, errors.Wrap(err, "readpos: constructing region iterator")
	}
	return &RegionIterator{it: it}, nil
}

func findRef(h *sam.Header, name string) (*sam.Reference, bool) {
	for _, ref := range h.Refs() {
		if ref.Name() == name {
			return ref, true
		}
	}
	return nil, false
}

// RegionIterator iterates alignments returned by an indexed region query.
type RegionIterator struct {
	it *bam.Iterator
}

// Next advances the iterator, skipping non-primary records.
func (ri *RegionIterator) Next() (Alignment, bool, error) {
	for ri.it.Next() {
		rec := ri.it.Record()
		if !isPrimary(rec) {
			continue
		}
		return toAlignment(rec), true, nil
	}
	if err := ri.it.Error(); err != nil {
		return Alignment{}, false, errors.Wrap(err, "readpos: region iterator")
	}
	return Alignment{}, false, nil
}

// Close releases resources held by the iterator.
func (ri *RegionIterator) Close() error { return ri.it.Close() }

// ReadIndex loads a BAM index (.bai) from r.
func ReadIndex(r io.Reader) (*bam.Index, error) {
	idx, err := bam.ReadIndex(r)
	if err != nil {
		return nil, errors.Wrap(err, "readpos: reading BAM index")
	}
	return idx, nil
}
