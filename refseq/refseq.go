// Package refseq provides the reference-sequence collaborator used by the
// trainer and predictor: fetching substrings of named chromosomes and
// reporting their lengths, loaded once from a FASTA file and held entirely
// in memory.
package refseq

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Reference is the external-collaborator interface both the trainer and the
// predictor depend on; it is satisfied by *FastaReference, and tests may
// substitute a fake.
type Reference interface {
	// FetchSeq returns the lower-case, inclusive 0-based substring
	// [start, end] of the named sequence. ok is false if name is unknown or
	// the range is out of bounds; error is reserved for I/O failure, not
	// for a simple miss.
	FetchSeq(name string, start, end int) (seq string, ok bool, err error)

	// SequenceLengths returns the name and length of every sequence, in the
	// order they appeared in the source file.
	SequenceLengths() []NameLen
}

// NameLen pairs a sequence name with its length.
type NameLen struct {
	Name string
	Len  int
}

// FastaReference holds an entire FASTA file's sequences in memory, lower-
// cased on load, per spec §6 ("The fetcher must return lower-case ASCII or
// the loader must lower-case on entry").
type FastaReference struct {
	seqs     map[string]string
	order    []string
}

// Load reads a FASTA file from r in full. Sequence names are the text
// immediately after '>' up to the first space, following the same
// convention as grailbio-bio's encoding/fasta package.
func Load(r io.Reader) (*FastaReference, error) {
	ref := &FastaReference{seqs: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 256*1024*1024)

	var name string
	var buf strings.Builder
	flush := func() {
		if name == "" {
			return
		}
		ref.seqs[name] = strings.ToLower(buf.String())
		ref.order = append(ref.order, name)
		buf.Reset()
	}
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			flush()
			name = strings.SplitN(line[1:], " ", 2)[0]
			continue
		}
		buf.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "refseq: reading FASTA data")
	}
	flush()
	if len(ref.seqs) == 0 {
		return nil, errors.Errorf("refseq: no sequences found in FASTA input")
	}
	return ref, nil
}

// FetchSeq implements Reference.
func (f *FastaReference) FetchSeq(name string, start, end int) (string, bool, error) {
	s, ok := f.seqs[name]
	if !ok {
		return "", false, nil
	}
	if start < 0 || end < start || end >= len(s) {
		return "", false, nil
	}
	return s[start : end+1], true, nil
}

// SequenceLengths implements Reference.
func (f *FastaReference) SequenceLengths() []NameLen {
	out := make([]NameLen, len(f.order))
	for i, name := range f.order {
		out[i] = NameLen{Name: name, Len: len(f.seqs[name])}
	}
	return out
}
