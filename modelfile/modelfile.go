// Package modelfile serializes and loads a trained motif.Motif as a YAML
// document, per the model-file format in spec §6.
package modelfile

import (
	"io"

	"github.com/bioc/seqbias/motif"
	berrors "github.com/grailbio/base/errors"
	"gopkg.in/yaml.v3"
)

// document mirrors the on-disk YAML shape exactly: a top-level L, R, and a
// nested motif mapping.
type document struct {
	L     int         `yaml:"L"`
	R     int         `yaml:"R"`
	Motif motifRecord `yaml:"motif"`
}

type motifRecord struct {
	N       int         `yaml:"n"`
	K       int         `yaml:"k"`
	Parents [][]int     `yaml:"parents"`
	FG      [][]float64 `yaml:"fg"`
	BG      [][]float64 `yaml:"bg"`
}

// Save writes m to w as YAML.
func Save(w io.Writer, m *motif.Motif) error {
	doc := toDocument(m)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return berrors.E(err, "modelfile: encoding model")
	}
	return enc.Close()
}

func toDocument(m *motif.Motif) document {
	n := m.NumPositions()
	doc := document{
		L: m.L(),
		R: m.R(),
		Motif: motifRecord{
			N:       n,
			K:       4,
			Parents: make([][]int, n),
			FG:      make([][]float64, n),
			BG:      make([][]float64, n),
		},
	}
	for i := 0; i < n; i++ {
		doc.Motif.Parents[i] = m.ParentsAt(i)
		doc.Motif.FG[i] = m.FGTableAt(i)
		doc.Motif.BG[i] = m.BGTableAt(i)
	}
	return doc
}

// Load reads a model YAML document from r and reconstructs a motif.Motif.
// The reference path binding mentioned in spec §4.F ("Load ... binds it to
// a reference path supplied at load time") is the caller's concern: Load
// only reconstructs the motif itself, and callers pair it with a
// refseq.Reference opened from that path.
func Load(r io.Reader) (*motif.Motif, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, berrors.E(err, "modelfile: decoding model")
	}
	if doc.Motif.N != doc.L+1+doc.R {
		return nil, berrors.E(berrors.Invalid, "modelfile: n does not match L+1+R")
	}
	if doc.Motif.K != 0 && doc.Motif.K != 4 {
		return nil, berrors.E(berrors.Invalid, "modelfile: unsupported alphabet cardinality k")
	}
	m, err := motif.FromTables(doc.L, doc.R, doc.Motif.Parents, doc.Motif.FG, doc.Motif.BG)
	if err != nil {
		return nil, berrors.E(berrors.Invalid, err, "modelfile: malformed motif tables")
	}
	return m, nil
}
