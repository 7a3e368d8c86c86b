// Package postable implements the read-start position hash table: it
// aggregates aligned reads into (chromosome, position, strand, count)
// records, folding duplicates by incrementing a shared counter.
package postable

import "sort"

// Strand is the orientation of an aligned read.
type Strand int8

const (
	// Forward is the + strand.
	Forward Strand = iota
	// Reverse is the - strand.
	Reverse
)

// String implements fmt.Stringer.
func (s Strand) String() string {
	if s == Reverse {
		return "-"
	}
	return "+"
}

// key is the aggregation key: reference-sequence index, 0-based genomic
// coordinate of the read's 5' end, and strand. It is a small, comparable
// struct, so the builtin map already gives us O(1) hashing with no custom
// hash function needed (mirroring markduplicates/duplicate_key.go, which
// hashes its own comparable key the same way).
type key struct {
	tid    uint32
	pos    int64
	strand Strand
}

// ReadPos is a single aggregated read-start record.
type ReadPos struct {
	Tid    uint32
	Pos    int64
	Strand Strand
	Count  uint32
}

// Table maps (tid, pos, strand) to an observation count. It is not
// thread-safe for concurrent Insert calls; this matches the single-threaded
// resource model of the rest of the core (spec §5).
type Table struct {
	counts map[key]uint32
}

// New returns an empty position table.
func New() *Table {
	return &Table{counts: make(map[key]uint32)}
}

// Insert increments the counter for (tid, pos, strand), creating the entry
// on first insertion.
func (t *Table) Insert(tid uint32, pos int64, strand Strand) {
	t.counts[key{tid, pos, strand}]++
}

// Len returns the number of distinct (tid, pos, strand) keys recorded.
func (t *Table) Len() int { return len(t.counts) }

// Dump returns up to limit records. Order is unspecified; callers that need
// a particular order must sort the result (see SortByTid / SortByCountDesc).
// limit <= 0 means "no limit".
func (t *Table) Dump(limit int) []ReadPos {
	n := len(t.counts)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]ReadPos, 0, n)
	for k, c := range t.counts {
		if len(out) >= n {
			break
		}
		out = append(out, ReadPos{Tid: k.tid, Pos: k.pos, Strand: k.strand, Count: c})
	}
	return out
}

// SortByTid sorts records by Tid ascending, the order the trainer scans
// chromosomes in so each one is fetched from the reference at most once.
func SortByTid(recs []ReadPos) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Tid < recs[j].Tid })
}

// SortByCountDesc sorts records by Count descending.
func SortByCountDesc(recs []ReadPos) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Count > recs[j].Count })
}
