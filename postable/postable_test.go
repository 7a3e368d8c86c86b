package postable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertFoldsDuplicates(t *testing.T) {
	tbl := New()
	tbl.Insert(0, 100, Forward)
	tbl.Insert(0, 100, Forward)
	tbl.Insert(0, 100, Reverse)
	tbl.Insert(1, 50, Forward)
	assert.Equal(t, 3, tbl.Len())

	recs := tbl.Dump(0)
	require.Len(t, recs, 3)

	byKey := map[key]uint32{}
	for _, r := range recs {
		byKey[key{r.Tid, r.Pos, r.Strand}] = r.Count
	}
	assert.Equal(t, uint32(2), byKey[key{0, 100, Forward}])
	assert.Equal(t, uint32(1), byKey[key{0, 100, Reverse}])
	assert.Equal(t, uint32(1), byKey[key{1, 50, Forward}])
}

func TestDumpLimit(t *testing.T) {
	tbl := New()
	for i := 0; i < 10; i++ {
		tbl.Insert(0, int64(i), Forward)
	}
	recs := tbl.Dump(3)
	assert.Len(t, recs, 3)
	recs = tbl.Dump(0)
	assert.Len(t, recs, 10)
	recs = tbl.Dump(1000)
	assert.Len(t, recs, 10)
}

func TestSortByTid(t *testing.T) {
	recs := []ReadPos{
		{Tid: 2, Pos: 1},
		{Tid: 0, Pos: 2},
		{Tid: 1, Pos: 3},
	}
	SortByTid(recs)
	assert.Equal(t, []uint32{0, 1, 2}, []uint32{recs[0].Tid, recs[1].Tid, recs[2].Tid})
}

func TestSortByCountDesc(t *testing.T) {
	recs := []ReadPos{
		{Count: 1},
		{Count: 5},
		{Count: 3},
	}
	SortByCountDesc(recs)
	assert.Equal(t, []uint32{5, 3, 1}, []uint32{recs[0].Count, recs[1].Count, recs[2].Count})
}

func TestStrandString(t *testing.T) {
	assert.Equal(t, "+", Forward.String())
	assert.Equal(t, "-", Reverse.String())
}
