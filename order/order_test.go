package order

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRef(t *testing.T, name string, length int) *sam.Reference {
	t.Helper()
	ref, err := sam.NewReference(name, "", "", length, nil, nil)
	require.NoError(t, err)
	return ref
}

func TestStrnumCompare(t *testing.T) {
	assert.Greater(t, StrnumCompare("read10", "read9"), 0)
	assert.Equal(t, 0, StrnumCompare("read9", "read9"))
	assert.Less(t, StrnumCompare("read9a", "read9b"), 0)
	assert.Less(t, StrnumCompare("a", "ab"), 0)
	assert.Greater(t, StrnumCompare("read007", "read7"), 0)
}

func TestStripWarts(t *testing.T) {
	assert.Equal(t, 0, StrnumCompare(StripWarts("M_read1"), "read1"))
	assert.Greater(t, StrnumCompare("M_read1", "read1"), 0)
	assert.Equal(t, "read1", StripWarts("M_F_read1"))
	assert.Equal(t, "read1", StripWarts("read1"))
}

func TestPositionalKeyOrdering(t *testing.T) {
	chr1 := mustRef(t, "chr1", 1000)
	chr2 := mustRef(t, "chr2", 1000)
	// Adding the references to a header assigns their IDs (0 and 1).
	_, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	require.NoError(t, err)

	recs := []*sam.Record{
		{Ref: chr1, Pos: 100},
		{Ref: chr1, Pos: 50},
		{Ref: chr2, Pos: 10},
	}
	cmp := Comparator{}
	assert.True(t, cmp.Less(recs[1], recs[0]))
	assert.True(t, cmp.Less(recs[0], recs[2]))
	assert.True(t, cmp.Less(recs[1], recs[2]))
}

func TestUnmappedSortsLast(t *testing.T) {
	chr1 := mustRef(t, "chr1", 1000)
	_, err := sam.NewHeader(nil, []*sam.Reference{chr1})
	require.NoError(t, err)
	mapped := &sam.Record{Ref: chr1, Pos: 999}
	unmapped := &sam.Record{Ref: nil, Pos: -1}
	cmp := Comparator{}
	assert.True(t, cmp.Less(mapped, unmapped))
	assert.False(t, cmp.Less(unmapped, mapped))
}

func TestQNameModeReadOrderTiebreak(t *testing.T) {
	cmp := Comparator{ByQName: true}
	unpaired := &sam.Record{Name: "r2", Flags: 0}
	paired2 := &sam.Record{Name: "r2", Flags: sam.Paired | sam.Read2}
	r10 := &sam.Record{Name: "r10"}

	assert.True(t, cmp.Less(unpaired, paired2))
	assert.False(t, cmp.Less(paired2, unpaired))
	assert.True(t, cmp.Less(paired2, r10))
}

func TestQNameModeReadBitsTiebreakFormula(t *testing.T) {
	// Spec formula, applied literally: a<b iff (a.flag&mask) > (b.flag&mask).
	cmp := Comparator{ByQName: true}
	read1 := &sam.Record{Name: "r1", Flags: sam.Paired | sam.Read1}
	read2 := &sam.Record{Name: "r1", Flags: sam.Paired | sam.Read2}
	assert.Equal(t, sam.Read1 > sam.Read2, cmp.Less(read1, read2))
	assert.Equal(t, sam.Read2 > sam.Read1, cmp.Less(read2, read1))
}

func TestHeapLessAgreesWithLess(t *testing.T) {
	cmp := Comparator{ByQName: true}
	a := &sam.Record{Name: "r2", Flags: sam.Paired | sam.Read1}
	b := &sam.Record{Name: "r2", Flags: sam.Paired | sam.Read2}
	assert.Equal(t, cmp.Less(a, b), cmp.HeapLess(a, b))
	assert.Equal(t, cmp.Less(b, a), cmp.HeapLess(b, a))
}
