package gindex

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegionBareContig(t *testing.T) {
	r, err := ParseRegion("chr1")
	require.NoError(t, err)
	assert.Equal(t, "chr1", r.RefName)
	assert.EqualValues(t, 0, r.Start)
}

func TestParseRegionSinglePos(t *testing.T) {
	r, err := ParseRegion("chr1:100")
	require.NoError(t, err)
	assert.EqualValues(t, 99, r.Start)
	assert.EqualValues(t, 100, r.End)
}

func TestParseRegionRange(t *testing.T) {
	r, err := ParseRegion("chr1:100-200")
	require.NoError(t, err)
	assert.EqualValues(t, 99, r.Start)
	assert.EqualValues(t, 200, r.End)
}

func TestParseRegionInvalid(t *testing.T) {
	for _, s := range []string{"", ":100", "chr1:0", "chr1:200-100"} {
		_, err := ParseRegion(s)
		assert.Error(t, err, s)
	}
}

func TestIndexOffsetBracketsTarget(t *testing.T) {
	idx := Index{
		{RefID: 0, Pos: 0, VOffset: 0},
		{RefID: 0, Pos: 1000, VOffset: toVOffsetForTest(10, 0)},
		{RefID: 0, Pos: 2000, VOffset: toVOffsetForTest(20, 0)},
		{RefID: 1, Pos: 0, VOffset: toVOffsetForTest(30, 0)},
	}
	off, err := idx.Offset(0, 1500)
	require.NoError(t, err)
	assert.EqualValues(t, 10, off.File)

	off, err = idx.Offset(1, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 30, off.File)

	// Past the end of the index entirely: clamps to the last entry.
	off, err = idx.Offset(5, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 30, off.File)
}

func toVOffsetForTest(file int64, block uint16) uint64 {
	return uint64(file)<<16 | uint64(block)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	idx := Index{
		{RefID: 0, Pos: 0, VOffset: 0},
		{RefID: 0, Pos: 100, VOffset: 1 << 16},
	}
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, idx))

	got, err := Load(&buf)
	require.NoError(t, err)
	assert.Equal(t, idx, got)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("not a gbai file at all, definitely")
	_, err := Load(&buf)
	assert.Error(t, err)
}
