package flagstatx

import (
	"bytes"
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorSplitsByRGAndQC(t *testing.T) {
	a := New()
	mapped := &sam.Record{Flags: 0}
	unmapped := &sam.Record{Flags: sam.Unmapped}
	failed := &sam.Record{Flags: sam.QCFail}

	require.NoError(t, a.Step("rg1", nil, mapped, 1))
	require.NoError(t, a.Step("rg1", nil, unmapped, 2))
	require.NoError(t, a.Step("rg2", nil, failed, 3))

	assert.Equal(t, 2, a.byRG["rg1"].pass.total)
	assert.Equal(t, 1, a.byRG["rg1"].pass.mapped)
	assert.Equal(t, 1, a.byRG["rg2"].fail.total)
}

func TestAccumulatorPairedBits(t *testing.T) {
	a := New()
	r1 := &sam.Record{Flags: sam.Paired | sam.Read1 | sam.ProperPair}
	require.NoError(t, a.Step("", nil, r1, 1))
	assert.Equal(t, 1, a.byRG[""].pass.paired)
	assert.Equal(t, 1, a.byRG[""].pass.read1)
	assert.Equal(t, 1, a.byRG[""].pass.goodPair)
}

func TestPrintProducesOneSectionPerRG(t *testing.T) {
	a := New()
	require.NoError(t, a.Step("rgA", nil, &sam.Record{}, 1))
	require.NoError(t, a.Step("rgB", nil, &sam.Record{}, 2))

	var buf bytes.Buffer
	require.NoError(t, a.Print(&buf))
	out := buf.String()
	assert.Contains(t, out, "== rgA ==")
	assert.Contains(t, out, "== rgB ==")
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "N/A", percent(1, 0))
	assert.Equal(t, "50.00%", percent(1, 2))
}
