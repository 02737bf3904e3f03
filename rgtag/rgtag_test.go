package rgtag

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPath(t *testing.T) {
	assert.Equal(t, "sample1.sorted", FromPath("/data/sample1.sorted.bam"))
	assert.Equal(t, "sample1", FromPath("sample1.bam"))
	assert.Equal(t, "noext", FromPath("noext"))
}

func TestInjectAndGet(t *testing.T) {
	rec := &sam.Record{}
	Inject(rec, "NA12878")
	got, ok := Get(rec)
	require.True(t, ok)
	assert.Equal(t, "NA12878", got)
}

func TestInjectReplacesExisting(t *testing.T) {
	rec := &sam.Record{}
	Inject(rec, "first")
	Inject(rec, "second")
	got, ok := Get(rec)
	require.True(t, ok)
	assert.Equal(t, "second", got)
	assert.Len(t, rec.AuxFields, 1)
}

func TestGetAbsent(t *testing.T) {
	rec := &sam.Record{}
	_, ok := Get(rec)
	assert.False(t, ok)
}

func TestInjectEmptyIsNoop(t *testing.T) {
	rec := &sam.Record{}
	Inject(rec, "")
	_, ok := Get(rec)
	assert.False(t, ok)
}
