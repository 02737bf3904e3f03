package sortengine

import (
	"bytes"
	"context"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/bamsort/order"
	"github.com/grailbio/bamsort/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRef(t *testing.T, name string, length int) *sam.Reference {
	t.Helper()
	ref, err := sam.NewReference(name, "", "", length, nil, nil)
	require.NoError(t, err)
	return ref
}

func unsortedReader(t *testing.T, h *sam.Header, recs []*sam.Record) *bam.Reader {
	t.Helper()
	var buf bytes.Buffer
	w, err := bam.NewWriter(&buf, h, 1)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	r, err := bam.NewReader(&buf, 1)
	require.NoError(t, err)
	return r
}

type closingWriter struct{ *bytes.Buffer }

func (closingWriter) Close() error { return nil }

func readAllNames(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	r, err := bam.NewReader(bytes.NewReader(buf.Bytes()), 1)
	require.NoError(t, err)
	var names []string
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		names = append(names, rec.Name)
	}
	return names
}

func TestRunSingleRunFastPathSortsInMemory(t *testing.T) {
	chr1 := mustRef(t, "chr1", 1000)
	h, err := sam.NewHeader(nil, []*sam.Reference{chr1})
	require.NoError(t, err)

	in := unsortedReader(t, h, []*sam.Record{
		{Ref: chr1, Pos: 30, Name: "c"},
		{Ref: chr1, Pos: 10, Name: "a"},
		{Ref: chr1, Pos: 20, Name: "b"},
	})

	var out bytes.Buffer
	s := sink.New(closingWriter{&out}, sink.Default, 1)

	err = Run(context.Background(), Options{
		Input:     in,
		MemBudget: 1 << 20, // comfortably fits all three records in one run
		Cmp:       order.Comparator{},
		Prefix:    t.TempDir() + "/run",
		Sink:      s,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, readAllNames(t, &out))
}

func TestRunMultiRunPathMergesTemporaryRuns(t *testing.T) {
	chr1 := mustRef(t, "chr1", 1000)
	h, err := sam.NewHeader(nil, []*sam.Reference{chr1})
	require.NoError(t, err)

	in := unsortedReader(t, h, []*sam.Record{
		{Ref: chr1, Pos: 40, Name: "d"},
		{Ref: chr1, Pos: 10, Name: "a"},
		{Ref: chr1, Pos: 30, Name: "c"},
		{Ref: chr1, Pos: 20, Name: "b"},
	})

	var out bytes.Buffer
	s := sink.New(closingWriter{&out}, sink.Default, 1)

	// coreSizeBytes is 512, so a budget of 512 gives run capacity 1: every
	// record flushes its own run, forcing the external-merge path.
	err = Run(context.Background(), Options{
		Input:     in,
		MemBudget: 512,
		Cmp:       order.Comparator{},
		Prefix:    t.TempDir() + "/run",
		Sink:      s,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, readAllNames(t, &out))
}
