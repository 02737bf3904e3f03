package sink

import (
	"bytes"
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopWriteCloser struct {
	*bytes.Buffer
	closed bool
}

func (w *nopWriteCloser) Close() error {
	w.closed = true
	return nil
}

type recordingObserver struct {
	steps    []int64
	rgs      []string
	finished bool
}

func (o *recordingObserver) Step(rg string, _ *sam.Header, _ *sam.Record, seq int64) error {
	o.steps = append(o.steps, seq)
	o.rgs = append(o.rgs, rg)
	return nil
}

func (o *recordingObserver) Finish() error {
	o.finished = true
	return nil
}

func mustHeader(t *testing.T) *sam.Header {
	t.Helper()
	chr1, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	require.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{chr1})
	require.NoError(t, err)
	return h
}

func TestSinkWritesRecordsAndFansOutToObservers(t *testing.T) {
	h := mustHeader(t)
	obs := &recordingObserver{}
	w := &nopWriteCloser{Buffer: &bytes.Buffer{}}
	s := New(w, Default, 1, obs)
	require.NoError(t, s.Init(h))

	rec := &sam.Record{Ref: h.Refs()[0], Pos: 10, Name: "r1"}
	require.NoError(t, s.PutRecord(rec))
	require.NoError(t, s.PutRecord(rec))

	require.NoError(t, s.Close())
	assert.True(t, obs.finished)
	assert.True(t, w.closed)
	assert.Equal(t, []int64{1, 2}, obs.steps)
	assert.NotEmpty(t, w.Buffer.Bytes())
}

func TestSinkHeaderGetterReturnsInitHeader(t *testing.T) {
	h := mustHeader(t)
	w := &nopWriteCloser{Buffer: &bytes.Buffer{}}
	s := New(w, Default, 1)
	require.NoError(t, s.Init(h))
	assert.Same(t, h, s.Header())
}

func TestSinkObserversCalledInAttachmentOrder(t *testing.T) {
	h := mustHeader(t)
	var order []string
	first := &orderObserver{name: "first", log: &order}
	second := &orderObserver{name: "second", log: &order}
	w := &nopWriteCloser{Buffer: &bytes.Buffer{}}
	s := New(w, Default, 1, first, second)
	require.NoError(t, s.Init(h))
	require.NoError(t, s.PutRecord(&sam.Record{Ref: h.Refs()[0], Pos: 1, Name: "r1"}))
	require.NoError(t, s.Close())
	assert.Equal(t, []string{"first", "second", "first", "second"}, order)
}

type orderObserver struct {
	name string
	log  *[]string
}

func (o *orderObserver) Step(string, *sam.Header, *sam.Record, int64) error {
	*o.log = append(*o.log, o.name)
	return nil
}

func (o *orderObserver) Finish() error {
	*o.log = append(*o.log, o.name)
	return nil
}

func TestSinkUncompressedModeWrites(t *testing.T) {
	h := mustHeader(t)
	w := &nopWriteCloser{Buffer: &bytes.Buffer{}}
	s := New(w, Uncompressed, 1)
	require.NoError(t, s.Init(h))
	require.NoError(t, s.PutRecord(&sam.Record{Ref: h.Refs()[0], Pos: 1, Name: "r1"}))
	require.NoError(t, s.Close())
	assert.NotEmpty(t, w.Buffer.Bytes())
}
