// Package sink implements the emission sink (C6): a single structure
// bundling the record writer, the output header, and zero or more
// observers, in the fixed fan-out order the merge and sort drivers depend
// on.
package sink

import (
	"io"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/bamsort/rgtag"
)

// Compression selects the output BAM compression mode.
type Compression int

const (
	// Default uses the underlying writer's standard gzip level.
	Default Compression = iota
	// Uncompressed disables compression entirely.
	Uncompressed
	// FastCompression uses gzip level 1, trading size for write speed.
	FastCompression
)

// Observer receives every record the sink writes, in write order, after
// the record has been durably handed to the writer. Implementations must
// not retain rec beyond the call, since the sink may reuse record buffers
// across calls.
//
// The bam.Writer this sink drives does not expose the true BGZF virtual
// offset of each record as it is written, only after the stream is
// flushed and reopened for random access, so seq is a monotonic per-record
// counter rather than a byte offset. The gindex package's positional index
// does not consume seq at all: it is built by a separate pass that reopens
// the finished output and reads real virtual offsets directly from the
// bgzf layer, mirroring how the on-disk index format is produced.
type Observer interface {
	// Step is called once per record, after it has been written.
	Step(rg string, header *sam.Header, rec *sam.Record, seq int64) error
	// Finish is called once, after the writer has been closed.
	Finish() error
}

// Sink bundles an output writer, its header, and the observers attached to
// this session.
type Sink struct {
	w           io.WriteCloser
	bw          *bam.Writer
	header      *sam.Header
	compression Compression
	parallelism int
	observers   []Observer

	offset int64
}

// New constructs a Sink that writes to w using the given compression mode
// and decode/encode parallelism, invoking observers (in the order given)
// after every record.
func New(w io.WriteCloser, compression Compression, parallelism int, observers ...Observer) *Sink {
	return &Sink{
		w:           w,
		compression: compression,
		parallelism: parallelism,
		observers:   observers,
	}
}

// Init transfers ownership of h to the sink and writes the binary header,
// opening the underlying bam.Writer at the requested compression level.
func (s *Sink) Init(h *sam.Header) error {
	s.header = h
	par := s.parallelism
	if par <= 0 {
		par = 1
	}
	var bw *bam.Writer
	var err error
	switch s.compression {
	case Uncompressed:
		bw, err = bam.NewWriterLevel(s.w, h, 0, par)
	case FastCompression:
		bw, err = bam.NewWriterLevel(s.w, h, 1, par)
	default:
		bw, err = bam.NewWriter(s.w, h, par)
	}
	if err != nil {
		return err
	}
	s.bw = bw
	return nil
}

// Header returns the output header passed to Init, for callers (such as
// coverage-stat reporting) that need reference lengths after the session
// has finished.
func (s *Sink) Header() *sam.Header { return s.header }

// PutRecord writes rec and fans it out to every attached observer, in
// attachment order; Sink itself does not distinguish observer kinds.
// cmd/bio-bam-merge attaches the flag accumulator before the coverage
// accumulator. The positional index is not an observer (see Observer).
func (s *Sink) PutRecord(rec *sam.Record) error {
	if err := s.bw.Write(rec); err != nil {
		return err
	}
	rg, _ := rgtag.Get(rec)
	s.offset++
	for _, obs := range s.observers {
		if err := obs.Step(rg, s.header, rec, s.offset); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the writer, then finalizes every observer in
// attachment order, returning the first error encountered from either
// step.
func (s *Sink) Close() error {
	err := s.bw.Close()
	for _, obs := range s.observers {
		if ferr := obs.Finish(); ferr != nil && err == nil {
			err = ferr
		}
	}
	if cerr := s.w.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
