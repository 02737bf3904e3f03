// Package rungen implements the run generator (C3): it consumes an
// unsorted record stream in bounded memory, sorting and flushing each
// full buffer as a coordinate- or name-sorted temporary BAM run, ready to
// be fed back in as merge inputs.
package rungen

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"sort"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/bamsort/order"
)

// bamFixedBytes is the size of one record's fixed-layout BAM header: the
// same 32 bytes (block_size through tlen) the wire codec this buffer
// accounting is modeled on uses ahead of a record's variable-length name,
// cigar, sequence, quality and aux data.
const bamFixedBytes = 32

// coreSizeBytes is the slot size behind the generator's secondary,
// pathological-case bound: a fixed-capacity array of MemBudget/coreSizeBytes
// slots, sized the way the reference sort driver sizes its record buffer.
// The primary bound is real accumulated record bytes (see recordBytes); this
// slot count only catches the case where the byte bound is never reached
// because individual records are implausibly small and numerous enough to
// exhaust the array first.
const coreSizeBytes = 512

// recordBytes estimates rec's encoded size in a BAM run file: the fixed
// header plus its null-terminated name, 4-byte cigar ops, packed-nibble
// sequence, quality string (or one 0xff byte per base when Qual is absent)
// and raw aux bytes (with a trailing null for 'Z'/'H' typed aux fields).
func recordBytes(rec *sam.Record) int64 {
	n := int64(bamFixedBytes) + int64(len(rec.Name)) + 1 + int64(len(rec.Cigar))<<2 + int64(len(rec.Seq.Seq))
	if rec.Qual != nil {
		n += int64(len(rec.Qual))
	} else {
		n += int64(rec.Seq.Length)
	}
	for _, a := range rec.AuxFields {
		n += int64(len(a))
		switch a.Type() {
		case 'Z', 'H':
			n++
		}
	}
	return n
}

// Options configures one run-generation session.
type Options struct {
	// MemBudget bounds the in-memory buffer, in bytes.
	MemBudget int64
	Cmp       order.Comparator

	// Prefix, when non-empty, names temporary run files
	// "<Prefix>.NNNN.bam" in creation order, matching the reference sort
	// driver's <out.prefix>.NNNN.bam convention. An empty Prefix falls
	// back to randomly named files in the system temp directory.
	Prefix string
}

// Generator buffers records up to its memory budget and flushes sorted
// runs on demand.
type Generator struct {
	opts      Options
	cap       int
	buf       []*sam.Record
	bytesRead int64
	header    *sam.Header
	runPaths  []string
}

// New returns a Generator for the given header and options. MemBudget must
// be positive; callers wanting an in-memory-only sort of a small stream
// should use SortAll directly instead of a Generator with a huge budget.
func New(header *sam.Header, opts Options) *Generator {
	capacity := int(opts.MemBudget / coreSizeBytes)
	if capacity < 1 {
		capacity = 1
	}
	return &Generator{opts: opts, cap: capacity, header: header}
}

// Add buffers rec, flushing a run automatically once accumulated record
// bytes reach the memory budget or the buffer reaches its secondary
// slot-count bound, whichever comes first. The generator takes ownership of
// rec.
func (g *Generator) Add(ctx context.Context, rec *sam.Record) error {
	g.buf = append(g.buf, rec)
	g.bytesRead += recordBytes(rec)
	if g.bytesRead >= g.opts.MemBudget || len(g.buf) >= g.cap {
		return g.flush(ctx)
	}
	return nil
}

// flush stable-sorts the current buffer under the generator's comparator
// and writes it out as one compressed temporary BAM file, then clears the
// buffer. Stability matters only for exact key ties, which the comparator
// itself does not break (arrival order is a merge-time concept); a stable
// sort here simply preserves original stream order for such ties within
// one run, which later runs may not agree on -- the merge driver's
// cursor-then-arrival tiebreak is what gives the overall sort a single
// well-defined tie order end to end.
func (g *Generator) flush(ctx context.Context) error {
	if len(g.buf) == 0 {
		return nil
	}
	sort.SliceStable(g.buf, func(i, j int) bool {
		return g.opts.Cmp.Less(g.buf[i], g.buf[j])
	})

	var tmp *os.File
	var err error
	if g.opts.Prefix != "" {
		tmp, err = os.Create(fmt.Sprintf("%s.%04d.bam", g.opts.Prefix, len(g.runPaths)))
	} else {
		tmp, err = ioutil.TempFile("", "bamsort-run-")
	}
	if err != nil {
		return err
	}
	defer tmp.Close()

	w, err := bam.NewWriterLevel(tmp, g.header, 1, 1)
	if err != nil {
		return err
	}
	for _, rec := range g.buf {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	g.runPaths = append(g.runPaths, tmp.Name())
	g.buf = nil
	g.bytesRead = 0
	return nil
}

// Finish flushes any remaining buffered records and returns the full list
// of run file paths produced this session, in creation order. Finish must
// be called exactly once, after the last Add.
func (g *Generator) Finish(ctx context.Context) ([]string, error) {
	if err := g.flush(ctx); err != nil {
		return nil, err
	}
	return g.runPaths, nil
}

// RunCount reports how many runs have been flushed so far, including any
// not yet triggered by Finish.
func (g *Generator) RunCount() int { return len(g.runPaths) }

// Pending reports how many records are currently buffered, unflushed.
func (g *Generator) Pending() int { return len(g.buf) }

// TakeBuffered returns and clears the currently buffered records without
// writing them to a run file. It is only meaningful when RunCount() == 0,
// i.e. the whole input seen so far fit under the memory budget and no run
// has been flushed yet; the sort driver uses it for the single-run fast
// path that skips the temp-file round trip entirely.
func (g *Generator) TakeBuffered() []*sam.Record {
	buf := g.buf
	g.buf = nil
	return buf
}

// SortAll sorts recs in place under cmp and returns them; used by the sort
// driver's single-run fast path, when the whole stream fit in one buffer
// and no merge step is needed.
func SortAll(recs []*sam.Record, cmp order.Comparator) []*sam.Record {
	sort.SliceStable(recs, func(i, j int) bool {
		return cmp.Less(recs[i], recs[j])
	})
	return recs
}

// ParseMemBudget parses a memory-budget argument of the form NUM[k|M|G],
// where the suffix multiplies by a power of 1024; a bare number is bytes.
func ParseMemBudget(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("rungen: empty memory budget")
	}
	mul := int64(1)
	switch s[len(s)-1] {
	case 'k', 'K':
		mul = 1 << 10
		s = s[:len(s)-1]
	case 'M', 'm':
		mul = 1 << 20
		s = s[:len(s)-1]
	case 'G', 'g':
		mul = 1 << 30
		s = s[:len(s)-1]
	}
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("rungen: invalid memory budget %q: %v", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("rungen: memory budget must be positive, got %q", s)
	}
	return n * mul, nil
}
