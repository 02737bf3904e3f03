package merge

import (
	"io"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/bamsort/order"
)

// recordSource is the minimal interface a merge cursor pulls records from.
// A plain bam.Reader satisfies it directly; a region-restricted input is
// wrapped behind the same interface by the gindex package.
type recordSource interface {
	Read() (*sam.Record, error)
}

// cursor is the per-input iteration state the heap merger sifts on. Each
// cursor owns exactly one record buffer for its lifetime; on exhaustion the
// buffer is released (set to nil) and the key becomes order.HeapEmpty.
type cursor struct {
	input   int // index into the input list, arbitrary but stable per session
	name    string
	source  recordSource
	cmp     order.Comparator
	key     order.Key
	arrival uint64
	rec     *sam.Record

	// arrivalCounter is shared across all cursors in one merge session so
	// that arrival order reflects global pull order, not per-cursor order.
	arrivalCounter *uint64

	truncated bool
}

func newCursor(input int, name string, src recordSource, cmp order.Comparator, arrivalCounter *uint64) *cursor {
	c := &cursor{
		input:          input,
		name:           name,
		source:         src,
		cmp:            cmp,
		arrivalCounter: arrivalCounter,
	}
	c.pull()
	return c
}

// pull advances the cursor to its next record, or marks it exhausted. A
// corrupt/truncated record (distinct from clean EOF) is treated as
// exhaustion after recording that the cursor was truncated, so the caller
// can log a single warning naming the input.
func (c *cursor) pull() {
	rec, err := c.source.Read()
	if err == io.EOF {
		c.rec = nil
		c.key = order.HeapEmpty
		return
	}
	if err != nil {
		c.rec = nil
		c.key = order.HeapEmpty
		c.truncated = true
		return
	}
	*c.arrivalCounter++
	c.rec = rec
	c.arrival = *c.arrivalCounter
	if c.cmp.ByQName {
		c.key = 0 // qname mode does not use the positional key at all
	} else {
		c.key = order.PositionalKey(rec)
	}
}

// empty reports whether the cursor owns no record.
func (c *cursor) empty() bool { return c.rec == nil }

// less defines the cursor order consumed by the heap: positional key (or,
// in qname mode, the full qname/flag comparator), then input index, then
// arrival index. Cursors holding no record sort last.
func (c *cursor) less(o *cursor) bool {
	if c.empty() || o.empty() {
		if c.empty() != o.empty() {
			return o.empty()
		}
		return false
	}
	if c.cmp.ByQName {
		if c.cmp.HeapLess(c.rec, o.rec) {
			return true
		}
		if o.cmp.HeapLess(o.rec, c.rec) {
			return false
		}
	} else if c.key != o.key {
		return c.key < o.key
	}
	if c.input != o.input {
		return c.input < o.input
	}
	return c.arrival < o.arrival
}
