// Package gindex implements the positional index consumed by region-
// restricted merges: a sparse, position-sorted list of (reference id,
// position, virtual offset) entries that lets a reader seek close to a
// target coordinate instead of scanning from the start of the file.
//
// The on-disk format is a fixed magic header followed by fixed-size binary
// entries, gzip-framed.
// Unlike a byte offset, a BGZF virtual offset addresses both the
// compressed block and the position within it, so Seek can jump directly
// to the block containing the target record.
package gindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/bamsort/bamerr"
	"github.com/klauspost/compress/gzip"
)

const maxRecordSize = 0xffffff

var magic = []byte{
	'G', 'B', 'A', 'I', 0x02, 0x0b, 0x17, 0x23,
	0x2f, 0x3b, 0x47, 0x53, 0x5f, 0x6b, 0x77, 0x83,
}

// Entry is one index entry: the first record at (RefID, Pos) at or after
// VOffset.
type Entry struct {
	RefID   int32
	Pos     int32
	VOffset uint64
}

// Index is a position-sorted sequence of index entries for one BAM file.
type Index []Entry

func compare(x, y *Entry) int {
	if x.RefID != y.RefID {
		switch {
		case x.RefID < 0 && y.RefID >= 0:
			return 1
		case x.RefID >= 0 && y.RefID < 0:
			return -1
		}
		return int(x.RefID) - int(y.RefID)
	}
	switch {
	case x.Pos > y.Pos:
		return 1
	case x.Pos < y.Pos:
		return -1
	}
	return 0
}

// Offset returns a BGZF virtual offset at or before the first record at
// (refID, pos): reading forward from it will eventually reach pos, if it
// is present at all.
func (idx Index) Offset(refID, pos int32) (bgzf.Offset, error) {
	if len(idx) == 0 {
		return bgzf.Offset{}, fmt.Errorf("gindex: empty index")
	}
	target := Entry{RefID: refID, Pos: pos}
	i := sort.Search(len(idx), func(i int) bool { return compare(&idx[i], &target) >= 0 })
	if i == len(idx) {
		return toOffset(idx[len(idx)-1].VOffset), nil
	}
	if compare(&idx[i], &target) > 0 && i > 0 {
		i--
	}
	return toOffset(idx[i].VOffset), nil
}

func toOffset(v uint64) bgzf.Offset {
	return bgzf.Offset{File: int64(v >> 16), Block: uint16(v & 0xffff)}
}

func fromOffset(o bgzf.Offset) uint64 {
	return uint64(o.File)<<16 | uint64(o.Block)
}

// Build scans a finished, coordinate-sorted BAM stream (as raw bytes, via
// r) and produces a sparse index with approximately byteInterval bytes
// between consecutive entries. It is run as a post-pass over the output
// that the sink has already written and closed, since virtual offsets are
// only meaningful once the file is final and reopened for random access.
func Build(r io.Reader, byteInterval, parallelism int) (Index, error) {
	br, err := bgzf.NewReader(r, parallelism)
	if err != nil {
		return nil, err
	}
	h, err := sam.NewHeader(nil, nil)
	if err != nil {
		return nil, err
	}
	if err := h.DecodeBinary(br); err != nil {
		return nil, err
	}

	var (
		idx            Index
		prevRefID      = int32(0)
		prevFileOffset uint64
		firstRecord    = true
		sizeBuf        = make([]byte, 4)
		buf            = make([]byte, maxRecordSize)
	)
	for {
		if _, err := io.ReadFull(br, sizeBuf); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		voff := br.LastChunk().Begin
		sz := int(binary.LittleEndian.Uint32(sizeBuf))
		if sz > maxRecordSize {
			return nil, fmt.Errorf("gindex: record of size %d exceeds maximum", sz)
		}
		if _, err := io.ReadFull(br, buf[:sz]); err != nil {
			return nil, fmt.Errorf("gindex: truncated record: %v", err)
		}
		refID := int32(binary.LittleEndian.Uint32(buf[0:4]))
		pos := int32(binary.LittleEndian.Uint32(buf[4:8]))

		if firstRecord || refID != prevRefID || uint64(voff.File)-prevFileOffset >= uint64(byteInterval) {
			idx = append(idx, Entry{RefID: refID, Pos: pos, VOffset: fromOffset(voff)})
			prevRefID = refID
			prevFileOffset = uint64(voff.File)
			firstRecord = false
		}
	}
	return idx, nil
}

// Save gzip-frames idx and writes it to w.
func Save(w io.Writer, idx Index) error {
	gz := gzip.NewWriter(w)
	if _, err := gz.Write(magic); err != nil {
		return err
	}
	for i := range idx {
		if err := binary.Write(gz, binary.LittleEndian, &idx[i]); err != nil {
			return err
		}
	}
	return gz.Close()
}

// Load reads an index previously written by Save.
func Load(r io.Reader) (Index, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	got := make([]byte, len(magic))
	if _, err := io.ReadFull(gz, got); err != nil {
		return nil, err
	}
	if !bytes.Equal(got, magic) {
		return nil, fmt.Errorf("gindex: bad magic header")
	}

	var idx Index
	for {
		var e Entry
		if err := binary.Read(gz, binary.LittleEndian, &e); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		idx = append(idx, e)
	}
	return idx, nil
}

// Region is a parsed region query: a reference name plus a 0-based,
// half-open [Start, End) interval. An interval-free query (bare contig
// name) reports the widest possible range.
type Region struct {
	RefName string
	Start   int32
	End     int32
}

// ParseRegion parses a region string of the form "chr", "chr:pos", or
// "chr:start-end" (1-based, inclusive, on the wire) into a 0-based
// half-open Region.
func ParseRegion(region string) (Region, error) {
	if region == "" {
		return Region{}, bamerr.InvalidRegionError(region)
	}
	colon := strings.IndexByte(region, ':')
	if colon == -1 {
		return Region{RefName: region, Start: 0, End: 1<<31 - 1}, nil
	}
	if colon == 0 {
		return Region{}, bamerr.InvalidRegionError(region)
	}
	name := region[:colon]
	rangeStr := region[colon+1:]
	dash := strings.IndexByte(rangeStr, '-')
	if dash == -1 {
		pos, err := strconv.ParseInt(rangeStr, 10, 32)
		if err != nil || pos <= 0 {
			return Region{}, bamerr.InvalidRegionError(region)
		}
		return Region{RefName: name, Start: int32(pos - 1), End: int32(pos)}, nil
	}
	start1, err1 := strconv.Atoi(rangeStr[:dash])
	end0, err2 := strconv.Atoi(rangeStr[dash+1:])
	if err1 != nil || err2 != nil || start1 <= 0 || end0 < start1 {
		return Region{}, bamerr.InvalidRegionError(region)
	}
	return Region{RefName: name, Start: int32(start1 - 1), End: int32(end0)}, nil
}

// Iterator reads records in [Start, End) on RefName from a BAM reader
// already positioned at or before the region, via idx.Offset, stopping
// once a record sorts past the region's end.
type Iterator struct {
	r      *bam.Reader
	region Region
	refID  int32
	done   bool
}

// NewIterator seeks r to the start of region using idx and returns an
// iterator over the records it contains. idx may be nil, in which case
// the iterator scans from r's current position, filtering in memory --
// used for inputs that lack a side index.
func NewIterator(r *bam.Reader, idx Index, region Region) (*Iterator, error) {
	refID := int32(-1)
	for _, ref := range r.Header().Refs() {
		if ref.Name() == region.RefName {
			refID = int32(ref.ID())
			break
		}
	}
	if refID < 0 {
		return nil, fmt.Errorf("gindex: region references unknown target %q", region.RefName)
	}
	if idx != nil {
		off, err := idx.Offset(refID, region.Start)
		if err != nil {
			return nil, err
		}
		if err := r.Seek(off); err != nil {
			return nil, err
		}
	}
	return &Iterator{r: r, region: region, refID: refID}, nil
}

// Read returns the next record within the iterator's region, or io.EOF
// once the region is exhausted (either by reaching its end or the
// underlying reader's EOF).
func (it *Iterator) Read() (*sam.Record, error) {
	for {
		if it.done {
			return nil, io.EOF
		}
		rec, err := it.r.Read()
		if err != nil {
			it.done = true
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}
		if rec.Ref == nil || int32(rec.Ref.ID()) != it.refID {
			if rec.Ref != nil && int32(rec.Ref.ID()) > it.refID {
				it.done = true
				return nil, io.EOF
			}
			continue
		}
		if rec.Pos >= int(it.region.End) {
			it.done = true
			return nil, io.EOF
		}
		if rec.Pos < int(it.region.Start) {
			continue
		}
		return rec, nil
	}
}
