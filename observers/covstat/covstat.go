// Package covstat implements the coverage-statistics sink observer (A3): a
// per read-group, per-reference accumulator of aligned base coverage,
// reported as mean depth over each reference's length.
package covstat

import (
	"fmt"
	"io"
	"sort"

	"github.com/biogo/hts/sam"
)

type refCounts struct {
	records     int64
	alignedBase int64
}

// Accumulator tallies per (read-group, reference) coverage over a stream
// of mapped records.
type Accumulator struct {
	byRG map[string]map[string]*refCounts
}

// New returns an empty Accumulator.
func New() *Accumulator {
	return &Accumulator{byRG: make(map[string]map[string]*refCounts)}
}

// Step implements sink.Observer. Unmapped records and secondary/
// supplementary alignments are excluded, since they would double-count or
// misrepresent coverage at a position.
func (a *Accumulator) Step(rg string, _ *sam.Header, rec *sam.Record, _ int64) error {
	if rec.Flags&(sam.Unmapped|sam.Secondary|sam.Supplementary) != 0 || rec.Ref == nil {
		return nil
	}
	byRef, ok := a.byRG[rg]
	if !ok {
		byRef = make(map[string]*refCounts)
		a.byRG[rg] = byRef
	}
	rc, ok := byRef[rec.Ref.Name()]
	if !ok {
		rc = &refCounts{}
		byRef[rec.Ref.Name()] = rc
	}
	refSpan, _ := rec.Cigar.Lengths()
	rc.records++
	rc.alignedBase += int64(refSpan)
	return nil
}

// Finish implements sink.Observer; covstat has nothing to flush.
func (a *Accumulator) Finish() error { return nil }

// Print writes one coverage report per read group, sorted by read-group
// then reference name, using header h to resolve each reference's length
// for the mean-depth computation.
func (a *Accumulator) Print(out io.Writer, h *sam.Header) error {
	refLen := make(map[string]int)
	for _, ref := range h.Refs() {
		refLen[ref.Name()] = ref.Len()
	}

	rgs := make([]string, 0, len(a.byRG))
	for rg := range a.byRG {
		rgs = append(rgs, rg)
	}
	sort.Strings(rgs)

	for _, rg := range rgs {
		label := rg
		if label == "" {
			label = "(none)"
		}
		if _, err := fmt.Fprintf(out, "== %s ==\n", label); err != nil {
			return err
		}
		byRef := a.byRG[rg]
		refs := make([]string, 0, len(byRef))
		for ref := range byRef {
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		for _, ref := range refs {
			rc := byRef[ref]
			depth := 0.0
			if n := refLen[ref]; n > 0 {
				depth = float64(rc.alignedBase) / float64(n)
			}
			if _, err := fmt.Fprintf(out, "%s\t%d reads\t%.4fx mean depth\n", ref, rc.records, depth); err != nil {
				return err
			}
		}
	}
	return nil
}
