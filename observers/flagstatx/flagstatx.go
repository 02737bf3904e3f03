// Package flagstatx implements the flag-statistics sink observer (A2): a
// per read-group tally of the same flag categories samtools flagstat
// reports, split by whether the record failed vendor QC.
package flagstatx

import (
	"fmt"
	"io"
	"sort"

	"github.com/biogo/hts/sam"
)

// counts is one bucket of tallies, accumulated separately for QC-pass and
// QC-fail records.
type counts struct {
	total         int
	mapped        int
	duplicate     int
	secondary     int
	supplementary int
	paired        int
	goodPair      int
	single        int
	pairMapped    int
	diffChr       int
	diffChrHighQ  int
	read1         int
	read2         int
}

func (c *counts) add(o counts) {
	c.total += o.total
	c.mapped += o.mapped
	c.duplicate += o.duplicate
	c.secondary += o.secondary
	c.supplementary += o.supplementary
	c.paired += o.paired
	c.goodPair += o.goodPair
	c.single += o.single
	c.pairMapped += o.pairMapped
	c.diffChr += o.diffChr
	c.diffChrHighQ += o.diffChrHighQ
	c.read1 += o.read1
	c.read2 += o.read2
}

func (c *counts) record(r *sam.Record) {
	c.total++
	f := r.Flags
	if f&sam.Unmapped == 0 {
		c.mapped++
	}
	if f&sam.Duplicate != 0 {
		c.duplicate++
	}
	switch {
	case f&sam.Secondary != 0:
		c.secondary++
	case f&sam.Supplementary != 0:
		c.supplementary++
	case f&sam.Paired != 0:
		c.paired++
		if f&sam.ProperPair != 0 && f&sam.Unmapped == 0 {
			c.goodPair++
		}
		if f&sam.Read1 != 0 {
			c.read1++
		}
		if f&sam.Read2 != 0 {
			c.read2++
		}
		if f&sam.MateUnmapped != 0 && f&sam.Unmapped == 0 {
			c.single++
		}
		if f&sam.Unmapped == 0 && f&sam.MateUnmapped == 0 {
			c.pairMapped++
			if r.Ref != nil && r.MateRef != nil && r.Ref.ID() != r.MateRef.ID() {
				c.diffChr++
				if r.MapQ >= 5 {
					c.diffChrHighQ++
				}
			}
		}
	}
}

func percent(a, b int) string {
	if b == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", float64(a)*100/float64(b))
}

// perRG is one read group's pass/fail counts.
type perRG struct {
	pass, fail counts
}

// Accumulator tallies per read-group flag statistics over a stream of
// records. The zero value, used via Step, accumulates against the empty
// read-group id for records with no RG tag.
type Accumulator struct {
	byRG map[string]*perRG
}

// New returns an empty Accumulator.
func New() *Accumulator {
	return &Accumulator{byRG: make(map[string]*perRG)}
}

// Step implements sink.Observer.
func (a *Accumulator) Step(rg string, _ *sam.Header, rec *sam.Record, _ int64) error {
	if a.byRG == nil {
		a.byRG = make(map[string]*perRG)
	}
	g, ok := a.byRG[rg]
	if !ok {
		g = &perRG{}
		a.byRG[rg] = g
	}
	bucket := &g.pass
	if rec.Flags&sam.QCFail != 0 {
		bucket = &g.fail
	}
	bucket.record(rec)
	return nil
}

// Finish implements sink.Observer; flagstatx has nothing to flush.
func (a *Accumulator) Finish() error { return nil }

// Print writes one flagstat report per read group, sorted by read-group
// name, to out. An empty-string read group (records with no RG tag) is
// printed first, under the heading "(none)".
func (a *Accumulator) Print(out io.Writer) error {
	names := make([]string, 0, len(a.byRG))
	for rg := range a.byRG {
		names = append(names, rg)
	}
	sort.Strings(names)
	for _, rg := range names {
		label := rg
		if label == "" {
			label = "(none)"
		}
		if _, err := fmt.Fprintf(out, "== %s ==\n", label); err != nil {
			return err
		}
		if err := printOne(out, a.byRG[rg]); err != nil {
			return err
		}
	}
	return nil
}

func printOne(out io.Writer, g *perRG) error {
	qc, failed := g.pass, g.fail
	lines := []string{
		fmt.Sprintf("%d + %d in total (QC-passed reads + QC-failed reads)\n", qc.total, failed.total),
		fmt.Sprintf("%d + %d secondary\n", qc.secondary, failed.secondary),
		fmt.Sprintf("%d + %d supplementary\n", qc.supplementary, failed.supplementary),
		fmt.Sprintf("%d + %d duplicates\n", qc.duplicate, failed.duplicate),
		fmt.Sprintf("%d + %d mapped (%s:%s)\n", qc.mapped, failed.mapped,
			percent(qc.mapped, qc.total), percent(failed.mapped, failed.total)),
		fmt.Sprintf("%d + %d paired in sequencing\n", qc.paired, failed.paired),
		fmt.Sprintf("%d + %d read1\n", qc.read1, failed.read1),
		fmt.Sprintf("%d + %d read2\n", qc.read2, failed.read2),
		fmt.Sprintf("%d + %d properly paired (%s:%s)\n", qc.goodPair, failed.goodPair,
			percent(qc.goodPair, qc.paired), percent(failed.goodPair, failed.paired)),
		fmt.Sprintf("%d + %d with itself and mate mapped\n", qc.pairMapped, failed.pairMapped),
		fmt.Sprintf("%d + %d singletons (%s:%s)\n", qc.single, failed.single,
			percent(qc.single, qc.total), percent(failed.single, failed.total)),
		fmt.Sprintf("%d + %d with mate mapped to a different chr\n", qc.diffChr, failed.diffChr),
		fmt.Sprintf("%d + %d with mate mapped to a different chr (mapQ>=5)\n", qc.diffChrHighQ, failed.diffChrHighQ),
	}
	for _, l := range lines {
		if _, err := io.WriteString(out, l); err != nil {
			return err
		}
	}
	return nil
}
