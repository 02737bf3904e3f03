// Package sortengine implements the sort driver (C4): it orchestrates run
// generation over an unsorted input stream and, when more than one run was
// produced, drives a merge session over the temporary runs to the final
// output.
package sortengine

import (
	"context"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/grailbio/bamsort/merge"
	"github.com/grailbio/bamsort/order"
	"github.com/grailbio/bamsort/rungen"
	"github.com/grailbio/bamsort/sink"
	"github.com/grailbio/base/log"
)

// Options configures one sort session.
type Options struct {
	// Input is the unsorted record source to read to completion.
	Input *bam.Reader

	// MemBudget bounds the run generator's in-memory buffer, in bytes.
	MemBudget int64

	Cmp order.Comparator

	// Prefix names temporary run files "<Prefix>.NNNN.bam"; "" falls back
	// to randomly named files in the system temp directory.
	Prefix string

	Sink *sink.Sink
}

// Run drives one full sort session: fill-then-flush runs from Input until
// EOF, then either hand the single in-memory-sorted buffer straight to the
// sink (when everything fit in one run and no run was ever flushed to
// disk) or merge the flushed runs via the merge driver.
//
// Once the runs have been flushed and the merge over them is started, every
// temporary run file is removed before Run returns, whether or not the merge
// succeeded. Runs already flushed when reading the input or flushing a run
// fails are left in place.
func Run(ctx context.Context, opts Options) error {
	header := opts.Input.Header()
	gen := rungen.New(header, rungen.Options{
		MemBudget: opts.MemBudget,
		Cmp:       opts.Cmp,
		Prefix:    opts.Prefix,
	})

	for {
		rec, rerr := opts.Input.Read()
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return rerr
		}
		if err := gen.Add(ctx, rec); err != nil {
			return err
		}
	}

	if gen.RunCount() == 0 {
		sorted := rungen.SortAll(gen.TakeBuffered(), opts.Cmp)
		if err := opts.Sink.Init(header); err != nil {
			return err
		}
		for _, rec := range sorted {
			if err := opts.Sink.PutRecord(rec); err != nil {
				return err
			}
		}
		return opts.Sink.Close()
	}

	runs, err := gen.Finish(ctx)
	if err != nil {
		return err
	}
	if len(runs) > 1 {
		log.Printf("merging from %d files...", len(runs))
	}
	defer func() {
		for _, p := range runs {
			if rerr := os.Remove(p); rerr != nil {
				log.Printf("sortengine: failed to remove temp run %s: %v", p, rerr)
			}
		}
	}()

	inputs := make([]merge.Input, len(runs))
	for i, p := range runs {
		inputs[i] = merge.Input{Path: p}
	}
	return merge.Run(ctx, merge.Options{
		Inputs: inputs,
		Cmp:    opts.Cmp,
		Sink:   opts.Sink,
	})
}
