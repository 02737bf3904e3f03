package main

// bio-bam-merge merges N already-sorted BAM files into one sorted stream,
// optionally restricted to a region and fanning out to side-effect
// accumulators (a positional index, flag statistics, coverage statistics).
//
// Usage: bio-bam-merge [flags] <input.bam>...

import (
	"context"
	"flag"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/bamsort/bamerr"
	"github.com/grailbio/bamsort/gindex"
	"github.com/grailbio/bamsort/merge"
	"github.com/grailbio/bamsort/observers/covstat"
	"github.com/grailbio/bamsort/observers/flagstatx"
	"github.com/grailbio/bamsort/order"
	"github.com/grailbio/bamsort/sink"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

var (
	byNameFlag     = flag.Bool("n", false, "Merge order is query-name instead of coordinate")
	rgFlag         = flag.Bool("r", false, "Inject an RG aux tag derived from each input's filename")
	uncompFlag     = flag.Bool("u", false, "Write uncompressed output")
	fastFlag       = flag.Bool("1", false, "Write output at gzip level 1")
	headerFlag     = flag.String("h", "", "Path to an override header; its comments replace the reconciled header's and its RG/PG lines are added to it")
	regionFlag     = flag.String("R", "", "Restrict merge to a region, e.g. chr1:1000-2000")
	outFlag        = flag.String("o", "-", "Output path; '-' writes to stdout")
	forceFlag      = flag.Bool("f", false, "Overwrite an existing output file")
	indexOutFlag   = flag.String("i", "", "Write a positional index of the output to this path")
	flagstatOut    = flag.String("x", "", "Write flag statistics to this path")
	covstatOutFlag = flag.String("c", "", "Write coverage statistics to this path")
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	flag.Usage = func() {
		os.Stderr.WriteString(`Usage: bio-bam-merge [flags] <input.bam>...

Merges N sorted BAM files into one sorted stream.
`)
		flag.PrintDefaults()
	}
	shutdown := grail.Init()
	defer shutdown()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	ctx := vcontext.Background()

	if *outFlag != "-" && !*forceFlag {
		if _, serr := os.Stat(*outFlag); serr == nil {
			log.Panicf("%v", bamerr.OutputExistsError(*outFlag))
		}
	}

	var override *sam.Header
	if *headerFlag != "" {
		override = loadOverrideHeader(ctx, *headerFlag)
	}

	inputs := make([]merge.Input, len(args))
	for i, p := range args {
		inputs[i] = merge.Input{Path: p}
	}

	var observers []sink.Observer
	var flagAcc *flagstatx.Accumulator
	var covAcc *covstat.Accumulator
	if *flagstatOut != "" {
		flagAcc = flagstatx.New()
		observers = append(observers, flagAcc)
	}
	if *covstatOutFlag != "" {
		covAcc = covstat.New()
		observers = append(observers, covAcc)
	}

	out, closeOut := openOutput(*outFlag)
	defer closeOut() // nolint: errcheck

	compression := sink.Default
	switch {
	case *uncompFlag:
		compression = sink.Uncompressed
	case *fastFlag:
		compression = sink.FastCompression
	}
	s := sink.New(out, compression, 1, observers...)

	cmp := order.Comparator{ByQName: *byNameFlag}
	if err := merge.Run(ctx, merge.Options{
		Inputs:         inputs,
		Cmp:            cmp,
		HeaderOverride: override,
		TagReadGroups:  *rgFlag,
		Region:         *regionFlag,
		Sink:           s,
	}); err != nil {
		log.Panicf("merge: %v", err)
	}

	if *flagstatOut != "" {
		writeReport(*flagstatOut, func(w *os.File) error { return flagAcc.Print(w) })
	}
	if *covstatOutFlag != "" {
		writeReport(*covstatOutFlag, func(w *os.File) error { return covAcc.Print(w, s.Header()) })
	}
	if *indexOutFlag != "" {
		buildAndWriteIndex(ctx, *outFlag, *indexOutFlag)
	}
}

// loadOverrideHeader opens path as a BAM file and returns its header, used
// for the free-form text (RG/PG/CO lines) it carries and, when it has
// references, checked against the reconciled dictionary; a BAM file is
// the simplest source that already round-trips through the same header
// codec the rest of this tool uses.
func loadOverrideHeader(ctx context.Context, path string) *sam.Header {
	f, err := file.Open(ctx, path)
	if err != nil {
		log.Panicf("%v", bamerr.CannotOpenError(path, err))
	}
	defer f.Close(ctx) // nolint: errcheck
	r, err := bam.NewReader(f.Reader(ctx), 1)
	if err != nil {
		log.Panicf("%v: failed to open override header BAM: %v", path, err)
	}
	return r.Header()
}

func openOutput(path string) (*os.File, func() error) {
	if path == "-" {
		return os.Stdout, func() error { return nil }
	}
	f, err := os.Create(path)
	if err != nil {
		log.Panicf("create %v: %v", path, err)
	}
	return f, f.Close
}

func writeReport(path string, print func(*os.File) error) {
	f, err := os.Create(path)
	if err != nil {
		log.Panicf("create %v: %v", path, err)
	}
	defer f.Close()
	if err := print(f); err != nil {
		log.Panicf("write %v: %v", path, err)
	}
}

// buildAndWriteIndex reopens the just-written output and builds its
// positional index as a separate pass, since virtual offsets are only
// meaningful once the output is final.
func buildAndWriteIndex(ctx context.Context, bamPath, indexPath string) {
	if bamPath == "-" {
		log.Printf("cannot build an index over stdout output; skipping -i %v", indexPath)
		return
	}
	f, err := file.Open(ctx, bamPath)
	if err != nil {
		log.Panicf("%v", bamerr.CannotOpenError(bamPath, err))
	}
	defer f.Close(ctx) // nolint: errcheck

	const byteInterval = 64 << 10
	idx, err := gindex.Build(f.Reader(ctx), byteInterval, 1)
	if err != nil {
		log.Panicf("build index for %v: %v", bamPath, err)
	}

	out, err := os.Create(indexPath)
	if err != nil {
		log.Panicf("create %v: %v", indexPath, err)
	}
	defer out.Close()
	if err := gindex.Save(out, idx); err != nil {
		log.Panicf("write index %v: %v", indexPath, err)
	}
}
