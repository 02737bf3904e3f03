package main

// bio-bam-sort sorts a stream of alignment records into coordinate or
// query-name order, using bounded memory and external temporary runs when
// the input does not fit in one buffer.
//
// Usage: bio-bam-sort [flags] <in.bam> <out.prefix>
//
// The sorted result is written to <out.prefix>.bam, or to stdout when -o is
// given. Temporary runs, when needed, are named <out.prefix>.NNNN.bam and
// removed once the sort completes.

import (
	"flag"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/grailbio/bamsort/bamerr"
	"github.com/grailbio/bamsort/order"
	"github.com/grailbio/bamsort/rungen"
	"github.com/grailbio/bamsort/sink"
	"github.com/grailbio/bamsort/sortengine"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

var (
	byNameFlag     = flag.Bool("n", false, "Sort by query name instead of coordinate")
	stdoutFlag     = flag.Bool("o", false, "Write the sorted output to stdout instead of <out.prefix>.bam")
	ignoreWartFlag = flag.Bool("w", false, "Strip [MFRC]_ warts from query names before comparing, in -n mode")
	memFlag        = flag.String("m", "500000000", "Memory budget for the in-memory buffer, e.g. 512M, 2G, or a bare byte count")
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	flag.Usage = func() {
		os.Stderr.WriteString(`Usage: bio-bam-sort [flags] <in.bam> <out.prefix>

Reads a BAM file, sorts its records in bounded memory via external runs
when necessary, and writes the sorted result to <out.prefix>.bam.
`)
		flag.PrintDefaults()
	}
	shutdown := grail.Init()
	defer shutdown()

	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		os.Exit(1)
	}
	inPath, prefix := args[0], args[1]

	memBudget, err := rungen.ParseMemBudget(*memFlag)
	if err != nil {
		log.Panicf("%v", err)
	}

	ctx := vcontext.Background()

	in, err := file.Open(ctx, inPath)
	if err != nil {
		log.Panicf("%v", bamerr.CannotOpenError(inPath, err))
	}
	defer in.Close(ctx) // nolint: errcheck

	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		log.Panicf("%v: failed to open BAM: %v", inPath, err)
	}

	outPath := prefix + ".bam"
	if *stdoutFlag {
		outPath = "-"
	}
	out, closeOut := openOutput(outPath)
	defer closeOut() // nolint: errcheck

	s := sink.New(out, sink.Default, 1)
	cmp := order.Comparator{ByQName: *byNameFlag, IgnoreWarts: *ignoreWartFlag}
	if err := sortengine.Run(ctx, sortengine.Options{
		Input:     reader,
		MemBudget: memBudget,
		Cmp:       cmp,
		Prefix:    prefix,
		Sink:      s,
	}); err != nil {
		log.Panicf("sort: %v", err)
	}
}

// openOutput returns a writer for path ("-" for stdout) and a matching
// close function.
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
