package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	mcquad "github.com/ltseng/mcquad/lib"
)

func reportCmd() command {
	fs := flag.NewFlagSet("mcquad report", flag.ExitOnError)
	reporter := fs.String("reporter", "text", "Reporter [text, json, hist[buckets]]")
	inputs := fs.String("input", "stdin", "Input files (comma separated)")
	output := fs.String("output", "stdout", "Output file")
	ignore := fs.Int("ignore", 0, "Warm-up iterations to ignore in the summary")
	return command{fs, func(args []string) error {
		fs.Parse(args)
		return report(*reporter, *inputs, *output, *ignore)
	}}
}

// report reads records from the inputs and writes the selected report.
func report(reporter, inputs, output string, ignore int) error {
	files := strings.Split(inputs, ",")
	dec, mc, err := decoder(files)
	defer mc.Close()
	if err != nil {
		return err
	}

	out, err := file(output, true)
	if err != nil {
		return err
	}
	defer out.Close()

	var (
		rep  mcquad.Reporter
		coll mcquad.Report
	)

	switch {
	case reporter == "text":
		var rs mcquad.Records
		rep, coll = mcquad.NewTextReporter(&rs, ignore), &rs
	case reporter == "json":
		var rs mcquad.Records
		rep, coll = mcquad.NewJSONReporter(&rs), &rs
	case strings.HasPrefix(reporter, "hist"):
		if len(reporter) < 6 {
			return fmt.Errorf("bad buckets: '%s'", reporter[4:])
		}
		var hist mcquad.Histogram
		if err := hist.Buckets.UnmarshalText([]byte(reporter[4:])); err != nil {
			return err
		}
		rep, coll = mcquad.NewHistogramReporter(&hist), &mcquad.HistogramReport{Histogram: &hist}
	default:
		return fmt.Errorf("unknown reporter %q", reporter)
	}

	for {
		var r mcquad.IterationRecord
		if err = dec.Decode(&r); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		coll.Add(&r)
	}

	return rep.Report(out)
}
