package main

import (
	"flag"
	"io"
	"strings"

	mcquad "github.com/ltseng/mcquad/lib"
	"github.com/ltseng/mcquad/lib/plot"
)

func plotCmd() command {
	fs := flag.NewFlagSet("mcquad plot", flag.ExitOnError)
	inputs := fs.String("input", "stdin", "Input files (comma separated)")
	output := fs.String("output", "stdout", "Output file")
	title := fs.String("title", "mcquad", "Plot title")
	threshold := fs.Int("threshold", plot.DefaultThreshold, "Threshold of downsampled trace points")
	return command{fs, func(args []string) error {
		fs.Parse(args)
		return plotRun(*inputs, *output, *title, *threshold)
	}}
}

func plotRun(inputs, output, title string, threshold int) error {
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

	p := plot.New(plot.Title(title), plot.Threshold(threshold))
	for {
		var r mcquad.IterationRecord
		if err = dec.Decode(&r); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		p.Add(&r)
	}

	_, err = p.WriteTo(out)
	return err
}
