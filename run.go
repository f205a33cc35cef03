package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	mcquad "github.com/ltseng/mcquad/lib"
	"github.com/ltseng/mcquad/lib/prom"
)

func runCmd() command {
	fs := flag.NewFlagSet("mcquad run", flag.ExitOnError)
	opts := &runOpts{solver: mcquad.SolverVegas}

	fs.StringVar(&opts.funcname, "func", "peak4d", "Built-in integrand to run")
	fs.StringVar(&opts.outputf, "output", "stdout", "Output file")
	fs.StringVar(&opts.format, "format", "gob", "Record encoding [gob, json]")
	fs.Int64Var(&opts.neval, "neval", mcquad.DefaultNeval, "Evaluations per block per iteration")
	fs.IntVar(&opts.niter, "niter", mcquad.DefaultNiter, "Iterations")
	fs.IntVar(&opts.blocks, "blocks", mcquad.DefaultBlocks, "Blocks per iteration")
	fs.IntVar(&opts.workers, "workers", 0, "Parallel block workers (0 = GOMAXPROCS)")
	fs.Uint64Var(&opts.seed, "seed", 1, "Base RNG seed")
	fs.IntVar(&opts.ignore, "ignore", 0, "Warm-up iterations to ignore in the summary")
	fs.IntVar(&opts.measurefreq, "measurefreq", mcquad.DefaultMeasureFreq, "Markov steps between measurements")
	fs.Int64Var(&opts.reweight, "reweight", 0, "Evaluations before reweight retuning starts")
	fs.Float64Var(&opts.rexp, "rexp", 2.0, "Reweight retuning exponent")
	fs.BoolVar(&opts.remap, "remap", false, "Apply the (1-r)/log(1/r) reweight remap")
	fs.Var(floatsFlag{&opts.goal}, "goal", "Comma separated reweight goal, one entry per integrand plus normalization")
	fs.Var(solverFlag{&opts.solver}, "solver", "Sampling engine [vegas, vegasmc]")
	fs.StringVar(&opts.snapshotf, "snapshot", "", "Periodic configuration snapshot file")
	fs.DurationVar(&opts.save, "save", 10*time.Second, "Snapshot period")
	fs.Var(maxSizeFlag{&opts.maxSnap}, "max-snapshot", "Maximum snapshot size [0 = no limit] (e.g. 5MB)")
	fs.StringVar(&opts.promAddr, "prom", "", "Prometheus exposition address (e.g. :8880)")

	return command{fs, func(args []string) error {
		fs.Parse(args)
		return run(opts)
	}}
}

// runOpts aggregates the run command options.
type runOpts struct {
	funcname    string
	outputf     string
	format      string
	neval       int64
	niter       int
	blocks      int
	workers     int
	seed        uint64
	ignore      int
	measurefreq int
	reweight    int64
	rexp        float64
	remap       bool
	goal        []float64
	solver      mcquad.Solver
	snapshotf   string
	save        time.Duration
	maxSnap     int64
	promAddr    string
}

// run sets up the configured problem, integrates it and streams the
// iteration records to the output.
func run(opts *runOpts) error {
	p, err := lookupProblem(opts.funcname)
	if err != nil {
		return err
	}
	vars, err := p.vars()
	if err != nil {
		return err
	}
	cfg, err := mcquad.NewConfig(vars, p.dof, opts.seed)
	if err != nil {
		return err
	}

	out, err := file(opts.outputf, true)
	if err != nil {
		return fmt.Errorf("error opening %s: %s", opts.outputf, err)
	}
	defer out.Close()

	var enc mcquad.Encoder
	switch opts.format {
	case "json":
		enc = mcquad.NewJSONEncoder(out)
	case "gob":
		enc = mcquad.NewEncoder(out)
	default:
		return fmt.Errorf("invalid format %q, want gob or json", opts.format)
	}

	iopts := []mcquad.Option{
		mcquad.Method(opts.solver),
		mcquad.Neval(opts.neval),
		mcquad.Niter(opts.niter),
		mcquad.Blocks(opts.blocks),
		mcquad.Seed(opts.seed),
		mcquad.Ignore(opts.ignore),
		mcquad.MeasureFreq(opts.measurefreq),
		mcquad.ReweightAfter(opts.reweight),
		mcquad.ReweightExponent(opts.rexp),
		mcquad.ReweightRemap(opts.remap),
		mcquad.Observer(func(rec *mcquad.IterationRecord) {
			if err := enc.Encode(rec); err != nil {
				fmt.Fprintf(os.Stderr, "error writing record: %s\n", err)
			}
		}),
	}
	if opts.workers > 0 {
		iopts = append(iopts, mcquad.Workers(opts.workers))
	}
	if opts.goal != nil {
		iopts = append(iopts, mcquad.ReweightGoal(opts.goal))
	}
	if opts.snapshotf != "" {
		iopts = append(iopts, mcquad.Timers(mcquad.NewTimer(opts.save, func(c *mcquad.Config) {
			if err := saveSnapshot(c, opts.snapshotf, opts.maxSnap); err != nil {
				fmt.Fprintf(os.Stderr, "error saving snapshot: %s\n", err)
			}
		})))
	}

	if opts.promAddr != "" {
		reg := prometheus.NewRegistry()
		pm := prom.NewMetrics()
		if err := pm.Register(reg); err != nil {
			return err
		}
		srv := &http.Server{Addr: opts.promAddr, Handler: prom.NewHandler(reg)}
		go srv.ListenAndServe()
		defer srv.Close()
		iopts = append(iopts, mcquad.Observer(pm.Observe))
	}

	ig := mcquad.NewIntegrator(iopts...)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		<-sig
		ig.Stop()
	}()

	res, err := ig.Run(p.integrand, cfg)
	if err != nil {
		return err
	}

	for k := range res.Mean {
		fmt.Fprintf(os.Stderr, "integrand %d: %.6g +- %.3g (chi2/dof %.3f, expected %.6g)\n",
			k+1, real(res.Mean[k]), real(res.Error[k]), res.Chi2[k], p.expect[k])
	}
	return nil
}

// saveSnapshot writes the configuration atomically, refusing to grow the
// snapshot beyond max bytes when a limit is set.
func saveSnapshot(c *mcquad.Config, name string, max int64) error {
	data, err := c.SaveBytes()
	if err != nil {
		return err
	}
	if max > 0 && int64(len(data)) > max {
		return fmt.Errorf("snapshot of %d bytes exceeds limit of %d", len(data), max)
	}
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, name)
}
