package mcquad

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Solver selects the sampling engine.
type Solver int

const (
	// SolverVegas is the independent importance sampler over the learned
	// maps.
	SolverVegas Solver = iota
	// SolverVegasMC is the reweighted Markov chain over the padded
	// mixture, measuring all integrands each step.
	SolverVegasMC
)

func (s Solver) String() string {
	switch s {
	case SolverVegas:
		return "vegas"
	case SolverVegasMC:
		return "vegasmc"
	}
	return fmt.Sprintf("Solver(%d)", int(s))
}

// Defaults used by NewIntegrator.
const (
	DefaultNeval       = 10000
	DefaultNiter       = 10
	DefaultBlocks      = 16
	DefaultMeasureFreq = 2
	// DefaultStallThreshold flags a Markov block whose normalization per
	// visit collapses, the signature of a chain trapped where every
	// integrand vanishes.
	DefaultStallThreshold = 1e-10
)

// blockOpts carries the per-block engine settings.
type blockOpts struct {
	neval       int64
	measureFreq int
	timers      []*Timer
	stopch      <-chan struct{}
	weights     *WeightMetrics
	trace       *WeightTrace
}

// Integrator partitions evaluations into blocks, trains the maps between
// iterations, retunes the reweight vector and combines the per-iteration
// estimates into a Result.
type Integrator struct {
	solver        Solver
	neval         int64
	niter         int
	nblock        int
	workers       int
	seed          uint64
	measure       Measure
	measureFreq   int
	ignore        int
	reweightAfter int64
	reweightExp   float64
	reweightRemap bool
	reweightGoal  []float64
	timers        []*Timer
	estimator     Estimator
	keepTrace     bool
	observers     []func(*IterationRecord)
	stall         float64

	// Weights summarizes the relative sample weights of block 0 of every
	// iteration. Populated during Run.
	Weights *WeightMetrics
	// Trace is the compressed weight series of block 0 of the first
	// iteration, kept only when the KeepTrace option is set.
	Trace *WeightTrace

	stopmu sync.Mutex
	stopch chan struct{}
}

// An Option configures an Integrator.
type Option func(*Integrator)

// Method selects the sampling engine.
func Method(s Solver) Option { return func(ig *Integrator) { ig.solver = s } }

// Neval sets the number of evaluations per block per iteration.
func Neval(n int64) Option { return func(ig *Integrator) { ig.neval = n } }

// Niter sets the number of iterations.
func Niter(n int) Option { return func(ig *Integrator) { ig.niter = n } }

// Blocks sets the block count. It is rounded up to a multiple of the
// worker count.
func Blocks(n int) Option { return func(ig *Integrator) { ig.nblock = n } }

// Workers sets the number of parallel block workers.
func Workers(n int) Option { return func(ig *Integrator) { ig.workers = n } }

// Seed sets the base RNG seed. Block b of iteration i derives its own
// seed from it, so a run is reproducible block by block.
func Seed(s uint64) Option { return func(ig *Integrator) { ig.seed = s } }

// MeasureWith installs a user measurement function.
func MeasureWith(m Measure) Option { return func(ig *Integrator) { ig.measure = m } }

// MeasureFreq sets how many Markov steps pass between measurements.
func MeasureFreq(n int) Option { return func(ig *Integrator) { ig.measureFreq = n } }

// Ignore excludes the first n iterations from the combined Result.
func Ignore(n int) Option { return func(ig *Integrator) { ig.ignore = n } }

// ReweightAfter enables reweight retuning once the given total number of
// evaluations has been consumed.
func ReweightAfter(n int64) Option { return func(ig *Integrator) { ig.reweightAfter = n } }

// ReweightExponent sets the exponent applied to the visit ratio when
// retuning the reweight vector.
func ReweightExponent(a float64) Option { return func(ig *Integrator) { ig.reweightExp = a } }

// ReweightRemap toggles the (1-r)/log(1/r) remap of the visit ratio. The
// reference implementations disagree on it, so it is an explicit choice.
func ReweightRemap(on bool) Option { return func(ig *Integrator) { ig.reweightRemap = on } }

// ReweightGoal biases the retuned reweight entries elementwise. It must
// have one entry per integrand plus one for the normalization.
func ReweightGoal(goal []float64) Option {
	return func(ig *Integrator) { ig.reweightGoal = goal }
}

// Timers installs observers polled every thousand inner steps.
func Timers(ts ...*Timer) Option {
	return func(ig *Integrator) { ig.timers = append(ig.timers, ts...) }
}

// WeightEstimator selects the quantile estimator of the weight summary.
func WeightEstimator(e Estimator) Option { return func(ig *Integrator) { ig.estimator = e } }

// KeepTrace records the compressed weight series of block 0 of the first
// iteration.
func KeepTrace(on bool) Option { return func(ig *Integrator) { ig.keepTrace = on } }

// Observer registers a callback invoked with every iteration record.
func Observer(fn func(*IterationRecord)) Option {
	return func(ig *Integrator) { ig.observers = append(ig.observers, fn) }
}

// StallThreshold overrides the Markov stall detection threshold.
func StallThreshold(t float64) Option { return func(ig *Integrator) { ig.stall = t } }

// NewIntegrator returns an Integrator with default options overridden by
// the provided opts.
func NewIntegrator(opts ...Option) *Integrator {
	ig := &Integrator{
		solver:      SolverVegas,
		neval:       DefaultNeval,
		niter:       DefaultNiter,
		nblock:      DefaultBlocks,
		workers:     runtime.GOMAXPROCS(0),
		measureFreq: DefaultMeasureFreq,
		reweightExp: 2.0,
		stall:       DefaultStallThreshold,
		stopch:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ig)
	}
	return ig
}

// Integrate runs f over the configuration with the given options and
// returns the combined Result. It is shorthand for NewIntegrator + Run.
func Integrate(f Integrand, c *Config, opts ...Option) (*Result, error) {
	return NewIntegrator(opts...).Run(f, c)
}

func (ig *Integrator) stopped() bool {
	select {
	case <-ig.stopch:
		return true
	default:
		return false
	}
}

// Stop aborts a running integration at the next poll boundary.
func (ig *Integrator) Stop() {
	ig.stopmu.Lock()
	defer ig.stopmu.Unlock()
	select {
	case <-ig.stopch:
	default:
		close(ig.stopch)
	}
}

type blockOut struct {
	means   []complex128
	cfg     *Config
	stalled bool
	err     error
}

// Run drives the configured number of iterations over c. The pools of c
// are trained in place between iterations, so a caller can reuse the
// configuration to resume with adapted maps.
func (ig *Integrator) Run(f Integrand, c *Config) (*Result, error) {
	if c == nil {
		return nil, errConfig("nil configuration")
	}
	if ig.neval < 100 {
		return nil, errConfig("neval %d too small for warm-up bookkeeping", ig.neval)
	}
	if ig.reweightGoal != nil && len(ig.reweightGoal) != c.N+1 {
		return nil, errConfig("reweight goal has %d entries for %d integrands",
			len(ig.reweightGoal), c.N+1)
	}
	c.ReweightGoal = ig.reweightGoal

	workers := ig.workers
	if workers < 1 {
		workers = 1
	}
	nblock := ig.nblock
	if nblock < workers {
		nblock = workers
	}
	if rem := nblock % workers; rem != 0 {
		nblock += workers - rem
	}

	ig.Weights = NewWeightMetrics(ig.estimator)
	if ig.keepTrace {
		ig.Trace = NewWeightTrace()
	}

	history := make([]Iteration, 0, ig.niter)
	var totalEvals int64

	for it := 0; it < ig.niter && !ig.stopped(); it++ {
		c.ResetAccumulators()
		outs := make([]blockOut, nblock)
		blocks := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for b := range blocks {
					outs[b] = ig.runBlock(f, c, it, b, nblock)
				}
			}()
		}
		for b := 0; b < nblock; b++ {
			blocks <- b
		}
		close(blocks)
		wg.Wait()

		// Reduce in block order so the sum is deterministic.
		stalled := false
		mean := make([]complex128, c.N)
		errv := make([]complex128, c.N)
		sqRe := make([]float64, c.N)
		sqIm := make([]float64, c.N)
		for b := range outs {
			if outs[b].err != nil {
				return nil, fmt.Errorf("iteration %d, block %d: %w", it, b, outs[b].err)
			}
			stalled = stalled || outs[b].stalled
			for k, m := range outs[b].means {
				mean[k] += m
				sqRe[k] += real(m) * real(m)
				sqIm[k] += imag(m) * imag(m)
			}
			c.MergeCounters(outs[b].cfg)
			totalEvals += outs[b].cfg.Neval
		}
		fb := float64(nblock)
		for k := range mean {
			mean[k] /= complex(fb, 0)
			if nblock > 1 {
				vRe := (sqRe[k]/fb - real(mean[k])*real(mean[k])) / (fb - 1)
				vIm := (sqIm[k]/fb - imag(mean[k])*imag(mean[k])) / (fb - 1)
				errv[k] = complex(math.Sqrt(math.Max(vRe, 0)), math.Sqrt(math.Max(vIm, 0)))
			}
		}

		for _, v := range c.Vars {
			v.Train()
		}
		// Only the Markov engine samples the reweighted mixture; the visit
		// pattern of the independent sampler carries no balance signal.
		if ig.solver == SolverVegasMC && totalEvals >= ig.reweightAfter {
			ig.retune(c)
		}
		c.NormalizeReweight()

		history = append(history, Iteration{Mean: mean, Error: errv, Config: outs[0].cfg})

		rec := newIterationRecord(it, c, mean, errv, stalled)
		for _, ob := range ig.observers {
			ob(rec)
		}
	}

	res := NewResult(history, ig.ignore)
	res.Neval = totalEvals
	return res, nil
}

// runBlock clones the master configuration for one block, runs the
// selected engine over it and reduces the block estimate.
func (ig *Integrator) runBlock(f Integrand, c *Config, it, b, nblock int) blockOut {
	bc := c.Clone(ig.seed + uint64(it*nblock+b) + 1)
	o := blockOpts{
		neval:       ig.neval,
		measureFreq: ig.measureFreq,
		timers:      ig.timers,
		stopch:      ig.stopch,
	}
	if b == 0 {
		o.weights = ig.Weights
		// The compressed trace needs monotone evaluation indices, so it
		// only follows the first iteration's block.
		if it == 0 {
			o.trace = ig.Trace
		}
	}

	var err error
	switch ig.solver {
	case SolverVegasMC:
		err = runMarkovBlock(bc, f, ig.measure, o)
	default:
		err = runVegasBlock(bc, f, ig.measure, o)
	}
	if err != nil {
		return blockOut{err: err}
	}

	out := blockOut{means: make([]complex128, c.N), cfg: bc}
	if bc.Normalization > 0 { // zero only when stopped before any measurement
		for k := range out.means {
			out.means[k] = bc.Observable[k] / complex(bc.Normalization, 0)
		}
	}
	if ig.solver == SolverVegasMC {
		out.stalled = Stalled(bc, ig.stall)
	}
	return out
}

// retune rescales the reweight vector from the visit counts of the last
// iteration so that under-visited integrands gain mixture weight.
func (ig *Integrator) retune(c *Config) {
	total := floats.Sum(c.Visited)
	if total <= 0 {
		return
	}
	avg := total / float64(len(c.Visited))
	for i, v := range c.Visited {
		var base float64
		switch {
		case ig.reweightRemap:
			r := v / total
			if r < TINY {
				r = TINY
			}
			if r >= 1 {
				base = TINY
			} else {
				base = (1 - r) / math.Log(1/r)
			}
		case v <= 1:
			base = avg
		default:
			base = avg / v
		}
		c.Reweight[i] *= math.Pow(base, ig.reweightExp)
	}
	if c.ReweightGoal != nil {
		for i := range c.Reweight {
			c.Reweight[i] *= c.ReweightGoal[i]
		}
	}
	c.NormalizeReweight()
}
