package mcquad

// pollInterval is the step period at which engines poll timers and the
// stop channel. Cancellation is only observed at this boundary.
const pollInterval = 1000

// runMarkovBlock drives one block of the reweighted Markov engine: a
// single chain over (Curr, samples) whose sample marginal is the padded
// mixture density. Every measurement observes all integrands at once.
func runMarkovBlock(c *Config, f Integrand, m Measure, o blockOpts) error {
	if err := c.Initialize(f); err != nil {
		return err
	}
	c.AbsWeight = c.Reweight[c.Curr] * abs(c.Weights[c.Curr])
	s := newSampler(c, f)
	warmup := o.neval / 100

	for ne := int64(0); ne < o.neval; ne++ {
		var err error
		switch c.rng.Intn(3) {
		case 0:
			err = s.changeIntegrand()
		case 1:
			err = s.changeVariable()
		default:
			err = s.swapVariable()
		}
		if err != nil {
			return err
		}
		c.Neval++
		c.Visited[c.Curr]++

		if ne >= warmup && ne%int64(o.measureFreq) == 0 {
			measureMixture(c, m, o)
		}
		if ne%pollInterval == 0 {
			for _, t := range o.timers {
				t.Check(c)
			}
			select {
			case <-o.stopch:
				return nil
			default:
			}
		}
	}

	if c.Normalization <= 0 {
		return ErrNormalization
	}
	return nil
}

// measureMixture records one measurement of the chain's current state:
// every integrand's relative weight against the mixture density, the
// normalization estimator and the per-pool histogram visits.
func measureMixture(c *Config, m Measure, o blockOpts) {
	p := c.MixtureProbability(c.Weights, c.pads)
	if p <= 0 {
		return
	}
	c.Probability = p

	for i := 0; i <= c.N; i++ {
		c.relative[i] = c.Weights[i] * complex(c.pads[i]/p, 0)
	}
	if m != nil {
		m(c, c.Weights, c.relative[:c.N], c.Observable)
	} else {
		for i := 0; i < c.N; i++ {
			c.Observable[i] += c.relative[i]
		}
	}
	c.Normalization += c.pads[c.Norm] / p

	for i := 0; i <= c.N; i++ {
		w2 := abs2(c.Weights[i]) * c.pads[i] / p
		for vi, pool := range c.Vars {
			off := pool.Offset()
			for d := 0; d < c.Dof[i][vi]; d++ {
				idx := off + d
				pool.Accumulate(idx, w2/pool.ProbRange(idx, idx+1))
			}
		}
	}

	if o.weights != nil && c.N > 0 {
		o.weights.Observe(abs(c.relative[0]))
	}
	if o.trace != nil && c.N > 0 {
		o.trace.Push(c.Neval, abs(c.relative[0]))
	}
}

// Stalled reports whether a finished Markov block shows the signature of
// a chain trapped in a region where every integrand vanishes: the
// normalization estimator per visit of the normalization integrand drops
// below the threshold.
func Stalled(c *Config, threshold float64) bool {
	if c.Visited[c.Norm] <= 0 {
		return false
	}
	return c.Normalization/c.Visited[c.Norm] < threshold
}
