package mcquad

// runVegasBlock drives one block of the importance-sampling engine: every
// evaluation draws all mixture degrees of freedom fresh from the learned
// maps, so samples are independent and no rejection step is needed.
// Degenerate draws contribute nothing and are skipped.
func runVegasBlock(c *Config, f Integrand, m Measure, o blockOpts) error {
	c.Curr = c.Norm

	for ne := int64(0); ne < o.neval; ne++ {
		c.Neval++
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

		degenerate := false
		for vi, pool := range c.Vars {
			off := pool.Offset()
			for i := 0; i < c.MaxDof[vi]; i++ {
				if pool.Create(c.rng, off+i) == 0 {
					degenerate = true
				}
			}
		}
		if degenerate {
			continue
		}

		q := 1.0
		for vi, pool := range c.Vars {
			off := pool.Offset()
			q *= pool.ProbRange(off, off+c.MaxDof[vi])
		}
		if err := c.Eval(f, c.Weights); err != nil {
			return err
		}

		for i := 0; i <= c.N; i++ {
			c.pads[i] = c.Padding(i)
			c.relative[i] = c.Weights[i] * complex(c.pads[i]/q, 0)
		}
		if m != nil {
			m(c, c.Weights, c.relative[:c.N], c.Observable)
		} else {
			for i := 0; i < c.N; i++ {
				c.Observable[i] += c.relative[i]
			}
		}
		c.Normalization += c.pads[c.Norm] / q
		c.Visited[c.Norm]++

		for i := 0; i < c.N; i++ {
			w2 := abs2(c.Weights[i]) * c.pads[i] / q
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

	if c.Normalization <= 0 {
		return ErrNormalization
	}
	return nil
}
