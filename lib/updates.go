package mcquad

import "golang.org/x/exp/rand"

// Counter kinds for the Propose and Accept tables.
const (
	kindIntegrand = 0
	kindVariable  = 1
)

// sampler applies the Metropolis proposal moves to a configuration. The
// chain state is the pair (Curr, samples); acceptance is Metropolis on the
// padded mixture, which for each move below reduces to the forward
// proposal ratio times the integrand and reweight ratios.
type sampler struct {
	cfg *Config
	f   Integrand
	nw  []complex128 // candidate weights
	pv  []int        // candidate pool scratch
}

func newSampler(cfg *Config, f Integrand) *sampler {
	return &sampler{
		cfg: cfg,
		f:   f,
		nw:  make([]complex128, cfg.N+1),
		pv:  make([]int, 0, len(cfg.Vars)),
	}
}

func accepted(rng *rand.Rand, ratio float64) bool {
	return ratio >= 1 || rng.Float64() < ratio
}

// pickPool selects a pool with at least want live degrees of freedom for
// the current integrand, or -1 when none qualifies.
func (s *sampler) pickPool(want int) int {
	c := s.cfg
	s.pv = s.pv[:0]
	for vi := range c.Vars {
		if c.Dof[c.Curr][vi] >= want {
			s.pv = append(s.pv, vi)
		}
	}
	if len(s.pv) == 0 {
		return -1
	}
	return s.pv[c.rng.Intn(len(s.pv))]
}

// changeVariable shifts one sample of the current integrand.
func (s *sampler) changeVariable() error {
	c := s.cfg
	k := c.Curr
	vi := s.pickPool(1)
	if vi < 0 {
		return nil
	}
	pool := c.Vars[vi]
	idx := pool.Offset() + c.rng.Intn(c.Dof[k][vi])

	c.Propose[kindVariable][k][vi]++
	ratio := pool.Shift(c.rng, idx)
	if ratio == 0 { // degenerate proposal
		pool.ShiftRollback(idx)
		return nil
	}
	if err := c.Eval(s.f, s.nw); err != nil {
		return err
	}
	ratio *= c.Reweight[k] * abs(s.nw[k]) / c.AbsWeight

	if accepted(c.rng, ratio) {
		c.Accept[kindVariable][k][vi]++
		c.AbsWeight = c.Reweight[k] * abs(s.nw[k])
		copy(c.Weights, s.nw)
	} else {
		pool.ShiftRollback(idx)
	}
	return nil
}

// swapVariable exchanges two samples of the current integrand within one
// pool. The forward proposal ratio is 1.
func (s *sampler) swapVariable() error {
	c := s.cfg
	k := c.Curr
	vi := s.pickPool(2)
	if vi < 0 {
		return nil
	}
	pool := c.Vars[vi]
	dof := c.Dof[k][vi]
	off := pool.Offset()
	i := off + c.rng.Intn(dof)
	j := off + c.rng.Intn(dof-1)
	if j >= i {
		j++
	}

	pool.Swap(i, j)
	if err := c.Eval(s.f, s.nw); err != nil {
		return err
	}
	ratio := c.Reweight[k] * abs(s.nw[k]) / c.AbsWeight

	if accepted(c.rng, ratio) {
		c.AbsWeight = c.Reweight[k] * abs(s.nw[k])
		copy(c.Weights, s.nw)
	} else {
		pool.SwapRollback(i, j)
	}
	return nil
}

// changeIntegrand jumps the chain to a neighboring integrand, creating the
// extra degrees of freedom the target needs or abandoning the ones it does
// not. Abandoned and freshly created slots stay live as padding; a
// rejected jump therefore has nothing to roll back, since a fresh draw
// from a pool's own map leaves the padding distribution invariant.
func (s *sampler) changeIntegrand() error {
	c := s.cfg
	k := c.Curr
	nbs := c.Neighbor[k]
	if len(nbs) == 0 {
		return nil
	}
	kNew := nbs[c.rng.Intn(len(nbs))]

	c.Propose[kindIntegrand][k][kNew]++
	ratio := float64(len(nbs)) / float64(len(c.Neighbor[kNew]))
	degenerate := false
	for vi, pool := range c.Vars {
		dofOld, dofNew := c.Dof[k][vi], c.Dof[kNew][vi]
		off := pool.Offset()
		for i := dofOld; i < dofNew; i++ {
			r := pool.Create(c.rng, off+i)
			for r == 0 { // redraw until the slot is valid again
				degenerate = true
				r = pool.Create(c.rng, off+i)
			}
			ratio *= r
		}
		for i := dofNew; i < dofOld; i++ {
			ratio *= pool.Remove(off + i)
		}
	}
	if err := c.Eval(s.f, s.nw); err != nil {
		return err
	}
	// Created slots stay live whether or not the jump is taken, so the
	// cached weights follow the new samples either way.
	copy(c.Weights, s.nw)
	if degenerate {
		return nil
	}
	ratio *= c.Reweight[kNew] * abs(s.nw[kNew]) / c.AbsWeight

	if accepted(c.rng, ratio) {
		c.Accept[kindIntegrand][k][kNew]++
		c.Curr = kNew
		c.AbsWeight = c.Reweight[kNew] * abs(s.nw[kNew])
	}
	return nil
}
