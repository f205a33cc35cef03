package mcquad

import (
	"math"
	"math/cmplx"
	"testing"
)

// chainConfig builds a two-integrand configuration over one continuous
// pool, initialized and parked on the normalization integrand.
func chainConfig(t testing.TB, seed uint64) (*Config, Integrand) {
	t.Helper()
	x, err := NewContinuous(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig([]Variable{x}, [][]int{{1}, {2}}, seed)
	if err != nil {
		t.Fatal(err)
	}
	f := func(c *Config, out []complex128) {
		xs := c.Vars[0].(*Continuous).Data
		out[0] = complex(1+xs[0], 0)
		out[1] = complex(1+xs[0]*xs[1], 0)
	}
	if err := c.Initialize(f); err != nil {
		t.Fatal(err)
	}
	c.AbsWeight = c.Reweight[c.Curr] * abs(c.Weights[c.Curr])
	return c, f
}

func TestSampler_InvariantsUnderUpdates(t *testing.T) {
	t.Parallel()

	c, f := chainConfig(t, 5)
	s := newSampler(c, f)

	for step := 0; step < 5000; step++ {
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
			t.Fatal(err)
		}
		c.Visited[c.Curr]++
	}

	if c.Curr < 0 || c.Curr > c.Norm {
		t.Fatalf("chain left the integrand range: %d", c.Curr)
	}
	for i := 0; i < c.Vars[0].Size(); i++ {
		if p := c.Vars[0].ProbRange(i, i+1); p <= 0 {
			t.Fatalf("slot %d has non-positive density %g after updates", i, p)
		}
	}
	for kind := range c.Propose {
		for i := range c.Propose[kind] {
			for j := range c.Propose[kind][i] {
				if c.Accept[kind][i][j] > c.Propose[kind][i][j] {
					t.Fatalf("accepts exceed proposals at [%d][%d][%d]", kind, i, j)
				}
			}
		}
	}
	// The cached weight must match a fresh evaluation of the current state.
	var w [3]complex128
	if err := c.Eval(f, w[:]); err != nil {
		t.Fatal(err)
	}
	if got, want := c.AbsWeight, c.Reweight[c.Curr]*abs(w[c.Curr]); math.Abs(got-want) > 1e-12 {
		t.Errorf("cached chain weight %g, want %g", got, want)
	}
	for i := range w {
		if cmplx.Abs(w[i]-c.Weights[i]) > 1e-12 {
			t.Errorf("cached weight %d is %v, want %v", i, c.Weights[i], w[i])
		}
	}
}

func TestSampler_ChangeIntegrandMovesDof(t *testing.T) {
	t.Parallel()

	c, f := chainConfig(t, 11)
	s := newSampler(c, f)

	visited := map[int]bool{}
	for step := 0; step < 2000; step++ {
		if err := s.changeIntegrand(); err != nil {
			t.Fatal(err)
		}
		visited[c.Curr] = true
	}
	for k := 0; k <= c.Norm; k++ {
		if !visited[k] {
			t.Errorf("integrand %d never visited in 2000 jump proposals", k)
		}
	}
}

func TestSampler_RejectedShiftRestoresState(t *testing.T) {
	t.Parallel()

	c, f := chainConfig(t, 13)
	s := newSampler(c, f)

	// Jump off the normalization integrand so shifts have targets.
	for c.Curr == c.Norm {
		if err := s.changeIntegrand(); err != nil {
			t.Fatal(err)
		}
	}

	pool := c.Vars[0].(*Continuous)
	for step := 0; step < 2000; step++ {
		before := append([]float64(nil), pool.Data...)
		w := c.AbsWeight
		if err := s.changeVariable(); err != nil {
			t.Fatal(err)
		}
		if c.AbsWeight == w {
			// Rejected or untouched: the live slots must be unchanged.
			for i := 0; i < pool.Size(); i++ {
				if pool.Data[i] != before[i] {
					t.Fatalf("step %d: rejected shift leaked into slot %d", step, i)
				}
			}
		}
	}
}
