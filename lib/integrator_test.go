package mcquad

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats"
)

func continuousConfig(t testing.TB, dims, n int, seed uint64, opts ...VarOption) *Config {
	t.Helper()
	x, err := NewContinuous(0, 1, opts...)
	if err != nil {
		t.Fatal(err)
	}
	dof := make([][]int, n)
	for k := range dof {
		dof[k] = []int{dims}
	}
	c, err := NewConfig([]Variable{x}, dof, seed)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestVegas_ConstantIsExactOnUniformMap(t *testing.T) {
	t.Parallel()

	c := continuousConfig(t, 1, 1, 1)
	res, err := Integrate(
		func(c *Config, f []complex128) { f[0] = 1 },
		c,
		Method(SolverVegas), Neval(1000), Niter(1), Blocks(2), Workers(2), Seed(1),
	)
	if err != nil {
		t.Fatal(err)
	}
	if got := real(res.Mean[0]); math.Abs(got-1) > 1e-12 {
		t.Errorf("constant integral = %.15g, want exactly 1 on the uniform map", got)
	}
}

func TestVegas_GaussianPeak4D(t *testing.T) {
	t.Parallel()

	c := continuousConfig(t, 4, 1, 42)
	res, err := Integrate(
		func(c *Config, f []complex128) {
			xs := c.Vars[0].(*Continuous).Data
			s := 0.0
			for i := 0; i < 4; i++ {
				s += (xs[i] - 0.5) * (xs[i] - 0.5)
			}
			f[0] = complex(1013.2118364296*math.Exp(-100*s), 0)
		},
		c,
		Method(SolverVegas), Neval(20000), Niter(8), Blocks(4), Workers(2), Seed(42), Ignore(3),
	)
	if err != nil {
		t.Fatal(err)
	}
	if got := real(res.Mean[0]); math.Abs(got-1) > 0.05 {
		t.Errorf("4D Gaussian peak = %g +- %g, want 1 +- 0.05", got, real(res.Error[0]))
	}
}

func TestVegas_SimultaneousMoments(t *testing.T) {
	t.Parallel()

	c := continuousConfig(t, 4, 3, 7)
	res, err := Integrate(
		func(c *Config, f []complex128) {
			xs := c.Vars[0].(*Continuous).Data
			s := 0.0
			for i := 0; i < 4; i++ {
				s += (xs[i] - 0.5) * (xs[i] - 0.5)
			}
			g := 1000 * math.Exp(-200*s)
			f[0] = complex(g, 0)
			f[1] = complex(g*xs[0], 0)
			f[2] = complex(g*xs[0]*xs[0], 0)
		},
		c,
		Method(SolverVegas), Neval(10000), Niter(10), Blocks(4), Workers(2), Seed(7), Ignore(4),
	)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.2468, 0.1234, 0.0623}
	tol := []float64{0.03, 0.02, 0.01}
	for k := range want {
		if got := real(res.Mean[k]); math.Abs(got-want[k]) > tol[k] {
			t.Errorf("moment %d = %g +- %g, want %g +- %g",
				k, got, real(res.Error[k]), want[k], tol[k])
		}
	}
}

func TestVegasMC_SingularIntegrand(t *testing.T) {
	t.Parallel()

	c := continuousConfig(t, 1, 1, 3)
	res, err := Integrate(
		func(c *Config, f []complex128) {
			x := c.Vars[0].(*Continuous).Data[0]
			f[0] = complex(math.Log(x)/math.Sqrt(x), 0)
		},
		c,
		Method(SolverVegasMC), Neval(50000), Niter(8), Blocks(4), Workers(2), Seed(3), Ignore(3),
	)
	if err != nil {
		t.Fatal(err)
	}
	if got := real(res.Mean[0]); math.Abs(got+4) > 0.3 {
		t.Errorf("singular integral = %g +- %g, want -4 +- 0.3", got, real(res.Error[0]))
	}
}

func TestVegas_DiscreteSumIsExact(t *testing.T) {
	t.Parallel()

	n, err := NewDiscrete(1, 8, Adapt(false))
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig([]Variable{n}, [][]int{{1}}, 5)
	if err != nil {
		t.Fatal(err)
	}
	res, err := Integrate(
		func(c *Config, f []complex128) { f[0] = 1 },
		c,
		Method(SolverVegas), Neval(1000), Niter(3), Blocks(2), Workers(1), Seed(5),
	)
	if err != nil {
		t.Fatal(err)
	}
	if got := real(res.Mean[0]); math.Abs(got-8) > 1e-9 {
		t.Errorf("discrete sum = %.12g, want exactly 8", got)
	}
}

func TestVegas_FermiShellVolume(t *testing.T) {
	t.Parallel()

	k, err := NewFermiK(3, 1, 0.5, 10)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig([]Variable{k}, [][]int{{1}}, 9)
	if err != nil {
		t.Fatal(err)
	}
	res, err := Integrate(
		func(c *Config, f []complex128) {
			f[0] = complex(1/(8*math.Pi*math.Pi*math.Pi), 0)
		},
		c,
		Method(SolverVegas), Neval(20000), Niter(5), Blocks(4), Workers(2), Seed(9),
	)
	if err != nil {
		t.Fatal(err)
	}
	want := 4 * math.Pi / 3 * (1.5*1.5*1.5 - 0.5*0.5*0.5) / (8 * math.Pi * math.Pi * math.Pi)
	if got := real(res.Mean[0]); math.Abs(got-want) > 0.005 {
		t.Errorf("shell volume = %g +- %g, want %g +- 0.005", got, real(res.Error[0]), want)
	}
}

func TestIntegrator_ReweightStaysNormalized(t *testing.T) {
	t.Parallel()

	c := continuousConfig(t, 2, 2, 17)
	var sums []float64
	_, err := Integrate(
		func(c *Config, f []complex128) {
			xs := c.Vars[0].(*Continuous).Data
			f[0] = complex(1+xs[0], 0)
			f[1] = complex(1+xs[0]*xs[1], 0)
		},
		c,
		Method(SolverVegasMC), Neval(5000), Niter(5), Blocks(2), Workers(2), Seed(17),
		ReweightAfter(0), ReweightExponent(2),
		Observer(func(rec *IterationRecord) {
			sums = append(sums, floats.Sum(rec.Reweight))
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 5 {
		t.Fatalf("observed %d iterations, want 5", len(sums))
	}
	for i, s := range sums {
		if math.Abs(s-1) > 1e-12 {
			t.Errorf("iteration %d: reweight sums to %.15g, want 1", i, s)
		}
	}
}

func TestIntegrator_DeterministicAcrossWorkerCounts(t *testing.T) {
	t.Parallel()

	f := func(c *Config, out []complex128) {
		xs := c.Vars[0].(*Continuous).Data
		out[0] = complex(xs[0]*xs[1], 0)
	}
	run := func(workers int) complex128 {
		c := continuousConfig(t, 2, 1, 23)
		res, err := Integrate(f, c,
			Method(SolverVegas), Neval(2000), Niter(3), Blocks(4), Workers(workers), Seed(23))
		if err != nil {
			t.Fatal(err)
		}
		return res.Mean[0]
	}

	if a, b := run(1), run(4); a != b {
		t.Errorf("estimates differ across worker counts: %v vs %v", a, b)
	}
}

func TestIntegrator_NonFiniteIntegrandAborts(t *testing.T) {
	t.Parallel()

	c := continuousConfig(t, 1, 1, 29)
	_, err := Integrate(
		func(c *Config, f []complex128) { f[0] = complex(math.NaN(), 0) },
		c,
		Method(SolverVegas), Neval(1000), Niter(2), Blocks(2), Workers(1), Seed(29),
	)
	if !errors.Is(err, ErrNonFiniteWeight) {
		t.Errorf("got %v, want ErrNonFiniteWeight", err)
	}
}

func TestIntegrator_Stop(t *testing.T) {
	t.Parallel()

	c := continuousConfig(t, 1, 1, 31)
	ig := NewIntegrator(Method(SolverVegasMC), Neval(1<<30), Niter(1), Blocks(1), Workers(1), Seed(31))

	done := make(chan struct{})
	go func() {
		defer close(done)
		ig.Run(func(c *Config, f []complex128) { f[0] = 1 }, c)
	}()

	time.Sleep(50 * time.Millisecond)
	ig.Stop()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not observe Stop at the poll boundary")
	}
}

func TestIntegrator_WeightMetricsPopulated(t *testing.T) {
	t.Parallel()

	c := continuousConfig(t, 1, 1, 37)
	ig := NewIntegrator(Method(SolverVegas), Neval(2000), Niter(2), Blocks(2), Workers(1), Seed(37), KeepTrace(true))
	if _, err := ig.Run(func(c *Config, f []complex128) { f[0] = 1 }, c); err != nil {
		t.Fatal(err)
	}

	if ig.Weights.Count == 0 {
		t.Error("weight metrics recorded no samples")
	}
	if ig.Trace == nil || ig.Trace.Len() == 0 {
		t.Error("weight trace recorded no samples")
	}
}
