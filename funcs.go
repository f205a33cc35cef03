package main

import (
	"fmt"
	"math"
	"sort"

	mcquad "github.com/ltseng/mcquad/lib"
)

// A problem is a built-in benchmark integrand with a known target value.
type problem struct {
	describe  string
	expect    []float64
	dof       [][]int
	vars      func() ([]mcquad.Variable, error)
	integrand mcquad.Integrand
}

func problems() map[string]problem {
	return map[string]problem{
		"singular": {
			describe: "integral of log(x)/sqrt(x) over [0,1), expected -4",
			expect:   []float64{-4},
			dof:      [][]int{{1}},
			vars: func() ([]mcquad.Variable, error) {
				x, err := mcquad.NewContinuous(0, 1)
				return []mcquad.Variable{x}, err
			},
			integrand: func(c *mcquad.Config, f []complex128) {
				x := c.Vars[0].(*mcquad.Continuous).Data[0]
				f[0] = complex(math.Log(x)/math.Sqrt(x), 0)
			},
		},

		"peak4d": {
			describe: "normalized Gaussian peak in [0,1)^4, expected 1",
			expect:   []float64{1},
			dof:      [][]int{{4}},
			vars: func() ([]mcquad.Variable, error) {
				x, err := mcquad.NewContinuous(0, 1)
				return []mcquad.Variable{x}, err
			},
			integrand: func(c *mcquad.Config, f []complex128) {
				xs := c.Vars[0].(*mcquad.Continuous).Data
				s := 0.0
				for i := 0; i < 4; i++ {
					s += (xs[i] - 0.5) * (xs[i] - 0.5)
				}
				f[0] = complex(1013.2118364296*math.Exp(-100*s), 0)
			},
		},

		"moments": {
			describe: "Gaussian f, f*x1, f*x1^2 in [0,1)^4, expected 0.2468 0.1234 0.0623",
			expect:   []float64{0.2468, 0.1234, 0.0623},
			dof:      [][]int{{4}, {4}, {4}},
			vars: func() ([]mcquad.Variable, error) {
				x, err := mcquad.NewContinuous(0, 1)
				return []mcquad.Variable{x}, err
			},
			integrand: func(c *mcquad.Config, f []complex128) {
				xs := c.Vars[0].(*mcquad.Continuous).Data
				s := 0.0
				for i := 0; i < 4; i++ {
					s += (xs[i] - 0.5) * (xs[i] - 0.5)
				}
				g := 1000 * math.Exp(-200*s)
				f[0] = complex(g, 0)
				f[1] = complex(g*xs[0], 0)
				f[2] = complex(g*xs[0]*xs[0], 0)
			},
		},

		"discrete8": {
			describe: "sum of 1 over the integers 1..8, expected 8",
			expect:   []float64{8},
			dof:      [][]int{{1}},
			vars: func() ([]mcquad.Variable, error) {
				n, err := mcquad.NewDiscrete(1, 8)
				return []mcquad.Variable{n}, err
			},
			integrand: func(c *mcquad.Config, f []complex128) {
				f[0] = 1
			},
		},

		"shell3d": {
			describe: "1/(2pi)^3 over the shell |k| in [0.5,1.5), expected 0.054882",
			expect:   []float64{4 * math.Pi / 3 * (1.5*1.5*1.5 - 0.5*0.5*0.5) / (8 * math.Pi * math.Pi * math.Pi)},
			dof:      [][]int{{1}},
			vars: func() ([]mcquad.Variable, error) {
				k, err := mcquad.NewFermiK(3, 1, 0.5, 10)
				return []mcquad.Variable{k}, err
			},
			integrand: func(c *mcquad.Config, f []complex128) {
				f[0] = complex(1/(8*math.Pi*math.Pi*math.Pi), 0)
			},
		},
	}
}

func problemNames() []string {
	ps := problems()
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupProblem(name string) (problem, error) {
	p, ok := problems()[name]
	if !ok {
		return problem{}, fmt.Errorf("unknown func %q, have %v", name, problemNames())
	}
	return p, nil
}
