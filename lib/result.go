package mcquad

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat/distuv"
)

// errFloor keeps inverse-variance weights finite for exact iterations.
const errFloor = 1e-10

func abs(z complex128) float64  { return cmplx.Abs(z) }
func abs2(z complex128) float64 { return real(z)*real(z) + imag(z)*imag(z) }

func finite(z complex128) bool {
	return !cmplx.IsNaN(z) && !cmplx.IsInf(z)
}

// An Iteration is one entry of the integration history: the per-integrand
// estimates of a single controller iteration and the configuration
// snapshot that produced them.
type Iteration struct {
	// Mean holds one estimate per user integrand.
	Mean []complex128
	// Error holds the matching standard errors, component-wise: the real
	// part is the error of the real component and likewise for the
	// imaginary part.
	Error []complex128
	// Config is the reduced configuration snapshot of the iteration.
	Config *Config
}

// Result combines an integration history into final estimates. Iterations
// are weighted by inverse variance; complex integrands are reduced
// component-wise.
type Result struct {
	// History holds every iteration, warm-up included.
	History []Iteration
	// Ignore is the number of leading warm-up iterations excluded from
	// the combination.
	Ignore int

	// Mean and Error are the combined per-integrand estimates.
	Mean  []complex128
	Error []complex128
	// Chi2 is the reduced chi-square of each integrand over the combined
	// iterations, a consistency check between them.
	Chi2 []float64
	// Prob is the survival probability of Chi2 under the chi-squared
	// distribution with the matching degrees of freedom.
	Prob []float64
	// Neval is the total number of evaluations over all blocks and
	// iterations.
	Neval int64
}

// NewResult reduces a history, skipping the first ignore iterations.
func NewResult(history []Iteration, ignore int) *Result {
	r := &Result{History: history, Ignore: ignore}
	if ignore >= len(history) || len(history) == 0 {
		return r
	}
	used := history[ignore:]
	n := len(used[0].Mean)
	r.Mean = make([]complex128, n)
	r.Error = make([]complex128, n)
	r.Chi2 = make([]float64, n)
	r.Prob = make([]float64, n)

	ms := make([]float64, len(used))
	es := make([]float64, len(used))
	for k := 0; k < n; k++ {
		for i, it := range used {
			ms[i], es[i] = real(it.Mean[k]), real(it.Error[k])
		}
		mRe, eRe, chi2Re := combine(ms, es)

		imaginary := false
		for i, it := range used {
			ms[i], es[i] = imag(it.Mean[k]), imag(it.Error[k])
			if ms[i] != 0 || es[i] != 0 {
				imaginary = true
			}
		}
		var mIm, eIm, chi2Im float64
		if imaginary {
			mIm, eIm, chi2Im = combine(ms, es)
		}

		r.Mean[k] = complex(mRe, mIm)
		r.Error[k] = complex(eRe, eIm)
		if imaginary {
			r.Chi2[k] = (chi2Re + chi2Im) / 2
		} else {
			r.Chi2[k] = chi2Re
		}
		r.Prob[k] = chi2Prob(r.Chi2[k], len(used)-1)
	}
	return r
}

// combine reduces per-iteration (mean, stderr) pairs with inverse-variance
// weights and returns the combined mean, its standard deviation and the
// reduced chi-square.
func combine(ms, es []float64) (mean, stderr, chi2 float64) {
	var sw, swm float64
	for i, m := range ms {
		e := es[i]
		if e < errFloor {
			e = errFloor
		}
		w := 1 / (e * e)
		sw += w
		swm += w * m
	}
	mean = swm / sw
	stderr = 1 / math.Sqrt(sw)
	if len(ms) < 2 {
		return mean, stderr, 0
	}
	for i, m := range ms {
		e := es[i]
		if e < errFloor {
			e = errFloor
		}
		chi2 += (m - mean) * (m - mean) / (e * e)
	}
	return mean, stderr, chi2 / float64(len(ms)-1)
}

// chi2Prob returns the probability of a reduced chi-square at least this
// large arising by chance, given dof combined degrees of freedom.
func chi2Prob(reduced float64, dof int) float64 {
	if dof < 1 {
		return 1
	}
	dist := distuv.ChiSquared{K: float64(dof)}
	return dist.Survival(reduced * float64(dof))
}
