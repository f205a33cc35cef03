package mcquad

import (
	"bytes"
	"encoding/gob"
	"io"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

func init() {
	gob.Register(&Continuous{})
	gob.Register(&Discrete{})
	gob.Register(&FermiK{})
	gob.Register(&CompositeVar{})
}

// reweightFloor is the smallest admissible reweight entry.
const reweightFloor = 1e-10

// An Integrand evaluates all user integrands at the configuration's
// current samples and writes their weights into f, one entry per
// integrand. It must be deterministic in its inputs and must not retain
// references into the variable pools.
type Integrand func(c *Config, f []complex128)

// A Measure folds the per-sample relative weights w into the observable
// accumulator obs. It runs once per measurement with f holding the raw
// integrand weights. The default measure adds w[i] into obs[i].
type Measure func(c *Config, f, w, obs []complex128)

// Config aggregates everything an engine drives an integrand through: the
// variable pools, the degrees-of-freedom table, the reweight vector, the
// counters and the per-configuration RNG. Each block owns its own Config.
type Config struct {
	// Vars is the ordered tuple of variable pools.
	Vars []Variable
	// Dof[k][v] is the number of slots integrand k consumes from pool v.
	// Row N belongs to the synthetic normalization integrand and is zero.
	Dof [][]int
	// MaxDof[v] is the largest Dof[k][v] over all integrands.
	MaxDof []int
	// N is the number of user integrands. Norm == N indexes the
	// synthetic normalization integrand.
	N    int
	Norm int
	// Neighbor[k] lists the integrand indices reachable from k by a
	// changeIntegrand move.
	Neighbor [][]int

	// Reweight holds the positive, sum-to-one mixture multipliers.
	Reweight []float64
	// ReweightGoal biases the retuned reweight entries elementwise.
	ReweightGoal []float64

	// Counters.
	Neval   int64
	Visited []float64
	// Propose and Accept are indexed [kind][from][to], kind 0 being
	// changeIntegrand and kind 1 changeVariable.
	Propose [][][]float64
	Accept  [][][]float64

	// Curr is the integrand the Markov engine currently sits on.
	Curr int
	// AbsWeight caches the chain weight of the current state.
	AbsWeight float64
	// Probability caches the padded mixture density of the current state.
	Probability float64
	// Weights caches the integrand values at the current samples, with
	// the trailing entry pinned to 1 for the normalization integrand.
	Weights []complex128

	// Observable accumulates the per-integrand weighted sums and
	// Normalization the synthetic integrand's.
	Observable    []complex128
	Normalization float64

	Seed uint64

	rng      *rand.Rand
	relative []complex128 // scratch for measurement weights
	pads     []float64    // scratch for padding probabilities
}

// NewConfig validates the variable tuple and degrees-of-freedom table and
// returns a ready Configuration. dof has one row per user integrand and
// one column per pool; the normalization row is appended internally.
func NewConfig(vars []Variable, dof [][]int, seed uint64) (*Config, error) {
	if len(vars) == 0 {
		return nil, errConfig("empty variable tuple")
	}
	if len(dof) == 0 {
		return nil, errConfig("empty dof table")
	}
	for k, row := range dof {
		if len(row) != len(vars) {
			return nil, errConfig("dof row %d has %d entries for %d pools", k, len(row), len(vars))
		}
	}

	n := len(dof)
	c := &Config{
		Vars:       vars,
		Dof:        make([][]int, n+1),
		MaxDof:     make([]int, len(vars)),
		N:          n,
		Norm:       n,
		Reweight:   make([]float64, n+1),
		Visited:    make([]float64, n+1),
		Weights:    make([]complex128, n+1),
		Observable: make([]complex128, n),
		Curr:       n,
		Seed:       seed,
		rng:        rand.New(rand.NewSource(seed)),
		relative:   make([]complex128, n+1),
		pads:       make([]float64, n+1),
	}

	for k, row := range dof {
		c.Dof[k] = append([]int(nil), row...)
		for v, d := range row {
			if d < 0 {
				return nil, errConfig("negative dof for integrand %d, pool %d", k, v)
			}
			if d > c.MaxDof[v] {
				c.MaxDof[v] = d
			}
		}
	}
	c.Dof[n] = make([]int, len(vars))

	for v, max := range c.MaxDof {
		if max > vars[v].Size()-vars[v].Offset() {
			return nil, errConfig("pool %d has %d usable slots, dof table needs %d",
				v, vars[v].Size()-vars[v].Offset(), max)
		}
	}

	for i := range c.Reweight {
		c.Reweight[i] = 1 / float64(n+1)
	}
	c.Neighbor = chainNeighbors(n + 1)
	cols := n + 1
	if len(vars) > cols {
		cols = len(vars)
	}
	c.Propose = newCounter(n+1, cols)
	c.Accept = newCounter(n+1, cols)
	c.Weights[n] = 1
	return c, nil
}

// chainNeighbors connects integrand k to k-1 and k+1, with the
// normalization integrand at the end of the chain.
func chainNeighbors(n int) [][]int {
	nb := make([][]int, n)
	for k := range nb {
		if k > 0 {
			nb[k] = append(nb[k], k-1)
		}
		if k < n-1 {
			nb[k] = append(nb[k], k+1)
		}
	}
	return nb
}

// newCounter allocates a [2][rows][cols] proposal or acceptance counter.
// The column dimension accommodates both integrand and pool indices.
func newCounter(rows, cols int) [][][]float64 {
	m := make([][][]float64, 2)
	for kind := range m {
		m[kind] = make([][]float64, rows)
		for i := range m[kind] {
			m[kind][i] = make([]float64, cols)
		}
	}
	return m
}

// Rand returns the configuration's RNG.
func (c *Config) Rand() *rand.Rand { return c.rng }

// Initialize draws fresh samples into every live slot of every pool,
// parks the chain on the normalization integrand and caches the weights.
func (c *Config) Initialize(f Integrand) error {
	for _, v := range c.Vars {
		v.Initialize(c.rng)
	}
	c.Curr = c.Norm
	return c.Eval(f, c.Weights)
}

// Eval evaluates the integrand into dst (the normalization entry is
// pinned to 1) and rejects non-finite weights.
func (c *Config) Eval(f Integrand, dst []complex128) error {
	if c.N > 0 {
		f(c, dst[:c.N])
	}
	dst[c.Norm] = 1
	for _, w := range dst {
		if !finite(w) {
			return ErrNonFiniteWeight
		}
	}
	return nil
}

// Padding returns the padding probability of integrand k: the product of
// the proposal densities of every slot present in the mixture dimension
// but unused by k.
func (c *Config) Padding(k int) float64 {
	p := 1.0
	for v, pool := range c.Vars {
		off := pool.Offset()
		p *= pool.ProbRange(off+c.Dof[k][v], off+c.MaxDof[v])
	}
	return p
}

// MixtureProbability returns the padded mixture density at the current
// samples, filling pads with the per-integrand padding probabilities.
func (c *Config) MixtureProbability(weights []complex128, pads []float64) float64 {
	p := 0.0
	for i := 0; i <= c.N; i++ {
		pads[i] = c.Padding(i)
		p += c.Reweight[i] * pads[i] * abs(weights[i])
	}
	return p
}

// NormalizeReweight rescales the reweight vector to sum to one, clamping
// every entry at the floor.
func (c *Config) NormalizeReweight() {
	for i, r := range c.Reweight {
		if r < reweightFloor {
			c.Reweight[i] = reweightFloor
		}
	}
	sum := floats.Sum(c.Reweight)
	for i := range c.Reweight {
		c.Reweight[i] /= sum
	}
}

// ResetAccumulators clears the per-block accumulators and counters while
// keeping the trained maps and the reweight vector.
func (c *Config) ResetAccumulators() {
	c.Neval = 0
	c.Normalization = 0
	for i := range c.Observable {
		c.Observable[i] = 0
	}
	for i := range c.Visited {
		c.Visited[i] = 0
	}
	for kind := range c.Propose {
		for i := range c.Propose[kind] {
			for j := range c.Propose[kind][i] {
				c.Propose[kind][i][j] = 0
				c.Accept[kind][i][j] = 0
			}
		}
	}
}

// Clone deep-copies the configuration for a block, reseeding its RNG.
// Accumulators and counters start fresh; pools and reweight carry over.
func (c *Config) Clone(seed uint64) *Config {
	d := &Config{
		Vars:       make([]Variable, len(c.Vars)),
		Dof:        make([][]int, len(c.Dof)),
		MaxDof:     append([]int(nil), c.MaxDof...),
		N:          c.N,
		Norm:       c.Norm,
		Neighbor:   c.Neighbor,
		Reweight:   append([]float64(nil), c.Reweight...),
		Visited:    make([]float64, c.N+1),
		Weights:    make([]complex128, c.N+1),
		Observable: make([]complex128, c.N),
		Curr:       c.Norm,
		Seed:       seed,
		rng:        rand.New(rand.NewSource(seed)),
		relative:   make([]complex128, c.N+1),
		pads:       make([]float64, c.N+1),
	}
	if c.ReweightGoal != nil {
		d.ReweightGoal = append([]float64(nil), c.ReweightGoal...)
	}
	for i, v := range c.Vars {
		d.Vars[i] = v.Clone()
	}
	for i, row := range c.Dof {
		d.Dof[i] = append([]int(nil), row...)
	}
	cols := len(c.Propose[0][0])
	d.Propose = newCounter(c.N+1, cols)
	d.Accept = newCounter(c.N+1, cols)
	d.Weights[d.Norm] = 1
	return d
}

// MergeCounters folds a block configuration's counters and histograms
// into the receiver for the cross-block reduction.
func (c *Config) MergeCounters(b *Config) {
	c.Neval += b.Neval
	for i, v := range b.Visited {
		c.Visited[i] += v
	}
	for kind := range c.Propose {
		for i := range c.Propose[kind] {
			for j := range c.Propose[kind][i] {
				c.Propose[kind][i][j] += b.Propose[kind][i][j]
				c.Accept[kind][i][j] += b.Accept[kind][i][j]
			}
		}
	}
	for i, v := range c.Vars {
		v.MergeHistogram(b.Vars[i])
	}
}

// configState is the gob image of a Config snapshot.
type configState struct {
	Vars          []Variable
	Dof           [][]int
	MaxDof        []int
	N             int
	Neighbor      [][]int
	Reweight      []float64
	ReweightGoal  []float64
	Neval         int64
	Visited       []float64
	Propose       [][][]float64
	Accept        [][][]float64
	Curr          int
	AbsWeight     float64
	Probability   float64
	WeightsRe     []float64
	WeightsIm     []float64
	ObservableRe  []float64
	ObservableIm  []float64
	Normalization float64
	Seed          uint64
}

// Save writes a lossless snapshot of the configuration.
func (c *Config) Save(w io.Writer) error {
	s := configState{
		Vars: c.Vars, Dof: c.Dof, MaxDof: c.MaxDof, N: c.N,
		Neighbor: c.Neighbor, Reweight: c.Reweight,
		ReweightGoal: c.ReweightGoal, Neval: c.Neval, Visited: c.Visited,
		Propose: c.Propose, Accept: c.Accept, Curr: c.Curr,
		AbsWeight: c.AbsWeight, Probability: c.Probability,
		Normalization: c.Normalization, Seed: c.Seed,
	}
	s.WeightsRe, s.WeightsIm = splitComplex(c.Weights)
	s.ObservableRe, s.ObservableIm = splitComplex(c.Observable)
	return gob.NewEncoder(w).Encode(&s)
}

// LoadConfig restores a configuration saved with Save.
func LoadConfig(r io.Reader) (*Config, error) {
	var s configState
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	c := &Config{
		Vars: s.Vars, Dof: s.Dof, MaxDof: s.MaxDof, N: s.N, Norm: s.N,
		Neighbor: s.Neighbor, Reweight: s.Reweight,
		ReweightGoal: s.ReweightGoal, Neval: s.Neval, Visited: s.Visited,
		Propose: s.Propose, Accept: s.Accept, Curr: s.Curr,
		AbsWeight: s.AbsWeight, Probability: s.Probability,
		Normalization: s.Normalization, Seed: s.Seed,
		rng:      rand.New(rand.NewSource(s.Seed)),
		relative: make([]complex128, s.N+1),
		pads:     make([]float64, s.N+1),
	}
	c.Weights = joinComplex(s.WeightsRe, s.WeightsIm)
	c.Observable = joinComplex(s.ObservableRe, s.ObservableIm)
	return c, nil
}

// SaveBytes is Save into a fresh buffer.
func (c *Config) SaveBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func splitComplex(zs []complex128) (re, im []float64) {
	re = make([]float64, len(zs))
	im = make([]float64, len(zs))
	for i, z := range zs {
		re[i], im[i] = real(z), imag(z)
	}
	return re, im
}

func joinComplex(re, im []float64) []complex128 {
	zs := make([]complex128, len(re))
	for i := range re {
		zs[i] = complex(re[i], im[i])
	}
	return zs
}
