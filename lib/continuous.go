package mcquad

import (
	"bytes"
	"encoding/gob"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

const (
	// shiftWidth is the half-width of the y-space perturbation applied by
	// Continuous.Shift when it does not redraw from scratch.
	shiftWidth = 0.2

	// smoothDamp is the center weight of the damped window average applied
	// to the histogram before retraining a map.
	smoothDamp = 6.0
)

// Continuous samples a scalar in [Lower, Upper) through a piecewise-linear
// map x(y) defined by a monotone grid. The grid starts uniform and is
// retrained from the accumulated histogram between iterations, which
// concentrates increments where the integrand weight accumulates.
type Continuous struct {
	// Data holds the sampled points. Slot Size() is rollback scratch.
	Data []float64
	// Grid is the monotone map grid, Grid[0] = Lower, Grid[ninc] = Upper.
	Grid []float64

	prob      []float64
	gidx      []int
	histogram []float64
	lower     float64
	upper     float64
	alpha     float64
	adapt     bool
	size      int
	offset    int
}

// NewContinuous returns a pool sampling [lower, upper) with a uniform
// initial grid.
func NewContinuous(lower, upper float64, opts ...VarOption) (*Continuous, error) {
	if !(upper > lower) {
		return nil, errConfig("continuous range [%g, %g) has no width", lower, upper)
	}
	o := buildVarOpts(opts)
	if err := o.validate(); err != nil {
		return nil, err
	}

	c := &Continuous{
		Data:      make([]float64, o.size+1),
		Grid:      make([]float64, o.ninc+1),
		prob:      make([]float64, o.size+1),
		gidx:      make([]int, o.size+1),
		histogram: make([]float64, o.ninc),
		lower:     lower,
		upper:     upper,
		alpha:     o.alpha,
		adapt:     o.adapt,
		size:      o.size,
		offset:    o.offset,
	}

	width := (upper - lower) / float64(o.ninc)
	for i := range c.Grid {
		c.Grid[i] = lower + float64(i)*width
	}
	c.Grid[o.ninc] = upper
	for i := range c.histogram {
		c.histogram[i] = TINY
	}
	for i := 0; i < o.offset; i++ {
		c.Data[i] = lower
		c.prob[i] = 1
	}
	return c, nil
}

func (c *Continuous) Size() int      { return c.size }
func (c *Continuous) Offset() int    { return c.offset }
func (c *Continuous) Adaptive() bool { return c.adapt }

// Lower returns the inclusive lower bound of the sampling range.
func (c *Continuous) Lower() float64 { return c.lower }

// Upper returns the exclusive upper bound of the sampling range.
func (c *Continuous) Upper() float64 { return c.upper }

// sample maps y in [0,1) through the grid into slot idx.
func (c *Continuous) sample(idx int, y float64) {
	n := len(c.Grid) - 1
	i := int(y * float64(n))
	if i >= n {
		i = n - 1
	}
	width := c.Grid[i+1] - c.Grid[i]
	c.Data[idx] = c.Grid[i] + (y*float64(n)-float64(i))*width
	c.gidx[idx] = i
	c.prob[idx] = 1 / (float64(n) * width)
}

// invert recovers the y that maps to the current sample in slot idx.
func (c *Continuous) invert(idx int) float64 {
	n := len(c.Grid) - 1
	i := c.gidx[idx]
	return (float64(i) + (c.Data[idx]-c.Grid[i])/(c.Grid[i+1]-c.Grid[i])) / float64(n)
}

func (c *Continuous) Create(rng *rand.Rand, idx int) float64 {
	c.sample(idx, rng.Float64())
	return 1 / c.prob[idx]
}

func (c *Continuous) Remove(idx int) float64 { return c.prob[idx] }

func (c *Continuous) Shift(rng *rand.Rand, idx int) float64 {
	s := c.size
	c.Data[s], c.prob[s], c.gidx[s] = c.Data[idx], c.prob[idx], c.gidx[idx]

	if rng.Float64() < 0.5 {
		c.sample(idx, rng.Float64())
	} else {
		y := c.invert(idx) + shiftWidth*(2*rng.Float64()-1)
		y -= math.Floor(y) // wrap into [0,1)
		c.sample(idx, y)
	}
	return c.prob[s] / c.prob[idx]
}

func (c *Continuous) ShiftRollback(idx int) {
	s := c.size
	c.Data[idx], c.prob[idx], c.gidx[idx] = c.Data[s], c.prob[s], c.gidx[s]
}

func (c *Continuous) Swap(i, j int) {
	c.Data[i], c.Data[j] = c.Data[j], c.Data[i]
	c.prob[i], c.prob[j] = c.prob[j], c.prob[i]
	c.gidx[i], c.gidx[j] = c.gidx[j], c.gidx[i]
}

func (c *Continuous) SwapRollback(i, j int) { c.Swap(i, j) }

func (c *Continuous) ProbRange(from, to int) float64 {
	p := 1.0
	for i := from; i < to; i++ {
		p *= c.prob[i]
	}
	return p
}

func (c *Continuous) Accumulate(idx int, w float64) {
	if c.adapt {
		c.histogram[c.gidx[idx]] += w
	}
}

func (c *Continuous) MergeHistogram(other Variable) {
	o := other.(*Continuous)
	for i, h := range o.histogram {
		c.histogram[i] += h
	}
}

// Train redistributes the grid so that every increment carries an equal
// share of the smoothed, damped histogram mass, then resets the histogram.
func (c *Continuous) Train() {
	if !c.adapt {
		return
	}
	n := len(c.histogram)
	if n >= 2 {
		smoothed := make([]float64, n)
		smoothed[0] = (smoothDamp*c.histogram[0] + c.histogram[1]) / (smoothDamp + 1)
		smoothed[n-1] = (c.histogram[n-2] + smoothDamp*c.histogram[n-1]) / (smoothDamp + 1)
		for i := 1; i < n-1; i++ {
			smoothed[i] = (c.histogram[i-1] + smoothDamp*c.histogram[i] + c.histogram[i+1]) / (smoothDamp + 2)
		}

		sum := floats.Sum(smoothed)
		if sum > 0 {
			total := 0.0
			for i, d := range smoothed {
				r := d / sum
				if r < TINY {
					r = TINY
				}
				if r >= 1 {
					smoothed[i] = 1
				} else {
					smoothed[i] = math.Pow((1-r)/math.Log(1/r), c.alpha)
				}
				total += smoothed[i]
			}

			target := total / float64(n)
			grid := make([]float64, len(c.Grid))
			grid[0], grid[n] = c.Grid[0], c.Grid[n]
			acc, j := 0.0, 0
			for i := 1; i < n; i++ {
				goal := float64(i) * target
				for acc < goal && j < n {
					acc += smoothed[j]
					j++
				}
				frac := (acc - goal) / smoothed[j-1]
				grid[i] = c.Grid[j] - frac*(c.Grid[j]-c.Grid[j-1])
			}
			copy(c.Grid, grid)
		}
	}
	for i := range c.histogram {
		c.histogram[i] = TINY
	}
}

func (c *Continuous) Initialize(rng *rand.Rand) {
	for i := c.offset; i < c.size; i++ {
		c.Create(rng, i)
	}
}

func (c *Continuous) Clone() Variable {
	d := *c
	d.Data = append([]float64(nil), c.Data...)
	d.Grid = append([]float64(nil), c.Grid...)
	d.prob = append([]float64(nil), c.prob...)
	d.gidx = append([]int(nil), c.gidx...)
	d.histogram = append([]float64(nil), c.histogram...)
	return &d
}

type continuousState struct {
	Data      []float64
	Grid      []float64
	Prob      []float64
	GIdx      []int
	Histogram []float64
	Lower     float64
	Upper     float64
	Alpha     float64
	Adapt     bool
	Size      int
	Offset    int
}

// MarshalBinary implements encoding.BinaryMarshaler for snapshots.
func (c *Continuous) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(continuousState{
		Data: c.Data, Grid: c.Grid, Prob: c.prob, GIdx: c.gidx,
		Histogram: c.histogram, Lower: c.lower, Upper: c.upper,
		Alpha: c.alpha, Adapt: c.adapt, Size: c.size, Offset: c.offset,
	})
	return buf.Bytes(), err
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (c *Continuous) UnmarshalBinary(data []byte) error {
	var s continuousState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	c.Data, c.Grid, c.prob, c.gidx = s.Data, s.Grid, s.Prob, s.GIdx
	c.histogram = s.Histogram
	c.lower, c.upper = s.Lower, s.Upper
	c.alpha, c.adapt = s.Alpha, s.Adapt
	c.size, c.offset = s.Size, s.Offset
	return nil
}
