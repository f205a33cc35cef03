package mcquad

import (
	"bytes"
	"encoding/gob"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// Discrete samples an integer in [Lower, Upper] from a categorical
// distribution. The distribution starts uniform and is retrained from the
// accumulated histogram between iterations.
type Discrete struct {
	// Data holds the sampled integers. Slot Size() is rollback scratch.
	Data []int
	// Dist is the normalized categorical distribution over the range.
	Dist []float64
	// Accum is the cumulative distribution with a leading 0 and a
	// trailing 1, searched to draw a sample.
	Accum []float64

	prob      []float64
	histogram []float64
	lower     int
	upper     int
	alpha     float64
	adapt     bool
	size      int
	offset    int
}

// NewDiscrete returns a pool sampling the integers [lower, upper]
// uniformly until trained.
func NewDiscrete(lower, upper int, opts ...VarOption) (*Discrete, error) {
	if upper < lower {
		return nil, errConfig("discrete range [%d, %d] is empty", lower, upper)
	}
	o := buildVarOpts(opts)
	o.ninc = upper - lower + 1
	if err := o.validate(); err != nil {
		return nil, err
	}

	n := upper - lower + 1
	d := &Discrete{
		Data:      make([]int, o.size+1),
		Dist:      make([]float64, n),
		Accum:     make([]float64, n+1),
		prob:      make([]float64, o.size+1),
		histogram: make([]float64, n),
		lower:     lower,
		upper:     upper,
		alpha:     o.alpha,
		adapt:     o.adapt,
		size:      o.size,
		offset:    o.offset,
	}
	for i := range d.Dist {
		d.Dist[i] = 1 / float64(n)
		d.histogram[i] = TINY
	}
	d.rebuildAccum()
	for i := 0; i < o.offset; i++ {
		d.Data[i] = lower
		d.prob[i] = 1
	}
	return d, nil
}

func (d *Discrete) Size() int      { return d.size }
func (d *Discrete) Offset() int    { return d.offset }
func (d *Discrete) Adaptive() bool { return d.adapt }

// Lower returns the inclusive lower bound of the range.
func (d *Discrete) Lower() int { return d.lower }

// Upper returns the inclusive upper bound of the range.
func (d *Discrete) Upper() int { return d.upper }

func (d *Discrete) rebuildAccum() {
	d.Accum[0] = 0
	for i, p := range d.Dist {
		d.Accum[i+1] = d.Accum[i] + p
	}
	d.Accum[len(d.Dist)] = 1
}

// sample draws the category whose cumulative interval contains u.
func (d *Discrete) sample(idx int, u float64) {
	i := sort.SearchFloat64s(d.Accum, u)
	// SearchFloat64s returns the first index with Accum[i] >= u; the
	// drawn category is the interval [Accum[i-1], Accum[i]).
	if i > 0 {
		i--
	}
	if i >= len(d.Dist) {
		i = len(d.Dist) - 1
	}
	d.Data[idx] = d.lower + i
	d.prob[idx] = d.Dist[i]
}

func (d *Discrete) Create(rng *rand.Rand, idx int) float64 {
	d.sample(idx, rng.Float64())
	return 1 / d.prob[idx]
}

func (d *Discrete) Remove(idx int) float64 { return d.prob[idx] }

func (d *Discrete) Shift(rng *rand.Rand, idx int) float64 {
	s := d.size
	d.Data[s], d.prob[s] = d.Data[idx], d.prob[idx]
	d.sample(idx, rng.Float64())
	return d.prob[s] / d.prob[idx]
}

func (d *Discrete) ShiftRollback(idx int) {
	s := d.size
	d.Data[idx], d.prob[idx] = d.Data[s], d.prob[s]
}

func (d *Discrete) Swap(i, j int) {
	d.Data[i], d.Data[j] = d.Data[j], d.Data[i]
	d.prob[i], d.prob[j] = d.prob[j], d.prob[i]
}

func (d *Discrete) SwapRollback(i, j int) { d.Swap(i, j) }

func (d *Discrete) ProbRange(from, to int) float64 {
	p := 1.0
	for i := from; i < to; i++ {
		p *= d.prob[i]
	}
	return p
}

func (d *Discrete) Accumulate(idx int, w float64) {
	if d.adapt {
		d.histogram[d.Data[idx]-d.lower] += w
	}
}

func (d *Discrete) MergeHistogram(other Variable) {
	o := other.(*Discrete)
	for i, h := range o.histogram {
		d.histogram[i] += h
	}
}

// Train rescales the histogram into a fresh categorical distribution and
// rebuilds the cumulative table.
func (d *Discrete) Train() {
	if !d.adapt {
		return
	}
	sum := floats.Sum(d.histogram)
	if sum > 0 {
		for i, h := range d.histogram {
			r := h / sum
			if r < TINY {
				r = TINY
			}
			if r >= 1 {
				d.Dist[i] = 1
			} else {
				d.Dist[i] = math.Pow((1-r)/math.Log(1/r), d.alpha)
			}
		}
		total := floats.Sum(d.Dist)
		for i := range d.Dist {
			d.Dist[i] /= total
		}
		d.rebuildAccum()
	}
	for i := range d.histogram {
		d.histogram[i] = TINY
	}
}

func (d *Discrete) Initialize(rng *rand.Rand) {
	for i := d.offset; i < d.size; i++ {
		d.Create(rng, i)
	}
}

func (d *Discrete) Clone() Variable {
	c := *d
	c.Data = append([]int(nil), d.Data...)
	c.Dist = append([]float64(nil), d.Dist...)
	c.Accum = append([]float64(nil), d.Accum...)
	c.prob = append([]float64(nil), d.prob...)
	c.histogram = append([]float64(nil), d.histogram...)
	return &c
}

type discreteState struct {
	Data      []int
	Dist      []float64
	Accum     []float64
	Prob      []float64
	Histogram []float64
	Lower     int
	Upper     int
	Alpha     float64
	Adapt     bool
	Size      int
	Offset    int
}

// MarshalBinary implements encoding.BinaryMarshaler for snapshots.
func (d *Discrete) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(discreteState{
		Data: d.Data, Dist: d.Dist, Accum: d.Accum, Prob: d.prob,
		Histogram: d.histogram, Lower: d.lower, Upper: d.upper,
		Alpha: d.alpha, Adapt: d.adapt, Size: d.size, Offset: d.offset,
	})
	return buf.Bytes(), err
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (d *Discrete) UnmarshalBinary(data []byte) error {
	var s discreteState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	d.Data, d.Dist, d.Accum, d.prob = s.Data, s.Dist, s.Accum, s.Prob
	d.histogram = s.Histogram
	d.lower, d.upper = s.Lower, s.Upper
	d.alpha, d.adapt = s.Alpha, s.Adapt
	d.size, d.offset = s.Size, s.Offset
	return nil
}
