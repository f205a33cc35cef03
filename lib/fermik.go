package mcquad

import (
	"bytes"
	"encoding/gob"
	"math"

	"golang.org/x/exp/rand"
)

// scaleLambda bounds the magnitude-scaling sub-move of FermiK.Shift.
const scaleLambda = 1.5

// FermiK samples a free momentum from a spherical shell: the magnitude is
// uniform in [KF-DeltaK, KF+DeltaK), the direction isotropic. The pool is
// not adaptive. Supported dimensions are 2 and 3.
type FermiK struct {
	// Data holds one momentum vector per slot. Slot Size() is rollback
	// scratch.
	Data [][]float64

	prob   []float64
	dim    int
	kF     float64
	deltaK float64
	maxK   float64
	size   int
	offset int
}

// NewFermiK returns a shell-momentum pool of dimension dim (2 or 3)
// centered on the Fermi momentum kF with half-width deltaK. Proposals with
// magnitude outside (0, maxK] are degenerate and get rejected.
func NewFermiK(dim int, kF, deltaK, maxK float64, opts ...VarOption) (*FermiK, error) {
	if dim != 2 && dim != 3 {
		return nil, errConfig("fermi momentum dimension %d not supported", dim)
	}
	if kF <= 0 || deltaK <= 0 || maxK <= kF {
		return nil, errConfig("bad fermi shell kF=%g deltaK=%g maxK=%g", kF, deltaK, maxK)
	}
	o := buildVarOpts(opts)
	o.adapt = false
	if err := o.validate(); err != nil {
		return nil, err
	}

	f := &FermiK{
		Data:   make([][]float64, o.size+1),
		prob:   make([]float64, o.size+1),
		dim:    dim,
		kF:     kF,
		deltaK: deltaK,
		maxK:   maxK,
		size:   o.size,
		offset: o.offset,
	}
	buf := make([]float64, (o.size+1)*dim)
	for i := range f.Data {
		f.Data[i] = buf[i*dim : (i+1)*dim : (i+1)*dim]
	}
	for i := 0; i < o.offset; i++ {
		f.prob[i] = 1
	}
	return f, nil
}

func (f *FermiK) Size() int      { return f.size }
func (f *FermiK) Offset() int    { return f.offset }
func (f *FermiK) Adaptive() bool { return false }

// density returns the proposal density of momentum k in Cartesian measure,
// or 0 when its magnitude lies outside (0, maxK] or, in 3D, when k lies on
// the polar axis.
func (f *FermiK) density(k []float64) float64 {
	amp := norm(k)
	if amp <= 0 || amp > f.maxK {
		return 0
	}
	if f.dim == 2 {
		return 1 / (2 * f.deltaK * 2 * math.Pi * amp)
	}
	sinTheta := math.Sqrt(k[0]*k[0]+k[1]*k[1]) / amp
	if sinTheta <= 0 {
		return 0
	}
	return 1 / (2 * f.deltaK * 2 * math.Pi * math.Pi * sinTheta * amp * amp)
}

func norm(k []float64) float64 {
	s := 0.0
	for _, c := range k {
		s += c * c
	}
	return math.Sqrt(s)
}

// sample draws a fresh shell momentum into slot idx. It reports false when
// the magnitude draw is non-positive, which the caller rejects.
func (f *FermiK) sample(rng *rand.Rand, idx int) bool {
	amp := f.kF + (rng.Float64()-0.5)*2*f.deltaK
	if amp <= 0 {
		f.prob[idx] = 0
		return false
	}
	phi := rng.Float64() * 2 * math.Pi
	k := f.Data[idx]
	if f.dim == 2 {
		k[0] = amp * math.Cos(phi)
		k[1] = amp * math.Sin(phi)
		f.prob[idx] = 1 / (2 * f.deltaK * 2 * math.Pi * amp)
		return true
	}
	theta := rng.Float64() * math.Pi
	sinTheta := math.Sin(theta)
	k[0] = amp * sinTheta * math.Cos(phi)
	k[1] = amp * sinTheta * math.Sin(phi)
	k[2] = amp * math.Cos(theta)
	if sinTheta <= 0 {
		f.prob[idx] = 0
		return false
	}
	f.prob[idx] = 1 / (2 * f.deltaK * 2 * math.Pi * math.Pi * sinTheta * amp * amp)
	return true
}

func (f *FermiK) Create(rng *rand.Rand, idx int) float64 {
	if !f.sample(rng, idx) {
		return 0
	}
	return 1 / f.prob[idx]
}

func (f *FermiK) Remove(idx int) float64 { return f.prob[idx] }

// Shift applies one of three sub-moves with equal probability: rescale the
// magnitude by a factor in [1/scaleLambda, scaleLambda], rotate the
// direction isotropically at fixed magnitude, or displace the vector
// inside a cube of edge deltaK. The returned ratio folds the sub-move's
// Jacobian; 0 marks a degenerate proposal.
func (f *FermiK) Shift(rng *rand.Rand, idx int) float64 {
	s := f.size
	copy(f.Data[s], f.Data[idx])
	f.prob[s] = f.prob[idx]

	k := f.Data[idx]
	switch rng.Intn(3) {
	case 0: // rescale magnitude
		c := 1/scaleLambda + rng.Float64()*(scaleLambda-1/scaleLambda)
		for i := range k {
			k[i] *= c
		}
		f.prob[idx] = f.density(k)
		if f.prob[idx] == 0 {
			return 0
		}
		if f.dim == 3 {
			return c
		}
		return 1

	case 1: // rotate at fixed magnitude
		amp := norm(k)
		phi := rng.Float64() * 2 * math.Pi
		if f.dim == 2 {
			k[0] = amp * math.Cos(phi)
			k[1] = amp * math.Sin(phi)
		} else {
			theta := rng.Float64() * math.Pi
			sinTheta := math.Sin(theta)
			k[0] = amp * sinTheta * math.Cos(phi)
			k[1] = amp * sinTheta * math.Sin(phi)
			k[2] = amp * math.Cos(theta)
		}
		f.prob[idx] = f.density(k)
		if f.prob[idx] == 0 {
			return 0
		}
		return 1

	default: // cube displacement
		for i := range k {
			k[i] += (rng.Float64() - 0.5) * f.deltaK
		}
		f.prob[idx] = f.density(k)
		if f.prob[idx] == 0 {
			return 0
		}
		return f.prob[s] / f.prob[idx]
	}
}

func (f *FermiK) ShiftRollback(idx int) {
	s := f.size
	copy(f.Data[idx], f.Data[s])
	f.prob[idx] = f.prob[s]
}

func (f *FermiK) Swap(i, j int) {
	for c := range f.Data[i] {
		f.Data[i][c], f.Data[j][c] = f.Data[j][c], f.Data[i][c]
	}
	f.prob[i], f.prob[j] = f.prob[j], f.prob[i]
}

func (f *FermiK) SwapRollback(i, j int) { f.Swap(i, j) }

func (f *FermiK) ProbRange(from, to int) float64 {
	p := 1.0
	for i := from; i < to; i++ {
		p *= f.prob[i]
	}
	return p
}

// Accumulate is a no-op: the shell proposal is not adaptive.
func (f *FermiK) Accumulate(idx int, w float64) {}

func (f *FermiK) MergeHistogram(other Variable) {}

func (f *FermiK) Train() {}

func (f *FermiK) Initialize(rng *rand.Rand) {
	for i := f.offset; i < f.size; i++ {
		for f.Create(rng, i) == 0 {
		}
	}
}

func (f *FermiK) Clone() Variable {
	c := *f
	c.prob = append([]float64(nil), f.prob...)
	c.Data = make([][]float64, len(f.Data))
	buf := make([]float64, len(f.Data)*f.dim)
	for i := range c.Data {
		c.Data[i] = buf[i*f.dim : (i+1)*f.dim : (i+1)*f.dim]
		copy(c.Data[i], f.Data[i])
	}
	return &c
}

type fermiKState struct {
	Data   [][]float64
	Prob   []float64
	Dim    int
	KF     float64
	DeltaK float64
	MaxK   float64
	Size   int
	Offset int
}

// MarshalBinary implements encoding.BinaryMarshaler for snapshots.
func (f *FermiK) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(fermiKState{
		Data: f.Data, Prob: f.prob, Dim: f.dim,
		KF: f.kF, DeltaK: f.deltaK, MaxK: f.maxK,
		Size: f.size, Offset: f.offset,
	})
	return buf.Bytes(), err
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (f *FermiK) UnmarshalBinary(data []byte) error {
	var s fermiKState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	f.Data, f.prob = s.Data, s.Prob
	f.dim, f.kF, f.deltaK, f.maxK = s.Dim, s.KF, s.DeltaK, s.MaxK
	f.size, f.offset = s.Size, s.Offset
	return nil
}
