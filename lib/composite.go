package mcquad

import (
	"bytes"
	"encoding/gob"

	"golang.org/x/exp/rand"
)

// CompositeVar bundles several pools that are always sampled together: one
// degree of freedom of the composite consumes one slot of every child. The
// children must share slot count and offset; the composite's per-slot
// density is the product of the children's.
type CompositeVar struct {
	// Vars are the child pools, sampled in lockstep.
	Vars []Variable

	size   int
	offset int
}

// NewCompositeVar bundles the given pools. At least one child is required
// and all children must agree on slot count and offset.
func NewCompositeVar(vars ...Variable) (*CompositeVar, error) {
	if len(vars) == 0 {
		return nil, errConfig("composite variable needs at least one child")
	}
	size, offset := vars[0].Size(), vars[0].Offset()
	for _, v := range vars[1:] {
		if v.Size() != size || v.Offset() != offset {
			return nil, errConfig("composite children disagree on slot layout")
		}
	}
	return &CompositeVar{Vars: vars, size: size, offset: offset}, nil
}

func (c *CompositeVar) Size() int   { return c.size }
func (c *CompositeVar) Offset() int { return c.offset }

func (c *CompositeVar) Adaptive() bool {
	for _, v := range c.Vars {
		if v.Adaptive() {
			return true
		}
	}
	return false
}

func (c *CompositeVar) Create(rng *rand.Rand, idx int) float64 {
	r := 1.0
	for _, v := range c.Vars {
		r *= v.Create(rng, idx)
	}
	return r
}

func (c *CompositeVar) Remove(idx int) float64 {
	r := 1.0
	for _, v := range c.Vars {
		r *= v.Remove(idx)
	}
	return r
}

func (c *CompositeVar) Shift(rng *rand.Rand, idx int) float64 {
	r := 1.0
	for _, v := range c.Vars {
		r *= v.Shift(rng, idx)
	}
	return r
}

func (c *CompositeVar) ShiftRollback(idx int) {
	for _, v := range c.Vars {
		v.ShiftRollback(idx)
	}
}

func (c *CompositeVar) Swap(i, j int) {
	for _, v := range c.Vars {
		v.Swap(i, j)
	}
}

func (c *CompositeVar) SwapRollback(i, j int) {
	for _, v := range c.Vars {
		v.SwapRollback(i, j)
	}
}

func (c *CompositeVar) ProbRange(from, to int) float64 {
	p := 1.0
	for _, v := range c.Vars {
		p *= v.ProbRange(from, to)
	}
	return p
}

func (c *CompositeVar) Accumulate(idx int, w float64) {
	for _, v := range c.Vars {
		v.Accumulate(idx, w)
	}
}

func (c *CompositeVar) MergeHistogram(other Variable) {
	o := other.(*CompositeVar)
	for i, v := range c.Vars {
		v.MergeHistogram(o.Vars[i])
	}
}

func (c *CompositeVar) Train() {
	for _, v := range c.Vars {
		v.Train()
	}
}

func (c *CompositeVar) Initialize(rng *rand.Rand) {
	for _, v := range c.Vars {
		v.Initialize(rng)
	}
}

func (c *CompositeVar) Clone() Variable {
	d := &CompositeVar{
		Vars:   make([]Variable, len(c.Vars)),
		size:   c.size,
		offset: c.offset,
	}
	for i, v := range c.Vars {
		d.Vars[i] = v.Clone()
	}
	return d
}

// MarshalBinary implements encoding.BinaryMarshaler for snapshots.
func (c *CompositeVar) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(c.Vars)
	return buf.Bytes(), err
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (c *CompositeVar) UnmarshalBinary(data []byte) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c.Vars); err != nil {
		return err
	}
	if len(c.Vars) > 0 {
		c.size, c.offset = c.Vars[0].Size(), c.Vars[0].Offset()
	}
	return nil
}
