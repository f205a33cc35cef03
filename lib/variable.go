package mcquad

import (
	"golang.org/x/exp/rand"
)

const (
	// MaxOrder is the default number of usable sample slots in a variable
	// pool. One extra slot is allocated as rollback scratch.
	MaxOrder = 16

	// TINY floors histogram bins so that training never divides by zero.
	TINY = 1e-10
)

// A Variable is a fixed-capacity pool of sampled points of one kind. It
// knows the proposal density of every slot under its current map, proposes
// create/shift/swap moves for the Metropolis updates, accumulates weighted
// visits into a histogram and retrains its map from it between iterations.
//
// Slots [Offset(), Size()) hold live samples. Slots below Offset() are
// reserved (external parameters) and never touched by generic moves. The
// slot at index Size() is scratch: Shift writes the displaced sample there
// so that ShiftRollback can restore it.
type Variable interface {
	// Create draws slot idx fresh from the pool's map and returns 1/q of
	// the drawn point, where q is its proposal density. A zero return
	// marks a degenerate draw that the caller must reject.
	Create(rng *rand.Rand, idx int) float64

	// Remove returns the proposal density q of the current sample in slot
	// idx, used when the slot's degree of freedom is being abandoned.
	Remove(idx int) float64

	// Shift saves slot idx to scratch, redraws it and returns the forward
	// proposal ratio qOld/qNew. A zero return marks a degenerate draw.
	Shift(rng *rand.Rand, idx int) float64

	// ShiftRollback restores slot idx from scratch.
	ShiftRollback(idx int)

	// Swap exchanges slots i and j. The proposal ratio is 1.
	Swap(i, j int)

	// SwapRollback undoes Swap(i, j).
	SwapRollback(i, j int)

	// ProbRange returns the product of the slot densities over [from, to).
	ProbRange(from, to int) float64

	// Accumulate adds w into the histogram bin that produced slot idx.
	Accumulate(idx int, w float64)

	// MergeHistogram adds the histogram of a same-shaped pool into the
	// receiver. Used for the cross-block reduction before training.
	MergeHistogram(other Variable)

	// Train rebuilds the map from the accumulated histogram and resets
	// the histogram to its floor. A no-op for non-adaptive pools.
	Train()

	// Initialize fills every live slot with a fresh draw so that all
	// slot densities are strictly positive.
	Initialize(rng *rand.Rand)

	// Clone returns a deep copy for per-block use.
	Clone() Variable

	Size() int
	Offset() int
	Adaptive() bool
}

// varOpts are the settings shared by all pool kinds.
type varOpts struct {
	size   int
	offset int
	ninc   int
	alpha  float64
	adapt  bool
}

func defaultVarOpts() varOpts {
	return varOpts{
		size:  MaxOrder,
		ninc:  1000,
		alpha: 2.0,
		adapt: true,
	}
}

// A VarOption configures a variable pool at construction time.
type VarOption func(*varOpts)

// Slots sets the number of usable sample slots.
func Slots(n int) VarOption { return func(o *varOpts) { o.size = n } }

// Offset reserves the first n slots for externally supplied values.
func Offset(n int) VarOption { return func(o *varOpts) { o.offset = n } }

// Grid sets the number of map increments of an adaptive pool.
func Grid(ninc int) VarOption { return func(o *varOpts) { o.ninc = ninc } }

// Alpha sets the smoothing exponent used when training the map.
func Alpha(a float64) VarOption { return func(o *varOpts) { o.alpha = a } }

// Adapt toggles map training between iterations.
func Adapt(on bool) VarOption { return func(o *varOpts) { o.adapt = on } }

func buildVarOpts(opts []VarOption) varOpts {
	o := defaultVarOpts()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o varOpts) validate() error {
	if o.size < 1 {
		return errConfig("variable pool needs at least one slot")
	}
	if o.offset < 0 || o.offset >= o.size {
		return errConfig("offset %d out of range for %d slots", o.offset, o.size)
	}
	if o.ninc < 1 {
		return errConfig("grid needs at least one increment")
	}
	return nil
}
