package mcquad

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
)

func TestCompositeVar_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewCompositeVar(); err == nil {
		t.Error("empty composite: want error, got nil")
	}

	a, _ := NewContinuous(0, 1)
	b, _ := NewDiscrete(0, 3, Slots(8))
	if _, err := NewCompositeVar(a, b); err == nil {
		t.Error("mismatched slot layout: want error, got nil")
	}
}

func TestCompositeVar_ProbProduct(t *testing.T) {
	t.Parallel()

	a, _ := NewContinuous(0, 1)
	b, _ := NewDiscrete(0, 3)
	cv, err := NewCompositeVar(a, b)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(23))
	cv.Initialize(rng)

	for i := 0; i < cv.Size(); i++ {
		got := cv.ProbRange(i, i+1)
		want := a.ProbRange(i, i+1) * b.ProbRange(i, i+1)
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("slot %d: composite prob %g, want product %g", i, got, want)
		}
		if got <= 0 {
			t.Errorf("slot %d: non-positive composite prob", i)
		}
	}
}

func TestCompositeVar_ShiftRollback(t *testing.T) {
	t.Parallel()

	a, _ := NewContinuous(0, 1)
	b, _ := NewDiscrete(0, 3)
	cv, err := NewCompositeVar(a, b)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(29))
	cv.Initialize(rng)

	idx := 2
	ax, bx, p := a.Data[idx], b.Data[idx], cv.ProbRange(idx, idx+1)

	if r := cv.Shift(rng, idx); r == 0 {
		t.Fatal("unexpected degenerate composite shift")
	}
	cv.ShiftRollback(idx)

	if a.Data[idx] != ax || b.Data[idx] != bx {
		t.Error("composite rollback did not restore the children")
	}
	if got := cv.ProbRange(idx, idx+1); got != p {
		t.Errorf("composite rollback prob %g, want %g", got, p)
	}
}

func TestCompositeVar_CloneIsDeep(t *testing.T) {
	t.Parallel()

	a, _ := NewContinuous(0, 1)
	cv, err := NewCompositeVar(a)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(31))
	cv.Initialize(rng)

	clone := cv.Clone().(*CompositeVar)
	before := a.Data[0]
	clone.Vars[0].(*Continuous).Data[0] = before + 42
	if a.Data[0] != before {
		t.Error("mutating the clone changed the original")
	}
}
