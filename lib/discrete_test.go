package mcquad

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"pgregory.net/rapid"
)

func TestDiscrete_EmptyRange(t *testing.T) {
	t.Parallel()

	if _, err := NewDiscrete(3, 2); err == nil {
		t.Error("NewDiscrete(3, 2): want error, got nil")
	}
}

func TestDiscrete_AccumulationShape(t *testing.T) {
	t.Parallel()

	d, err := NewDiscrete(1, 8)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Accum[0]; got != 0 {
		t.Errorf("Accum[0] = %g, want 0", got)
	}
	if got := d.Accum[len(d.Accum)-1]; got != 1 {
		t.Errorf("Accum[last] = %g, want 1", got)
	}
	for i := 1; i < len(d.Accum); i++ {
		if d.Accum[i] < d.Accum[i-1] {
			t.Fatalf("Accum not monotone at %d", i)
		}
	}
}

func TestDiscrete_UniformSampling(t *testing.T) {
	t.Parallel()

	d, err := NewDiscrete(-2, 5)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	counts := map[int]int{}
	for i := 0; i < 8000; i++ {
		d.Create(rng, 0)
		if d.Data[0] < -2 || d.Data[0] > 5 {
			t.Fatalf("sample %d out of [-2, 5]", d.Data[0])
		}
		if got, want := d.prob[0], 1/8.0; math.Abs(got-want) > 1e-12 {
			t.Fatalf("prob = %g, want %g", got, want)
		}
		counts[d.Data[0]]++
	}
	for v := -2; v <= 5; v++ {
		if counts[v] < 700 {
			t.Errorf("value %d drawn %d times out of 8000, suspiciously few", v, counts[v])
		}
	}
}

func TestDiscrete_ShiftRollback(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		d, err := NewDiscrete(0, 9)
		if err != nil {
			rt.Fatal(err)
		}
		rng := rand.New(rand.NewSource(seed))
		d.Initialize(rng)

		idx := rapid.IntRange(0, d.Size()-1).Draw(rt, "idx")
		data, prob := d.Data[idx], d.prob[idx]

		d.Shift(rng, idx)
		d.ShiftRollback(idx)

		if d.Data[idx] != data || d.prob[idx] != prob {
			rt.Fatalf("rollback: got (%d, %v), want (%d, %v)", d.Data[idx], d.prob[idx], data, prob)
		}
	})
}

func TestDiscrete_TrainNormalizes(t *testing.T) {
	t.Parallel()

	d, err := NewDiscrete(1, 4, Alpha(2))
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(9))
	d.Initialize(rng)

	// Accumulate a lopsided histogram: value 1 dominates.
	for i := 0; i < 1000; i++ {
		d.Create(rng, 0)
		w := 0.01
		if d.Data[0] == 1 {
			w = 1
		}
		d.Accumulate(0, w)
	}
	d.Train()

	if got := floats.Sum(d.Dist); math.Abs(got-1) > 1e-12 {
		t.Errorf("trained distribution sums to %g, want 1", got)
	}
	if d.Dist[0] <= d.Dist[3] {
		t.Errorf("training did not favor the heavy value: %v", d.Dist)
	}
	if got := d.Accum[len(d.Accum)-1]; got != 1 {
		t.Errorf("Accum[last] = %g after training, want 1", got)
	}
	for _, h := range d.histogram {
		if h != TINY {
			t.Fatalf("histogram not reset to floor: %g", h)
		}
	}
}
