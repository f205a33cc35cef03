package mcquad

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"pgregory.net/rapid"
)

func TestFermiK_BadConstruction(t *testing.T) {
	t.Parallel()

	cases := []struct {
		dim              int
		kF, deltaK, maxK float64
	}{
		{4, 1, 0.5, 10},
		{3, 0, 0.5, 10},
		{3, 1, 0, 10},
		{3, 1, 0.5, 0.5},
	}
	for _, c := range cases {
		if _, err := NewFermiK(c.dim, c.kF, c.deltaK, c.maxK); err == nil {
			t.Errorf("NewFermiK(%d, %g, %g, %g): want error, got nil", c.dim, c.kF, c.deltaK, c.maxK)
		}
	}
}

func TestFermiK_SampleShell(t *testing.T) {
	t.Parallel()

	for _, dim := range []int{2, 3} {
		f, err := NewFermiK(dim, 1, 0.5, 10)
		if err != nil {
			t.Fatal(err)
		}
		rng := rand.New(rand.NewSource(21))
		for i := 0; i < 1000; i++ {
			if f.Create(rng, 0) == 0 {
				continue
			}
			amp := norm(f.Data[0])
			if amp < 0.5 || amp >= 1.5 {
				t.Fatalf("dim %d: magnitude %g out of [0.5, 1.5)", dim, amp)
			}
			if f.prob[0] <= 0 {
				t.Fatalf("dim %d: non-positive density %g", dim, f.prob[0])
			}
			if got := f.density(f.Data[0]); math.Abs(got-f.prob[0]) > 1e-12*f.prob[0] {
				t.Fatalf("dim %d: stored prob %g, density %g", dim, f.prob[0], got)
			}
		}
	}
}

func TestFermiK_DegenerateMagnitude(t *testing.T) {
	t.Parallel()

	// With deltaK > kF the magnitude draw can go non-positive; Create must
	// report it as a zero ratio rather than an error.
	f, err := NewFermiK(3, 0.3, 0.5, 10)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(2))
	zeros := 0
	for i := 0; i < 5000; i++ {
		if f.Create(rng, 0) == 0 {
			zeros++
			if f.prob[0] != 0 {
				t.Fatal("degenerate draw left a non-zero density")
			}
		}
	}
	if zeros == 0 {
		t.Error("expected some degenerate draws with deltaK > kF")
	}
}

func TestFermiK_ShiftRollback(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		dim := rapid.SampledFrom([]int{2, 3}).Draw(rt, "dim")
		f, err := NewFermiK(dim, 1, 0.5, 10)
		if err != nil {
			rt.Fatal(err)
		}
		rng := rand.New(rand.NewSource(seed))
		f.Initialize(rng)

		idx := rapid.IntRange(0, f.Size()-1).Draw(rt, "idx")
		data := append([]float64(nil), f.Data[idx]...)
		prob := f.prob[idx]

		f.Shift(rng, idx)
		f.ShiftRollback(idx)

		for c := range data {
			if f.Data[idx][c] != data[c] {
				rt.Fatalf("rollback: component %d is %v, want %v", c, f.Data[idx][c], data[c])
			}
		}
		if f.prob[idx] != prob {
			rt.Fatalf("rollback: prob is %v, want %v", f.prob[idx], prob)
		}
	})
}

func TestFermiK_SwapRollback(t *testing.T) {
	t.Parallel()

	f, err := NewFermiK(3, 1, 0.5, 10)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(17))
	f.Initialize(rng)

	i, j := 1, 4
	di := append([]float64(nil), f.Data[i]...)
	dj := append([]float64(nil), f.Data[j]...)
	f.Swap(i, j)
	f.SwapRollback(i, j)
	for c := range di {
		if f.Data[i][c] != di[c] || f.Data[j][c] != dj[c] {
			t.Fatalf("swap rollback did not restore component %d", c)
		}
	}
}
