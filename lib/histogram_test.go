package mcquad

import (
	"reflect"
	"testing"
)

func TestHistogram_Add(t *testing.T) {
	t.Parallel()

	h := Histogram{Buckets: Buckets{0, 0.001, 0.01, 0.1, 1}}
	for _, w := range []float64{0.0005, 0.002, 0.02, 0.05, 0.5, 2, 100} {
		h.Add(w)
	}

	want := []uint64{1, 1, 2, 1, 2}
	if !reflect.DeepEqual(h.Counts, want) {
		t.Errorf("counts = %v, want %v", h.Counts, want)
	}
	if h.Total != 7 {
		t.Errorf("total = %d, want 7", h.Total)
	}
}

func TestBuckets_Nth(t *testing.T) {
	t.Parallel()

	bs := Buckets{0, 0.001, 1}
	if left, right := bs.Nth(0); left != "0" || right != "0.001" {
		t.Errorf("Nth(0) = [%s, %s]", left, right)
	}
	if left, right := bs.Nth(2); left != "1" || right != "+Inf" {
		t.Errorf("Nth(2) = [%s, %s]", left, right)
	}
}

func TestBuckets_UnmarshalText(t *testing.T) {
	t.Parallel()

	var bs Buckets
	if err := bs.UnmarshalText([]byte("[0, 0.001, 0.1, 1]")); err != nil {
		t.Fatal(err)
	}
	if want := (Buckets{0, 0.001, 0.1, 1}); !reflect.DeepEqual(bs, want) {
		t.Errorf("buckets = %v, want %v", bs, want)
	}

	for _, bad := range []string{"", "[]", "0,1", "[a,b]"} {
		var b Buckets
		if err := b.UnmarshalText([]byte(bad)); err == nil {
			t.Errorf("UnmarshalText(%q): want error, got nil", bad)
		}
	}
}
