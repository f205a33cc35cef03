package mcquad

import (
	"math"

	"github.com/bmizerany/perks/quantile"
	gk "github.com/dgryski/go-gk"
	"github.com/influxdata/tdigest"
	streadway "github.com/streadway/quantile"
	"github.com/tsenart/go-tsz"
)

// An Estimator estimates quantiles of a stream of sample weights.
type Estimator interface {
	Add(sample float64)
	Get(quantile float64) float64
}

type tdigestEstimator struct{ *tdigest.TDigest }

func (e tdigestEstimator) Add(s float64)         { e.TDigest.Add(s, 1) }
func (e tdigestEstimator) Get(q float64) float64 { return e.TDigest.Quantile(q) }

// NewTDigestEstimator returns an Estimator backed by a t-digest with the
// given compression factor.
func NewTDigestEstimator(compression float64) Estimator {
	return tdigestEstimator{tdigest.NewWithCompression(compression)}
}

type streadwayEstimator struct{ *streadway.Estimator }

func (e streadwayEstimator) Get(q float64) float64 { return e.Estimator.Get(q) }

// NewStreadwayEstimator returns an Estimator backed by a targeted
// streadway/quantile estimator for the given quantiles.
func NewStreadwayEstimator(quantiles ...float64) Estimator {
	est := make([]streadway.Estimate, 0, len(quantiles))
	for _, q := range quantiles {
		est = append(est, streadway.Known(q, 0.001*q))
	}
	return streadwayEstimator{streadway.New(est...)}
}

type perksEstimator struct{ *quantile.Stream }

func (e perksEstimator) Add(s float64)         { e.Stream.Insert(s) }
func (e perksEstimator) Get(q float64) float64 { return e.Stream.Query(q) }

// NewPerksEstimator returns an Estimator backed by a perks targeted
// quantile stream.
func NewPerksEstimator(quantiles ...float64) Estimator {
	return perksEstimator{quantile.NewTargeted(quantiles...)}
}

type gkEstimator struct{ *gk.Stream }

func (e gkEstimator) Add(s float64)         { e.Stream.Insert(s) }
func (e gkEstimator) Get(q float64) float64 { return e.Stream.Query(q) }

// NewGKEstimator returns an Estimator backed by a Greenwald-Khanna
// ε-approximate stream.
func NewGKEstimator(epsilon float64) Estimator {
	return gkEstimator{gk.New(epsilon)}
}

// WeightMetrics summarizes the stream of per-sample relative weights
// |f|·pad/q of an engine. Heavy upper quantiles relative to the mean are
// the standard symptom of an under-adapted map.
type WeightMetrics struct {
	// Count is the number of observed weights.
	Count uint64
	// Mean is their running mean.
	Mean float64
	// Max is the largest weight seen.
	Max float64

	estimator Estimator
	sum       float64
}

// NewWeightMetrics returns a WeightMetrics using est for quantiles. A nil
// est defaults to a t-digest.
func NewWeightMetrics(est Estimator) *WeightMetrics {
	if est == nil {
		est = NewTDigestEstimator(100)
	}
	return &WeightMetrics{estimator: est}
}

// Observe records one weight.
func (w *WeightMetrics) Observe(weight float64) {
	w.Count++
	w.sum += weight
	w.Mean = w.sum / float64(w.Count)
	if weight > w.Max {
		w.Max = weight
	}
	w.estimator.Add(weight)
}

// Quantile returns the estimated q-quantile of the observed weights.
func (w *WeightMetrics) Quantile(q float64) float64 {
	if w.Count == 0 {
		return math.NaN()
	}
	return w.estimator.Get(q)
}

// WeightTrace keeps a compressed in-memory series of (evaluation index,
// weight) pairs for post-run diagnostics and plotting.
type WeightTrace struct {
	series *tsz.Series
	n      int
	closed bool
}

// NewWeightTrace returns an empty trace.
func NewWeightTrace() *WeightTrace {
	return &WeightTrace{series: tsz.New(0)}
}

// Push appends the weight observed at the given evaluation index.
func (t *WeightTrace) Push(eval int64, weight float64) {
	if t.closed {
		return
	}
	t.series.Push(uint64(eval), weight)
	t.n++
}

// Len returns the number of stored points.
func (t *WeightTrace) Len() int { return t.n }

// Points decompresses the trace into (x, y) pairs. The trace is finished
// on first call and accepts no further pushes.
func (t *WeightTrace) Points() ([]float64, []float64) {
	if !t.closed {
		t.series.Finish()
		t.closed = true
	}
	xs := make([]float64, 0, t.n)
	ys := make([]float64, 0, t.n)
	it := t.series.Iter()
	for it.Next() {
		x, y := it.Values()
		xs = append(xs, float64(x))
		ys = append(ys, y)
	}
	return xs, ys
}
