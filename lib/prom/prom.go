// Package prom exposes integration progress as Prometheus metrics. It is
// an external observer: it consumes iteration records and never touches
// integration state.
package prom

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mcquad "github.com/ltseng/mcquad/lib"
)

// Metrics observes iteration records and exposes them as Prometheus
// collectors.
type Metrics struct {
	iterationsCounter  prometheus.Counter
	evaluationsCounter prometheus.Counter
	stalledCounter     prometheus.Counter
	meanGauge          *prometheus.GaugeVec
	errorGauge         *prometheus.GaugeVec
	reweightGauge      *prometheus.GaugeVec
	acceptanceGauge    prometheus.Gauge
}

// NewMetrics returns a new Metrics with all collectors initialized.
func NewMetrics() *Metrics {
	return &Metrics{
		iterationsCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iterations_total",
			Help: "Completed controller iterations",
		}),
		evaluationsCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evaluations_total",
			Help: "Integrand evaluations consumed",
		}),
		stalledCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stalled_blocks_total",
			Help: "Markov blocks flagged as stalled",
		}),
		meanGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "estimate_mean",
			Help: "Latest per-iteration estimate",
		}, []string{"integrand"}),
		errorGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "estimate_error",
			Help: "Latest per-iteration standard error",
		}, []string{"integrand"}),
		reweightGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reweight",
			Help: "Current mixture reweight entries",
		}, []string{"integrand"}),
		acceptanceGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acceptance_ratio",
			Help: "Latest overall Metropolis acceptance ratio",
		}),
	}
}

// Register registers all collectors in the given registry.
func (pm *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range pm.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes all collectors from the given registry.
func (pm *Metrics) Unregister(reg *prometheus.Registry) {
	for _, c := range pm.collectors() {
		reg.Unregister(c)
	}
}

func (pm *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		pm.iterationsCounter,
		pm.evaluationsCounter,
		pm.stalledCounter,
		pm.meanGauge,
		pm.errorGauge,
		pm.reweightGauge,
		pm.acceptanceGauge,
	}
}

// Observe records one iteration. It is suitable as an Integrator
// Observer callback.
func (pm *Metrics) Observe(rec *mcquad.IterationRecord) {
	pm.iterationsCounter.Inc()
	pm.evaluationsCounter.Add(float64(rec.Neval))
	if rec.Stalled {
		pm.stalledCounter.Inc()
	}
	pm.acceptanceGauge.Set(rec.Acceptance)
	for k := range rec.Mean {
		label := strconv.Itoa(k + 1)
		pm.meanGauge.WithLabelValues(label).Set(rec.Mean[k])
		pm.errorGauge.WithLabelValues(label).Set(rec.Error[k])
	}
	for k, r := range rec.Reweight {
		pm.reweightGauge.WithLabelValues(strconv.Itoa(k + 1)).Set(r)
	}
}

// NewHandler returns an http.Handler exposing the registry's metrics in
// the Prometheus exposition format.
func NewHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
