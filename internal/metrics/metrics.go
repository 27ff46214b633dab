// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for directory refreshes.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "audiomap"

// Recorder holds the refresh collectors of one detector.
type Recorder struct {
	refreshes *prometheus.CounterVec
	duration  prometheus.Histogram
	devices   *prometheus.GaugeVec
	skipped   prometheus.Counter
	gen       prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses a private registry.
// Recorders created on the same registerer share its collectors, so several
// detectors in one process report into the same series.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Recorder{
		refreshes: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "refreshes_total",
			Help:      "Discovery passes by result",
		}, []string{"backend", "result"})),
		duration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of successful discovery passes",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		})),
		devices: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "devices",
			Help:      "Devices in the current snapshot by capability",
		}, []string{"direction"})),
		skipped: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "skipped_descriptors_total",
			Help:      "Raw descriptors dropped during normalization",
		})),
		gen: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "generation",
			Help:      "Generation of the snapshot being served",
		})),
	}
}

// register adds c to reg, or returns the collector already registered under
// the same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}

// ObserveRefresh records a published snapshot.
func (r *Recorder) ObserveRefresh(backend string, generation uint64, input, output, total, skipped int, took time.Duration) {
	r.refreshes.WithLabelValues(backend, "ok").Inc()
	r.duration.Observe(took.Seconds())
	r.devices.WithLabelValues("input").Set(float64(input))
	r.devices.WithLabelValues("output").Set(float64(output))
	r.devices.WithLabelValues("total").Set(float64(total))
	r.skipped.Add(float64(skipped))
	r.gen.Set(float64(generation))
}

// ObserveFailure records a refresh that kept the previous snapshot.
func (r *Recorder) ObserveFailure(backend string) {
	r.refreshes.WithLabelValues(backend, "error").Inc()
}
