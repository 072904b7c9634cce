// Package metrics exposes Prometheus instrumentation for the conversion
// scheduler. Collection is observational only; the request path never
// depends on it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	conversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "converter_conversions_total",
			Help: "Conversion requests by terminal outcome",
		},
		[]string{"outcome"},
	)

	conversionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "converter_conversion_duration_seconds",
			Help:    "End-to-end conversion latency by terminal outcome",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "converter_queue_depth",
			Help: "Admitted requests waiting for an execution slot",
		},
	)

	activeConversions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "converter_active_conversions",
			Help: "Conversions currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(conversionsTotal)
	prometheus.MustRegister(conversionDuration)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(activeConversions)
}

// ObserveConversion records one terminal outcome and its latency.
func ObserveConversion(outcome string, elapsed time.Duration) {
	conversionsTotal.WithLabelValues(outcome).Inc()
	conversionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Occupancy exposes the scheduler counters the gauges track.
type Occupancy interface {
	Active() int
	QueueDepth() int
}

// StartUpdater samples scheduler occupancy into the gauges until stop is
// closed.
func StartUpdater(o Occupancy, interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				activeConversions.Set(float64(o.Active()))
				queueDepth.Set(float64(o.QueueDepth()))
			}
		}
	}()
}
