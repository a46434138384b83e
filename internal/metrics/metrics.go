// Package metrics instruments the acquisition loop with Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "flight_sensors"
	subsystem = "acquisition"
)

// Collector holds the acquisition metrics of a single loop.
type Collector struct {
	gatherer prometheus.Gatherer

	outcomes     *prometheus.CounterVec
	suppressed   prometheus.Counter
	waitDuration prometheus.Histogram
	errors       prometheus.Gauge
}

// NewCollector creates the acquisition metrics and registers them on a fresh
// registry. Use Gatherer to expose or dump them.
func NewCollector() (*Collector, error) {
	reg := prometheus.NewRegistry()

	return NewCollectorWithRegisterer(reg)
}

// NewCollectorWithRegisterer creates the acquisition metrics and registers them on reg.
// When reg is also a Gatherer, such as a *prometheus.Registry, Gatherer and
// WriteTextfile read from it.
func NewCollectorWithRegisterer(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		gatherer: prometheus.DefaultGatherer,

		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "outcomes_total",
				Help:      "Number of wait outcomes by kind (timeout, error, data, spurious)",
			},
			[]string{"outcome"},
		),
		suppressed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "suppressed_error_logs_total",
				Help:      "Number of wait errors whose log message was suppressed by throttling",
			},
		),
		waitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "wait_duration_seconds",
				Help:      "Time spent blocked waiting for new samples",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.2, 0.5, 1, 2},
			},
		),
		errors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "errors",
				Help:      "Total number of wait errors seen by the loop",
			},
		),
	}

	// Registries gather what they register; anything else falls back to the default gatherer.
	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	}

	for _, col := range []prometheus.Collector{c.outcomes, c.suppressed, c.waitDuration, c.errors} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}

	return c, nil
}

// ObserveOutcome counts a single wait outcome and its duration.
func (c *Collector) ObserveOutcome(outcome string, waited time.Duration) {
	c.outcomes.WithLabelValues(outcome).Inc()
	c.waitDuration.Observe(waited.Seconds())
}

// ObserveSuppressed counts a suppressed error log.
func (c *Collector) ObserveSuppressed() {
	c.suppressed.Inc()
}

// SetErrors records the current value of the loop error counter.
func (c *Collector) SetErrors(n int) {
	c.errors.Set(float64(n))
}

// Gatherer returns the gatherer the metrics are registered with.
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.gatherer
}

// WriteTextfile writes the metrics in the text exposition format to path,
// for pick-up by the node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("writing metrics to '%s': %w", path, err)
	}
	return nil
}
