// Package metrics exposes orchestrator progress as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/pump-monitor/internal/cycle"
	"github.com/sweeney/pump-monitor/internal/flow"
)

// Collector implements cycle.Observer by updating Prometheus collectors.
type Collector struct {
	cycles         prometheus.Counter
	cycleDuration  prometheus.Histogram
	pulses         *prometheus.CounterVec
	volume         *prometheus.GaugeVec
	rate           *prometheus.GaugeVec
	totalVolume    *prometheus.GaugeVec
	actuatorFaults *prometheus.CounterVec
	sinkFaults     *prometheus.CounterVec
	state          *prometheus.GaugeVec
}

var states = []cycle.State{
	cycle.StateIdle,
	cycle.StateActuatingOn,
	cycle.StateSampling,
	cycle.StateActuatingOff,
	cycle.StatePersisting,
	cycle.StateCooldown,
	cycle.StateStopped,
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pump_cycles_total",
			Help: "Duty cycles completed.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pump_cycle_duration_seconds",
			Help:    "Time from actuators on to results persisted.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		pulses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flow_pulses_total",
			Help: "Flow sensor pulses counted inside observation windows.",
		}, []string{"pump"}),
		volume: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flow_window_volume_liters",
			Help: "Volume measured in the last window.",
		}, []string{"pump"}),
		rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flow_rate_liters_per_minute",
			Help: "Flow rate measured in the last window.",
		}, []string{"pump"}),
		totalVolume: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flow_total_volume_liters",
			Help: "Volume since process start.",
		}, []string{"pump"}),
		actuatorFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pump_actuator_faults_total",
			Help: "Relay toggles that failed.",
		}, []string{"device", "op"}),
		sinkFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pump_sink_faults_total",
			Help: "Results that could not be persisted.",
		}, []string{"pump"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pump_cycle_state",
			Help: "1 for the orchestrator's current state, 0 otherwise.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		c.cycles,
		c.cycleDuration,
		c.pulses,
		c.volume,
		c.rate,
		c.totalVolume,
		c.actuatorFaults,
		c.sinkFaults,
		c.state,
	)
	for _, s := range states {
		c.state.WithLabelValues(string(s)).Set(0)
	}
	return c
}

// StateChanged implements cycle.Observer.
func (c *Collector) StateChanged(s cycle.State, at time.Time) {
	for _, known := range states {
		v := 0.0
		if known == s {
			v = 1
		}
		c.state.WithLabelValues(string(known)).Set(v)
	}
}

// CycleStarted implements cycle.Observer.
func (c *Collector) CycleStarted(n int, at time.Time) {}

// WindowCompleted implements cycle.Observer.
func (c *Collector) WindowCompleted(r flow.Result) {
	c.pulses.WithLabelValues(r.Channel).Add(float64(r.Pulses))
	c.volume.WithLabelValues(r.Channel).Set(r.Volume)
	c.rate.WithLabelValues(r.Channel).Set(r.Rate)
	c.totalVolume.WithLabelValues(r.Channel).Set(r.TotalVolume)
}

// ActuatorFailed implements cycle.Observer.
func (c *Collector) ActuatorFailed(err *cycle.ActuatorError) {
	c.actuatorFaults.WithLabelValues(err.Device, err.Op).Inc()
}

// SinkFailed implements cycle.Observer.
func (c *Collector) SinkFailed(r flow.Result, err error) {
	c.sinkFaults.WithLabelValues(r.Channel).Inc()
}

// CycleCompleted implements cycle.Observer.
func (c *Collector) CycleCompleted(n int, elapsed time.Duration) {
	c.cycles.Inc()
	c.cycleDuration.Observe(elapsed.Seconds())
}

var _ cycle.Observer = (*Collector)(nil)
