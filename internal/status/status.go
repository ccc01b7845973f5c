// Package status provides a thread-safe status tracker for the pump-monitor
// daemon. It observes the cycle orchestrator and is read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/pump-monitor/internal/cycle"
	"github.com/sweeney/pump-monitor/internal/flow"
)

// Config contains daemon configuration for display.
type Config struct {
	WindowMs   int64
	CooldownMs int64
	Relays     []string
	Broker     string
	HTTPAddr   string
	DataDir    string
}

// ChannelStatus is the latest state of one flow channel.
type ChannelStatus struct {
	Name    string
	Windows int
	Last    flow.Result
}

// Faults counts non-fatal faults since startup.
type Faults struct {
	Actuator  int
	Sink      int
	LastError string
	LastAt    time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         cycle.State
	StateSince    time.Time
	Cycle         int
	LastCycleMs   int64
	Channels      []ChannelStatus
	Faults        Faults
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu     sync.RWMutex
	snap   Snapshot
	byName map[string]int
	mqttFn func() bool
}

// NewTracker creates a Tracker for the given channels.
func NewTracker(startTime time.Time, cfg Config, channels []string) *Tracker {
	t := &Tracker{
		snap: Snapshot{
			State:      cycle.StateIdle,
			StateSince: startTime,
			StartTime:  startTime,
			Config:     cfg,
			Channels:   make([]ChannelStatus, len(channels)),
		},
		byName: make(map[string]int, len(channels)),
	}
	for i, name := range channels {
		t.snap.Channels[i].Name = name
		t.byName[name] = i
	}
	return t
}

// SetMQTTStatus registers a connection check read on every snapshot.
func (t *Tracker) SetMQTTStatus(fn func() bool) {
	t.mu.Lock()
	t.mqttFn = fn
	t.mu.Unlock()
}

// StateChanged implements cycle.Observer.
func (t *Tracker) StateChanged(s cycle.State, at time.Time) {
	t.mu.Lock()
	t.snap.State = s
	t.snap.StateSince = at
	t.mu.Unlock()
}

// CycleStarted implements cycle.Observer.
func (t *Tracker) CycleStarted(n int, at time.Time) {
	t.mu.Lock()
	t.snap.Cycle = n
	t.mu.Unlock()
}

// WindowCompleted implements cycle.Observer.
func (t *Tracker) WindowCompleted(r flow.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.byName[r.Channel]
	if !ok {
		i = len(t.snap.Channels)
		t.byName[r.Channel] = i
		t.snap.Channels = append(t.snap.Channels, ChannelStatus{Name: r.Channel})
	}
	t.snap.Channels[i].Windows++
	t.snap.Channels[i].Last = r
}

// ActuatorFailed implements cycle.Observer.
func (t *Tracker) ActuatorFailed(err *cycle.ActuatorError) {
	t.mu.Lock()
	t.snap.Faults.Actuator++
	t.snap.Faults.LastError = err.Error()
	t.snap.Faults.LastAt = err.At
	t.mu.Unlock()
}

// SinkFailed implements cycle.Observer.
func (t *Tracker) SinkFailed(r flow.Result, err error) {
	t.mu.Lock()
	t.snap.Faults.Sink++
	t.snap.Faults.LastError = err.Error()
	t.snap.Faults.LastAt = r.End
	t.mu.Unlock()
}

// CycleCompleted implements cycle.Observer.
func (t *Tracker) CycleCompleted(n int, elapsed time.Duration) {
	t.mu.Lock()
	t.snap.LastCycleMs = elapsed.Milliseconds()
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]ChannelStatus(nil), t.snap.Channels...)
	mqttFn := t.mqttFn
	t.mu.RUnlock()

	if mqttFn != nil {
		s.MQTTConnected = mqttFn()
	}
	s.Now = time.Now()
	return s
}

var _ cycle.Observer = (*Tracker)(nil)
