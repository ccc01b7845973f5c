package cycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sweeney/pump-monitor/internal/flow"
)

// eventLog records ordered events from actuators, samplers and sinks.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// index returns the position of the first event equal to e, or -1.
func (l *eventLog) index(e string) int {
	for i, got := range l.all() {
		if got == e {
			return i
		}
	}
	return -1
}

// lastIndex returns the position of the last event equal to e, or -1.
func (l *eventLog) lastIndex(e string) int {
	all := l.all()
	for i := len(all) - 1; i >= 0; i-- {
		if all[i] == e {
			return i
		}
	}
	return -1
}

func (l *eventLog) count(e string) int {
	n := 0
	for _, got := range l.all() {
		if got == e {
			n++
		}
	}
	return n
}

type fakeActuator struct {
	name   string
	log    *eventLog
	onErr  error
	offErr error
	on     bool
}

func (a *fakeActuator) Name() string { return a.name }

func (a *fakeActuator) On() error {
	a.log.add("on:" + a.name)
	if a.onErr != nil {
		return a.onErr
	}
	a.on = true
	return nil
}

func (a *fakeActuator) Off() error {
	a.log.add("off:" + a.name)
	if a.offErr != nil {
		return a.offErr
	}
	a.on = false
	return nil
}

type fakeSink struct {
	log     *eventLog
	results []flow.Result
	failFor string
}

func (s *fakeSink) Append(ctx context.Context, r flow.Result) error {
	s.log.add("append:" + r.Channel)
	if r.Channel == s.failFor {
		return errors.New("disk full")
	}
	s.results = append(s.results, r)
	return nil
}

type recordingObserver struct {
	mu             sync.Mutex
	states         []State
	started        []int
	completed      []int
	windows        []flow.Result
	actuatorFaults []*ActuatorError
	sinkFaults     []flow.Result
}

func (r *recordingObserver) StateChanged(s State, at time.Time) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recordingObserver) CycleStarted(n int, at time.Time) {
	r.mu.Lock()
	r.started = append(r.started, n)
	r.mu.Unlock()
}

func (r *recordingObserver) WindowCompleted(res flow.Result) {
	r.mu.Lock()
	r.windows = append(r.windows, res)
	r.mu.Unlock()
}

func (r *recordingObserver) ActuatorFailed(err *ActuatorError) {
	r.mu.Lock()
	r.actuatorFaults = append(r.actuatorFaults, err)
	r.mu.Unlock()
}

func (r *recordingObserver) SinkFailed(res flow.Result, err error) {
	r.mu.Lock()
	r.sinkFaults = append(r.sinkFaults, res)
	r.mu.Unlock()
}

func (r *recordingObserver) CycleCompleted(n int, elapsed time.Duration) {
	r.mu.Lock()
	r.completed = append(r.completed, n)
	r.mu.Unlock()
}

// manualClock is advanced by the window hooks. Each sampler gets its own so
// concurrent windows do not advance each other's time.
type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newPulsedSampler builds a sampler whose window delivers pulses pulses and
// advances its private clock by the window duration.
func newPulsedSampler(name string, pulses int, log *eventLog) *flow.Sampler {
	clock := newManualClock()
	var s *flow.Sampler
	s = flow.NewSampler(flow.Channel{Name: name, PulsesPerUnit: 537},
		flow.WithClock(clock.Now),
		flow.WithWait(func(ctx context.Context, d time.Duration) error {
			log.add("window-start:" + name)
			for i := 0; i < pulses; i++ {
				s.Counter().RegisterPulse()
			}
			clock.Advance(d)
			log.add("window-end:" + name)
			return nil
		}),
	)
	return s
}

// noWait is a cooldown that returns immediately unless ctx is done.
func noWait(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}
