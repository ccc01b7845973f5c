package cycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/pump-monitor/internal/flow"
)

// Config wires an Orchestrator.
type Config struct {
	Window    time.Duration
	Cooldown  time.Duration
	Samplers  []*flow.Sampler
	Actuators ActuatorSet
	Sink      Sink
	Observers []Observer

	// Now and Wait default to time.Now and flow.Sleep.
	Now  func() time.Time
	Wait flow.WaitFunc
}

// Orchestrator runs the duty cycle. Samplers and actuators are owned by the
// single goroutine calling Run or RunCycle.
type Orchestrator struct {
	window    time.Duration
	cooldown  time.Duration
	samplers  []*flow.Sampler
	actuators ActuatorSet
	sink      Sink
	observers []Observer
	now       func() time.Time
	wait      flow.WaitFunc

	state      State
	cycles     int
	cycleStart time.Time
}

// New creates an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		window:    cfg.Window,
		cooldown:  cfg.Cooldown,
		samplers:  cfg.Samplers,
		actuators: cfg.Actuators,
		sink:      cfg.Sink,
		observers: cfg.Observers,
		now:       cfg.Now,
		wait:      cfg.Wait,
		state:     StateIdle,
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.wait == nil {
		o.wait = flow.Sleep
	}
	return o
}

// State returns the current state. Only meaningful from the Run goroutine;
// other readers should use an Observer.
func (o *Orchestrator) State() State {
	return o.state
}

// Cycles returns the number of cycles started.
func (o *Orchestrator) Cycles() int {
	return o.cycles
}

// Run loops until ctx is cancelled. Cancellation is the interrupt signal:
// the current cycle is abandoned, actuators are switched off, and Run
// returns nil. No cycle starts after cancellation is observed.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.setState(StateStopped)
	defer o.switchOff()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := o.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				log.Printf("cycle %d interrupted: %v", o.cycles, err)
				return nil
			}
			return err
		}

		o.setState(StateCooldown)
		if err := o.wait(ctx, o.cooldown); err != nil {
			return nil
		}
		o.setState(StateIdle)
	}
}

// RunCycle performs one ACTUATING_ON → SAMPLING → ACTUATING_OFF → PERSISTING
// sequence and returns the cycle's results in channel order. If ctx ends
// during sampling, actuators are still switched off and nothing is persisted.
func (o *Orchestrator) RunCycle(ctx context.Context) ([]flow.Result, error) {
	o.cycles++
	o.cycleStart = o.now()
	log.Printf("starting pump cycle %d", o.cycles)
	for _, obs := range o.observers {
		obs.CycleStarted(o.cycles, o.cycleStart)
	}

	results, err := o.actuateAndSample(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) != len(o.samplers) {
		return nil, fmt.Errorf("cycle %d: got %d results for %d channels", o.cycles, len(results), len(o.samplers))
	}

	o.setState(StatePersisting)
	o.persist(ctx, results)

	elapsed := o.now().Sub(o.cycleStart)
	for _, obs := range o.observers {
		obs.CycleCompleted(o.cycles, elapsed)
	}
	return results, nil
}

// actuateAndSample holds the actuators on exactly for the sampling phase.
// The deferred switch-off runs on return, error, cancellation and panic.
func (o *Orchestrator) actuateAndSample(ctx context.Context) ([]flow.Result, error) {
	defer o.switchOff()

	o.setState(StateActuatingOn)
	o.reportActuators(o.actuators.AllOn(o.cycleStart))

	o.setState(StateSampling)
	return o.sample(ctx)
}

// sample runs one window per channel concurrently and waits for all of them.
// Goroutines are released together once all are started to keep launch skew
// small.
func (o *Orchestrator) sample(ctx context.Context) ([]flow.Result, error) {
	results := make([]flow.Result, len(o.samplers))
	g, gctx := errgroup.WithContext(ctx)
	release := make(chan struct{})

	for i, s := range o.samplers {
		g.Go(func() error {
			<-release
			r, err := s.RunWindow(gctx, o.window)
			if err != nil {
				return fmt.Errorf("window %s: %w", s.Channel().Name, err)
			}
			results[i] = r
			return nil
		})
	}
	close(release)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) switchOff() {
	o.setState(StateActuatingOff)
	o.reportActuators(o.actuators.AllOff(o.now()))
}

// persist hands each result to the sink. A sink fault or an interrupt drops
// that result for that sink only; the result line is logged regardless.
func (o *Orchestrator) persist(ctx context.Context, results []flow.Result) {
	for _, r := range results {
		for _, obs := range o.observers {
			obs.WindowCompleted(r)
		}
		if o.sink != nil {
			if err := o.sink.Append(ctx, r); err != nil {
				log.Printf("sink: cycle %d (%s) %s: %v", o.cycles, o.cycleStart.Format(time.RFC3339), r.Channel, err)
				for _, obs := range o.observers {
					obs.SinkFailed(r, err)
				}
			}
		}
		log.Printf("result: pump=%s start=%s end=%s elapsed_ms=%.2f flow_rate=%.3f volume=%.3f total_volume=%.3f pulses=%d",
			r.Channel, r.Start.Format(time.RFC3339Nano), r.End.Format(time.RFC3339Nano),
			r.ElapsedMs, r.Rate, r.Volume, r.TotalVolume, r.Pulses)
	}
}

func (o *Orchestrator) reportActuators(err error) {
	if err == nil {
		return
	}
	var joined interface{ Unwrap() []error }
	errs := []error{err}
	if errors.As(err, &joined) {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		var ae *ActuatorError
		if !errors.As(e, &ae) {
			log.Printf("actuator: cycle %d: %v", o.cycles, e)
			continue
		}
		log.Printf("actuator: cycle %d (%s): %v", o.cycles, o.cycleStart.Format(time.RFC3339), ae)
		for _, obs := range o.observers {
			obs.ActuatorFailed(ae)
		}
	}
}

func (o *Orchestrator) setState(s State) {
	o.state = s
	at := o.now()
	for _, obs := range o.observers {
		obs.StateChanged(s, at)
	}
}
