package cycle

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sweeney/pump-monitor/internal/flow"
)

// ActuatorSet is the ordered set of devices toggled together.
type ActuatorSet []Actuator

// AllOn switches every device on in order. A failing device does not stop
// the rest; all failures are returned joined as *ActuatorError values.
func (s ActuatorSet) AllOn(at time.Time) error {
	return s.apply("on", at, func(a Actuator) error { return a.On() })
}

// AllOff switches every device off in order, best-effort like AllOn.
func (s ActuatorSet) AllOff(at time.Time) error {
	return s.apply("off", at, func(a Actuator) error { return a.Off() })
}

func (s ActuatorSet) apply(op string, at time.Time, fn func(Actuator) error) error {
	var errs []error
	for _, a := range s {
		if err := fn(a); err != nil {
			errs = append(errs, &ActuatorError{Device: a.Name(), Op: op, At: at, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Names returns device names in order.
func (s ActuatorSet) Names() []string {
	names := make([]string, len(s))
	for i, a := range s {
		names[i] = a.Name()
	}
	return names
}

// CheckActuators exercises each device in turn: on for onFor, off for offFor,
// rounds times. The device is switched off on every exit path, including
// cancellation. Faults are logged and do not stop the check.
func CheckActuators(ctx context.Context, set ActuatorSet, onFor, offFor time.Duration, rounds int, wait flow.WaitFunc) error {
	if wait == nil {
		wait = flow.Sleep
	}
	for _, a := range set {
		log.Printf("check: testing %s", a.Name())
		if err := checkOne(ctx, a, onFor, offFor, rounds, wait); err != nil {
			// Only cancellation gets here; leave everything off.
			if offErr := set.AllOff(time.Now()); offErr != nil {
				log.Printf("check: %v", offErr)
			}
			return err
		}
	}
	return nil
}

func checkOne(ctx context.Context, a Actuator, onFor, offFor time.Duration, rounds int, wait flow.WaitFunc) error {
	defer func() {
		if err := a.Off(); err != nil {
			log.Printf("check: %s off: %v", a.Name(), err)
		}
	}()
	for i := 0; i < rounds; i++ {
		if err := a.On(); err != nil {
			log.Printf("check: %s on: %v", a.Name(), err)
		} else {
			log.Printf("check: %s ON", a.Name())
		}
		if err := wait(ctx, onFor); err != nil {
			return err
		}
		if err := a.Off(); err != nil {
			log.Printf("check: %s off: %v", a.Name(), err)
		} else {
			log.Printf("check: %s OFF", a.Name())
		}
		if err := wait(ctx, offFor); err != nil {
			return err
		}
	}
	return nil
}
