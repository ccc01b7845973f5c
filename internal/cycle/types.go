// Package cycle drives the pump duty cycle: actuators on, every channel
// sampled concurrently for the same window, actuators off, results persisted,
// cooldown, repeat.
package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/pump-monitor/internal/flow"
)

// State is a step of the duty cycle.
type State string

const (
	StateIdle         State = "IDLE"
	StateActuatingOn  State = "ACTUATING_ON"
	StateSampling     State = "SAMPLING"
	StateActuatingOff State = "ACTUATING_OFF"
	StatePersisting   State = "PERSISTING"
	StateCooldown     State = "COOLDOWN"
	StateStopped      State = "STOPPED"
)

// Actuator is one on/off device (relay driving a pump or solenoid).
// On and Off must be idempotent.
type Actuator interface {
	Name() string
	On() error
	Off() error
}

// Sink receives one result per channel per cycle. Append must return
// promptly once ctx is done.
type Sink interface {
	Append(ctx context.Context, r flow.Result) error
}

// Observer is notified of orchestrator progress. Implementations must not block.
type Observer interface {
	StateChanged(s State, at time.Time)
	CycleStarted(n int, at time.Time)
	WindowCompleted(r flow.Result)
	ActuatorFailed(err *ActuatorError)
	SinkFailed(r flow.Result, err error)
	CycleCompleted(n int, elapsed time.Duration)
}

// ActuatorError reports a device that failed to toggle. Its state after the
// failure is unknown; it is driven again on the next transition.
type ActuatorError struct {
	Device string
	Op     string // "on" or "off"
	At     time.Time
	Err    error
}

func (e *ActuatorError) Error() string {
	return fmt.Sprintf("actuator %s %s: %v", e.Device, e.Op, e.Err)
}

func (e *ActuatorError) Unwrap() error {
	return e.Err
}
