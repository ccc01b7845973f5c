// Package gpio provides the pump rig's hardware: edge-counting flow sensor
// inputs and relay outputs.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// DefaultChip is the Raspberry Pi header GPIO controller.
const DefaultChip = "gpiochip0"

// Default pin assignments (BCM numbering).
const (
	PinFlow1 = 24
	PinFlow2 = 25

	PinPump1     = 13
	PinSolenoid1 = 26
	PinPump2     = 17
	PinSolenoid2 = 19
)

// Board owns the GPIO lines of the rig.
type Board interface {
	// WatchPulses delivers onPulse once per falling edge on pin. onPulse is
	// called from the line's event goroutine, concurrently with the caller.
	WatchPulses(pin int, debounce time.Duration, onPulse func()) error

	// Relay claims pin as an output, initially off.
	Relay(name string, pin int, activeLow bool) (Switch, error)

	// Close switches all relays off and releases every line.
	Close() error
}

// Switch is a single on/off output.
type Switch interface {
	Name() string
	On() error
	Off() error
	IsOn() bool
}
