//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealBoard is not available on non-Linux platforms.
type RealBoard struct{}

// NewRealBoard returns an error on non-Linux platforms.
func NewRealBoard(chipName string) (*RealBoard, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// WatchPulses is not implemented on non-Linux platforms.
func (b *RealBoard) WatchPulses(pin int, debounce time.Duration, onPulse func()) error {
	return errors.New("gpio: not supported")
}

// Relay is not implemented on non-Linux platforms.
func (b *RealBoard) Relay(name string, pin int, activeLow bool) (Switch, error) {
	return nil, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *RealBoard) Close() error {
	return nil
}
