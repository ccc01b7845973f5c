//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealBoard drives actual hardware using the Linux GPIO character device.
type RealBoard struct {
	chip *gpiocdev.Chip

	mu     sync.Mutex
	inputs []*gpiocdev.Line
	relays []*RealRelay
}

// NewRealBoard opens the named GPIO chip.
func NewRealBoard(chipName string) (*RealBoard, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealBoard{chip: chip}, nil
}

// WatchPulses requests pin as an input with pull-up and edge detection.
// The sensor pulls the line low on each pulse, so falling edges are counted.
func (b *RealBoard) WatchPulses(pin int, debounce time.Duration, onPulse func()) error {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { onPulse() }),
	}
	if debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(debounce))
	}

	line, err := b.chip.RequestLine(pin, opts...)
	if err != nil {
		return fmt.Errorf("request flow pin %d: %w", pin, err)
	}

	b.mu.Lock()
	b.inputs = append(b.inputs, line)
	b.mu.Unlock()
	return nil
}

// Relay requests pin as an output driven to the inactive (off) level.
// Relay boards on the rig are active-low.
func (b *RealBoard) Relay(name string, pin int, activeLow bool) (Switch, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := b.chip.RequestLine(pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request relay %s pin %d: %w", name, pin, err)
	}

	r := &RealRelay{name: name, pin: pin, line: line}
	b.mu.Lock()
	b.relays = append(b.relays, r)
	b.mu.Unlock()
	return r, nil
}

// Close switches relays off, then reconfigures every line to input with
// pull-down (matching Pi boot defaults) before closing it, so a relay is
// never left energised across a restart.
func (b *RealBoard) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, r := range b.relays {
		if err := r.Off(); err != nil {
			errs = append(errs, err)
		}
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure relay %s: %w", r.name, err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay %s: %w", r.name, err))
		}
	}
	for _, l := range b.inputs {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close flow pin %d: %w", l.Offset(), err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	b.relays = nil
	b.inputs = nil

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealRelay is one relay output line.
type RealRelay struct {
	name string
	pin  int
	line *gpiocdev.Line

	mu sync.Mutex
	on bool
}

// Name returns the relay's configured name.
func (r *RealRelay) Name() string { return r.name }

// On energises the relay.
func (r *RealRelay) On() error {
	return r.set(true)
}

// Off de-energises the relay.
func (r *RealRelay) Off() error {
	return r.set(false)
}

// IsOn reports the last successfully written state.
func (r *RealRelay) IsOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.on
}

func (r *RealRelay) set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.line.SetValue(v); err != nil {
		return fmt.Errorf("set relay %s pin %d: %w", r.name, r.pin, err)
	}
	r.on = on
	return nil
}
