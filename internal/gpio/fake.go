package gpio

import (
	"fmt"
	"sync"
	"time"
)

// FakeBoard is a test double. Pulses are injected with Pulse; relays are
// FakeRelay values recording every call.
type FakeBoard struct {
	mu       sync.Mutex
	handlers map[int]func()
	relays   []*FakeRelay

	// WatchError, if set, is returned by WatchPulses.
	WatchError error

	// RelayErrors maps a pin to the error Relay returns for it.
	RelayErrors map[int]error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeBoard creates an empty FakeBoard.
func NewFakeBoard() *FakeBoard {
	return &FakeBoard{handlers: make(map[int]func())}
}

// WatchPulses registers onPulse for pin.
func (f *FakeBoard) WatchPulses(pin int, debounce time.Duration, onPulse func()) error {
	if f.WatchError != nil {
		return f.WatchError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[pin]; ok {
		return fmt.Errorf("pin %d already watched", pin)
	}
	f.handlers[pin] = onPulse
	return nil
}

// Pulse delivers n edges on pin from the calling goroutine.
// Returns false if nothing watches pin.
func (f *FakeBoard) Pulse(pin, n int) bool {
	f.mu.Lock()
	h, ok := f.handlers[pin]
	f.mu.Unlock()
	if !ok {
		return false
	}
	for i := 0; i < n; i++ {
		h()
	}
	return true
}

// Relay returns a new FakeRelay for pin.
func (f *FakeBoard) Relay(name string, pin int, activeLow bool) (Switch, error) {
	if err := f.RelayErrors[pin]; err != nil {
		return nil, err
	}
	r := &FakeRelay{RelayName: name, Pin: pin}
	f.mu.Lock()
	f.relays = append(f.relays, r)
	f.mu.Unlock()
	return r, nil
}

// Relays returns the relays created so far, in creation order.
func (f *FakeBoard) Relays() []*FakeRelay {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeRelay(nil), f.relays...)
}

// Close switches every relay off and marks the board closed.
func (f *FakeBoard) Close() error {
	for _, r := range f.Relays() {
		r.Off()
	}
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeRelay records calls for test assertions.
type FakeRelay struct {
	RelayName string
	Pin       int

	mu    sync.Mutex
	on    bool
	calls []string

	// OnError and OffError, if set, are returned by On and Off and leave the
	// state unchanged.
	OnError  error
	OffError error
}

// Name returns the relay name.
func (r *FakeRelay) Name() string { return r.RelayName }

// On records the call and switches on.
func (r *FakeRelay) On() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "on")
	if r.OnError != nil {
		return r.OnError
	}
	r.on = true
	return nil
}

// Off records the call and switches off.
func (r *FakeRelay) Off() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "off")
	if r.OffError != nil {
		return r.OffError
	}
	r.on = false
	return nil
}

// IsOn reports the current state.
func (r *FakeRelay) IsOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.on
}

// Calls returns the recorded "on"/"off" calls.
func (r *FakeRelay) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
