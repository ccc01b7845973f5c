package gpio

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestFakeBoardPulse(t *testing.T) {
	b := NewFakeBoard()

	var n atomic.Int64
	if err := b.WatchPulses(PinFlow1, 0, func() { n.Add(1) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !b.Pulse(PinFlow1, 537) {
		t.Fatal("expected pulse delivery on watched pin")
	}
	if got := n.Load(); got != 537 {
		t.Errorf("expected 537 pulses, got %d", got)
	}
}

func TestFakeBoardPulseUnwatchedPin(t *testing.T) {
	b := NewFakeBoard()
	if b.Pulse(PinFlow2, 1) {
		t.Error("expected false for unwatched pin")
	}
}

func TestFakeBoardWatchTwice(t *testing.T) {
	b := NewFakeBoard()
	if err := b.WatchPulses(PinFlow1, 0, func() {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.WatchPulses(PinFlow1, 0, func() {}); err == nil {
		t.Error("expected error watching the same pin twice")
	}
}

func TestFakeBoardWatchError(t *testing.T) {
	b := NewFakeBoard()
	b.WatchError = errors.New("simulated error")

	err := b.WatchPulses(PinFlow1, 0, func() {})
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeBoardChannelsIsolated(t *testing.T) {
	b := NewFakeBoard()
	var a, c atomic.Int64
	b.WatchPulses(PinFlow1, 0, func() { a.Add(1) })
	b.WatchPulses(PinFlow2, 0, func() { c.Add(1) })

	b.Pulse(PinFlow1, 10)

	if a.Load() != 10 {
		t.Errorf("flow1: expected 10, got %d", a.Load())
	}
	if c.Load() != 0 {
		t.Errorf("flow2: expected 0, got %d", c.Load())
	}
}

func TestFakeRelayOnOff(t *testing.T) {
	b := NewFakeBoard()
	sw, err := b.Relay("PUMP1", PinPump1, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sw.IsOn() {
		t.Error("relay should start off")
	}
	sw.On()
	if !sw.IsOn() {
		t.Error("relay should be on")
	}
	sw.Off()
	if sw.IsOn() {
		t.Error("relay should be off")
	}

	r := b.Relays()[0]
	calls := r.Calls()
	if len(calls) != 2 || calls[0] != "on" || calls[1] != "off" {
		t.Errorf("calls: got %v", calls)
	}
	if r.Name() != "PUMP1" || r.Pin != PinPump1 {
		t.Errorf("relay identity: got %s/%d", r.Name(), r.Pin)
	}
}

func TestFakeRelayOnError(t *testing.T) {
	r := &FakeRelay{RelayName: "SOL1", OnError: errors.New("stuck")}
	if err := r.On(); err == nil {
		t.Error("expected error")
	}
	if r.IsOn() {
		t.Error("failed On must not change state")
	}
}

func TestFakeBoardRelayError(t *testing.T) {
	b := NewFakeBoard()
	b.RelayErrors = map[int]error{PinSolenoid1: errors.New("busy")}
	if _, err := b.Relay("SOL1", PinSolenoid1, true); err == nil {
		t.Error("expected error for busy pin")
	}
}

func TestFakeBoardCloseSwitchesOff(t *testing.T) {
	b := NewFakeBoard()
	a, _ := b.Relay("PUMP1", PinPump1, true)
	c, _ := b.Relay("PUMP2", PinPump2, true)
	a.On()
	c.On()

	if err := b.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !b.Closed {
		t.Error("should be closed after Close()")
	}
	if a.IsOn() || c.IsOn() {
		t.Error("Close must switch every relay off")
	}
}
