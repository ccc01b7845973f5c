package flow

import (
	"context"
	"time"
)

// WaitFunc suspends the caller for d or until ctx is done, whichever is first.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default WaitFunc. It blocks on a timer, never polls, and
// returns ctx.Err() if the context ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// WithWait overrides the window suspension. Tests use it to deliver pulses
// while the window is open.
func WithWait(wait WaitFunc) Option {
	return func(s *Sampler) { s.wait = wait }
}

// Sampler runs observation windows for one channel and keeps that channel's
// cumulative volume. Cumulative state lives only in memory and starts at zero
// for every new Sampler.
type Sampler struct {
	ch      Channel
	counter PulseCounter
	now     func() time.Time
	wait    WaitFunc

	// totalPulses is only touched by RunWindow, which the orchestrator never
	// runs concurrently for the same sampler.
	totalPulses uint64
	windows     int
}

// NewSampler creates a Sampler for ch. A non-positive PulsesPerUnit falls back
// to DefaultPulsesPerUnit.
func NewSampler(ch Channel, opts ...Option) *Sampler {
	if ch.PulsesPerUnit <= 0 {
		ch.PulsesPerUnit = DefaultPulsesPerUnit
	}
	s := &Sampler{
		ch:   ch,
		now:  time.Now,
		wait: Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Channel returns the sampler's channel.
func (s *Sampler) Channel() Channel {
	return s.ch
}

// Counter returns the pulse counter the edge source must feed.
func (s *Sampler) Counter() *PulseCounter {
	return &s.counter
}

// RunWindow counts pulses for d and returns the window's statistics.
//
// The counter is reset before start is taken and read after end is taken, so
// a pulse belongs to whichever window was open when it was delivered. If ctx
// ends first the window is discarded: no result, cumulative unchanged.
func (s *Sampler) RunWindow(ctx context.Context, d time.Duration) (Result, error) {
	s.counter.Reset()
	start := s.now()
	if err := s.wait(ctx, d); err != nil {
		return Result{}, err
	}
	end := s.now()
	pulses := s.counter.Value()

	s.totalPulses += pulses
	s.windows++

	elapsed := end.Sub(start)
	elapsedMs := Round(float64(elapsed)/float64(time.Millisecond), 2)
	volume := float64(pulses) / s.ch.PulsesPerUnit

	var rate float64
	if elapsedMs > 0 {
		rate = volume / elapsed.Seconds() * 60
	}

	return Result{
		Channel:     s.ch.Name,
		Start:       start,
		End:         end,
		ElapsedMs:   elapsedMs,
		Pulses:      pulses,
		Volume:      Round(volume, 3),
		Rate:        Round(rate, 3),
		TotalVolume: Round(s.CumulativeVolume(), 3),
	}, nil
}

// CumulativeVolume returns the full-precision volume since the sampler was
// created. It is derived from the integer pulse total, not from rounded
// per-window volumes.
func (s *Sampler) CumulativeVolume() float64 {
	return float64(s.totalPulses) / s.ch.PulsesPerUnit
}

// Windows returns the number of completed windows.
func (s *Sampler) Windows() int {
	return s.windows
}
