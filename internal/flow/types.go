// Package flow counts flow-sensor pulses over bounded observation windows and
// derives volume and rate statistics from them.
// This package has NO hardware or I/O dependencies. Pulses arrive through
// PulseCounter.RegisterPulse; time is injectable via Option values.
package flow

import (
	"math"
	"time"
)

// DefaultPulsesPerUnit is the calibration of the YF-S201 style meters on the
// pump rig (pulses per liter).
const DefaultPulsesPerUnit = 537

// Channel identifies one flow sensor. Immutable after construction.
type Channel struct {
	Name          string
	Pin           int
	PulsesPerUnit float64
}

// Result is the immutable record of one window on one channel.
// Volume, rate and elapsed fields are rounded for presentation; the sampler
// keeps full precision internally.
type Result struct {
	Channel     string
	Start       time.Time
	End         time.Time
	ElapsedMs   float64 // 2 decimal places
	Pulses      uint64
	Volume      float64 // units, 3 decimal places
	Rate        float64 // units per minute, 3 decimal places
	TotalVolume float64 // units since process start, 3 decimal places
}

// Elapsed returns the measured window length.
func (r Result) Elapsed() time.Duration {
	return r.End.Sub(r.Start)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
