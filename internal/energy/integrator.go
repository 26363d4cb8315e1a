package energy

import "time"

// Integrator converts an instantaneous power sample into an incremental
// energy figure assuming a fixed inter-sample interval. This is a rectangle
// approximation, not a true integral over the actual arrival times; readings
// that arrive late or bunched are credited the same fixed slice. Known
// limitation, kept for compatibility with the stored history.
type Integrator struct {
	interval time.Duration
}

// NewIntegrator returns an Integrator for the given sampling interval.
// Non-positive intervals fall back to the 5s default.
func NewIntegrator(interval time.Duration) *Integrator {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Integrator{interval: interval}
}

// Delta returns the kWh accumulated by powerWatts over one sample interval.
func (i *Integrator) Delta(powerWatts float64) float64 {
	return powerWatts / 1000 * (i.interval.Seconds() / 3600)
}

// Interval reports the assumed inter-sample interval.
func (i *Integrator) Interval() time.Duration {
	return i.interval
}
