// Package backoff computes retry delays for failed jobs.
package backoff

import "time"

const (
	DefaultBase = 30 * time.Second
	DefaultMax  = 30 * time.Minute
)

// Policy doubles Base for every attempt after the first and caps the
// result at Max.
type Policy struct {
	Base time.Duration
	Max  time.Duration
}

func Default() Policy {
	return Policy{Base: DefaultBase, Max: DefaultMax}
}

// Delay returns min(Base * 2^(attempts-1), Max). attempts <= 1 yields Base.
func (p Policy) Delay(attempts int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	ceiling := p.Max
	if ceiling < p.Base {
		ceiling = p.Base
	}

	d := p.Base
	for i := 1; i < attempts; i++ {
		// doubling past ceiling/2 would overshoot or overflow
		if d > ceiling/2 {
			return ceiling
		}
		d *= 2
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

// NextRunAt is the time a job that has now failed attempts times should run again.
func (p Policy) NextRunAt(now time.Time, attempts int) time.Time {
	return now.Add(p.Delay(attempts))
}
