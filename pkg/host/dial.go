package host

import (
	"math/rand"
	"time"
)

// DialPolicy controls how often and how patiently the client redials a host
// that refused or timed out a connection. Only dials are retried: once a
// request reached the host it is never sent twice.
type DialPolicy struct {
	Retries int           // redials after the first attempt
	Initial time.Duration // wait before the first redial
	Ceiling time.Duration // upper bound for any single wait
	Growth  float64       // multiplier applied per redial
	Jitter  float64       // 0.0 to 1.0, fraction of the wait randomized
}

// DefaultDialPolicy suits a plugin on the same machine that may still be
// starting up: two redials, 50ms then 100ms, give or take 20%.
func DefaultDialPolicy() DialPolicy {
	return DialPolicy{
		Retries: 2,
		Initial: 50 * time.Millisecond,
		Ceiling: time.Second,
		Growth:  2.0,
		Jitter:  0.2,
	}
}

// Wait returns the pause before redial number retry (1-based).
func (p DialPolicy) Wait(retry int) time.Duration {
	wait := float64(p.Initial)
	for i := 1; i < retry; i++ {
		wait *= p.Growth
		if wait >= float64(p.Ceiling) {
			break
		}
	}
	if p.Ceiling > 0 && wait > float64(p.Ceiling) {
		wait = float64(p.Ceiling)
	}
	if p.Jitter > 0 {
		wait += wait * (rand.Float64()*2 - 1) * p.Jitter
	}
	if wait < 0 {
		return 0
	}
	return time.Duration(wait)
}
