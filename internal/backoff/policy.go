// Package backoff computes exponential retry delays.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy defines the parameters for exponential backoff.
//
// The delay for attempt n (1-indexed) is min(Max, Initial*Factor^(n-1)) plus
// up to Jitter*base of random spread, still clamped to Max.
type Policy struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64
}

// Reconnect is the realtime reconnect schedule: 1s doubling to a 30s cap,
// without jitter, so attempts wait 1s, 2s, 4s, 8s, 16s.
func Reconnect() Policy {
	return Policy{
		Initial: time.Second,
		Max:     30 * time.Second,
		Factor:  2,
	}
}

// Delay returns the wait before the given attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Jitter == 0 {
		return p.DelayWithRand(attempt, 0)
	}
	return p.DelayWithRand(attempt, rand.Float64()) // #nosec G404 -- jitter does not require cryptographic randomness
}

// DelayWithRand is Delay with a caller supplied random value in [0, 1).
func (p Policy) DelayWithRand(attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	factor := p.Factor
	if factor <= 0 {
		factor = 1
	}

	base := float64(p.Initial.Milliseconds()) * math.Pow(factor, exp)
	total := base + base*p.Jitter*randomValue
	if p.Max > 0 {
		total = math.Min(float64(p.Max.Milliseconds()), total)
	}
	return time.Duration(math.Round(total)) * time.Millisecond
}
