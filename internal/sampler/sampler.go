// Package sampler implements the per-heap Poisson sampler described in
// spec §4.5: allocations at or above the sampling interval S are always
// reported at their true size; smaller allocations are reported
// probabilistically, scaled so that the expected reported bytes match the
// true allocated bytes.
//
// The exponential-interarrival schedule is the same one the Go runtime
// itself uses for runtime.MemProfile (see runtime/mprof.go's
// MemProfileRate/nextSample), reapplied here per heap instead of per
// process: next-sample-point = -ln(U) * meanInterval, U uniform in (0,1).
package sampler

import (
	"math"
	"math/rand/v2"
	"time"
)

// Sampler holds the running state of one heap's Poisson sampler. It is
// not safe for concurrent use on its own — callers must serialize access
// (spec §4.5: "sampler's state is mutated while holding the spinlock").
type Sampler struct {
	interval uint64
	next     float64
	rng      *rand.Rand
}

// New returns a Sampler for the given mean sampling interval in bytes. An
// interval of 0 disables sampling scale-up: every allocation is reported
// at its true size (interval treated as "always sample").
func New(interval uint64) *Sampler {
	return newWithRand(interval, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5bd1e995)))
}

// newWithRand lets tests pin the RNG for deterministic assertions.
func newWithRand(interval uint64, rng *rand.Rand) *Sampler {
	s := &Sampler{interval: interval, rng: rng}
	if interval > 0 {
		s.next = s.drawNext()
	}
	return s
}

// Sample reports the sampled size to attribute to one allocation of size
// bytes bytes. A return of 0 means "not sampled" (spec §4.5, §6).
func (s *Sampler) Sample(size uint64) uint64 {
	if s.interval == 0 || size >= s.interval {
		return size
	}
	if size == 0 {
		return 0
	}

	remaining := float64(size)
	crossings := uint64(0)
	for remaining >= s.next {
		remaining -= s.next
		crossings++
		s.next = s.drawNext()
	}
	s.next -= remaining

	if crossings == 0 {
		return 0
	}
	return s.interval * crossings
}

// drawNext draws the distance, in bytes, to the next sample point from an
// exponential distribution with mean s.interval.
func (s *Sampler) drawNext() float64 {
	// math/rand/v2's Float64 is in [0,1); guard against log(0).
	u := s.rng.Float64()
	if u <= 0 {
		u = 1e-12
	}
	return -math.Log(u) * float64(s.interval)
}
