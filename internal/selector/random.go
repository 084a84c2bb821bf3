package selector

import (
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// RandomSource yields pseudo-random indexes. Implementations must return a
// value in [0, n) for n > 0.
type RandomSource interface {
	IntN(n int) int
}

// ClockSource reseeds from the wall clock on every draw, so picks vary across
// restarts and across repeated calls within one run. It is not suitable for
// anything security related.
type ClockSource struct {
	now     func() time.Time
	counter atomic.Uint64
}

// NewClockSource returns a RandomSource seeded from time.Now.
func NewClockSource() *ClockSource {
	return &ClockSource{now: time.Now}
}

// IntN implements RandomSource.
func (s *ClockSource) IntN(n int) int {
	seed := uint64(s.now().UnixNano())
	r := rand.New(rand.NewPCG(seed, s.counter.Add(1)))
	return r.IntN(n)
}

// SequenceSource replays fixed values, taking the magnitude of each modulo
// n and wrapping when exhausted. Tests use it to make selection
// deterministic.
type SequenceSource struct {
	values []int
	pos    int
}

// NewSequenceSource returns a source that yields values in order.
func NewSequenceSource(values ...int) *SequenceSource {
	return &SequenceSource{values: values}
}

// IntN implements RandomSource.
func (s *SequenceSource) IntN(n int) int {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.pos%len(s.values)]
	s.pos++
	// Unsigned negation keeps math.MinInt in range.
	u := uint(v)
	if v < 0 {
		u = -u
	}
	return int(u % uint(n))
}
