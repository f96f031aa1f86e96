package simulate

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/hivewatch/hivewatch/pkg/types"
)

// Step ranges for one tick.
const (
	CountStepMin    = -5
	CountStepMax    = 10
	TemperatureStep = 2.25
	SpectrumMinLen  = 3
	SpectrumMaxLen  = 5
	SpectrumCeiling = 2.25
	spectrumBuckets = 225 // hundredths below SpectrumCeiling
)

// Values assumed when a stored field is missing.
const (
	DefaultInOut       = 0
	DefaultTemperature = 20.0
)

// Rand is the random source the simulator draws from.
type Rand interface {
	// Intn returns a uniform int in [0, n).
	Intn(n int) int
	// Float64 returns a uniform float in [0, 1).
	Float64() float64
}

// Simulator produces next-state hive values. It is safe for concurrent use.
type Simulator struct {
	mu  sync.Mutex
	rng Rand
}

// New returns a Simulator drawing from rng.
func New(rng Rand) *Simulator {
	return &Simulator{rng: rng}
}

// NewSeeded returns a Simulator backed by math/rand with the given seed.
// A zero seed is replaced with the current time.
func NewSeeded(seed int64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return New(rand.New(rand.NewSource(seed))) //nolint:gosec // simulation, not crypto
}

// Next draws the next state from prior. Alert fields are left empty.
func (s *Simulator) Next(prior types.Prior) types.HiveRecord {
	in, out, temp := DefaultInOut, DefaultInOut, DefaultTemperature
	if prior.In != nil {
		in = *prior.In
	}
	if prior.Out != nil {
		out = *prior.Out
	}
	if prior.Temperature != nil {
		temp = *prior.Temperature
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := types.HiveRecord{
		In:  max(0, in+s.intBetween(CountStepMin, CountStepMax)),
		Out: max(0, out+s.intBetween(CountStepMin, CountStepMax)),
	}
	next.Total = next.In + next.Out
	next.Temperature = clamp(
		temp+s.floatBetween(-TemperatureStep, TemperatureStep),
		types.MinTemperature, types.MaxTemperature,
	)

	n := s.intBetween(SpectrumMinLen, SpectrumMaxLen)
	next.Spectrum = make([]float64, n)
	for i := range next.Spectrum {
		// Truncate to hundredths so the value never rounds up to the ceiling.
		next.Spectrum[i] = math.Floor(s.rng.Float64()*spectrumBuckets) / 100
	}
	return next
}

// intBetween returns a uniform int in [lo, hi].
func (s *Simulator) intBetween(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo+1)
}

// floatBetween returns a uniform float in [lo, hi).
func (s *Simulator) floatBetween(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// clamp restricts v to the range [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
