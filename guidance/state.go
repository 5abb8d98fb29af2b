// Package guidance implements the two path-tracking control loops and the
// carried state that survives between cycles.
//
// Both loops read the same Input and produce the same Result, so the
// operator can switch live. The carried State is bound to a (track,
// algorithm, direction) tuple and resets whenever that tuple changes; a
// stale integral from the previous tuple would otherwise kick the wheel on
// the first cycle after a switch.
package guidance

import (
	"github.com/google/uuid"
)

// Algorithm selects which control loop runs this cycle.
type Algorithm uint8

const (
	PurePursuit Algorithm = iota
	Stanley
)

func (a Algorithm) String() string {
	switch a {
	case PurePursuit:
		return "pursuit"
	case Stanley:
		return "stanley"
	}
	return "unknown"
}

// ParseAlgorithm maps the names String produces back to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, bool) {
	switch s {
	case "pursuit":
		return PurePursuit, true
	case "stanley":
		return Stanley, true
	}
	return 0, false
}

// Key identifies the tuple whose carried state stays valid from one cycle
// to the next. Any change of track, algorithm or drive direction makes the
// previous history meaningless.
type Key struct {
	Track     uuid.UUID
	Algorithm Algorithm
	Reverse   bool
}

// State is the memory a control loop keeps between cycles: the running
// integral and the last two cross-track samples. Cycles counts successful
// runs since the last reset, so zero means fresh.
type State struct {
	Integral float64
	PrevErr  float64
	PrevErr2 float64
	Cycles   uint64

	key Key
}

// Fresh reports whether the next cycle under k starts with no usable
// history.
func (s *State) Fresh(k Key) bool {
	return s.Cycles == 0 || s.key != k
}

// Reset clears all history and binds the state to k.
func (s *State) Reset(k Key) {
	s.Integral = 0
	s.PrevErr = 0
	s.PrevErr2 = 0
	s.Cycles = 0
	s.key = k
}

// observe pushes this cycle's cross-track error into the history.
func (s *State) observe(xte float64) {
	s.PrevErr2 = s.PrevErr
	s.PrevErr = xte
	s.Cycles++
}

// accumulate folds gain-scaled error into the integral and returns it.
// The limit clamp stops windup while the vehicle is far off the line.
func (s *State) accumulate(err, gain, limit float64) float64 {
	if gain <= 0 {
		return s.Integral
	}
	s.Integral += err * gain
	if limit > 0 {
		if s.Integral > limit {
			s.Integral = limit
		} else if s.Integral < -limit {
			s.Integral = -limit
		}
	}
	return s.Integral
}
