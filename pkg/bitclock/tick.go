// Package bitclock models a free-running 16-bit hardware timer with
// independent compare/capture channels.
//
// It is the timebase of the software UART: every bit edge produced or
// sampled by the engines is a compare or capture event of one channel.
// The timer is simulated and stepped explicitly, one tick per Step.
// Handlers attached to channels play the role of interrupt service
// routines: they run one at a time, to completion, while the timer lock is
// held.
package bitclock

import "strconv"

// Tick is a value of the free-running counter. It wraps at 65536.
type Tick uint16

// MaxDelta is the largest distance between two ticks that Sub can
// represent. Handlers must never be blocked longer than this between two
// events of the same channel.
const MaxDelta = 1<<15 - 1

// Add returns the tick d ticks after t.
func (t Tick) Add(d uint16) Tick {
	return t + Tick(d)
}

// Sub returns the signed distance from u to t using modular arithmetic.
func (t Tick) Sub(u Tick) int16 {
	return int16(t - u)
}

// Since returns the unsigned number of ticks elapsed from u to t.
func (t Tick) Since(u Tick) uint16 {
	return uint16(t - u)
}

// Level is the logic level of a pin.
type Level uint8

// Logic levels.
const (
	Low  Level = 0
	High Level = 1
)

// LevelOf converts the least significant bit of v to a Level.
func LevelOf(v uint) Level {
	return Level(v & 1)
}

// String implements fmt.Stringer.
func (l Level) String() string {
	return strconv.Itoa(int(l))
}
