// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package simtime provides the simulator's two time types (spec section
// 3.1): a saturating duration type and the absolute point derived from it.
// Wall-clock time never enters the simulation; everything here is plain
// unsigned nanosecond arithmetic.
package simtime

import (
	"fmt"
	"math"
	"time"
)

// Duration is a simulated duration in nanoseconds, using saturating
// arithmetic so that overflow never wraps around to a small or negative
// value -- it clamps at math.MaxUint64 instead.
type Duration uint64

// Max represents an effectively infinite duration.
const Max Duration = math.MaxUint64

// Zero is the zero duration.
const Zero Duration = 0

// Second is one second, for expressing timer constants without reaching
// for the standard library's time.Duration.
const Second Duration = 1_000_000_000

// FromDuration converts a standard library time.Duration (never negative in
// this simulator) to a Duration.
func FromDuration(d time.Duration) Duration {
	if d < 0 {
		return Zero
	}
	return Duration(d)
}

// Std converts back to a standard library time.Duration, saturating at
// time.Duration's own max if this Duration is larger.
func (d Duration) Std() time.Duration {
	if d > Duration(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Add returns d+other, saturating at Max instead of overflowing.
func (d Duration) Add(other Duration) Duration {
	sum := d + other
	if sum < d {
		return Max
	}
	return sum
}

// Sub returns d-other, saturating at Zero instead of underflowing.
func (d Duration) Sub(other Duration) Duration {
	if other > d {
		return Zero
	}
	return d - other
}

func (d Duration) String() string {
	if d == Max {
		return "inf"
	}
	return d.Std().String()
}

// EmulatedTime is an absolute simulated instant: SimulationStart +
// SimulationTime (spec section 3.1). It totally orders; MaxTime represents
// "never".
type EmulatedTime uint64

// MaxTime represents a point that never arrives -- used as the "never"
// sentinel by the event queue's NextTime and the scheduler's round loop.
const MaxTime EmulatedTime = math.MaxUint64

// SimulationStart is the EmulatedTime corresponding to SimulationTime zero.
// Shadow anchors this a fixed distance after the Unix epoch so that
// application code that reads the wall clock sees a plausible-looking
// value; the simulator core itself never depends on the anchor's value.
const SimulationStart EmulatedTime = 946684800000000000 // 2000-01-01T00:00:00Z, in ns

// FromSimTime converts a SimulationTime (time since SimulationStart) to an
// absolute EmulatedTime.
func FromSimTime(d Duration) EmulatedTime {
	if d == Max {
		return MaxTime
	}
	return SimulationStart + EmulatedTime(d)
}

// SimTime returns the SimulationTime elapsed since SimulationStart.
func (t EmulatedTime) SimTime() Duration {
	if t < SimulationStart {
		return Zero
	}
	return Duration(t - SimulationStart)
}

// Add returns t+d, saturating at MaxTime.
func (t EmulatedTime) Add(d Duration) EmulatedTime {
	if t == MaxTime || d == Max {
		return MaxTime
	}
	sum := t + EmulatedTime(d)
	if sum < t {
		return MaxTime
	}
	return sum
}

// Sub returns the Duration between two EmulatedTimes, saturating at Zero if
// other is later than t.
func (t EmulatedTime) Sub(other EmulatedTime) Duration {
	if other >= t {
		return Zero
	}
	return Duration(t - other)
}

// Before reports whether t is strictly earlier than other.
func (t EmulatedTime) Before(other EmulatedTime) bool { return t < other }

func (t EmulatedTime) String() string {
	if t == MaxTime {
		return "never"
	}
	return fmt.Sprintf("%s", t.SimTime())
}
