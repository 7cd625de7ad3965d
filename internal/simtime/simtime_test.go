// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package simtime

import (
	"math"
	"testing"
)

func TestDurationSaturates(t *testing.T) {
	d := Duration(math.MaxUint64 - 1)
	if got := d.Add(10); got != Max {
		t.Errorf("expected saturating add to Max, got %v", got)
	}
	if got := Zero.Sub(10); got != Zero {
		t.Errorf("expected saturating sub to Zero, got %v", got)
	}
}

func TestEmulatedTimeOrdering(t *testing.T) {
	a := FromSimTime(Duration(100))
	b := FromSimTime(Duration(200))
	if !a.Before(b) {
		t.Errorf("expected a before b")
	}
	if b.Before(a) {
		t.Errorf("expected b not before a")
	}
	if b.Sub(a) != Duration(100) {
		t.Errorf("expected diff 100, got %v", b.Sub(a))
	}
}

func TestMaxTimeNever(t *testing.T) {
	if MaxTime.String() != "never" {
		t.Errorf("expected 'never', got %q", MaxTime.String())
	}
	t2 := MaxTime.Add(Duration(5))
	if t2 != MaxTime {
		t.Errorf("expected adding to MaxTime to stay MaxTime")
	}
}
