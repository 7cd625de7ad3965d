// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package event

import (
	"testing"

	"github.com/bgrimm/netsim/internal/simtime"
)

func TestQueueOrdersByTimeThenID(t *testing.T) {
	q := NewQueue()
	e1 := &Event{Time: simtime.FromSimTime(10), ID: 2}
	e2 := &Event{Time: simtime.FromSimTime(10), ID: 1}
	e3 := &Event{Time: simtime.FromSimTime(5), ID: 99}

	q.Push(e1)
	q.Push(e2)
	q.Push(e3)

	first, ok := q.PopBefore(simtime.MaxTime)
	if !ok || first != e3 {
		t.Fatalf("expected e3 first (earliest time), got %v", first)
	}
	second, ok := q.PopBefore(simtime.MaxTime)
	if !ok || second != e2 {
		t.Fatalf("expected e2 second (lower id at tied time), got %v", second)
	}
	third, ok := q.PopBefore(simtime.MaxTime)
	if !ok || third != e1 {
		t.Fatalf("expected e1 third, got %v", third)
	}
}

func TestPopBeforeRespectsWindow(t *testing.T) {
	q := NewQueue()
	q.Push(&Event{Time: simtime.FromSimTime(100), ID: NextID()})

	if _, ok := q.PopBefore(simtime.FromSimTime(50)); ok {
		t.Fatalf("expected no event before window end 50")
	}
	if _, ok := q.PopBefore(simtime.FromSimTime(200)); !ok {
		t.Fatalf("expected event within window end 200")
	}
}

func TestNextIDMonotonic(t *testing.T) {
	a := NextID()
	b := NextID()
	if b <= a {
		t.Fatalf("expected monotonically increasing ids, got %d then %d", a, b)
	}
}
