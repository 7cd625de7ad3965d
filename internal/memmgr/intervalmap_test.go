// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package memmgr

import "testing"

func TestInsertDisjoint(t *testing.T) {
	m := New[string]()
	m.Insert(Interval{0, 10}, "a")
	m.Insert(Interval{20, 30}, "b")

	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Len())
	}
	if _, v, ok := m.Get(5); !ok || v != "a" {
		t.Errorf("expected 'a' at 5, got %v %v", v, ok)
	}
	if _, v, ok := m.Get(25); !ok || v != "b" {
		t.Errorf("expected 'b' at 25, got %v %v", v, ok)
	}
}

func TestInsertSplitsExisting(t *testing.T) {
	m := New[string]()
	m.Insert(Interval{0, 100}, "a")
	muts := m.Insert(Interval{40, 60}, "b")

	if len(muts) != 1 || muts[0].Kind != Split {
		t.Fatalf("expected a single Split mutation, got %+v", muts)
	}
	if m.Len() != 3 {
		t.Fatalf("expected 3 entries after split, got %d", m.Len())
	}
	if _, v, _ := m.Get(10); v != "a" {
		t.Errorf("expected left survivor 'a', got %v", v)
	}
	if _, v, _ := m.Get(50); v != "b" {
		t.Errorf("expected new 'b' in the hole, got %v", v)
	}
	if _, v, _ := m.Get(80); v != "a" {
		t.Errorf("expected right survivor 'a', got %v", v)
	}
}

func TestInsertEatsTail(t *testing.T) {
	m := New[string]()
	m.Insert(Interval{0, 50}, "a")
	muts := m.Insert(Interval{40, 60}, "b")

	found := map[MutationKind]bool{}
	for _, mu := range muts {
		found[mu.Kind] = true
	}
	if !found[ModifiedEnd] {
		t.Fatalf("expected ModifiedEnd mutation, got %+v", muts)
	}

	iv, _, ok := m.Get(30)
	if !ok || iv.End != 40 {
		t.Errorf("expected 'a' truncated to end at 40, got %+v ok=%v", iv, ok)
	}
}

func TestClearRemovesFullyContained(t *testing.T) {
	m := New[string]()
	m.Insert(Interval{0, 10}, "a")
	muts := m.Clear(Interval{0, 10})

	if m.Len() != 0 {
		t.Fatalf("expected empty map after clearing exact range, got %d", m.Len())
	}
	if len(muts) != 1 || muts[0].Kind != Removed {
		t.Fatalf("expected a single Removed mutation, got %+v", muts)
	}
}

func TestInsertThenClearReturnsToPreShape(t *testing.T) {
	m := New[string]()
	m.Insert(Interval{0, 100}, "a")
	m.Insert(Interval{200, 300}, "a")

	before := m.Len()
	m.Insert(Interval{100, 200}, "a")
	m.Clear(Interval{100, 200})

	if m.Len() != before {
		t.Fatalf("expected map to return to pre-insert shape, got %d entries vs %d before", m.Len(), before)
	}
}

func TestContainsRequiresSingleInterval(t *testing.T) {
	m := New[string]()
	m.Insert(Interval{0, 10}, "a")
	m.Insert(Interval{10, 20}, "b")

	if _, ok := m.Contains(Interval{0, 10}); !ok {
		t.Errorf("expected range fully within one interval to be contained")
	}
	if _, ok := m.Contains(Interval{5, 15}); ok {
		t.Errorf("expected range spanning two intervals to not be contained")
	}
}
