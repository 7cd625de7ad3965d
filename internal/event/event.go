// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package event defines the simulator's Event type and the per-host
// priority queue that orders events by (time, id) -- spec section 3.7 and
// the ordering-guarantee invariants of section 4.1/8.
package event

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/bgrimm/netsim/internal/simtime"
)

// Task is the callback body of a Local event: code to run against whatever
// host/process/socket state it closes over. It returns the event's virtual
// CPU cost, which the scheduler bills against the host's CPU-delay budget
// (spec section 4.1, "CPU-delay model").
type Task func() simtime.Duration

// Kind distinguishes a locally-scheduled task from an inbound packet.
type Kind uint8

const (
	KindLocal Kind = iota
	KindPacket
)

// Event is the scheduler's unit of work. The ordering key is (Time, ID) --
// strictly total, which is what makes execution deterministic.
type Event struct {
	Time   simtime.EmulatedTime
	HostID uint32
	ID     uint64

	Kind Kind
	Task Task // set when Kind == KindLocal
	Pkt  any  // set when Kind == KindPacket; held as `any` to avoid an import cycle with packet
}

// idCounter is the monotonic id generator referenced by spec 3.7. It is
// process-global (not per-host) so that ids remain unique even though
// events are compared only within a single host's queue.
var idCounter uint64

// NextID returns the next monotonically increasing event id.
func NextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// Less orders two events by (Time, ID), the total order spec 3.7 mandates.
func (e *Event) Less(other *Event) bool {
	if e.Time != other.Time {
		return e.Time < other.Time
	}
	return e.ID < other.ID
}

// innerHeap implements container/heap.Interface over a slice of *Event.
type innerHeap []*Event

func (h innerHeap) Len() int            { return len(h) }
func (h innerHeap) Less(i, j int) bool  { return h[i].Less(h[j]) }
func (h innerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *innerHeap) Push(x any)         { *h = append(*h, x.(*Event)) }
func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is a host's single event priority queue (spec section 3.2: "Exactly
// one event queue"). It is safe for concurrent use because the router may
// push a packet-arrival event onto a host's queue from a different worker
// goroutine than the one currently owning that host (spec section 5).
type Queue struct {
	mu sync.Mutex
	h  innerHeap
}

// NewQueue creates an empty event queue.
func NewQueue() *Queue {
	q := &Queue{}
	heap.Init(&q.h)
	return q
}

// Push inserts an event into the queue.
func (q *Queue) Push(e *Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, e)
}

// Peek returns the earliest-ordered event without removing it, and whether
// the queue is non-empty.
func (q *Queue) Peek() (*Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return nil, false
	}
	return q.h[0], true
}

// PopBefore removes and returns the earliest event if its time is strictly
// less than before; otherwise it returns (nil, false) and leaves the queue
// untouched. This is how a worker drains a host's events within a
// scheduling round's window (spec section 4.1 step 2).
func (q *Queue) PopBefore(before simtime.EmulatedTime) (*Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 || !(q.h[0].Time < before) {
		return nil, false
	}
	return heap.Pop(&q.h).(*Event), true
}

// Len reports the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// NextTime returns the time of the earliest pending event, or
// simtime.MaxTime if the queue is empty.
func (q *Queue) NextTime() simtime.EmulatedTime {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return simtime.MaxTime
	}
	return q.h[0].Time
}
