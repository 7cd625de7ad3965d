// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tcpstate

import (
	"github.com/bgrimm/netsim/internal/packet"
)

// childKey identifies a listener's child without holding a direct
// reference to it, so timers scheduled by the child can reacquire it
// through the parent on fire rather than holding a pointer that would
// outlive the child's removal (spec 9, "cyclic graphs of sockets").
type childKey struct {
	remote, local packet.SocketAddrV4
}

// Listener is the shared, mutable backing store for a socket in Listen;
// the listenState variant is a thin handle onto one of these so copying
// the State by value (as every operation does) never duplicates the
// child table (spec 3.4, "Listener state").
type Listener struct {
	Local packet.SocketAddrV4

	backlog int

	children map[int]*Socket
	connMap  map[childKey]int
	nextSlot int

	// synQueue holds slot ids of children not yet Established; acceptQueue
	// holds slot ids of children in Established or CloseWait awaiting
	// accept (spec 4.2, "Listener demux").
	synQueue    []int
	acceptQueue []int

	// rstOut holds RST-only packets the listener itself emits; PopPacket
	// drains it before any child's segments. Nothing in this package
	// appends to it: a SYN that arrives for a full backlog is dropped
	// without a reply.
	rstOut []*packet.Packet
}

func newListener(local packet.SocketAddrV4, backlog int) *Listener {
	return &Listener{
		Local:    local,
		backlog:  backlog,
		children: make(map[int]*Socket),
		connMap:  make(map[childKey]int),
	}
}

// resync re-establishes the accept/syn queue and children-table invariants
// after a child mutation: membership in the accept queue requires
// Established or CloseWait; a child reaching Closed is removed entirely
// (spec 3.4 invariant "Child sync").
func (l *Listener) resync(slot int) {
	child, ok := l.children[slot]
	if !ok {
		return
	}
	switch child.Kind() {
	case KindClosed:
		delete(l.children, slot)
		delete(l.connMap, l.keyOf(slot))
		l.removeFromQueue(&l.synQueue, slot)
		l.removeFromQueue(&l.acceptQueue, slot)
	case KindEstablished, KindCloseWait:
		l.removeFromQueue(&l.synQueue, slot)
		if !l.inQueue(l.acceptQueue, slot) {
			l.acceptQueue = append(l.acceptQueue, slot)
		}
	default:
		if !l.inQueue(l.synQueue, slot) {
			l.synQueue = append(l.synQueue, slot)
		}
	}
}

func (l *Listener) keyOf(slot int) childKey {
	for k, v := range l.connMap {
		if v == slot {
			return k
		}
	}
	return childKey{}
}

func (l *Listener) inQueue(q []int, slot int) bool {
	for _, s := range q {
		if s == slot {
			return true
		}
	}
	return false
}

func (l *Listener) removeFromQueue(q *[]int, slot int) {
	out := (*q)[:0]
	for _, s := range *q {
		if s != slot {
			out = append(out, s)
		}
	}
	*q = out
}

// acceptNext pops the oldest Established/CloseWait child off the accept
// queue, if any.
func (l *Listener) acceptNext() (*Socket, int, bool) {
	if len(l.acceptQueue) == 0 {
		return nil, 0, false
	}
	slot := l.acceptQueue[0]
	l.acceptQueue = l.acceptQueue[1:]
	return l.children[slot], slot, true
}

func (l *Listener) full() bool {
	return len(l.synQueue)+len(l.acceptQueue) >= l.backlog
}

func (l *Listener) acceptQueueFull() bool {
	return len(l.acceptQueue) >= l.backlog
}
