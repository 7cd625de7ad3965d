// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package router

import "github.com/bgrimm/netsim/internal/packet"

// QDisc is a network interface's queueing discipline: it decides the
// order packets already admitted past the rate limiter leave the
// interface (config key experimental.interface_qdisc).
type QDisc interface {
	Enqueue(p *packet.Packet)
	Dequeue() (*packet.Packet, bool)
	Len() int
}

// NewQDisc builds the qdisc named by the config key; unrecognized names
// fall back to fifo, matching the loader's general defaulting behavior
// elsewhere in this repository.
func NewQDisc(name string) QDisc {
	if name == "round-robin" {
		return newRoundRobinQDisc()
	}
	return newFIFOQDisc()
}

// fifoQDisc is a single ordered queue: packets leave in the order they
// were admitted, regardless of flow.
type fifoQDisc struct {
	q []*packet.Packet
}

func newFIFOQDisc() *fifoQDisc { return &fifoQDisc{} }

func (f *fifoQDisc) Enqueue(p *packet.Packet) { f.q = append(f.q, p) }

func (f *fifoQDisc) Dequeue() (*packet.Packet, bool) {
	if len(f.q) == 0 {
		return nil, false
	}
	p := f.q[0]
	f.q = f.q[1:]
	return p, true
}

func (f *fifoQDisc) Len() int { return len(f.q) }

// flowKey identifies one flow for round-robin fairness: the address pair
// a packet carries (spec 3.6).
type flowKey struct {
	src, dst packet.SocketAddrV4
}

// roundRobinQDisc services one packet from each non-empty flow queue in
// turn, so no single flow can starve the interface (config key
// experimental.interface_qdisc = "round-robin").
type roundRobinQDisc struct {
	order   []flowKey
	queues  map[flowKey][]*packet.Packet
	cursor  int
	inFlow  map[flowKey]bool
	pending int
}

func newRoundRobinQDisc() *roundRobinQDisc {
	return &roundRobinQDisc{queues: make(map[flowKey][]*packet.Packet), inFlow: make(map[flowKey]bool)}
}

func (r *roundRobinQDisc) Enqueue(p *packet.Packet) {
	key := flowKey{src: p.Src, dst: p.Dst}
	r.queues[key] = append(r.queues[key], p)
	if !r.inFlow[key] {
		r.inFlow[key] = true
		r.order = append(r.order, key)
	}
	r.pending++
}

func (r *roundRobinQDisc) Dequeue() (*packet.Packet, bool) {
	n := len(r.order)
	for i := 0; i < n; i++ {
		idx := (r.cursor + i) % n
		key := r.order[idx]
		q := r.queues[key]
		if len(q) == 0 {
			continue
		}
		p := q[0]
		r.queues[key] = q[1:]
		r.pending--
		if len(r.queues[key]) == 0 {
			r.removeFlowAt(idx)
			if len(r.order) == 0 {
				r.cursor = 0
			} else {
				r.cursor = idx % len(r.order)
			}
		} else {
			r.cursor = (idx + 1) % n
		}
		return p, true
	}
	return nil, false
}

func (r *roundRobinQDisc) removeFlowAt(idx int) {
	key := r.order[idx]
	delete(r.inFlow, key)
	delete(r.queues, key)
	r.order = append(r.order[:idx], r.order[idx+1:]...)
}

func (r *roundRobinQDisc) Len() int { return r.pending }
