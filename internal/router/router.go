// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package router implements the host router/relay spec section 2 item 5
// names: it moves packets from an interface to the upstream network,
// between two of a host's own interfaces (loopback), or from upstream
// into an interface, each direction throttled by a token-bucket rate
// limit sized from the host's configured bandwidth.
package router

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simerr"
	"github.com/bgrimm/netsim/internal/simtime"
)

// wallClock reinterprets an EmulatedTime as a time.Time purely so it can
// be passed to golang.org/x/time/rate's explicit-now methods; the
// simulator never reads the wall clock itself (spec 3.1).
func wallClock(t simtime.EmulatedTime) time.Time { return time.Unix(0, int64(t)) }

// burstMultiplier sizes a limiter's burst as a multiple of its
// bytes-per-second rate, the same shape the teacher's ingest throttler
// uses for its token bucket.
const burstMultiplier = 1

// newLimiter builds a token bucket admitting bytesPerSec bytes/s with a
// burst of one second's worth of traffic. A zero rate means unthrottled.
func newLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(bytesPerSec) * burstMultiplier
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// Interface is one of a host's IPv4 addresses (spec 3.2: "a routing
// interface table keyed by IPv4"), with independent send/receive token
// buckets and a queueing discipline for each direction.
type Interface struct {
	Addr packet.SocketAddrV4

	down *rate.Limiter // upstream -> interface
	up   *rate.Limiter // interface -> upstream

	inbound  QDisc
	outbound QDisc
}

// NewInterface creates an interface with the host's configured down/up
// bandwidth (bytes/s; spec 3.2's "inbound and outbound bandwidth") and
// queueing discipline.
func NewInterface(addr packet.SocketAddrV4, bandwidthDown, bandwidthUp int64, qdisc string) *Interface {
	return &Interface{
		Addr:     addr,
		down:     newLimiter(bandwidthDown),
		up:       newLimiter(bandwidthUp),
		inbound:  NewQDisc(qdisc),
		outbound: NewQDisc(qdisc),
	}
}

// Sink is the destination a Router hands a packet to once it has left
// the local host's own interfaces: a cross-host delivery of a packet
// into the target host's event queue. The scheduler/host layer supplies
// the concrete implementation; this package has no notion of "other
// hosts" itself.
type Sink interface {
	Deliver(p *packet.Packet, at simtime.EmulatedTime) error
}

// Router is a host's packet relay (spec section 2 item 5): it holds the
// host's interface table and upstream address, and decides for each
// outgoing packet whether it is a loopback delivery (destination is one
// of this host's own addresses) or must go out to the upstream Sink.
type Router struct {
	interfaces map[[4]byte]*Interface
	upstream   Sink
}

// NewRouter creates a router with no interfaces yet; AddInterface wires
// up the host's addresses before relaying begins.
func NewRouter(upstream Sink) *Router {
	return &Router{interfaces: make(map[[4]byte]*Interface), upstream: upstream}
}

// AddInterface registers one of the host's own IPv4 addresses.
func (r *Router) AddInterface(iface *Interface) {
	r.interfaces[iface.Addr.IP] = iface
}

// SetUpstream rebinds the router's upstream Sink. A simulation run's
// cross-host Sink (the scheduler's HostSet) cannot be built until every
// host exists, so a host's router is constructed with no upstream (or a
// placeholder) and bound to the real one in a second pass once the full
// host set is known.
func (r *Router) SetUpstream(upstream Sink) {
	r.upstream = upstream
}

// Relay admits an outgoing packet onto the appropriate egress qdisc after
// applying the sending interface's upload token bucket. It returns
// simerr.ErrWouldBlock if the bucket has no tokens for this packet yet at
// `now` -- the caller (the socket/host layer) is expected to retry at a
// later event rather than block, matching spec 5's "a worker suspends
// only at the round barrier, never inside the processing of a single
// event."
func (r *Router) Relay(p *packet.Packet, now simtime.EmulatedTime) error {
	src, ok := r.interfaces[p.Src.IP]
	if !ok {
		return simerr.ErrBadAddress
	}
	if !src.up.AllowN(wallClock(now), p.Len()) {
		return simerr.ErrWouldBlock
	}
	src.outbound.Enqueue(p)
	return nil
}

// Drain pops the next packet ready to leave src's outbound qdisc,
// delivering it either to the destination interface's inbound queue
// (loopback, spec 2 item 5) or to the upstream Sink.
func (r *Router) Drain(src *Interface, now simtime.EmulatedTime) error {
	p, ok := src.outbound.Dequeue()
	if !ok {
		return nil
	}
	if dst, ok := r.interfaces[p.Dst.IP]; ok {
		if !dst.down.AllowN(wallClock(now), p.Len()) {
			src.outbound.Enqueue(p) // retry next round; dst's receive bucket is momentarily exhausted
			return nil
		}
		dst.inbound.Enqueue(p)
		return nil
	}
	return r.upstream.Deliver(p, now)
}

// DeliverUpstream admits a packet arriving from upstream onto its target
// interface's inbound qdisc, throttled by that interface's download
// bucket.
func (r *Router) DeliverUpstream(p *packet.Packet, now simtime.EmulatedTime) error {
	dst, ok := r.interfaces[p.Dst.IP]
	if !ok {
		return simerr.ErrBadAddress
	}
	if !dst.down.AllowN(wallClock(now), p.Len()) {
		return simerr.ErrWouldBlock
	}
	dst.inbound.Enqueue(p)
	return nil
}

// DrainAll flushes every interface's outbound qdisc once, the scheduler's
// per-round call that turns admitted-but-queued packets into either a
// loopback delivery or an upstream Sink hand-off (spec 4.1 step 2).
func (r *Router) DrainAll(now simtime.EmulatedTime) error {
	for _, iface := range r.interfaces {
		for iface.outbound.Len() > 0 {
			before := iface.outbound.Len()
			if err := r.Drain(iface, now); err != nil {
				return err
			}
			if iface.outbound.Len() >= before {
				break // Drain re-enqueued on a throttled destination; stop for this round
			}
		}
	}
	return nil
}

// PopInbound drains one packet ready for the host's socket layer to
// demux, from the named interface.
func (r *Router) PopInbound(addr packet.SocketAddrV4) (*packet.Packet, bool) {
	iface, ok := r.interfaces[addr.IP]
	if !ok {
		return nil, false
	}
	return iface.inbound.Dequeue()
}
