// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package scheduler

import (
	"github.com/bgrimm/netsim/internal/event"
	"github.com/bgrimm/netsim/internal/host"
	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/router"
	"github.com/bgrimm/netsim/internal/simerr"
	"github.com/bgrimm/netsim/internal/simtime"
)

// HostSet indexes every host in a simulation run by its default address,
// and acts as the router.Sink each host's Router hands a packet to once
// it has left the local host's interfaces (spec 2 item 5's cross-host
// relay). It is the one place the scheduler package has a notion of
// "other hosts" -- internal/router deliberately does not.
type HostSet struct {
	byAddr      map[[4]byte]*host.Host
	linkLatency simtime.Duration
}

// NewHostSet indexes hosts by their default address. linkLatency is the
// fixed delay applied to every cross-host delivery (spec 4.1: "arrival
// time = emission time + link latency") -- a single flat value, since the
// per-pair topology latency table is an external collaborator spec 1
// scopes out of this repository.
func NewHostSet(hosts []*host.Host, linkLatency simtime.Duration) *HostSet {
	s := &HostSet{byAddr: make(map[[4]byte]*host.Host, len(hosts)), linkLatency: linkLatency}
	for _, h := range hosts {
		s.byAddr[h.DefaultAddr.IP] = h
	}
	return s
}

// Deliver implements router.Sink: it looks up the destination host by
// address and pushes a KindPacket event onto that host's queue, timed
// link latency after the emission time. This is the mechanism by which a
// packet emitted on one worker's host becomes visible on another
// worker's host only in a later round (spec 4.1's runahead correctness
// invariant: runahead must not exceed this latency).
func (s *HostSet) Deliver(p *packet.Packet, at simtime.EmulatedTime) error {
	dst, ok := s.byAddr[p.Dst.IP]
	if !ok {
		return simerr.ErrBadAddress
	}
	dst.Queue.Push(&event.Event{
		Time:   at.Add(s.linkLatency),
		HostID: dst.ID,
		ID:     event.NextID(),
		Kind:   event.KindPacket,
		Pkt:    p,
	})
	return nil
}

var _ router.Sink = (*HostSet)(nil)

// MinLinkLatency returns the flat link latency this host set delivers
// with -- the dynamic-runahead mode's source value (spec 4.1: runahead in
// dynamic mode *is* the minimum inter-host link latency).
func (s *HostSet) MinLinkLatency() simtime.Duration { return s.linkLatency }
