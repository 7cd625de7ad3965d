// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package packet defines the simulator's wire-level packet representation
// (spec section 3.6): an address pair, a TCP or UDP header, a payload, a
// scheduling priority, and a reference count.
package packet

import (
	"fmt"
	"sync/atomic"
)

// SocketAddrV4 is an IPv4 address plus port, matching the spec's use of
// SocketAddrV4 throughout sections 3.4 and 3.6.
type SocketAddrV4 struct {
	IP   [4]byte
	Port uint16
}

func (a SocketAddrV4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3], a.Port)
}

// Zero reports whether the address is the wildcard 0.0.0.0:0 address.
func (a SocketAddrV4) Zero() bool {
	return a.IP == [4]byte{} && a.Port == 0
}

// Protocol identifies the transport carried by a Packet.
type Protocol uint8

const (
	ProtoTCP Protocol = iota
	ProtoUDP
)

// Flags are the TCP control bits the spec names as honored (section 6).
type Flags uint8

const (
	FlagFIN Flags = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

func (f Flags) String() string {
	s := ""
	for _, p := range []struct {
		f Flags
		c string
	}{{FlagSYN, "S"}, {FlagACK, "A"}, {FlagFIN, "F"}, {FlagRST, "R"}, {FlagPSH, "P"}, {FlagURG, "U"}} {
		if f.Has(p.f) {
			s += p.c
		}
	}
	if s == "" {
		return "."
	}
	return s
}

// idCounter assigns the monotonically increasing priority id used for
// FIFO-within-flow ordering and event-scheduling tie-breaks (spec 3.6, 3.7).
var idCounter uint64

// NextPriority returns the next monotonically increasing packet priority id.
func NextPriority() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// Packet is the simulator's unit of network transfer.
type Packet struct {
	Src, Dst SocketAddrV4
	Protocol Protocol

	// TCP/UDP header fields. UDP packets only ever use Flags==0, Seq==0,
	// Ack==0, Window==0; they are carried as a "thin datagram carrier"
	// per spec section 6.
	Flags  Flags
	Seq    uint32
	Ack    uint32
	Window uint16

	Payload []byte

	// Priority is assigned once, at creation, and never changes; it is the
	// packet's identity for ordering purposes.
	Priority uint64

	refcount int32
}

// New creates a packet and assigns it a priority id.
func New(src, dst SocketAddrV4, proto Protocol, flags Flags, seq, ack uint32, window uint16, payload []byte) *Packet {
	return &Packet{
		Src:      src,
		Dst:      dst,
		Protocol: proto,
		Flags:    flags,
		Seq:      seq,
		Ack:      ack,
		Window:   window,
		Payload:  payload,
		Priority: NextPriority(),
		refcount: 1,
	}
}

// Retain increments the reference count and returns the packet, mirroring
// reference-counted packet sharing between a listener and its children.
func (p *Packet) Retain() *Packet {
	atomic.AddInt32(&p.refcount, 1)
	return p
}

// Release decrements the reference count. It reports whether this was the
// last reference (the caller may then discard the packet).
func (p *Packet) Release() bool {
	return atomic.AddInt32(&p.refcount, -1) <= 0
}

// Len returns the payload length in bytes.
func (p *Packet) Len() int { return len(p.Payload) }

func (p *Packet) String() string {
	return fmt.Sprintf("%s>%s [%s] seq=%d ack=%d len=%d", p.Src, p.Dst, p.Flags, p.Seq, p.Ack, len(p.Payload))
}
