// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package socket exposes the capability set spec section 3.4 describes —
// bind, connect, listen, accept, send, recv, shutdown, close, push_packet,
// pop_packet — over both the TCP state machine in internal/tcpstate and a
// message-boundary-preserving UDP variant.
package socket

import (
	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simtime"
)

// RecvFlags mirrors the recv/recvfrom/recvmsg flag bits spec section 8
// names: MSG_PEEK (return data without consuming it) and MSG_TRUNC (report
// truncation of an oversized datagram).
type RecvFlags uint8

const (
	MsgPeek RecvFlags = 1 << iota
	MsgTrunc
)

// RecvResult carries what a Recv call observed beyond the byte count: the
// peer address a datagram arrived from, and whether the datagram was
// truncated against the caller's buffer (spec 8, "MSG_TRUNC ... sets the
// MSG_TRUNC flag on recvmsg.msg_flags").
type RecvResult struct {
	From        packet.SocketAddrV4
	N           int
	Truncated   bool
	MessageSize int // full message length, meaningful when Truncated
}

// Socket is the capability set every socket variant implements.
type Socket interface {
	Bind(local packet.SocketAddrV4) error
	Connect(remote packet.SocketAddrV4, now simtime.EmulatedTime) error
	Listen(backlog int) error
	Send(buf []byte, to *packet.SocketAddrV4) (int, error)
	Recv(buf []byte, flags RecvFlags) (RecvResult, error)
	// Read is the read(2) entry point, distinct from Recv(2) only in its
	// zero-length-buffer behavior on a datagram socket: recv consumes a
	// pending message, read does not (spec section 8).
	Read(buf []byte) (int, error)
	Shutdown(read, write bool) error
	Close(now simtime.EmulatedTime) error
	PushPacket(p *packet.Packet, now simtime.EmulatedTime) error
	PopPacket(mss int) (*packet.Packet, bool)
	LocalAddr() packet.SocketAddrV4
}

// isn seeds a new connection's initial sequence number. A production
// implementation derives this from a per-host RNG (spec 3.2); this
// simulator's socket layer takes it as a parameter from the caller (the
// host, which owns the RNG) rather than generating it itself.
type isnSource interface {
	NextISN() uint32
}

// staticISN is the degenerate isnSource used when a caller has no RNG
// wired up yet (e.g. in isolated tests of this package).
type staticISN uint32

func (s staticISN) NextISN() uint32 { return uint32(s) }
