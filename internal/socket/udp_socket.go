// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package socket

import (
	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simerr"
	"github.com/bgrimm/netsim/internal/simtime"
)

// maxUDPPayload is the largest payload a single datagram may carry before
// EMSGSIZE (spec section 8: "UDP send of 65508 bytes => EMSGSIZE; 65507
// succeeds" -- the IPv4/UDP maximum payload once headers are subtracted).
const maxUDPPayload = 65507

const defaultUDPRecvBuffer = 212992 // matches Linux's default net.core.rmem_default

// udpMessage is one buffered, still-whole datagram: UDP never merges or
// splits messages across recv calls (spec section 8, "message ordering").
type udpMessage struct {
	from packet.SocketAddrV4
	data []byte
}

// UDPSocket is the message-boundary-preserving datagram socket variant
// (spec sections 3.4, 6, 8). Unlike tcpstate.Socket it has no state
// machine: a UDP socket is either unconnected (every send needs an
// explicit destination) or connected (Connect fixes the peer, after
// which Send's destination argument is ignored, matching Linux).
type UDPSocket struct {
	local  packet.SocketAddrV4
	remote *packet.SocketAddrV4

	inbox      []udpMessage
	recvBudget int
	recvUsed   int

	outbox []*packet.Packet

	closed bool
}

// NewUDPSocket creates an unconnected, unbound datagram socket with the
// default receive buffer budget.
func NewUDPSocket() *UDPSocket {
	return &UDPSocket{recvBudget: defaultUDPRecvBuffer}
}

func (s *UDPSocket) LocalAddr() packet.SocketAddrV4 { return s.local }

func (s *UDPSocket) Bind(local packet.SocketAddrV4) error {
	s.local = local
	return nil
}

// Connect fixes the peer address subsequent Send calls go to; Recv does
// not filter inbound datagrams by it. Unlike TCP this performs no
// handshake, it is purely local bookkeeping.
func (s *UDPSocket) Connect(remote packet.SocketAddrV4, _ simtime.EmulatedTime) error {
	r := remote
	s.remote = &r
	return nil
}

// Listen is not a capability of a datagram socket.
func (s *UDPSocket) Listen(int) error { return simerr.ErrInvalidState }

// Send queues one datagram. to is the destination for an unconnected
// socket; it is ignored (and may be nil) for a connected one.
func (s *UDPSocket) Send(buf []byte, to *packet.SocketAddrV4) (int, error) {
	if s.closed {
		return 0, simerr.ErrStreamClosed
	}
	dest := s.remote
	if dest == nil {
		dest = to
	}
	if dest == nil {
		return 0, simerr.ErrNotConnected
	}
	if len(buf) > maxUDPPayload {
		return 0, simerr.ErrMessageTooLarge
	}
	payload := append([]byte(nil), buf...)
	p := packet.New(s.local, *dest, packet.ProtoUDP, 0, 0, 0, 0, payload)
	s.outbox = append(s.outbox, p)
	return len(buf), nil
}

// Recv implements recvfrom/recvmsg's boundary behaviors (spec section 8):
// a zero-length buffer still consumes one pending message and returns 0
// unless MSG_PEEK is set; MSG_TRUNC reports the full message length when
// the buffer was too small.
func (s *UDPSocket) Recv(buf []byte, flags RecvFlags) (RecvResult, error) {
	if len(s.inbox) == 0 {
		return RecvResult{}, simerr.ErrWouldBlock
	}
	msg := s.inbox[0]
	n := copy(buf, msg.data)
	truncated := n < len(msg.data)

	result := RecvResult{From: msg.from, N: n}
	if truncated && flags&MsgTrunc != 0 {
		result.Truncated = true
		result.MessageSize = len(msg.data)
	}

	if flags&MsgPeek == 0 {
		s.inbox = s.inbox[1:]
		s.recvUsed -= len(msg.data)
	}
	return result, nil
}

// Read is read(2)'s entry point: a zero-length buffer is a pure no-op and
// does not consume the head-of-queue datagram (spec section 8 contrasts
// this explicitly with Recv's zero-length behavior).
func (s *UDPSocket) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	r, err := s.Recv(buf, 0)
	return r.N, err
}

// Shutdown has no half-close meaning for a connectionless socket beyond
// marking the requested direction closed locally; this simulator treats
// either direction as closing the whole socket, same as Close.
func (s *UDPSocket) Shutdown(bool, bool) error {
	s.closed = true
	return nil
}

func (s *UDPSocket) Close(simtime.EmulatedTime) error {
	s.closed = true
	return nil
}

// PushPacket enqueues an inbound datagram, dropping it once the receive
// buffer budget is exhausted -- UDP delivery is best-effort, matching
// real kernel behavior when a socket's receive queue is full.
func (s *UDPSocket) PushPacket(p *packet.Packet, _ simtime.EmulatedTime) error {
	if s.closed {
		return nil
	}
	if s.recvUsed+len(p.Payload) > s.recvBudget {
		return nil
	}
	s.inbox = append(s.inbox, udpMessage{from: p.Src, data: p.Payload})
	s.recvUsed += len(p.Payload)
	return nil
}

// PopPacket drains one queued outbound datagram. mss is accepted for
// interface parity with tcpstate.Socket but ignored: UDP is a "thin
// datagram carrier" (spec section 6) with no segmentation.
func (s *UDPSocket) PopPacket(int) (*packet.Packet, bool) {
	if len(s.outbox) == 0 {
		return nil, false
	}
	p := s.outbox[0]
	s.outbox = s.outbox[1:]
	return p, true
}

var _ Socket = (*UDPSocket)(nil)
