// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package socket

import (
	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simerr"
	"github.com/bgrimm/netsim/internal/simtime"
	"github.com/bgrimm/netsim/internal/tcpstate"
)

// TCPSocket adapts tcpstate.Socket to the Socket capability interface,
// adding bind-before-connect bookkeeping and the stream boundary
// behaviors spec section 8 specifies (zero-length read/recv, EAGAIN vs.
// 0 on a closed peer).
type TCPSocket struct {
	local packet.SocketAddrV4
	isn   isnSource
	sock  *tcpstate.Socket
}

// NewTCPSocket creates a socket in Init, per tcpstate's own invariant.
// isn supplies the initial sequence number for an outgoing connect; pass
// nil to default to a fixed ISN (only appropriate in tests).
func NewTCPSocket(isn isnSource) *TCPSocket {
	if isn == nil {
		isn = staticISN(0)
	}
	return &TCPSocket{sock: tcpstate.NewSocket(), isn: isn}
}

func (s *TCPSocket) LocalAddr() packet.SocketAddrV4 { return s.local }

// Bind records the local address a subsequent Connect or Listen will use.
// tcpstate itself has no notion of an unbound address; Bind is this
// package's responsibility, matching spec section 3.4's description of
// Connection.Local as already resolved by the time the state machine sees
// it.
func (s *TCPSocket) Bind(local packet.SocketAddrV4) error {
	if s.sock.Kind() != tcpstate.KindInit {
		return simerr.ErrAlreadyConnected
	}
	s.local = local
	return nil
}

func (s *TCPSocket) Connect(remote packet.SocketAddrV4, now simtime.EmulatedTime) error {
	return s.sock.Connect(remote, s.isn.NextISN(), now)
}

func (s *TCPSocket) Listen(backlog int) error {
	return s.sock.Listen(backlog)
}

// Accept pops the oldest ready child off the accept queue, wrapping it as
// a peer TCPSocket sharing this socket's ISN source.
func (s *TCPSocket) Accept() (*TCPSocket, bool) {
	child, ok := s.sock.Accept()
	if !ok {
		return nil, false
	}
	return &TCPSocket{sock: child, isn: s.isn, local: s.local}, true
}

// Send is Socket's uniform entry point; to is ignored for a TCP socket
// since a stream socket's peer was fixed at Connect time (sendto on a
// connected stream socket silently ignores its destination argument, as
// on Linux).
func (s *TCPSocket) Send(buf []byte, _ *packet.SocketAddrV4) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	return s.sock.Send(buf)
}

// Recv implements spec section 8's stream boundary behaviors: a
// zero-length buffer always returns 0 without touching the receive queue,
// MSG_PEEK is not consuming, and MSG_TRUNC has no meaning for a stream
// socket (spec's REDESIGN FLAGS: "not specified by POSIX ... treat as
// out-of-contract for stream sockets").
func (s *TCPSocket) Recv(buf []byte, flags RecvFlags) (RecvResult, error) {
	if len(buf) == 0 {
		return RecvResult{}, nil
	}
	if flags&MsgPeek != 0 {
		return s.peek(buf)
	}
	n, err := s.sock.Recv(buf)
	return RecvResult{N: n}, err
}

// peek copies from the connection's reassembly without consuming it,
// using tcpstate.Socket's own Peek so the "subsequent non-peek recv
// returns the same data" guarantee (spec section 8) holds exactly.
func (s *TCPSocket) peek(buf []byte) (RecvResult, error) {
	return RecvResult{N: s.sock.Peek(buf)}, nil
}

// Read is identical to a consuming Recv for a stream socket: zero-length
// reads return 0 either way since there is no message boundary to
// preserve (spec section 8 distinguishes read/recv only for datagram
// sockets).
func (s *TCPSocket) Read(buf []byte) (int, error) {
	r, err := s.Recv(buf, 0)
	return r.N, err
}

// Shutdown partially closes a stream socket. TCP's Close operation in
// tcpstate is full-duplex only (spec section 4.2's operation matrix has
// no half-close variant distinct from Close), so Shutdown(write) maps
// onto Close and Shutdown(read) is rejected exactly as spec's REDESIGN
// FLAGS note for shutdown(SHUT_RD) on a listener generalizes: ENOTCONN
// rather than silently discarding.
func (s *TCPSocket) Shutdown(read, write bool) error {
	if read && !write {
		return simerr.ErrNotConnected
	}
	if write {
		return s.sock.Close(0)
	}
	return nil
}

func (s *TCPSocket) Close(now simtime.EmulatedTime) error {
	return s.sock.Close(now)
}

func (s *TCPSocket) PushPacket(p *packet.Packet, now simtime.EmulatedTime) error {
	return s.sock.PushPacket(p, now)
}

func (s *TCPSocket) PopPacket(mss int) (*packet.Packet, bool) {
	return s.sock.PopPacket(mss)
}

// ClearError implements getsockopt(SO_ERROR) (spec section 7).
func (s *TCPSocket) ClearError() error { return s.sock.ClearError() }

// Kind exposes the underlying state variant for callers (e.g. the
// scheduler's timer-fire path) that need to no-op a stale timer (spec
// section 4.2, "if the socket is no longer in the expected variant, the
// timer is a no-op").
func (s *TCPSocket) Kind() tcpstate.Kind { return s.sock.Kind() }

var _ Socket = (*TCPSocket)(nil)
