// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tcpstate

import (
	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simerr"
	"github.com/bgrimm/netsim/internal/simtime"
)

// Kind names one of the thirteen state variants (spec 3.4): the eleven RFC
// 793 states plus the engineered Init and Rst helpers.
type Kind int

const (
	KindInit Kind = iota
	KindListen
	KindSynSent
	KindSynReceived
	KindEstablished
	KindFinWaitOne
	KindFinWaitTwo
	KindClosing
	KindTimeWait
	KindCloseWait
	KindLastAck
	KindRst
	KindClosed
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "Init"
	case KindListen:
		return "Listen"
	case KindSynSent:
		return "SynSent"
	case KindSynReceived:
		return "SynReceived"
	case KindEstablished:
		return "Established"
	case KindFinWaitOne:
		return "FinWaitOne"
	case KindFinWaitTwo:
		return "FinWaitTwo"
	case KindClosing:
		return "Closing"
	case KindTimeWait:
		return "TimeWait"
	case KindCloseWait:
		return "CloseWait"
	case KindLastAck:
		return "LastAck"
	case KindRst:
		return "Rst"
	case KindClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// State is the tagged-variant contract every TCP state implements (spec
// 4.2, 9 "deeply polymorphic state machine"). Every operation consumes the
// receiver conceptually by move: callers must always use the returned
// State and discard the receiver, mirroring the Rust original's
// take-by-value transitions without Go needing move semantics enforced by
// the compiler.
type State interface {
	Kind() Kind
	Connect(remote packet.SocketAddrV4, isn uint32, now simtime.EmulatedTime) (State, error)
	Listen(backlog int) (State, error)
	Send(buf []byte) (State, int, error)
	Recv(buf []byte) (State, int, error)
	Close(now simtime.EmulatedTime) (State, error)
	PushPacket(p *packet.Packet, now simtime.EmulatedTime) (State, error)
	PopPacket(mss int) (State, *packet.Packet, bool)
}

// Socket wraps the current State with the error slot the spec requires
// (spec 7: "Errors on the error slot of a socket are consumed by the next
// getsockopt(SO_ERROR) call and cleared").
type Socket struct {
	state State
	err   error
}

// NewSocket creates a socket in Init, per spec invariant "a socket is
// created in Init".
func NewSocket() *Socket {
	return &Socket{state: initState{}}
}

func (s *Socket) Kind() Kind { return s.state.Kind() }

// SetError records err on the error slot, overwriting any unread value;
// the most recent error wins, matching Linux SO_ERROR semantics.
func (s *Socket) SetError(err error) { s.err = err }

// ClearError implements getsockopt(SO_ERROR): returns and clears the
// pending error.
func (s *Socket) ClearError() error {
	err := s.err
	s.err = nil
	return err
}

func isConnStateErr(err error) bool { return simerr.GetKind(err) == simerr.KindConnState }

// accepter is implemented by listenState; Socket.Accept uses it rather
// than exposing listenState itself outside the package.
type accepter interface {
	Accept() (*Socket, bool)
}

// Accept pops the oldest ready child off a listening socket's accept
// queue (spec section 3.4's Listener demux). It returns false if this
// socket is not in Listen or the accept queue is empty.
func (s *Socket) Accept() (*Socket, bool) {
	a, ok := s.state.(accepter)
	if !ok {
		return nil, false
	}
	return a.Accept()
}

// Connect, Listen, Send, Recv, Close, PushPacket, and PopPacket drive the
// socket's current State and install the next one, mirroring the
// take-by-value transitions the operations return.

func (s *Socket) Connect(remote packet.SocketAddrV4, isn uint32, now simtime.EmulatedTime) error {
	next, err := s.state.Connect(remote, isn, now)
	s.state = next
	return err
}

func (s *Socket) Listen(backlog int) error {
	next, err := s.state.Listen(backlog)
	s.state = next
	return err
}

func (s *Socket) Send(buf []byte) (int, error) {
	next, n, err := s.state.Send(buf)
	s.state = next
	return n, err
}

func (s *Socket) Recv(buf []byte) (int, error) {
	next, n, err := s.state.Recv(buf)
	s.state = next
	return n, err
}

func (s *Socket) Close(now simtime.EmulatedTime) error {
	next, err := s.state.Close(now)
	s.state = next
	return err
}

func (s *Socket) PushPacket(p *packet.Packet, now simtime.EmulatedTime) error {
	next, err := s.state.PushPacket(p, now)
	s.state = next
	if err != nil && !isConnStateErr(err) {
		s.SetError(err)
	}
	return err
}

func (s *Socket) PopPacket(mss int) (*packet.Packet, bool) {
	next, p, ok := s.state.PopPacket(mss)
	s.state = next
	return p, ok
}

// Peek copies up to len(buf) bytes from the receive-ready prefix without
// consuming them, backing MSG_PEEK (spec section 8). States with no
// receive-reassembly queue (Init, Listen, SynSent, Rst, Closed) return 0.
func (s *Socket) Peek(buf []byte) int {
	ch, ok := s.state.(connHolder)
	if !ok {
		return 0
	}
	c := ch.connection()
	if c == nil || c.reasm == nil {
		return 0
	}
	return c.reasm.peek(buf)
}
