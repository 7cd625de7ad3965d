// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tcpstate

import (
	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simerr"
	"github.com/bgrimm/netsim/internal/simtime"
)

// -- shared fallbacks, reused across states whose matrix entry is the same --

func notConnected() error { return simerr.ErrNotConnected }
func isListening() error  { return simerr.ErrIsListening }
func alreadyConn() error  { return simerr.ErrAlreadyConnected }
func inProgress() error   { return simerr.ErrInProgress }
func invalidState() error { return simerr.ErrInvalidState }
func streamClosed() error { return simerr.ErrStreamClosed }

// rst builds the Rst state with exactly one queued RST header, per spec
// 4.2 "Reset pending": Rst always enters with at least one RST in flight.
func rst(local, remote packet.SocketAddrV4) rstState {
	p := packet.New(local, remote, packet.ProtoTCP, packet.FlagRST, 0, 0, 0, nil)
	return rstState{pending: []*packet.Packet{p}}
}

// ---------------------------------------------------------------- Init --

type initState struct{}

func (initState) Kind() Kind { return KindInit }

func (initState) Connect(remote packet.SocketAddrV4, isn uint32, now simtime.EmulatedTime) (State, error) {
	conn := newConnection(packet.SocketAddrV4{}, remote, isn)
	conn.queueOut(conn.buildHeader(packet.FlagSYN))
	conn.Send.nxt++ // the SYN occupies one sequence number
	return synSentState{conn: conn, deadline: now.Add(synTimeout)}, nil
}

func (initState) Listen(backlog int) (State, error) {
	return listenState{l: newListener(packet.SocketAddrV4{}, backlog)}, nil
}

func (initState) Send([]byte) (State, int, error)      { return initState{}, 0, notConnected() }
func (initState) Recv([]byte) (State, int, error)      { return initState{}, 0, notConnected() }
func (s initState) Close(simtime.EmulatedTime) (State, error) { return closedState{}, nil }
func (s initState) PushPacket(*packet.Packet, simtime.EmulatedTime) (State, error) {
	return s, nil
}
func (s initState) PopPacket(int) (State, *packet.Packet, bool) { return s, nil, false }

// -------------------------------------------------------------- Listen --

type listenState struct{ l *Listener }

func (s listenState) Kind() Kind { return KindListen }

func (s listenState) Connect(packet.SocketAddrV4, uint32, simtime.EmulatedTime) (State, error) {
	return s, isListening()
}

func (s listenState) Listen(backlog int) (State, error) {
	s.l.backlog = backlog
	return s, nil
}

func (s listenState) Send([]byte) (State, int, error) { return s, 0, notConnected() }
func (s listenState) Recv([]byte) (State, int, error) { return s, 0, notConnected() }

func (s listenState) Close(simtime.EmulatedTime) (State, error) {
	for _, child := range s.l.children {
		if next, err := child.state.Close(0); err == nil {
			child.state = next
		}
	}
	return closedState{}, nil
}

func (s listenState) PushPacket(p *packet.Packet, now simtime.EmulatedTime) (State, error) {
	key := childKey{remote: p.Src, local: p.Dst}
	if slot, ok := s.l.connMap[key]; ok {
		child := s.l.children[slot]
		wasAcceptable := child.Kind() == KindEstablished || child.Kind() == KindCloseWait
		if !wasAcceptable && s.l.acceptQueueFull() && p.Flags.Has(packet.FlagACK) && child.Kind() == KindSynReceived {
			return s, nil // promotion would overflow the accept queue; drop
		}
		_ = child.PushPacket(p, now)
		s.l.resync(slot)
		return s, nil
	}

	if !p.Flags.Has(packet.FlagSYN) || p.Flags.Has(packet.FlagACK) {
		return s, nil // unknown flow, non-SYN: dropped silently
	}
	if s.l.full() {
		return s, nil // backlog exhausted: SYN dropped silently
	}

	child := NewSocket()
	conn := newConnection(p.Dst, p.Src, 0)
	conn.Recv.nxt = p.Seq + 1
	conn.queueOut(conn.buildHeader(packet.FlagSYN | packet.FlagACK))
	conn.Send.nxt++ // the SYN occupies one sequence number
	child.state = synReceivedState{conn: conn, deadline: now.Add(synTimeout)}

	slot := s.l.nextSlot
	s.l.nextSlot++
	s.l.children[slot] = child
	s.l.connMap[key] = slot
	s.l.synQueue = append(s.l.synQueue, slot)
	return s, nil
}

func (s listenState) PopPacket(mss int) (State, *packet.Packet, bool) {
	if len(s.l.rstOut) > 0 {
		p := s.l.rstOut[0]
		s.l.rstOut = s.l.rstOut[1:]
		return s, p, true
	}
	for slot, child := range s.l.children {
		if next, p, ok := child.state.PopPacket(mss); ok {
			child.state = next
			s.l.resync(slot)
			return s, p, true
		}
	}
	return s, nil, false
}

// Accept removes and returns the oldest ready child, for use by the
// socket layer's accept() implementation (not part of the State
// interface since it has no RFC-793 analog).
func (s listenState) Accept() (*Socket, bool) {
	child, slot, ok := s.l.acceptNext()
	if ok {
		s.l.resync(slot)
	}
	return child, ok
}

// -------------------------------------------------------------- SynSent --

type synSentState struct {
	conn     *Connection
	deadline simtime.EmulatedTime
}

func (s synSentState) Kind() Kind { return KindSynSent }

func (s synSentState) Connect(packet.SocketAddrV4, uint32, simtime.EmulatedTime) (State, error) {
	return s, inProgress()
}
func (s synSentState) Listen(int) (State, error)       { return s, invalidState() }
func (s synSentState) Send([]byte) (State, int, error) { return s, 0, notConnected() }
func (s synSentState) Recv([]byte) (State, int, error) { return s, 0, notConnected() }

func (s synSentState) Close(simtime.EmulatedTime) (State, error) {
	return closedState{}, simerr.ErrClosedWhileConnecting
}

func (s synSentState) PushPacket(p *packet.Packet, now simtime.EmulatedTime) (State, error) {
	switch {
	case p.Flags.Has(packet.FlagRST):
		return closedState{}, simerr.ErrResetReceived
	case p.Flags.Has(packet.FlagSYN) && p.Flags.Has(packet.FlagACK):
		s.conn.Send.una = p.Ack
		s.conn.Recv.nxt = p.Seq + 1
		s.conn.Recv.isn = p.Seq
		s.conn.queueOut(s.conn.buildHeader(packet.FlagACK))
		return establishedState{conn: s.conn}, nil
	case p.Flags.Has(packet.FlagSYN):
		s.conn.Recv.nxt = p.Seq + 1
		s.conn.Recv.isn = p.Seq
		s.conn.queueOut(s.conn.buildHeader(packet.FlagSYN | packet.FlagACK))
		return synReceivedState{conn: s.conn, deadline: now.Add(synTimeout)}, nil
	}
	return s, nil
}

func (s synSentState) PopPacket(int) (State, *packet.Packet, bool) {
	if p, ok := s.conn.popOut(); ok {
		return s, p, true
	}
	return s, nil, false
}

// onTimeout fires the SynSent deadline: connect never completed.
func (s synSentState) onTimeout() (State, error) {
	return closedState{}, simerr.ErrTimedOut
}

// ---------------------------------------------------------- SynReceived --

type synReceivedState struct {
	conn     *Connection
	deadline simtime.EmulatedTime
}

func (s synReceivedState) Kind() Kind { return KindSynReceived }

func (s synReceivedState) Connect(packet.SocketAddrV4, uint32, simtime.EmulatedTime) (State, error) {
	return s, inProgress()
}
func (s synReceivedState) Listen(int) (State, error)       { return s, invalidState() }
func (s synReceivedState) Send([]byte) (State, int, error) { return s, 0, notConnected() }
func (s synReceivedState) Recv([]byte) (State, int, error) { return s, 0, notConnected() }

func (s synReceivedState) Close(simtime.EmulatedTime) (State, error) {
	if s.conn.reasm != nil && !s.conn.reasm.empty() {
		return rst(s.conn.Local, s.conn.Remote), nil
	}
	s.conn.queueOut(s.conn.buildHeader(packet.FlagFIN | packet.FlagACK))
	return finWaitOneState{conn: s.conn}, nil
}

func (s synReceivedState) PushPacket(p *packet.Packet, now simtime.EmulatedTime) (State, error) {
	if p.Flags.Has(packet.FlagRST) {
		return closedState{}, simerr.ErrResetReceived
	}
	if p.Flags.Has(packet.FlagACK) {
		s.conn.Send.una = p.Ack
		return establishedState{conn: s.conn}, nil
	}
	return s, nil
}

func (s synReceivedState) PopPacket(int) (State, *packet.Packet, bool) {
	if p, ok := s.conn.popOut(); ok {
		return s, p, true
	}
	return s, nil, false
}

func (s synReceivedState) onTimeout() State { return rst(s.conn.Local, s.conn.Remote) }

// --------------------------------------------------------- Established --

type establishedState struct{ conn *Connection }

func (s establishedState) Kind() Kind { return KindEstablished }

func (s establishedState) Connect(packet.SocketAddrV4, uint32, simtime.EmulatedTime) (State, error) {
	return s, alreadyConn()
}
func (s establishedState) Listen(int) (State, error) { return s, invalidState() }

func (s establishedState) Send(buf []byte) (State, int, error) {
	n, err := s.conn.write(buf)
	return s, n, err
}

func (s establishedState) Recv(buf []byte) (State, int, error) {
	if s.conn.reasm == nil {
		s.conn.reasm = newReassembly(s.conn.Recv.nxt)
	}
	n := s.conn.reasm.read(buf)
	if n == 0 {
		return s, 0, simerr.ErrWouldBlock
	}
	return s, n, nil
}

func (s establishedState) Close(simtime.EmulatedTime) (State, error) {
	if s.conn.reasm != nil && !s.conn.reasm.empty() {
		return rst(s.conn.Local, s.conn.Remote), nil
	}
	s.conn.queueOut(s.conn.buildHeader(packet.FlagFIN | packet.FlagACK))
	return finWaitOneState{conn: s.conn}, nil
}

func (s establishedState) PushPacket(p *packet.Packet, now simtime.EmulatedTime) (State, error) {
	if p.Flags.Has(packet.FlagRST) {
		return closedState{}, simerr.ErrResetReceived
	}
	if s.conn.reasm == nil {
		s.conn.reasm = newReassembly(s.conn.Recv.nxt)
	}
	if len(p.Payload) > 0 {
		s.conn.reasm.insert(p.Seq, p.Payload)
		s.conn.Recv.nxt = s.conn.reasm.nextSeq
	}
	if p.Flags.Has(packet.FlagFIN) {
		s.conn.Recv.nxt = p.Seq + 1
		s.conn.queueOut(s.conn.buildHeader(packet.FlagACK))
		return closeWaitState{conn: s.conn}, nil
	}
	if p.Flags.Has(packet.FlagACK) {
		s.conn.Send.una = p.Ack
	}
	return s, nil
}

func (s establishedState) PopPacket(mss int) (State, *packet.Packet, bool) {
	if p, ok := s.conn.popOut(); ok {
		return s, p, true
	}
	if p := s.conn.segmentOut(mss); p != nil {
		return s, p, true
	}
	return s, nil, false
}

// --------------------------------------------------------- FinWaitOne --

type finWaitOneState struct{ conn *Connection }

func (s finWaitOneState) Kind() Kind { return KindFinWaitOne }
func (s finWaitOneState) Connect(packet.SocketAddrV4, uint32, simtime.EmulatedTime) (State, error) {
	return s, alreadyConn()
}
func (s finWaitOneState) Listen(int) (State, error)         { return s, invalidState() }
func (s finWaitOneState) Send([]byte) (State, int, error)   { return s, 0, streamClosed() }
func (s finWaitOneState) Recv(buf []byte) (State, int, error) {
	if s.conn.reasm == nil {
		return s, 0, nil
	}
	return s, s.conn.reasm.read(buf), nil
}
func (s finWaitOneState) Close(simtime.EmulatedTime) (State, error) { return s, nil }

func (s finWaitOneState) PushPacket(p *packet.Packet, now simtime.EmulatedTime) (State, error) {
	if p.Flags.Has(packet.FlagRST) {
		return closedState{}, simerr.ErrResetReceived
	}
	fin, ack := p.Flags.Has(packet.FlagFIN), p.Flags.Has(packet.FlagACK)
	if ack {
		s.conn.Send.una = p.Ack
	}
	switch {
	case fin && ack:
		s.conn.queueOut(s.conn.buildHeader(packet.FlagACK))
		return timeWaitState{conn: s.conn, deadline: now.Add(timeWaitDuration)}, nil
	case fin:
		s.conn.queueOut(s.conn.buildHeader(packet.FlagACK))
		return closingState{conn: s.conn}, nil
	case ack:
		return finWaitTwoState{conn: s.conn}, nil
	}
	return s, nil
}

func (s finWaitOneState) PopPacket(int) (State, *packet.Packet, bool) {
	if p, ok := s.conn.popOut(); ok {
		return s, p, true
	}
	return s, nil, false
}

// --------------------------------------------------------- FinWaitTwo --

type finWaitTwoState struct{ conn *Connection }

func (s finWaitTwoState) Kind() Kind { return KindFinWaitTwo }
func (s finWaitTwoState) Connect(packet.SocketAddrV4, uint32, simtime.EmulatedTime) (State, error) {
	return s, alreadyConn()
}
func (s finWaitTwoState) Listen(int) (State, error)       { return s, invalidState() }
func (s finWaitTwoState) Send([]byte) (State, int, error) { return s, 0, streamClosed() }
func (s finWaitTwoState) Recv(buf []byte) (State, int, error) {
	if s.conn.reasm == nil {
		return s, 0, nil
	}
	return s, s.conn.reasm.read(buf), nil
}
func (s finWaitTwoState) Close(simtime.EmulatedTime) (State, error) { return s, nil }

func (s finWaitTwoState) PushPacket(p *packet.Packet, now simtime.EmulatedTime) (State, error) {
	if p.Flags.Has(packet.FlagRST) {
		return closedState{}, simerr.ErrResetReceived
	}
	if p.Flags.Has(packet.FlagFIN) {
		s.conn.Recv.nxt = p.Seq + 1
		s.conn.queueOut(s.conn.buildHeader(packet.FlagACK))
		return timeWaitState{conn: s.conn, deadline: now.Add(timeWaitDuration)}, nil
	}
	return s, nil
}

func (s finWaitTwoState) PopPacket(int) (State, *packet.Packet, bool) {
	if p, ok := s.conn.popOut(); ok {
		return s, p, true
	}
	return s, nil, false
}

// ------------------------------------------------------------- Closing --

type closingState struct{ conn *Connection }

func (s closingState) Kind() Kind { return KindClosing }
func (s closingState) Connect(packet.SocketAddrV4, uint32, simtime.EmulatedTime) (State, error) {
	return s, alreadyConn()
}
func (s closingState) Listen(int) (State, error)       { return s, invalidState() }
func (s closingState) Send([]byte) (State, int, error) { return s, 0, streamClosed() }
func (s closingState) Recv([]byte) (State, int, error) { return s, 0, nil }
func (s closingState) Close(simtime.EmulatedTime) (State, error) { return s, nil }

func (s closingState) PushPacket(p *packet.Packet, now simtime.EmulatedTime) (State, error) {
	if p.Flags.Has(packet.FlagACK) {
		return timeWaitState{conn: s.conn, deadline: now.Add(timeWaitDuration)}, nil
	}
	return s, nil
}

func (s closingState) PopPacket(int) (State, *packet.Packet, bool) {
	if p, ok := s.conn.popOut(); ok {
		return s, p, true
	}
	return s, nil, false
}

// ------------------------------------------------------------ TimeWait --

type timeWaitState struct {
	conn     *Connection
	deadline simtime.EmulatedTime
}

func (s timeWaitState) Kind() Kind { return KindTimeWait }
func (s timeWaitState) Connect(packet.SocketAddrV4, uint32, simtime.EmulatedTime) (State, error) {
	return s, alreadyConn()
}
func (s timeWaitState) Listen(int) (State, error)       { return s, invalidState() }
func (s timeWaitState) Send([]byte) (State, int, error) { return s, 0, streamClosed() }
func (s timeWaitState) Recv([]byte) (State, int, error) { return s, 0, nil }
func (s timeWaitState) Close(simtime.EmulatedTime) (State, error) { return s, nil }

func (s timeWaitState) PushPacket(p *packet.Packet, now simtime.EmulatedTime) (State, error) {
	if p.Flags.Has(packet.FlagRST) {
		return closedState{}, simerr.ErrResetReceived
	}
	return s, nil
}

func (s timeWaitState) PopPacket(int) (State, *packet.Packet, bool) {
	if p, ok := s.conn.popOut(); ok {
		return s, p, true
	}
	return s, nil, false
}

func (s timeWaitState) onTimeout() State { return closedState{} }

// ----------------------------------------------------------- CloseWait --

type closeWaitState struct{ conn *Connection }

func (s closeWaitState) Kind() Kind { return KindCloseWait }
func (s closeWaitState) Connect(packet.SocketAddrV4, uint32, simtime.EmulatedTime) (State, error) {
	return s, alreadyConn()
}
func (s closeWaitState) Listen(int) (State, error) { return s, invalidState() }

func (s closeWaitState) Send(buf []byte) (State, int, error) {
	n, err := s.conn.write(buf)
	return s, n, err
}

func (s closeWaitState) Recv(buf []byte) (State, int, error) {
	if s.conn.reasm == nil {
		return s, 0, nil
	}
	n := s.conn.reasm.read(buf)
	if n == 0 && !s.conn.reasm.empty() {
		// a hole in the reassembly is still open even though the peer has
		// already sent its FIN; the held segment hasn't resolved into a
		// contiguous read yet, so this is not the terminal EOF.
		return s, 0, simerr.ErrWouldBlock
	}
	return s, n, nil
}

func (s closeWaitState) Close(simtime.EmulatedTime) (State, error) {
	s.conn.queueOut(s.conn.buildHeader(packet.FlagFIN | packet.FlagACK))
	return lastAckState{conn: s.conn}, nil
}

func (s closeWaitState) PushPacket(p *packet.Packet, now simtime.EmulatedTime) (State, error) {
	if p.Flags.Has(packet.FlagRST) {
		return closedState{}, simerr.ErrResetReceived
	}
	if p.Flags.Has(packet.FlagACK) {
		s.conn.Send.una = p.Ack
	}
	return s, nil
}

func (s closeWaitState) PopPacket(mss int) (State, *packet.Packet, bool) {
	if p, ok := s.conn.popOut(); ok {
		return s, p, true
	}
	if p := s.conn.segmentOut(mss); p != nil {
		return s, p, true
	}
	return s, nil, false
}

// ------------------------------------------------------------- LastAck --

type lastAckState struct{ conn *Connection }

func (s lastAckState) Kind() Kind { return KindLastAck }
func (s lastAckState) Connect(packet.SocketAddrV4, uint32, simtime.EmulatedTime) (State, error) {
	return s, alreadyConn()
}
func (s lastAckState) Listen(int) (State, error)       { return s, invalidState() }
func (s lastAckState) Send([]byte) (State, int, error) { return s, 0, streamClosed() }
func (s lastAckState) Recv([]byte) (State, int, error) { return s, 0, nil }
func (s lastAckState) Close(simtime.EmulatedTime) (State, error) { return s, nil }

func (s lastAckState) PushPacket(p *packet.Packet, now simtime.EmulatedTime) (State, error) {
	if p.Flags.Has(packet.FlagACK) {
		return closedState{}, nil
	}
	return s, nil
}

func (s lastAckState) PopPacket(int) (State, *packet.Packet, bool) {
	if p, ok := s.conn.popOut(); ok {
		return s, p, true
	}
	return s, nil, false
}

// ----------------------------------------------------------------- Rst --

type rstState struct{ pending []*packet.Packet }

func (s rstState) Kind() Kind { return KindRst }
func (s rstState) Connect(packet.SocketAddrV4, uint32, simtime.EmulatedTime) (State, error) {
	return s, invalidState()
}
func (s rstState) Listen(int) (State, error)       { return s, invalidState() }
func (s rstState) Send([]byte) (State, int, error) { return s, 0, streamClosed() }
func (s rstState) Recv([]byte) (State, int, error) { return s, 0, streamClosed() }
func (s rstState) Close(simtime.EmulatedTime) (State, error) { return s, nil }

func (s rstState) PushPacket(*packet.Packet, simtime.EmulatedTime) (State, error) { return s, nil }

func (s rstState) PopPacket(int) (State, *packet.Packet, bool) {
	if len(s.pending) == 0 {
		return closedState{}, nil, false
	}
	p := s.pending[0]
	rest := s.pending[1:]
	if len(rest) == 0 {
		return closedState{}, p, true
	}
	return rstState{pending: rest}, p, true
}

// -------------------------------------------------------------- Closed --

type closedState struct{}

func (closedState) Kind() Kind { return KindClosed }
func (closedState) Connect(packet.SocketAddrV4, uint32, simtime.EmulatedTime) (State, error) {
	return closedState{}, invalidState()
}
func (closedState) Listen(int) (State, error)       { return closedState{}, invalidState() }
func (closedState) Send([]byte) (State, int, error) { return closedState{}, 0, streamClosed() }
func (closedState) Recv([]byte) (State, int, error) { return closedState{}, 0, nil }
func (s closedState) Close(simtime.EmulatedTime) (State, error) { return s, nil }
func (s closedState) PushPacket(*packet.Packet, simtime.EmulatedTime) (State, error) {
	return s, nil
}
func (s closedState) PopPacket(int) (State, *packet.Packet, bool) { return s, nil, false }

// ------------------------------------------------------ connection() ---

// connHolder is implemented by every state variant whose receive path
// reads through a Connection's reassembly queue; Socket.Peek uses it to
// reach the reassembly without a type switch over every variant.
type connHolder interface {
	connection() *Connection
}

func (s synSentState) connection() *Connection     { return s.conn }
func (s synReceivedState) connection() *Connection { return s.conn }
func (s establishedState) connection() *Connection { return s.conn }
func (s finWaitOneState) connection() *Connection  { return s.conn }
func (s finWaitTwoState) connection() *Connection  { return s.conn }
func (s closingState) connection() *Connection     { return s.conn }
func (s timeWaitState) connection() *Connection    { return s.conn }
func (s closeWaitState) connection() *Connection   { return s.conn }
func (s lastAckState) connection() *Connection     { return s.conn }
