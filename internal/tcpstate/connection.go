// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tcpstate implements the RFC-793-derived TCP state machine: eleven
// RFC states plus two engineered helper states (Init, Rst), modeled as a
// tagged variant. Every operation takes a State by value and returns the
// next State alongside a result, so a transition is always explicit and
// there is no way to call an operation the current state doesn't support
// without going through the matrix in states.go.
package tcpstate

import (
	"sort"

	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simerr"
	"github.com/bgrimm/netsim/internal/simtime"
)

const (
	defaultSendBuffer = 64 * 1024
	defaultRecvBuffer = 64 * 1024
	synTimeout        = 60 * simtime.Second
	timeWaitDuration  = 60 * simtime.Second
)

// segment is one buffered out-of-order receive chunk.
type segment struct {
	seq  uint32
	data []byte
}

// reassembly buffers received bytes keyed by sequence number, exposing a
// contiguous prefix starting at nextSeq once holes are filled (spec 3.4,
// "a receive-reassembly queue keyed by sequence number").
type reassembly struct {
	nextSeq uint32
	held    []segment
	ready   []byte
}

func newReassembly(isn uint32) *reassembly {
	return &reassembly{nextSeq: isn}
}

// insert buffers data starting at seq, trimming any overlap with bytes
// already delivered, and promotes any now-contiguous bytes into ready.
func (r *reassembly) insert(seq uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	if seqLess(seq, r.nextSeq) {
		skip := r.nextSeq - seq
		if skip >= uint32(len(data)) {
			return
		}
		data = data[skip:]
		seq = r.nextSeq
	}
	r.held = append(r.held, segment{seq: seq, data: data})
	sort.Slice(r.held, func(i, j int) bool { return seqLess(r.held[i].seq, r.held[j].seq) })
	r.drain()
}

func (r *reassembly) drain() {
	for len(r.held) > 0 {
		s := r.held[0]
		if s.seq != r.nextSeq {
			break
		}
		r.ready = append(r.ready, s.data...)
		r.nextSeq += uint32(len(s.data))
		r.held = r.held[1:]
	}
}

// read removes up to len(buf) bytes from the contiguous ready prefix.
func (r *reassembly) read(buf []byte) int {
	n := copy(buf, r.ready)
	r.ready = r.ready[n:]
	return n
}

// peek copies up to len(buf) bytes from the ready prefix without
// consuming them, backing MSG_PEEK (spec section 8: "returns data
// without removing it; subsequent non-peek recv returns the same data").
func (r *reassembly) peek(buf []byte) int {
	return copy(buf, r.ready)
}

func (r *reassembly) empty() bool { return len(r.ready) == 0 && len(r.held) == 0 }

func seqLess(a, b uint32) bool { return int32(a-b) < 0 }

// sendSequence tracks this side's send sequence space (RFC 793 SND.*).
type sendSequence struct {
	una uint32 // oldest unacknowledged byte
	nxt uint32 // next byte to send
	isn uint32
}

// recvSequence tracks the peer's advertised window and our next-expected byte.
type recvSequence struct {
	nxt    uint32
	window uint16
	isn    uint32
}

// Connection is the shared state every non-listener, non-terminal TCP
// variant owns (spec 3.4).
type Connection struct {
	Local, Remote packet.SocketAddrV4

	Send sendSequence
	Recv recvSequence

	reasm     *reassembly
	sendBuf   []byte
	sendLimit int

	// RetransmitAt is the next time a pending SYN/FIN/segment should be
	// resent if unacknowledged; zero means no timer armed.
	RetransmitAt simtime.EmulatedTime

	// pendingOut holds header-only or data-bearing segments queued for
	// pop_packet, in send order.
	pendingOut []*packet.Packet
}

func newConnection(local, remote packet.SocketAddrV4, isn uint32) *Connection {
	return &Connection{
		Local: local, Remote: remote,
		Send:      sendSequence{una: isn, nxt: isn, isn: isn},
		sendLimit: defaultSendBuffer,
	}
}

// queueOut appends a segment to the pending-send queue (drained by pop_packet).
func (c *Connection) queueOut(p *packet.Packet) { c.pendingOut = append(c.pendingOut, p) }

// popOut removes and returns the next pending outbound segment, if any.
func (c *Connection) popOut() (*packet.Packet, bool) {
	if len(c.pendingOut) == 0 {
		return nil, false
	}
	p := c.pendingOut[0]
	c.pendingOut = c.pendingOut[1:]
	return p, true
}

func (c *Connection) buildHeader(flags packet.Flags) *packet.Packet {
	return packet.New(c.Local, c.Remote, packet.ProtoTCP, flags, c.Send.nxt, c.Recv.nxt, c.Recv.window, nil)
}

// write appends as many application bytes as fit under sendLimit to the
// send buffer and returns that count; it returns ErrWouldBlock when the
// buffer is already full.
func (c *Connection) write(buf []byte) (int, error) {
	room := c.sendLimit - len(c.sendBuf)
	if room <= 0 {
		return 0, simerr.ErrWouldBlock
	}
	n := len(buf)
	if n > room {
		n = room
	}
	c.sendBuf = append(c.sendBuf, buf[:n]...)
	return n, nil
}

// segmentOut packages up to mss bytes of the send buffer into one data
// segment and advances Send.nxt; called from pop_packet in Established and
// the other data-carrying states.
func (c *Connection) segmentOut(mss int) *packet.Packet {
	if len(c.sendBuf) == 0 {
		return nil
	}
	n := len(c.sendBuf)
	if n > mss {
		n = mss
	}
	payload := c.sendBuf[:n]
	c.sendBuf = c.sendBuf[n:]
	p := c.buildHeader(packet.FlagACK)
	p.Payload = append([]byte(nil), payload...)
	c.Send.nxt += uint32(n)
	return p
}
