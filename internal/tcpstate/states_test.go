// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tcpstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simerr"
)

func addr(b4 byte, port uint16) packet.SocketAddrV4 {
	return packet.SocketAddrV4{IP: [4]byte{10, 0, 0, b4}, Port: port}
}

// TestThreeWayHandshakeThenClose walks spec section 8 scenario 1: A
// connects to a listening B, both exchange FIN/ACK, A leaves via
// FinWaitOne->FinWaitTwo->TimeWait, B via Established->CloseWait->LastAck.
func TestThreeWayHandshakeThenClose(t *testing.T) {
	a := NewSocket()
	b := NewSocket()

	require.NoError(t, b.Listen(1))
	require.Equal(t, KindListen, b.Kind())

	require.NoError(t, a.Connect(addr(2, 8080), 100, 0))
	require.Equal(t, KindSynSent, a.Kind())

	syn, ok := a.PopPacket(1500)
	require.True(t, ok)
	require.True(t, syn.Flags.Has(packet.FlagSYN))

	require.NoError(t, b.PushPacket(syn, 0))
	require.Equal(t, KindListen, b.Kind())

	synAck, ok := b.PopPacket(1500)
	require.True(t, ok)
	require.True(t, synAck.Flags.Has(packet.FlagSYN) && synAck.Flags.Has(packet.FlagACK))

	require.NoError(t, a.PushPacket(synAck, 0))
	require.Equal(t, KindEstablished, a.Kind())

	ack, ok := a.PopPacket(1500)
	require.True(t, ok)
	require.True(t, ack.Flags.Has(packet.FlagACK))

	require.NoError(t, b.PushPacket(ack, 0))
	require.Equal(t, KindListen, b.Kind())

	lst := b.state.(listenState)
	child, ok := lst.Accept()
	require.True(t, ok)
	require.Equal(t, KindEstablished, child.Kind())

	require.NoError(t, a.Close(0))
	require.Equal(t, KindFinWaitOne, a.Kind())

	fin, ok := a.PopPacket(1500)
	require.True(t, ok)
	require.True(t, fin.Flags.Has(packet.FlagFIN))

	require.NoError(t, child.PushPacket(fin, 0))
	require.Equal(t, KindCloseWait, child.Kind())

	finAck, ok := child.PopPacket(1500)
	require.True(t, ok)
	require.True(t, finAck.Flags.Has(packet.FlagACK))

	require.NoError(t, a.PushPacket(finAck, 0))
	require.Equal(t, KindFinWaitTwo, a.Kind())

	require.NoError(t, child.Close(0))
	require.Equal(t, KindLastAck, child.Kind())

	childFin, ok := child.PopPacket(1500)
	require.True(t, ok)
	require.True(t, childFin.Flags.Has(packet.FlagFIN))

	require.NoError(t, a.PushPacket(childFin, 100))
	require.Equal(t, KindTimeWait, a.Kind())

	lastAck, ok := a.PopPacket(1500)
	require.True(t, ok)

	require.NoError(t, child.PushPacket(lastAck, 0))
	require.Equal(t, KindClosed, child.Kind())
}

// TestListenerBacklogDropsExtraSyn covers scenario 3's backlog limit:
// backlog=2, three SYNs, only two children created.
func TestListenerBacklogDropsExtraSyn(t *testing.T) {
	b := NewSocket()
	require.NoError(t, b.Listen(2))

	local := addr(1, 8080)
	for i := byte(2); i <= 4; i++ {
		syn := packet.New(addr(i, 40000+uint16(i)), local, packet.ProtoTCP, packet.FlagSYN, 1, 0, 0, nil)
		require.NoError(t, b.PushPacket(syn, 0))
	}

	lst := b.state.(listenState)
	require.Len(t, lst.l.children, 2)
}

func TestSocketStartsInInit(t *testing.T) {
	s := NewSocket()
	require.Equal(t, KindInit, s.Kind())
	_, err := s.Send(nil)
	require.ErrorIs(t, err, simerr.ErrNotConnected)
}

// TestEstablishedRecvEmptyIsWouldBlock covers spec section 8's "non-blocking
// read on an empty buffer => EAGAIN" for a still-open connection, distinct
// from the 0-byte, no-error return a closed peer produces.
func TestEstablishedRecvEmptyIsWouldBlock(t *testing.T) {
	a := NewSocket()
	b := NewSocket()
	require.NoError(t, b.Listen(1))
	require.NoError(t, a.Connect(addr(2, 8080), 100, 0))

	syn, _ := a.PopPacket(1500)
	require.NoError(t, b.PushPacket(syn, 0))
	synAck, _ := b.PopPacket(1500)
	require.NoError(t, a.PushPacket(synAck, 0))
	ack, _ := a.PopPacket(1500)
	require.NoError(t, b.PushPacket(ack, 0))

	child, ok := b.Accept()
	require.True(t, ok)
	require.Equal(t, KindEstablished, child.Kind())

	n, err := child.Recv(make([]byte, 64))
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, simerr.ErrWouldBlock)

	require.NoError(t, a.Close(0))
	fin, ok := a.PopPacket(1500)
	require.True(t, ok)

	require.NoError(t, child.PushPacket(fin, 0))
	require.Equal(t, KindCloseWait, child.Kind())

	n, err = child.Recv(make([]byte, 64))
	require.Equal(t, 0, n)
	require.NoError(t, err, "fully drained CloseWait must report EOF, not EAGAIN")
}
