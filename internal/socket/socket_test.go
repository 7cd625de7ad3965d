// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package socket

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simerr"
)

func addr(b4 byte, port uint16) packet.SocketAddrV4 {
	return packet.SocketAddrV4{IP: [4]byte{10, 0, 0, b4}, Port: port}
}

func TestStreamWriteReadByteForByte(t *testing.T) {
	a := NewTCPSocket(staticISN(1))
	b := NewTCPSocket(staticISN(2))
	require.NoError(t, b.Bind(addr(2, 9000)))
	require.NoError(t, b.Listen(1))
	require.NoError(t, a.Bind(addr(1, 9001)))
	require.NoError(t, a.Connect(addr(2, 9000), 0))

	syn, _ := a.PopPacket(1500)
	require.NoError(t, b.PushPacket(syn, 0))
	synAck, _ := b.PopPacket(1500)
	require.NoError(t, a.PushPacket(synAck, 0))
	ack, _ := a.PopPacket(1500)
	require.NoError(t, b.PushPacket(ack, 0))

	child, ok := b.Accept()
	require.True(t, ok)

	n, err := a.Send([]byte("hello world"), nil)
	require.NoError(t, err)
	require.Equal(t, 11, n)

	seg, ok := a.PopPacket(1500)
	require.True(t, ok)
	require.NoError(t, child.PushPacket(seg, 0))

	buf := make([]byte, 64)
	result, err := child.Recv(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(buf[:result.N]))
}

func TestStreamRecvZeroLengthAlwaysZero(t *testing.T) {
	a := NewTCPSocket(nil)
	result, err := a.Recv(nil, 0)
	require.NoError(t, err)
	require.Equal(t, 0, result.N)
}

func TestUDPSendOversizeIsMessageTooLarge(t *testing.T) {
	s := NewUDPSocket()
	dest := addr(2, 9000)
	_, err := s.Send(make([]byte, maxUDPPayload+1), &dest)
	require.ErrorIs(t, err, simerr.ErrMessageTooLarge)

	n, err := s.Send(make([]byte, maxUDPPayload), &dest)
	require.NoError(t, err)
	require.Equal(t, maxUDPPayload, n)
}

func TestUDPMessageOrderingPreservesBoundaries(t *testing.T) {
	sender := NewUDPSocket()
	require.NoError(t, sender.Bind(addr(1, 5000)))
	dest := addr(2, 6000)
	require.NoError(t, sender.Connect(dest, 0))

	for _, n := range []int{1, 3, 5} {
		_, err := sender.Send(make([]byte, n), nil)
		require.NoError(t, err)
	}

	receiver := NewUDPSocket()
	require.NoError(t, receiver.Bind(dest))

	for i := 0; i < 3; i++ {
		p, ok := sender.PopPacket(1500)
		require.True(t, ok)
		require.NoError(t, receiver.PushPacket(p, 0))
	}

	var got []int
	buf := make([]byte, 500)
	for i := 0; i < 3; i++ {
		result, err := receiver.Recv(buf, 0)
		require.NoError(t, err)
		got = append(got, result.N)
	}
	require.Equal(t, []int{1, 3, 5}, got)
}

func TestUDPRecvEmptyIsWouldBlock(t *testing.T) {
	s := NewUDPSocket()
	_, err := s.Recv(make([]byte, 10), 0)
	require.ErrorIs(t, err, simerr.ErrWouldBlock)
}

func TestUDPRecvZeroLengthConsumesMessage(t *testing.T) {
	s := NewUDPSocket()
	require.NoError(t, s.PushPacket(packet.New(addr(1, 1), addr(2, 2), packet.ProtoUDP, 0, 0, 0, 0, []byte("abc")), 0))

	result, err := s.Recv(nil, 0)
	require.NoError(t, err)
	require.Equal(t, 0, result.N)

	_, err = s.Recv(make([]byte, 10), 0)
	require.ErrorIs(t, err, simerr.ErrWouldBlock, "zero-length recv must have consumed the pending datagram")
}

func TestUDPReadZeroLengthDoesNotConsume(t *testing.T) {
	s := NewUDPSocket()
	require.NoError(t, s.PushPacket(packet.New(addr(1, 1), addr(2, 2), packet.ProtoUDP, 0, 0, 0, 0, []byte("abc")), 0))

	n, err := s.Read(nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	buf := make([]byte, 10)
	result, err := s.Recv(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "abc", string(buf[:result.N]), "the zero-length read must not have consumed the datagram")
}

func TestUDPMsgTruncReportsFullLength(t *testing.T) {
	s := NewUDPSocket()
	require.NoError(t, s.PushPacket(packet.New(addr(1, 1), addr(2, 2), packet.ProtoUDP, 0, 0, 0, 0, []byte("hello world")), 0))

	buf := make([]byte, 5)
	result, err := s.Recv(buf, MsgTrunc)
	require.NoError(t, err)
	require.Equal(t, 5, result.N)
	require.True(t, result.Truncated)
	require.Equal(t, 11, result.MessageSize)
}

func TestUDPMsgPeekDoesNotConsume(t *testing.T) {
	s := NewUDPSocket()
	require.NoError(t, s.PushPacket(packet.New(addr(1, 1), addr(2, 2), packet.ProtoUDP, 0, 0, 0, 0, []byte("abc")), 0))

	buf := make([]byte, 10)
	first, err := s.Recv(buf, MsgPeek)
	require.NoError(t, err)
	require.Equal(t, "abc", string(buf[:first.N]))

	second, err := s.Recv(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "abc", string(buf[:second.N]))
}

func TestTCPPeekThenRecvReturnsSameBytes(t *testing.T) {
	a := NewTCPSocket(staticISN(1))
	b := NewTCPSocket(staticISN(2))
	require.NoError(t, b.Bind(addr(2, 9100)))
	require.NoError(t, b.Listen(1))
	require.NoError(t, a.Bind(addr(1, 9101)))
	require.NoError(t, a.Connect(addr(2, 9100), 0))

	syn, _ := a.PopPacket(1500)
	require.NoError(t, b.PushPacket(syn, 0))
	synAck, _ := b.PopPacket(1500)
	require.NoError(t, a.PushPacket(synAck, 0))
	ack, _ := a.PopPacket(1500)
	require.NoError(t, b.PushPacket(ack, 0))

	child, ok := b.Accept()
	require.True(t, ok)

	_, err := a.Send([]byte("peekme"), nil)
	require.NoError(t, err)
	seg, _ := a.PopPacket(1500)
	require.NoError(t, child.PushPacket(seg, 0))

	buf := make([]byte, 64)
	peeked, err := child.Recv(buf, MsgPeek)
	require.NoError(t, err)
	require.Equal(t, "peekme", string(buf[:peeked.N]))

	real, err := child.Recv(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "peekme", string(buf[:real.N]))
}
