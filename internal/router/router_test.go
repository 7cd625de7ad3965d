// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simerr"
	"github.com/bgrimm/netsim/internal/simtime"
)

type recordingSink struct {
	delivered []*packet.Packet
}

func (s *recordingSink) Deliver(p *packet.Packet, _ simtime.EmulatedTime) error {
	s.delivered = append(s.delivered, p)
	return nil
}

func addr(b4 byte, port uint16) packet.SocketAddrV4 {
	return packet.SocketAddrV4{IP: [4]byte{10, 0, 0, b4}, Port: port}
}

func TestLoopbackDeliversToDestinationInterface(t *testing.T) {
	sink := &recordingSink{}
	r := NewRouter(sink)
	a := NewInterface(addr(1, 0), 0, 0, "fifo")
	b := NewInterface(addr(2, 0), 0, 0, "fifo")
	r.AddInterface(a)
	r.AddInterface(b)

	p := packet.New(addr(1, 100), addr(2, 200), packet.ProtoTCP, packet.FlagACK, 0, 0, 0, []byte("hi"))
	require.NoError(t, r.Relay(p, 0))
	require.NoError(t, r.Drain(a, 0))

	got, ok := r.PopInbound(addr(2, 200))
	require.True(t, ok)
	require.Equal(t, "hi", string(got.Payload))
	require.Empty(t, sink.delivered)
}

func TestUpstreamRelayUsesSinkWhenDestinationUnknown(t *testing.T) {
	sink := &recordingSink{}
	r := NewRouter(sink)
	a := NewInterface(addr(1, 0), 0, 0, "fifo")
	r.AddInterface(a)

	p := packet.New(addr(1, 100), addr(9, 200), packet.ProtoTCP, packet.FlagACK, 0, 0, 0, []byte("out"))
	require.NoError(t, r.Relay(p, 0))
	require.NoError(t, r.Drain(a, 0))

	require.Len(t, sink.delivered, 1)
	require.Equal(t, "out", string(sink.delivered[0].Payload))
}

func TestUpstreamDeliveryFeedsDestinationInterface(t *testing.T) {
	r := NewRouter(&recordingSink{})
	a := NewInterface(addr(1, 0), 0, 0, "fifo")
	r.AddInterface(a)

	p := packet.New(addr(9, 1), addr(1, 2), packet.ProtoUDP, 0, 0, 0, 0, []byte("in"))
	require.NoError(t, r.DeliverUpstream(p, 0))

	got, ok := r.PopInbound(addr(1, 2))
	require.True(t, ok)
	require.Equal(t, "in", string(got.Payload))
}

func TestRelayFromUnknownInterfaceIsBadAddress(t *testing.T) {
	r := NewRouter(&recordingSink{})
	p := packet.New(addr(5, 1), addr(6, 2), packet.ProtoTCP, 0, 0, 0, 0, nil)
	require.ErrorIs(t, r.Relay(p, 0), simerr.ErrBadAddress)
}

func TestTokenBucketThrottlesOversizedBurst(t *testing.T) {
	sink := &recordingSink{}
	r := NewRouter(sink)
	// 10 bytes/s, burst == 10 bytes: a 20-byte packet cannot be admitted
	// in a single token-bucket check.
	a := NewInterface(addr(1, 0), 0, 10, "fifo")
	r.AddInterface(a)

	p := packet.New(addr(1, 1), addr(9, 2), packet.ProtoTCP, 0, 0, 0, 0, make([]byte, 20))
	require.ErrorIs(t, r.Relay(p, 0), simerr.ErrWouldBlock)
}

func TestRoundRobinQDiscAlternatesFlows(t *testing.T) {
	q := NewQDisc("round-robin")
	flowA := func(i int) *packet.Packet {
		return packet.New(addr(1, 1), addr(2, 2), packet.ProtoUDP, 0, 0, 0, 0, []byte{byte(i)})
	}
	flowB := func(i int) *packet.Packet {
		return packet.New(addr(1, 1), addr(3, 3), packet.ProtoUDP, 0, 0, 0, 0, []byte{byte(i)})
	}
	q.Enqueue(flowA(1))
	q.Enqueue(flowA(2))
	q.Enqueue(flowB(1))

	first, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, addr(2, 2), first.Dst)

	second, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, addr(3, 3), second.Dst, "round-robin must service flow B before flow A's second packet")

	third, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, addr(2, 2), third.Dst)

	_, ok = q.Dequeue()
	require.False(t, ok)
}
