// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bgrimm/netsim/internal/event"
	"github.com/bgrimm/netsim/internal/host"
	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simerr"
	"github.com/bgrimm/netsim/internal/simtime"
)

type nopSink struct{}

func (nopSink) Deliver(*packet.Packet, simtime.EmulatedTime) error { return nil }

func testAddr(b4 byte) packet.SocketAddrV4 {
	return packet.SocketAddrV4{IP: [4]byte{10, 0, 0, b4}, Port: 0}
}

func TestLocalEventsExecuteInTimeOrder(t *testing.T) {
	h := host.NewHost(1, 1, testAddr(1), 0, 0, "fifo", nopSink{})

	var order []int
	push := func(at simtime.EmulatedTime, n int) {
		h.Queue.Push(&event.Event{
			Time: at, HostID: h.ID, ID: event.NextID(), Kind: event.KindLocal,
			Task: func() simtime.Duration { order = append(order, n); return 0 },
		})
	}
	start := simtime.SimulationStart
	push(start.Add(30*simtime.Second), 3)
	push(start.Add(10*simtime.Second), 1)
	push(start.Add(20*simtime.Second), 2)

	c := NewController([]*host.Host{h}, 1, start, start.Add(100*simtime.Second), 5*simtime.Second, nil, 0)
	require.NoError(t, c.Run(context.Background()))
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestCPUDelayReschedulesWhenDebtExceedsThreshold(t *testing.T) {
	h := host.NewHost(1, 1, testAddr(1), 0, 0, "fifo", nopSink{})

	start := simtime.SimulationStart
	var runsA, runsB int
	h.Queue.Push(&event.Event{
		Time: start, HostID: h.ID, ID: event.NextID(), Kind: event.KindLocal,
		Task: func() simtime.Duration { runsA++; return 50 * simtime.Second },
	})
	h.Queue.Push(&event.Event{
		Time: start, HostID: h.ID, ID: event.NextID(), Kind: event.KindLocal,
		Task: func() simtime.Duration { runsB++; return 1 * simtime.Second },
	})

	// A's cost (50s) exceeds the 10s threshold, so B must be rescheduled
	// rather than run in the same pass; both still run exactly once by
	// the time the simulation window closes.
	c := NewController([]*host.Host{h}, 1, start, start.Add(500*simtime.Second), 20*simtime.Second, nil, 10*simtime.Second)
	require.NoError(t, c.Run(context.Background()))
	require.Equal(t, 1, runsA)
	require.Equal(t, 1, runsB)
}

func TestPacketHandlerInvokedForPacketEvents(t *testing.T) {
	h := host.NewHost(1, 1, testAddr(1), 0, 0, "fifo", nopSink{})
	h.Queue.Push(&event.Event{
		Time: simtime.SimulationStart, HostID: h.ID, ID: event.NextID(), Kind: event.KindPacket,
		Pkt: "payload",
	})

	var seen any
	c := NewController([]*host.Host{h}, 1, simtime.SimulationStart, simtime.SimulationStart.Add(50*simtime.Second), 5*simtime.Second, nil, 0)
	c.PacketHandler = func(hh *host.Host, e *event.Event) simtime.Duration {
		seen = e.Pkt
		return 0
	}
	require.NoError(t, c.Run(context.Background()))
	require.Equal(t, "payload", seen)
}

func TestHostSetDeliverUnknownDestinationIsBadAddress(t *testing.T) {
	s := NewHostSet(nil, simtime.Second)
	p := packet.New(testAddr(1), testAddr(9), packet.ProtoUDP, 0, 0, 0, 0, nil)
	require.ErrorIs(t, s.Deliver(p, simtime.SimulationStart), simerr.ErrBadAddress)
}

func TestHostSetDeliverPushesDelayedPacketEvent(t *testing.T) {
	h1 := host.NewHost(1, 1, testAddr(1), 0, 0, "fifo", nopSink{})
	h2 := host.NewHost(2, 1, testAddr(2), 0, 0, "fifo", nopSink{})
	s := NewHostSet([]*host.Host{h1, h2}, 3*simtime.Second)

	p := packet.New(testAddr(1), testAddr(2), packet.ProtoUDP, 0, 0, 0, 0, []byte("x"))
	require.NoError(t, s.Deliver(p, simtime.SimulationStart))

	e, ok := h2.Queue.Peek()
	require.True(t, ok)
	require.Equal(t, simtime.SimulationStart.Add(3*simtime.Second), e.Time)
	require.Equal(t, 3*simtime.Second, s.MinLinkLatency())
}
