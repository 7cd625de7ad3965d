// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package persist

import (
	"testing"

	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/simtime"
)

func TestRecordEventAndFlowHistoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	local := packet.SocketAddrV4{IP: [4]byte{10, 0, 0, 1}, Port: 40000}
	remote := packet.SocketAddrV4{IP: [4]byte{10, 0, 0, 2}, Port: 80}

	events := []Record{
		{Time: simtime.SimulationStart, Pid: 1000, Fd: 3, Protocol: "tcp", Local: local, Remote: remote, State: "syn_sent"},
		{Time: simtime.SimulationStart.Add(simtime.Second), Pid: 1000, Fd: 3, Protocol: "tcp", Local: local, Remote: remote, State: "established", BytesIn: 10, BytesOut: 20},
		{Time: simtime.SimulationStart.Add(2 * simtime.Second), Pid: 1000, Fd: 3, Protocol: "tcp", Local: local, Remote: remote, State: "closed", BytesIn: 10, BytesOut: 20},
	}
	for _, e := range events {
		if err := s.RecordEvent(e); err != nil {
			t.Fatalf("record event: %v", err)
		}
	}

	history, err := s.FlowHistory(1000, 3)
	if err != nil {
		t.Fatalf("flow history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 records, got %d", len(history))
	}
	if history[0].State != "syn_sent" || history[2].State != "closed" {
		t.Errorf("unexpected ordering: %+v", history)
	}
}

func TestActiveFlowsExcludesClosedSockets(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	local := packet.SocketAddrV4{IP: [4]byte{10, 0, 0, 1}, Port: 40000}
	remote := packet.SocketAddrV4{IP: [4]byte{10, 0, 0, 2}, Port: 80}

	s.RecordEvent(Record{Time: simtime.SimulationStart, Pid: 1000, Fd: 3, Protocol: "tcp", Local: local, Remote: remote, State: "established"})
	s.RecordEvent(Record{Time: simtime.SimulationStart.Add(simtime.Second), Pid: 1000, Fd: 4, Protocol: "tcp", Local: local, Remote: remote, State: "established"})
	s.RecordEvent(Record{Time: simtime.SimulationStart.Add(2 * simtime.Second), Pid: 1000, Fd: 4, Protocol: "tcp", Local: local, Remote: remote, State: "closed"})

	active, err := s.ActiveFlows()
	if err != nil {
		t.Fatalf("active flows: %v", err)
	}
	if len(active) != 1 || active[0].Fd != 3 {
		t.Errorf("expected only fd 3 active, got %+v", active)
	}
}
