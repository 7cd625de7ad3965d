// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"fmt"
	"net"
	"sort"

	"github.com/bgrimm/netsim/internal/config"
	"github.com/bgrimm/netsim/internal/event"
	"github.com/bgrimm/netsim/internal/host"
	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/persist"
	"github.com/bgrimm/netsim/internal/scheduler"
	"github.com/bgrimm/netsim/internal/simmetrics"
	"github.com/bgrimm/netsim/internal/simtime"
	"github.com/bgrimm/netsim/internal/tracelog"
)

// hostRuntime bundles one simulated host with the output-directory state
// it persists to, the way the scheduler and output layers are kept
// separate concerns that only this command wires together.
type hostRuntime struct {
	host  *host.Host
	store *persist.Store
}

// Run builds every host cfg.Hosts describes, schedules each configured
// process's start/shutdown as local events, and drives the simulation to
// completion (spec 4.1, 6).
func Run(ctx context.Context, cfg *config.Config) error {
	runID := host.NewRunID()
	if err := prepareOutputDirectory(cfg, runID); err != nil {
		return fmt.Errorf("prepare output directory: %w", err)
	}

	logger := tracelog.New(tracelog.Mode(cfg.Experimental.StraceLoggingMode), logWriter(cfg))
	metrics := simmetrics.New()

	names := sortedHostNames(cfg.Hosts)
	runtimes := make([]*hostRuntime, 0, len(names))
	hosts := make([]*host.Host, 0, len(names))

	for i, name := range names {
		hc := cfg.Hosts[name]
		rt, err := buildHost(cfg, name, hc, uint32(i), runID)
		if err != nil {
			return fmt.Errorf("host %q: %w", name, err)
		}
		runtimes = append(runtimes, rt)
		hosts = append(hosts, rt.host)
	}

	hostSet := scheduler.NewHostSet(hosts, linkLatency(cfg))
	for _, rt := range runtimes {
		rt.host.Router.SetUpstream(hostSet)
	}

	for i, name := range names {
		scheduleProcesses(runtimes[i], cfg.Hosts[name], logger, metrics)
	}

	var dynamicRunahead func() simtime.Duration
	if cfg.Experimental.UseDynamicRunahead {
		dynamicRunahead = hostSet.MinLinkLatency
	}

	ctrl := scheduler.NewController(
		hosts,
		cfg.General.Parallelism,
		simtime.SimulationStart,
		simtime.SimulationStart.Add(cfg.General.StopTime.Sim()),
		cfg.Experimental.Runahead.Sim(),
		dynamicRunahead,
		cfg.Experimental.MaxUnappliedCPULatency.Sim(),
	)
	ctrl.PacketHandler = newPacketHandler(logger, metrics)

	if err := ctrl.Run(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	for _, rt := range runtimes {
		rt.store.Close()
	}
	return nil
}

func sortedHostNames(hosts map[string]config.Host) []string {
	names := make([]string, 0, len(hosts))
	for name := range hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// buildHost constructs a host.Host from its config entry, defaulting a
// missing ip_addr to a private-range address derived from its index so a
// topology that omits addresses is still runnable.
func buildHost(cfg *config.Config, name string, hc config.Host, id uint32, runID string) (*hostRuntime, error) {
	addr, err := hostAddr(hc, id)
	if err != nil {
		return nil, err
	}

	down, up := int64(0), int64(0)
	if hc.BandwidthDown != nil {
		down = *hc.BandwidthDown
	}
	if hc.BandwidthUp != nil {
		up = *hc.BandwidthUp
	}

	h := host.NewHost(id, cfg.General.Seed+int64(id), addr, down, up, string(cfg.Experimental.InterfaceQDisc), nil)
	h.SetRunID(runID)

	dir, err := hostDirectory(cfg, name)
	if err != nil {
		return nil, err
	}
	store, err := persist.Open(dir)
	if err != nil {
		return nil, err
	}
	return &hostRuntime{host: h, store: store}, nil
}

func hostAddr(hc config.Host, id uint32) (packet.SocketAddrV4, error) {
	if hc.IPAddr == "" {
		return packet.SocketAddrV4{IP: [4]byte{10, 0, byte(id >> 8), byte(id)}}, nil
	}
	ip := net.ParseIP(hc.IPAddr)
	if ip == nil || ip.To4() == nil {
		return packet.SocketAddrV4{}, fmt.Errorf("invalid ip_addr %q", hc.IPAddr)
	}
	var a packet.SocketAddrV4
	copy(a.IP[:], ip.To4())
	return a, nil
}

func linkLatency(cfg *config.Config) simtime.Duration {
	if cfg.Experimental.Runahead.Sim() != 0 {
		return cfg.Experimental.Runahead.Sim()
	}
	return simtime.Second / 100 // 10ms default inter-host link latency
}

// scheduleProcesses pushes a start event (SpawnProcess) for every process
// entry onto its host's queue before the scheduler begins. If configured,
// the shutdown event (signal delivery + ExitProcess) is pushed by that
// start event when it runs.
func scheduleProcesses(rt *hostRuntime, hc config.Host, logger *tracelog.Logger, metrics *simmetrics.Collector) {
	h := rt.host
	for _, pc := range hc.Processes {
		pc := pc
		startAt := simtime.SimulationStart.Add(pc.StartTime.Sim())
		h.Queue.Push(&event.Event{
			Time:   startAt,
			HostID: h.ID,
			ID:     event.NextID(),
			Kind:   event.KindLocal,
			Task: func() simtime.Duration {
				p := h.SpawnProcess()
				logger.Syscall(startAt, h.ID, p.Pid, 0, "exec", pc.Path)
				metrics.RecordEvent(fmt.Sprint(h.ID), "process_start")
				if pc.ShutdownTime != nil {
					scheduleShutdown(h, p.Pid, *pc.ShutdownTime, pc, logger, metrics)
				}
				return 0
			},
		})
	}
}

func scheduleShutdown(h *host.Host, pid int32, shutdown config.Duration, pc config.Process, logger *tracelog.Logger, metrics *simmetrics.Collector) {
	at := simtime.SimulationStart.Add(shutdown.Sim())
	h.Queue.Push(&event.Event{
		Time:   at,
		HostID: h.ID,
		ID:     event.NextID(),
		Kind:   event.KindLocal,
		Task: func() simtime.Duration {
			p, ok := h.Processes[pid]
			if !ok {
				return 0
			}
			if pc.ShutdownSignal != nil {
				sig := pc.ShutdownSignal.Num()
				p.Signals().DeliverProcess(sig)
				logger.SignalDelivered(at, h.ID, pid, 0, sig)
				logger.ProcessExited(at, h.ID, pid, 0, true, sig)
			} else {
				logger.ProcessExited(at, h.ID, pid, 0, false, 0)
			}
			metrics.RecordEvent(fmt.Sprint(h.ID), "process_exit")
			h.ExitProcess(pid)
			return 0
		},
	})
}
