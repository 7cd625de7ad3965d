// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package scheduler implements the discrete-event scheduler's round/
// runahead controller (spec 4.1, 5): a fixed pool of workers, one
// goroutine per worker supervised by an errgroup.Group, advances a shared
// simulated-time window across all hosts in lockstep. Within a round a
// host is owned by exactly one worker; only the round boundary (the
// errgroup's Wait) orders anything across hosts.
package scheduler

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bgrimm/netsim/internal/event"
	"github.com/bgrimm/netsim/internal/host"
	"github.com/bgrimm/netsim/internal/simtime"
)

// PacketHandler delivers an inbound packet event to whatever owns the
// destination socket (the host/socket-demux layer, wired in by the
// caller) and returns the virtual CPU cost of doing so, billed the same
// way a Task's cost is.
type PacketHandler func(h *host.Host, e *event.Event) simtime.Duration

// Controller is the scheduler's round/runahead state machine (spec 4.1
// steps 1-3). It owns no hosts of its own; it only partitions and drives
// the ones it is given.
type Controller struct {
	workers    int
	partitions [][]*host.Host

	startAt simtime.EmulatedTime
	simEnd  simtime.EmulatedTime

	runaheadFixed simtime.Duration
	dynamicFn     func() simtime.Duration

	maxCPULatency simtime.Duration

	mu      sync.Mutex
	cpuDebt map[uint32]simtime.Duration

	// PacketHandler is called for every KindPacket event a host's queue
	// yields. Left nil, packet events are billed zero cost and dropped --
	// only useful in tests of the round mechanics in isolation.
	PacketHandler PacketHandler
}

// NewController partitions hosts round-robin across workers (0 meaning
// "one per core", spec 6's general.parallelism = 0 convention). runahead
// is the fixed window width used when dynamicRunahead is nil; otherwise
// dynamicRunahead is called at the start of every round to recompute it
// from the current minimum inter-host link latency (spec 4.1: "the
// minimum inter-host link latency (dynamic mode)").
func NewController(hosts []*host.Host, workers int, startAt, simEnd simtime.EmulatedTime, runahead simtime.Duration, dynamicRunahead func() simtime.Duration, maxCPULatency simtime.Duration) *Controller {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}
	partitions := make([][]*host.Host, workers)
	for i, h := range hosts {
		w := i % workers
		partitions[w] = append(partitions[w], h)
	}
	return &Controller{
		workers:       workers,
		partitions:    partitions,
		startAt:       startAt,
		simEnd:        simEnd,
		runaheadFixed: runahead,
		dynamicFn:     dynamicRunahead,
		maxCPULatency: maxCPULatency,
		cpuDebt:       make(map[uint32]simtime.Duration),
	}
}

// runahead returns this round's window width.
func (c *Controller) runahead() simtime.Duration {
	if c.dynamicFn != nil {
		return c.dynamicFn()
	}
	return c.runaheadFixed
}

func clampEnd(t, max simtime.EmulatedTime) simtime.EmulatedTime {
	if max.Before(t) {
		return max
	}
	return t
}

// Run drives rounds until t_start >= sim_end or every host's queue is
// empty (spec 4.1 step 3's termination condition). Each round dispatches
// one goroutine per worker over its host partition and blocks on the
// errgroup's Wait -- the round barrier (spec 5: "the round boundary is a
// global barrier across all workers").
func (c *Controller) Run(ctx context.Context) error {
	tStart := c.startAt
	tEnd := clampEnd(tStart.Add(c.runahead()), c.simEnd)

	for tStart.Before(c.simEnd) {
		g, gctx := errgroup.WithContext(ctx)
		nextTimes := make([]simtime.EmulatedTime, len(c.partitions))
		windowEnd := tEnd

		for i, hosts := range c.partitions {
			i, hosts := i, hosts
			g.Go(func() error {
				min := simtime.MaxTime
				for _, h := range hosts {
					if err := gctx.Err(); err != nil {
						return err
					}
					nt := c.processHost(h, windowEnd)
					if nt.Before(min) {
						min = nt
					}
				}
				nextTimes[i] = min
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		minNext := simtime.MaxTime
		for _, nt := range nextTimes {
			if nt.Before(minNext) {
				minNext = nt
			}
		}

		tStart = tEnd
		if minNext == simtime.MaxTime {
			break
		}
		tEnd = clampEnd(minNext.Add(c.runahead()), c.simEnd)
	}
	return nil
}

// processHost drains h's event queue up to windowEnd (spec 4.1 step 2),
// applying the CPU-delay reschedule rule (supplemented feature 1) before
// each event, then flushes h's router so any packets relayed this round
// reach their destination's inbound queue, and returns h's next pending
// event time.
func (c *Controller) processHost(h *host.Host, windowEnd simtime.EmulatedTime) simtime.EmulatedTime {
	c.mu.Lock()
	debt := c.cpuDebt[h.ID]
	c.mu.Unlock()

	for {
		e, ok := h.Queue.PopBefore(windowEnd)
		if !ok {
			break
		}
		if c.maxCPULatency != 0 && debt > c.maxCPULatency {
			e.Time = e.Time.Add(debt)
			debt = 0
			h.Queue.Push(e)
			continue
		}
		debt = debt.Add(c.runEvent(h, e))
	}

	c.mu.Lock()
	c.cpuDebt[h.ID] = debt
	c.mu.Unlock()

	_ = h.Router.DrainAll(windowEnd)
	for {
		p, ok := h.Router.PopInbound(h.DefaultAddr)
		if !ok {
			break
		}
		h.Queue.Push(&event.Event{
			Time:   windowEnd,
			HostID: h.ID,
			ID:     event.NextID(),
			Kind:   event.KindPacket,
			Pkt:    p,
		})
	}

	return h.Queue.NextTime()
}

func (c *Controller) runEvent(h *host.Host, e *event.Event) simtime.Duration {
	switch e.Kind {
	case event.KindLocal:
		return e.Task()
	case event.KindPacket:
		if c.PacketHandler != nil {
			return c.PacketHandler(h, e)
		}
	}
	return 0
}
