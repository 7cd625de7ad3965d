// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package host implements the Host, Process, and Thread containers spec
// sections 3.2 and 3.3 describe: a host owns its event queue, its
// processes, its routing interfaces, and a per-host RNG; a process owns
// its memory manager, its descriptor table, and its threads; a thread
// carries signal-mask state, an altstack, and the native OS tid actually
// executing the managed work.
package host

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/bgrimm/netsim/internal/event"
	"github.com/bgrimm/netsim/internal/memmgr"
	"github.com/bgrimm/netsim/internal/packet"
	"github.com/bgrimm/netsim/internal/router"
	"github.com/bgrimm/netsim/internal/signals"
	"github.com/bgrimm/netsim/internal/simerr"
	"github.com/bgrimm/netsim/internal/socket"
)

// firstPid is the simulator's first assigned pid, matching spec 3.3's
// "32-bit pid (starting at 1000)" -- chosen to stay clear of the native
// OS's own low pid range so a trace is never confused for a host one.
const firstPid = 1000

// Thread is a process's executing context (spec 3.3): the simulated
// ThreadId identity and signal state live in the embedded
// *signals.Thread; NativeTid is the real OS tid the simulator's ptrace
// layer (internal/memmgr) targets to actually carry out the managed
// work, distinct from the simulated identity.
type Thread struct {
	*signals.Thread
	NativeTid int
}

// Process is a host's managed application (spec 3.3): it owns exactly
// one MemoryManager, a descriptor table of open sockets, and a set of
// threads keyed by their simulated tid.
type Process struct {
	Pid int32

	sig     *signals.Process
	MM      *memmgr.MemoryManager
	Files   map[int32]socket.Socket
	Threads map[int]*Thread

	nextFd int32
}

// Signals returns the process-wide signal-delivery state (pending set,
// sigaction table) spec section 4.4 operates over.
func (p *Process) Signals() *signals.Process { return p.sig }

// AttachMemoryManager installs mm as this process's memory manager. A
// Process is created before its initial /proc/<pid>/maps snapshot is
// available (spec 3.5's "Lifecycle" starts from that snapshot), so
// construction and attachment are separate steps rather than one
// constructor call.
func (p *Process) AttachMemoryManager(mm *memmgr.MemoryManager) { p.MM = mm }

// SpawnThread creates a new thread under this process, registering it
// with the process's shared signal state (spec 4.4, "the process has a
// shared pending set").
func (p *Process) SpawnThread(simTid, nativeTid int) *Thread {
	st := signals.NewThread(signals.ThreadID{Pid: int(p.Pid), Tid: simTid})
	p.sig.AddThread(st)
	t := &Thread{Thread: st, NativeTid: nativeTid}
	p.Threads[simTid] = t
	return t
}

// ExitThread tears down a thread's signal state (spec 3.3, threads are
// removed on exit).
func (p *Process) ExitThread(simTid int) {
	delete(p.Threads, simTid)
	p.sig.RemoveThread(simTid)
}

// OpenFile installs s under the lowest unused fd and returns it, matching
// POSIX's lowest-available-fd allocation policy.
func (p *Process) OpenFile(s socket.Socket) int32 {
	for fd := int32(0); ; fd++ {
		if _, taken := p.Files[fd]; !taken {
			p.Files[fd] = s
			return fd
		}
	}
}

// CloseFile removes fd from the descriptor table, if present.
func (p *Process) CloseFile(fd int32) error {
	s, ok := p.Files[fd]
	if !ok {
		return simerr.ErrBadAddress
	}
	delete(p.Files, fd)
	return s.Close(0)
}

// Host is a unit of simulated network identity (spec 3.2): one IPv4
// address, an event queue, a set of processes, a routing interface
// table, and a per-host RNG.
type Host struct {
	ID uint32

	// RunID identifies the simulation run this host belongs to (the same
	// value cmd/netsim writes to the run-id file of the output directory),
	// the same way the teacher's internal/identity service stamps a fresh
	// uuid onto each new resource it creates.
	RunID string

	rng *rand.Rand

	DefaultAddr   packet.SocketAddrV4
	BandwidthDown int64
	BandwidthUp   int64

	Queue    *event.Queue
	Router   *router.Router
	Upstream packet.SocketAddrV4

	Processes map[int32]*Process

	// shmBlocks holds the host-level shared-memory blocks the in-process
	// shim cooperates on (spec 3.2: "a shared-memory block indexed by
	// id"), distinct from a process's own plugin memory mapping
	// (internal/memmgr.ShmFile).
	shmBlocks map[uint64][]byte

	nextPid int32
}

// NewHost creates a host with its default interface already registered
// on its router, seeded deterministically from seed (spec 3.2: "RNG
// seeded from a per-host seed").
func NewHost(id uint32, seed int64, addr packet.SocketAddrV4, bandwidthDown, bandwidthUp int64, qdisc string, upstream router.Sink) *Host {
	h := &Host{
		ID:            id,
		rng:           rand.New(rand.NewSource(seed)),
		DefaultAddr:   addr,
		BandwidthDown: bandwidthDown,
		BandwidthUp:   bandwidthUp,
		Queue:         event.NewQueue(),
		Router:        router.NewRouter(upstream),
		Processes:     make(map[int32]*Process),
		shmBlocks:     make(map[uint64][]byte),
		nextPid:       firstPid,
	}
	h.Router.AddInterface(router.NewInterface(addr, bandwidthDown, bandwidthUp, qdisc))
	return h
}

// NewRunID mints a fresh simulation run identifier, called once per run by
// cmd/netsim's Run and shared across every host in that run (Run also
// writes it to the run-id file of the output directory), the same way the
// teacher's identity service stamps a uuid onto each resource it creates.
func NewRunID() string { return uuid.New().String() }

// SetRunID attaches this host to a simulation run.
func (h *Host) SetRunID(id string) { h.RunID = id }

// NextISN implements the ISN source TCP sockets need at Connect time,
// drawing from this host's own RNG (spec 3.2's RNG is the only source of
// randomness a host's sockets are allowed to use, for determinism given a
// fixed seed).
func (h *Host) NextISN() uint32 { return h.rng.Uint32() }

// SpawnProcess allocates the next pid and an empty process container.
func (h *Host) SpawnProcess() *Process {
	pid := h.nextPid
	h.nextPid++
	p := &Process{
		Pid:     pid,
		sig:     signals.NewProcess(int(pid)),
		Files:   make(map[int32]socket.Socket),
		Threads: make(map[int]*Thread),
	}
	h.Processes[pid] = p
	return p
}

// ExitProcess removes a process from the host's table once it has
// terminated. Any sockets it still held open are closed first.
func (h *Host) ExitProcess(pid int32) {
	p, ok := h.Processes[pid]
	if !ok {
		return
	}
	for fd, s := range p.Files {
		_ = s.Close(0)
		delete(p.Files, fd)
	}
	delete(h.Processes, pid)
}

// ShmBlock returns the host-level shared-memory block for id, creating
// it with the given size if it does not yet exist.
func (h *Host) ShmBlock(id uint64, size int) []byte {
	b, ok := h.shmBlocks[id]
	if !ok {
		b = make([]byte, size)
		h.shmBlocks[id] = b
	}
	return b
}
