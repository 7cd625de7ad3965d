// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package signals models Linux signal delivery and syscall interruption
// for managed threads (spec section 4.4): pending sets, handling
// opportunities, SA_RESTART-driven retry vs. EINTR, sigaltstack with
// SS_AUTODISARM, and the ucontext contract hardware-fault handlers and
// interrupted-syscall handlers rely on.
package signals

import (
	"fmt"
	"sort"
	"strconv"
)

// Num is a signal number. The simulator only assigns meaning to the POSIX
// real-time-safe range below SIGRTMIN; real-time signals are out of scope.
type Num int

const (
	SIGHUP  Num = 1
	SIGINT  Num = 2
	SIGQUIT Num = 3
	SIGILL  Num = 4
	SIGTRAP Num = 5
	SIGABRT Num = 6
	SIGBUS  Num = 7
	SIGFPE  Num = 8
	SIGKILL Num = 9
	SIGUSR1 Num = 10
	SIGSEGV Num = 11
	SIGUSR2 Num = 12
	SIGPIPE Num = 13
	SIGALRM Num = 14
	SIGTERM Num = 15
	SIGCHLD Num = 17
	SIGCONT Num = 18
	SIGSTOP Num = 19
	SIGTSTP Num = 20
	SIGURG  Num = 23

	maxSignal = 31
)

// names maps every signal this package assigns meaning to onto its
// canonical "SIGxxx" spelling, used by both String and ParseName so the
// two stay in lockstep by construction.
var names = map[Num]string{
	SIGHUP: "SIGHUP", SIGINT: "SIGINT", SIGQUIT: "SIGQUIT", SIGILL: "SIGILL",
	SIGTRAP: "SIGTRAP", SIGABRT: "SIGABRT", SIGBUS: "SIGBUS", SIGFPE: "SIGFPE",
	SIGKILL: "SIGKILL", SIGUSR1: "SIGUSR1", SIGSEGV: "SIGSEGV", SIGUSR2: "SIGUSR2",
	SIGPIPE: "SIGPIPE", SIGALRM: "SIGALRM", SIGTERM: "SIGTERM", SIGCHLD: "SIGCHLD",
	SIGCONT: "SIGCONT", SIGSTOP: "SIGSTOP", SIGTSTP: "SIGTSTP", SIGURG: "SIGURG",
}

// String renders a signal's canonical name, or a bare number for one
// outside the recognized set.
func (n Num) String() string {
	if s, ok := names[n]; ok {
		return s
	}
	return strconv.Itoa(int(n))
}

// ParseName accepts either a canonical name ("SIGTERM") or a bare integer
// ("15"), matching spec 6's "signals accept both names and integers" for
// shutdown_signal config values.
func ParseName(s string) (Num, error) {
	for n, name := range names {
		if name == s {
			return n, nil
		}
	}
	if v, err := strconv.Atoi(s); err == nil {
		if v < 1 || v > maxSignal {
			return 0, fmt.Errorf("signal number %d out of range 1-%d", v, maxSignal)
		}
		return Num(v), nil
	}
	return 0, fmt.Errorf("unrecognized signal name %q", s)
}

// uncatchable reports whether sig can never be blocked, ignored, or
// handled (sigaction(2): SIGKILL and SIGSTOP).
func uncatchable(sig Num) bool { return sig == SIGKILL || sig == SIGSTOP }

// hardwareFault reports whether sig is one of the four synchronous faults
// the spec requires a valid siginfo/ucontext for.
func hardwareFault(sig Num) bool {
	switch sig {
	case SIGSEGV, SIGILL, SIGBUS, SIGFPE:
		return true
	default:
		return false
	}
}

// defaultIgnore is the set of signals whose default action is to be
// discarded rather than terminate the process (spec 4.4: "ignore or
// default-ignore ... do not interrupt a blocked syscall").
func defaultIgnore(sig Num) bool {
	switch sig {
	case SIGCHLD, SIGURG, SIGCONT:
		return true
	default:
		return false
	}
}

// Set is a bitmask over signal numbers 1..31, mirroring sigset_t closely
// enough for this simulator's needs.
type Set uint32

func bit(sig Num) uint32 { return 1 << uint(sig-1) }

func (s Set) Has(sig Num) bool { return uint32(s)&bit(sig) != 0 }

func (s Set) Add(sig Num) Set { return Set(uint32(s) | bit(sig)) }

func (s Set) Remove(sig Num) Set { return Set(uint32(s) &^ bit(sig)) }

// lowest returns the lowest-numbered signal present in s, and whether any
// signal is present at all.
func (s Set) lowest() (Num, bool) {
	for n := Num(1); n <= maxSignal; n++ {
		if s.Has(n) {
			return n, true
		}
	}
	return 0, false
}

// Disposition is a thread's or process's configured handling of a signal.
type Disposition int

const (
	// DispositionDefault runs the signal's default action (spec 4.4 names
	// only the catchable subset; default-ignore signals are tracked
	// separately via defaultIgnore so a handler can still be installed).
	DispositionDefault Disposition = iota
	DispositionIgnore
	DispositionHandle
)

// HandlerFlags mirrors the subset of sigaction(2)'s sa_flags the spec
// names: SA_RESTART changes blocked-syscall interruption behavior,
// SA_ONSTACK routes the handler onto the altstack.
type HandlerFlags uint8

const (
	SA_RESTART HandlerFlags = 1 << iota
	SA_ONSTACK
)

// Action is one thread's configured response to a signal, installed via
// sigaction.
type Action struct {
	Disposition Disposition
	Flags       HandlerFlags
}

// SigInfo is the subset of siginfo_t the spec requires handlers to
// observe: the signal number, who raised it (for kill/tkill/tgkill), and
// the faulting address for SIGSEGV (spec 4.4, "si_addr ... si_code =
// SEGV_MAPERR on null dereference").
type SigInfo struct {
	Signal Num
	Sender ThreadID
	// Addr is the faulting address for a hardware fault; zero otherwise.
	Addr uint64
	// MapErr is true for a SIGSEGV caused by dereferencing unmapped memory
	// (si_code = SEGV_MAPERR), false for a protection fault (SEGV_ACCERR).
	MapErr bool
}

// ThreadID identifies the (process, thread) pair a signal targets or
// originates from.
type ThreadID struct {
	Pid, Tid int
}

// AltStack mirrors struct sigaltstack / stack_t, including the
// SS_AUTODISARM flag the spec requires (4.4).
type AltStack struct {
	Base        uint64
	Size        uint64
	Installed   bool
	AutoDisarm  bool
	active      bool // true while a handler registered with SA_ONSTACK is running on it
	disarmedFor bool // true if AutoDisarm took it out of service for the in-flight handler
}

// OnStack reports SS_ONSTACK/SS_DISABLE as sigaltstack(NULL, out) would see
// them from inside a running handler.
func (a AltStack) OnStack() bool { return a.active && !a.disarmedFor }

// Thread is the per-thread signal state: its pending set, its mask, and
// its registered altstack. Dispositions live on the owning Process since
// sigaction is process-wide in Linux, with the single exception that each
// thread keeps its own mask and altstack.
type Thread struct {
	ID      ThreadID
	pending Set
	mask    Set
	alt     AltStack
}

// NewThread creates a thread with an empty pending set, empty mask, and no
// altstack installed.
func NewThread(id ThreadID) *Thread {
	return &Thread{ID: id}
}

// Mask returns the thread's current signal mask.
func (t *Thread) Mask() Set { return t.mask }

// SetMask installs a new mask outright (sigprocmask SIG_SETMASK).
func (t *Thread) SetMask(m Set) { t.mask = m }

// BlockMask adds signals to the mask (sigprocmask SIG_BLOCK).
func (t *Thread) BlockMask(m Set) { t.mask = Set(uint32(t.mask) | uint32(m)) }

// UnblockMask removes signals from the mask (sigprocmask SIG_UNBLOCK); per
// spec 4.4 this is itself a handling opportunity.
func (t *Thread) UnblockMask(m Set) { t.mask = Set(uint32(t.mask) &^ uint32(m)) }

// SigAltStack installs new, returning the previous altstack (sigaltstack's
// two-way old/new contract).
func (t *Thread) SigAltStack(new *AltStack) AltStack {
	old := t.alt
	if new != nil {
		t.alt = *new
	}
	return old
}

// Process is the shared signal state across a process's threads: the
// process-wide pending set and the one sigaction table (spec 4.4,
// "the process has a shared pending set").
type Process struct {
	Pid     int
	pending Set
	actions [maxSignal + 1]Action
	threads map[int]*Thread
}

// NewProcess creates a process with default dispositions for every signal
// and no threads yet registered.
func NewProcess(pid int) *Process {
	return &Process{Pid: pid, threads: make(map[int]*Thread)}
}

// AddThread registers a new thread under this process.
func (p *Process) AddThread(t *Thread) { p.threads[t.ID.Tid] = t }

// RemoveThread drops a thread's signal state, e.g. on thread exit.
func (p *Process) RemoveThread(tid int) { delete(p.threads, tid) }

// SetAction installs sig's sigaction-wide disposition; uncatchable signals
// are silently left at DispositionDefault (sigaction(2) rejects this at
// the syscall boundary, which is out of this package's scope to model).
func (p *Process) SetAction(sig Num, a Action) {
	if uncatchable(sig) {
		return
	}
	p.actions[sig] = a
}

func (p *Process) action(sig Num) Action { return p.actions[sig] }

// DeliverProcess queues sig on the process-wide pending set, to be
// delivered to the first thread whose mask does not block it (spec 4.4,
// "delivered to any one thread ... whose mask does not block the
// signal"). It reports the thread chosen, if any thread is currently
// eligible; if none is, the signal remains pending against the whole
// process until some thread unblocks it.
func (p *Process) DeliverProcess(sig Num) (ThreadID, bool) {
	p.pending = p.pending.Add(sig)
	ids := p.threadIDsSorted()
	for _, tid := range ids {
		t := p.threads[tid]
		if !t.mask.Has(sig) {
			return t.ID, true
		}
	}
	return ThreadID{}, false
}

// DeliverThread queues sig against exactly the named thread (tkill/tgkill).
func (p *Process) DeliverThread(tid int, sig Num) {
	if t, ok := p.threads[tid]; ok {
		t.pending = t.pending.Add(sig)
	}
}

func (p *Process) threadIDsSorted() []int {
	ids := make([]int, 0, len(p.threads))
	for tid := range p.threads {
		ids = append(ids, tid)
	}
	sort.Ints(ids)
	return ids
}

// deliverable returns the union of thread-pending and process-pending
// signals not masked by t, per spec 4.4's definition of "deliverable".
func (p *Process) deliverable(t *Thread) Set {
	return Set((uint32(t.pending) | uint32(p.pending)) &^ uint32(t.mask))
}

// consume removes sig from wherever it is pending (thread-local or
// process-wide) once it has been handled.
func (p *Process) consume(t *Thread, sig Num) {
	t.pending = t.pending.Remove(sig)
	p.pending = p.pending.Remove(sig)
}

// Delivery is one signal handed to the managed thread at a handling
// opportunity: which signal, its disposition, and (for a hardware fault
// or a just-interrupted syscall) the SigInfo the handler must observe.
type Delivery struct {
	Signal Num
	Action Action
	Info   SigInfo
	// OnAltStack is true if this handler must run on the thread's
	// registered altstack (SA_ONSTACK and an altstack is installed).
	OnAltStack bool
}

// HandlingOpportunity examines deliverable signals at one of the three
// points spec 4.4 names (syscall return, hardware fault, post-unmask) and
// returns every signal that must be handled, in ascending number, as one
// atomic batch from the managed thread's point of view. Each Delivery in
// the batch is consumed from the pending set as it is produced; signals
// with DispositionDefault or DispositionIgnore are consumed (and, for
// Default, would terminate/ignore the process outside this package's
// scope) but are not returned as handler deliveries.
func (p *Process) HandlingOpportunity(t *Thread, faultInfo *SigInfo) []Delivery {
	var out []Delivery
	for {
		pending := p.deliverable(t)
		sig, ok := pending.lowest()
		if !ok {
			return out
		}
		p.consume(t, sig)

		a := p.action(sig)
		if a.Disposition != DispositionHandle {
			continue
		}

		info := SigInfo{Signal: sig}
		if faultInfo != nil && faultInfo.Signal == sig {
			info = *faultInfo
		}

		d := Delivery{Signal: sig, Action: a, Info: info}
		if a.Flags&SA_ONSTACK != 0 && t.alt.Installed {
			d.OnAltStack = true
			t.alt.active = true
			if t.alt.AutoDisarm {
				t.alt.disarmedFor = true
			}
		}
		out = append(out, d)
	}
}

// EndHandler restores the altstack state a Delivery's SA_ONSTACK/
// SS_AUTODISARM handling disturbed, once the handler returns (spec 4.4,
// "the altstack ... is restored on return").
func (t *Thread) EndHandler(d Delivery) {
	if !d.OnAltStack {
		return
	}
	t.alt.active = false
	t.alt.disarmedFor = false
}

// BlockedSyscallOutcome is the result of re-examining signals while a
// thread is parked on a blocking syscall (spec 4.4, "blocked syscalls and
// restart").
type BlockedSyscallOutcome int

const (
	// OutcomeStillBlocked means no deliverable signal requires the
	// syscall to surface at all; the thread remains parked.
	OutcomeStillBlocked BlockedSyscallOutcome = iota
	// OutcomeEINTR means the syscall must return -EINTR to the managed
	// thread after running any deliverable handlers.
	OutcomeEINTR
	// OutcomeRestart means the syscall is transparently retried after
	// handlers run; the managed thread never observes EINTR.
	OutcomeRestart
)

// CheckBlockedSyscall decides how a signal becoming deliverable affects a
// thread parked on a blocking syscall, and returns the batch of handler
// deliveries to run first (spec 4.4: "within a single handling
// opportunity all currently-deliverable signals are handled ... entry to
// a handling opportunity is on ... unblocking").
//
// A signal whose disposition is ignore or default-ignore never interrupts
// the blocked syscall on its own (spec 4.4); it is still consumed from the
// pending set and, if it has a user handler, still delivered.
func (p *Process) CheckBlockedSyscall(t *Thread) (BlockedSyscallOutcome, []Delivery) {
	deliveries := p.HandlingOpportunity(t, nil)

	interrupting := false
	allRestart := true
	for _, d := range deliveries {
		if defaultIgnore(d.Signal) {
			continue
		}
		interrupting = true
		if d.Action.Flags&SA_RESTART == 0 {
			allRestart = false
		}
	}

	switch {
	case !interrupting:
		return OutcomeStillBlocked, deliveries
	case allRestart:
		return OutcomeRestart, deliveries
	default:
		return OutcomeEINTR, deliveries
	}
}

// InterruptedContext is the integer-register subset of a ucontext_t the
// spec requires be valid when a signal interrupts a blocked syscall (4.4,
// "context validity on syscall interruption"): it must point after the
// syscall instruction with the return register holding -EINTR, and a
// handler may mutate it to redirect the resumed thread.
type InterruptedContext struct {
	// InstructionPointer is the address immediately after the syscall
	// instruction that was interrupted.
	InstructionPointer uint64
	// ReturnRegister is the register the kernel would place the syscall
	// result in on resume; starts at the two's-complement encoding of
	// -EINTR (spec 4.4) and may be overwritten by the handler before
	// setcontext.
	ReturnRegister int64
}

// EINTRContext builds the ucontext contract spec 4.4 requires for a
// syscall interrupted by a non-restarting signal.
func EINTRContext(resumeAt uint64) InterruptedContext {
	const eintr = 4 // Linux EINTR
	return InterruptedContext{InstructionPointer: resumeAt, ReturnRegister: -eintr}
}

// FaultContext is the ucontext contract for a hardware fault (4.4,
// "modifying integer registers in the context ... resumes the managed
// thread at the modified location"); InstructionPointer holds where
// execution trapped, and the handler may redirect the thread by mutating it.
type FaultContext struct {
	InstructionPointer uint64
}
