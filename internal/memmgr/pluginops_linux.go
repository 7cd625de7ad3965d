// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package memmgr

import (
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bgrimm/netsim/internal/simerr"
)

// PtracePluginOps drives a managed process's mman-family syscalls via
// ptrace syscall injection: it sets up the tracee's registers for the
// desired syscall, lets it execute exactly one syscall instruction, and
// reads back the result. This is the non-shim path spec section 3.5
// implies as an alternative to an in-process shim -- the shim library
// itself is out of scope (spec section 1).
type PtracePluginOps struct {
	// leaderTid is the thread that executes injected mmap-family syscalls.
	// Any stopped thread in the process works since these syscalls act on
	// the whole address space; ReadAt/WriteAt take their own tid per call
	// since process_vm_readv/writev address a specific thread's memory view.
	leaderTid int
}

// NewPtracePluginOps builds a PluginOps that injects syscalls into the
// given thread, which must already be ptrace-attached and stopped.
func NewPtracePluginOps(leaderTid int) *PtracePluginOps {
	return &PtracePluginOps{leaderTid: leaderTid}
}

func (p *PtracePluginOps) injectSyscall(tid int, nr uintptr, args [6]uintptr) (uintptr, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(tid, &regs); err != nil {
		return 0, simerr.Wrap(err, simerr.KindMemory, "ptrace getregs")
	}
	saved := regs

	regs.Rax = uint64(nr)
	regs.Rdi = uint64(args[0])
	regs.Rsi = uint64(args[1])
	regs.Rdx = uint64(args[2])
	regs.R10 = uint64(args[3])
	regs.R8 = uint64(args[4])
	regs.R9 = uint64(args[5])
	// Rewind rip to the syscall instruction the tracee is parked on; the
	// caller is expected to have stopped the tracee immediately after its
	// own syscall instruction, per the signal-interruption contract
	// (spec section 4.4).
	regs.Rip = saved.Rip - 2

	if err := unix.PtraceSetRegs(tid, &regs); err != nil {
		return 0, simerr.Wrap(err, simerr.KindMemory, "ptrace setregs")
	}
	if err := unix.PtraceSyscall(tid, 0); err != nil {
		return 0, simerr.Wrap(err, simerr.KindMemory, "ptrace syscall-step")
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(tid, &ws, 0, nil); err != nil {
		return 0, simerr.Wrap(err, simerr.KindMemory, "wait4")
	}

	var after unix.PtraceRegs
	if err := unix.PtraceGetRegs(tid, &after); err != nil {
		return 0, simerr.Wrap(err, simerr.KindMemory, "ptrace getregs (result)")
	}
	result := uintptr(after.Rax)

	// Restore the registers the tracee had before we parked it here; the
	// caller resumes it separately once bookkeeping is done.
	if err := unix.PtraceSetRegs(tid, &saved); err != nil {
		return 0, simerr.Wrap(err, simerr.KindMemory, "ptrace restore regs")
	}

	if int64(result) < 0 && int64(result) > -4096 {
		return 0, syscall.Errno(-int64(result))
	}
	return result, nil
}

func (p *PtracePluginOps) MmapFixed(addr, length uintptr, prot Prot, fd int, offset uintptr) error {
	nativeProt := nativeProt(prot)
	flags := unix.MAP_FIXED | unix.MAP_SHARED
	_, err := p.injectSyscall(p.leaderTid, unix.SYS_MMAP, [6]uintptr{addr, length, uintptr(nativeProt), uintptr(flags), uintptr(fd), offset})
	return err
}

func (p *PtracePluginOps) Mremap(oldAddr, oldSize, newSize uintptr, mayMove bool) (uintptr, error) {
	flags := uintptr(0)
	if mayMove {
		flags = unix.MREMAP_MAYMOVE
	}
	return p.injectSyscall(p.leaderTid, unix.SYS_MREMAP, [6]uintptr{oldAddr, oldSize, newSize, flags, 0, 0})
}

func (p *PtracePluginOps) Mprotect(addr, length uintptr, prot Prot) error {
	_, err := p.injectSyscall(p.leaderTid, unix.SYS_MPROTECT, [6]uintptr{addr, length, uintptr(nativeProt(prot)), 0, 0, 0})
	return err
}

func (p *PtracePluginOps) Munmap(addr, length uintptr) error {
	_, err := p.injectSyscall(p.leaderTid, unix.SYS_MUNMAP, [6]uintptr{addr, length, 0, 0, 0, 0})
	return err
}

func (p *PtracePluginOps) ReadAt(tid int, addr uintptr, buf []byte) (int, error) {
	local := []unix.Iovec{{Base: &buf[0], Len: uint64(len(buf))}}
	remote := []unix.RemoteIovec{{Base: addr, Len: len(buf)}}
	return unix.ProcessVMReadv(tid, local, remote, 0)
}

func (p *PtracePluginOps) WriteAt(tid int, addr uintptr, buf []byte) (int, error) {
	local := []unix.Iovec{{Base: &buf[0], Len: uint64(len(buf))}}
	remote := []unix.RemoteIovec{{Base: addr, Len: len(buf)}}
	return unix.ProcessVMWritev(tid, local, remote, 0)
}

func nativeProt(prot Prot) int {
	n := unix.PROT_NONE
	if prot.Has(ProtRead) {
		n |= unix.PROT_READ
	}
	if prot.Has(ProtWrite) {
		n |= unix.PROT_WRITE
	}
	if prot.Has(ProtExec) {
		n |= unix.PROT_EXEC
	}
	return n
}
