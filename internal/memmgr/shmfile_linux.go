// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package memmgr

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/bgrimm/netsim/internal/simerr"
)

// ShmFile is the anonymous memfd backing a process's co-mapped regions
// (spec 4.3, "Shared file"). It is exposed to the plugin through
// /proc/<simulator-pid>/fd/<n> -- neither side needs a named path on disk.
type ShmFile struct {
	f   *os.File
	len uintptr
}

// NewShmFile allocates a fresh memfd for one managed process.
func NewShmFile(name string) (*ShmFile, error) {
	fd, err := unix.MemfdCreate(name, 0)
	if err != nil {
		return nil, simerr.Wrap(err, simerr.KindMemory, "memfd_create")
	}
	return &ShmFile{f: os.NewFile(uintptr(fd), name)}, nil
}

// Path is the /proc path the plugin opens to obtain its own fd into the
// same file.
func (s *ShmFile) Path() string {
	return fmt.Sprintf("/proc/%d/fd/%d", os.Getpid(), s.f.Fd())
}

// Fd returns the simulator-side file descriptor.
func (s *ShmFile) Fd() int { return int(s.f.Fd()) }

// Alloc ensures the file is at least through the end of iv. Matches the
// original's "lazy allocation" policy: this is a truncate-extend, not a
// pre-reservation -- the OS allocates pages on demand as they're written
// (spec 4.3 step 1, spec 5 "sized with ftruncate").
func (s *ShmFile) Alloc(iv Interval) error {
	if iv.End <= s.len {
		return nil
	}
	if err := unix.Ftruncate(s.Fd(), int64(iv.End)); err != nil {
		return simerr.Wrap(err, simerr.KindMemory, "ftruncate")
	}
	s.len = iv.End
	return nil
}

// PunchHole deallocates the backing pages for rng without shrinking the
// file (spec 5: "holes are punched with fallocate(PUNCH_HOLE|KEEP_SIZE) on
// munmap/shrink").
func (s *ShmFile) PunchHole(rng Interval) error {
	if rng.Start >= rng.End {
		return nil
	}
	err := unix.Fallocate(s.Fd(), unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE,
		int64(rng.Start), int64(rng.Len()))
	if err != nil {
		return simerr.Wrap(err, simerr.KindMemory, "fallocate")
	}
	return nil
}

// MapSimulatorSide maps [iv.Start, iv.End) of the shared file into the
// simulator's own address space, read-write, shared (spec 4.3 step 2).
func (s *ShmFile) MapSimulatorSide(iv Interval) (uintptr, error) {
	data, err := unix.Mmap(s.Fd(), int64(iv.Start), int(iv.Len()),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return 0, simerr.Wrap(err, simerr.KindMemory, "mmap (simulator side)")
	}
	return uintptr(unsafePointer(data)), nil
}

// UnmapSimulatorSide reverses MapSimulatorSide.
func (s *ShmFile) UnmapSimulatorSide(base uintptr, length uintptr) error {
	data := bytesAt(base, int(length))
	if err := unix.Munmap(data); err != nil {
		return simerr.Wrap(err, simerr.KindMemory, "munmap (simulator side)")
	}
	return nil
}

func (s *ShmFile) Close() error { return s.f.Close() }

// protectSimulatorSide applies prot to the simulator's own view of a
// co-mapped region, the second half of spec 4.3's mprotect handler
// ("...including the simulator-side view").
func protectSimulatorSide(base, length uintptr, prot Prot) error {
	var native int
	if prot.Has(ProtRead) {
		native |= unix.PROT_READ
	}
	if prot.Has(ProtWrite) {
		native |= unix.PROT_WRITE
	}
	if prot.Has(ProtExec) {
		native |= unix.PROT_EXEC
	}
	if err := unix.Mprotect(bytesAt(base, int(length)), native); err != nil {
		return simerr.Wrap(err, simerr.KindMemory, "mprotect (simulator side)")
	}
	return nil
}
