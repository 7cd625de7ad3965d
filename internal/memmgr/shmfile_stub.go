// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package memmgr

import "github.com/bgrimm/netsim/internal/simerr"

// ShmFile is unsupported outside Linux: memfd_create, process_vm_readv, and
// MAP_FIXED remapping into a foreign address space are Linux-specific. The
// simulator only ever runs managed native binaries under a Linux host.
type ShmFile struct{}

func NewShmFile(name string) (*ShmFile, error) {
	return nil, simerr.New(simerr.KindMemory, "memmgr: shared-file co-mapping requires linux")
}

func (s *ShmFile) Path() string                               { return "" }
func (s *ShmFile) Fd() int                                     { return -1 }
func (s *ShmFile) Alloc(iv Interval) error                     { return nil }
func (s *ShmFile) PunchHole(rng Interval) error                { return nil }
func (s *ShmFile) MapSimulatorSide(iv Interval) (uintptr, error) { return 0, nil }
func (s *ShmFile) UnmapSimulatorSide(base, length uintptr) error { return nil }
func (s *ShmFile) Close() error                                { return nil }

func protectSimulatorSide(base, length uintptr, prot Prot) error { return nil }
