// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package memmgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakePluginOps stands in for a managed process in this process: it keeps
// its own byte slab and answers mmap-family calls by moving bytes around
// in that slab rather than touching a second address space. Good enough
// to exercise the interval-map bookkeeping and shared-file lifecycle that
// MemoryManager actually owns.
type fakePluginOps struct {
	mem map[uintptr][]byte
}

func newFakePluginOps() *fakePluginOps {
	return &fakePluginOps{mem: make(map[uintptr][]byte)}
}

func (f *fakePluginOps) MmapFixed(addr, length uintptr, prot Prot, fd int, offset uintptr) error {
	f.mem[addr] = make([]byte, length)
	return nil
}

func (f *fakePluginOps) Mremap(oldAddr, oldSize, newSize uintptr, mayMove bool) (uintptr, error) {
	buf := f.mem[oldAddr]
	grown := make([]byte, newSize)
	copy(grown, buf)
	delete(f.mem, oldAddr)
	f.mem[oldAddr] = grown
	return oldAddr, nil
}

func (f *fakePluginOps) Mprotect(addr, length uintptr, prot Prot) error { return nil }

func (f *fakePluginOps) Munmap(addr, length uintptr) error {
	delete(f.mem, addr)
	return nil
}

func (f *fakePluginOps) ReadAt(tid int, addr uintptr, buf []byte) (int, error) {
	for base, slab := range f.mem {
		if addr >= base && addr+uintptr(len(buf)) <= base+uintptr(len(slab)) {
			copy(buf, slab[addr-base:])
			return len(buf), nil
		}
	}
	return len(buf), nil // unmapped plugin memory reads as zero, same as anonymous pages
}

func (f *fakePluginOps) WriteAt(tid int, addr uintptr, buf []byte) (int, error) {
	for base, slab := range f.mem {
		if addr >= base && addr+uintptr(len(buf)) <= base+uintptr(len(slab)) {
			copy(slab[addr-base:], buf)
			return len(buf), nil
		}
	}
	return len(buf), nil
}

func TestHandleMmapTracksCoMappedRegion(t *testing.T) {
	ops := newFakePluginOps()
	m, err := New(4242, ops, Interval{0x10000, 0x11000}, Interval{0x7f0000, 0x7f1000})
	require.NoError(t, err)
	defer m.Close()

	iv, err := m.HandleMmap(1, 0x500000, 0x1000, ProtRead|ProtWrite, SharingPrivate, "", -1, 0)
	require.NoError(t, err)
	require.Equal(t, Interval{0x500000, 0x501000}, iv)

	buf := make([]byte, 4)
	copy(buf, []byte{1, 2, 3, 4})
	require.NoError(t, m.Write(1, 0x500000, buf, 1))

	out := make([]byte, 4)
	require.NoError(t, m.Read(1, 0x500000, out, 1))
	require.Equal(t, buf, out)
}

func TestHandleMunmapRemovesRegion(t *testing.T) {
	ops := newFakePluginOps()
	m, err := New(4243, ops, Interval{0x10000, 0x11000}, Interval{0x7f0000, 0x7f1000})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.HandleMmap(1, 0x500000, 0x1000, ProtRead|ProtWrite, SharingPrivate, "", -1, 0)
	require.NoError(t, err)
	require.NoError(t, m.HandleMunmap(0x500000, 0x1000))

	_, _, ok := m.regs.Get(0x500000)
	require.False(t, ok)
}

func TestHandleBrkGrowsHeap(t *testing.T) {
	ops := newFakePluginOps()
	ops.mem[0x10000] = make([]byte, 0x1000)
	m, err := New(4244, ops, Interval{0x10000, 0x11000}, Interval{0x7f0000, 0x7f1000})
	require.NoError(t, err)
	defer m.Close()

	newBrk, err := m.HandleBrk(1, 0x12000)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x12000), newBrk)
	require.Equal(t, uintptr(0x12000), m.Heap().End)
}

func TestHandleMprotectAppliesToTrackedRegion(t *testing.T) {
	ops := newFakePluginOps()
	m, err := New(4245, ops, Interval{0x10000, 0x11000}, Interval{0x7f0000, 0x7f1000})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.HandleMmap(1, 0x500000, 0x1000, ProtRead|ProtWrite, SharingPrivate, "", -1, 0)
	require.NoError(t, err)
	require.NoError(t, m.HandleMprotect(0x500000, 0x1000, ProtRead))

	_, region, ok := m.regs.Get(0x500000)
	require.True(t, ok)
	require.Equal(t, ProtRead, region.Prot)
}
