// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package memmgr

import (
	"github.com/bgrimm/netsim/internal/simerr"
)

// pageSize is assumed 4KiB, matching the original's x86-64 target.
const pageSize = 4096

// PluginOps is the boundary between the memory manager's bookkeeping and
// whatever actually performs operations inside the managed process's
// address space -- the injected shim, or a ptrace-driven syscall
// injection. Spec section 1 specifies the shim "only by the syscalls and
// memory operations it must perform"; this interface is that contract.
type PluginOps interface {
	// MmapFixed performs the native mmap(addr, length, prot, MAP_FIXED|...,
	// fd, offset) inside the plugin.
	MmapFixed(addr, length uintptr, prot Prot, fd int, offset uintptr) error
	// Mremap performs the native mremap inside the plugin, returning the
	// resulting address (which may differ from oldAddr if mayMove).
	Mremap(oldAddr, oldSize, newSize uintptr, mayMove bool) (uintptr, error)
	Mprotect(addr, length uintptr, prot Prot) error
	Munmap(addr, length uintptr) error
	// ReadAt/WriteAt use the copier path (process_vm_readv/writev) against
	// the plugin thread identified by its native tid.
	ReadAt(tid int, addr uintptr, buf []byte) (int, error)
	WriteAt(tid int, addr uintptr, buf []byte) (int, error)
}

// MemoryManager is owned per process (spec 3.3, 3.5) and services all of
// that process's memory accesses and mman-family syscalls.
type MemoryManager struct {
	pid  int32
	ops  PluginOps
	shm  *ShmFile
	regs IntervalMap[Region]
	heap Interval
	// stackTop records the bounds of the top of the initial stack as
	// reported at process start. New only records heap and stackTop; it
	// does not co-map either region, and nothing in this package remaps
	// them afterwards.
	stackTop Interval
}

// New creates a memory manager for a freshly-started process. heap and
// stackTop are whatever /proc/<pid>/maps reported at process-start time,
// coalesced by the caller (spec 3.5, "Lifecycle").
func New(pid int32, ops PluginOps, heap, stackTop Interval) (*MemoryManager, error) {
	shm, err := NewShmFile(simErrShmName(pid))
	if err != nil {
		return nil, err
	}
	m := &MemoryManager{pid: pid, ops: ops, shm: shm, heap: heap, stackTop: stackTop}
	return m, nil
}

func simErrShmName(pid int32) string {
	return "flywall-netsim-plugin-mem"
}

// Close releases the shared file.
func (m *MemoryManager) Close() error {
	return m.shm.Close()
}

// Heap returns the current heap bounds.
func (m *MemoryManager) Heap() Interval { return m.heap }

// coMap remaps [iv.Start, iv.End) over the shared file so the simulator
// gains a zero-copy view (spec 4.3, "Remapping policy"). copyExisting, when
// true, copies the region's current contents into the file before the
// plugin-side MAP_FIXED mmap replaces it, for regions that already hold
// live data; every current caller passes false.
func (m *MemoryManager) coMap(iv Interval, prot Prot, copyExisting bool, tid int) (Region, error) {
	if err := m.shm.Alloc(iv); err != nil {
		return Region{}, err
	}

	if copyExisting {
		buf := make([]byte, iv.Len())
		if _, err := m.ops.ReadAt(tid, iv.Start, buf); err != nil {
			return Region{}, simerr.Wrap(err, simerr.KindMemory, "snapshot region before co-mapping")
		}
		fileView, err := m.shm.MapSimulatorSide(Interval{0, iv.Len()})
		if err != nil {
			return Region{}, err
		}
		copy(bytesAt(fileView, int(iv.Len())), buf)
		if err := m.shm.UnmapSimulatorSide(fileView, iv.Len()); err != nil {
			return Region{}, err
		}
	}

	shadowBase, err := m.shm.MapSimulatorSide(Interval{0, iv.Len()})
	if err != nil {
		return Region{}, err
	}

	if err := m.ops.MmapFixed(iv.Start, iv.Len(), prot, m.shm.Fd(), 0); err != nil {
		return Region{}, simerr.Wrap(err, simerr.KindMemory, "MAP_FIXED into plugin")
	}

	return Region{ShadowBase: shadowBase, Prot: prot, Sharing: SharingPrivate}, nil
}

// deallocateMutation releases whatever backing resource a Mutation freed:
// shared-file bytes for the vacated range, and the simulator-side mmap if
// the whole region is gone.
func (m *MemoryManager) deallocateMutation(mut Mutation[Region]) error {
	if !mut.Value.CoMapped() {
		return nil
	}
	if err := m.shm.PunchHole(mut.Removed); err != nil {
		return err
	}
	if mut.Kind == Removed {
		return m.shm.UnmapSimulatorSide(mut.Value.ShadowBase, mut.Original.Len())
	}
	return nil
}

// HandleMmap implements spec 4.3's mmap handler: perform the native mmap
// in the plugin, then update the interval map; private-anonymous regions
// are re-mapped over the shared file.
func (m *MemoryManager) HandleMmap(tid int, addr, length uintptr, prot Prot, sharing Sharing, path string, fd int, offset uintptr) (Interval, error) {
	iv := Interval{addr, addr + length}

	if coMappable(sharing, path) {
		region, err := m.coMap(iv, prot, false, tid)
		if err != nil {
			return Interval{}, err
		}
		for _, mut := range m.regs.Insert(iv, region) {
			if err := m.deallocateMutation(mut); err != nil {
				return Interval{}, err
			}
		}
		return iv, nil
	}

	if err := m.ops.MmapFixed(addr, length, prot, fd, offset); err != nil {
		return Interval{}, simerr.Wrap(err, simerr.KindMemory, "mmap")
	}
	region := Region{Prot: prot, Sharing: sharing, OriginalPath: path}
	for _, mut := range m.regs.Insert(iv, region) {
		if err := m.deallocateMutation(mut); err != nil {
			return Interval{}, err
		}
	}
	return iv, nil
}

// HandleMunmap implements spec 4.3's munmap handler.
func (m *MemoryManager) HandleMunmap(addr, length uintptr) error {
	iv := Interval{addr, addr + length}
	if err := m.ops.Munmap(addr, length); err != nil {
		return simerr.Wrap(err, simerr.KindMemory, "munmap")
	}
	for _, mut := range m.regs.Clear(iv) {
		if err := m.deallocateMutation(mut); err != nil {
			return err
		}
	}
	return nil
}

// HandleMprotect implements spec 4.3's mprotect handler: native mprotect
// first, then apply prot to every tracked region (and mutation) in range,
// including the simulator-side view.
func (m *MemoryManager) HandleMprotect(addr, length uintptr, prot Prot) error {
	if err := m.ops.Mprotect(addr, length, prot); err != nil {
		return simerr.Wrap(err, simerr.KindMemory, "mprotect")
	}

	iv := Interval{addr, addr + length}
	for _, mut := range m.regs.Clear(iv) {
		updated := mut.Value
		updated.Prot = prot
		newIv := mut.Removed
		if mut.Kind == ModifiedBegin || mut.Kind == ModifiedEnd || mut.Kind == Split {
			newIv = intersect(mut.Original, iv)
		}
		m.regs.Insert(newIv, updated)
		if updated.CoMapped() {
			if err := protectSimulatorSide(updated.ShadowBase, newIv.Len(), prot); err != nil {
				return err
			}
		}
	}
	return nil
}

func intersect(a, b Interval) Interval {
	start := a.Start
	if b.Start > start {
		start = b.Start
	}
	end := a.End
	if b.End < end {
		end = b.End
	}
	if start > end {
		start = end
	}
	return Interval{start, end}
}

// HandleBrk implements spec 4.3's brk handler.
func (m *MemoryManager) HandleBrk(tid int, p uintptr) (uintptr, error) {
	if p < m.heap.Start {
		return m.heap.End, nil
	}
	if p == m.heap.End {
		return m.heap.End, nil
	}

	newHeap := Interval{m.heap.Start, p}

	if p > m.heap.End {
		if err := m.shm.Alloc(Interval{0, newHeap.Len()}); err != nil {
			return 0, err
		}
		newAddr, err := m.ops.Mremap(m.heap.Start, m.heap.Len(), newHeap.Len(), false)
		if err != nil {
			return 0, simerr.Wrap(err, simerr.KindMemory, "mremap (plugin heap grow)")
		}
		if newAddr != m.heap.Start {
			return 0, simerr.New(simerr.KindMemory, "heap grow must not move the base address")
		}
		m.heap = newHeap
		return m.heap.End, nil
	}

	// Shrink: mirror the grow path, then deallocate the freed tail.
	freed := Interval{newHeap.End, m.heap.End}
	newAddr, err := m.ops.Mremap(m.heap.Start, m.heap.Len(), newHeap.Len(), false)
	if err != nil {
		return 0, simerr.Wrap(err, simerr.KindMemory, "mremap (plugin heap shrink)")
	}
	if newAddr != m.heap.Start {
		return 0, simerr.New(simerr.KindMemory, "heap shrink must not move the base address")
	}
	if err := m.shm.PunchHole(Interval{newHeap.Len(), m.heap.Len()}); err != nil {
		return 0, err
	}
	m.heap = newHeap
	_ = freed
	return m.heap.End, nil
}

// HandleMremap implements spec 4.3's mremap handler. It has no special
// case for old_size==0 with MREMAP_MAYMOVE: that call is handled like any
// other mremap, and no copy of a shared mapping is made.
func (m *MemoryManager) HandleMremap(tid int, oldAddr, oldSize, newSize uintptr, mayMove bool) (uintptr, error) {
	oldIv := Interval{oldAddr, oldAddr + oldSize}
	region, wasTracked := m.regs.Contains(oldIv)

	newAddr, err := m.ops.Mremap(oldAddr, oldSize, newSize, mayMove)
	if err != nil {
		return 0, simerr.Wrap(err, simerr.KindMemory, "mremap")
	}

	for _, mut := range m.regs.Clear(oldIv) {
		if err := m.deallocateMutation(mut); err != nil {
			return 0, err
		}
	}

	if !wasTracked || !region.CoMapped() {
		if wasTracked {
			m.regs.Insert(Interval{newAddr, newAddr + newSize}, region)
		}
		return newAddr, nil
	}

	newRegion, err := m.coMap(Interval{newAddr, newAddr + newSize}, region.Prot, false, tid)
	if err != nil {
		return 0, err
	}
	if newAddr != oldAddr {
		n := oldSize
		if newSize < n {
			n = newSize
		}
		buf := make([]byte, n)
		copy(buf, bytesAt(region.ShadowBase, int(n)))
		copy(bytesAt(newRegion.ShadowBase, int(n)), buf)
	}
	m.regs.Insert(Interval{newAddr, newAddr + newSize}, newRegion)
	return newAddr, nil
}
