// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package memmgr

import "github.com/bgrimm/netsim/internal/simerr"

// Read copies len(buf) bytes of plugin memory starting at addr into buf,
// using the mapped path when the whole range lies in one co-mapped,
// properly aligned region, and falling back to the copier path otherwise
// (spec 4.3, "Access paths"). tid is the plugin's currently-running
// native thread id; the copier path must address the thread, not the pid,
// since pid lookups fail after the thread-group leader exits.
func (m *MemoryManager) Read(tid int, addr uintptr, buf []byte, align uintptr) error {
	if align > 0 && addr%align == 0 {
		if region, ok := m.regs.Contains(Interval{addr, addr + uintptr(len(buf))}); ok && region.CoMapped() {
			off, err := m.shadowOffset(region, addr)
			if err != nil {
				return err
			}
			copy(buf, bytesAt(off, len(buf)))
			return nil
		}
	}
	return m.copierRead(tid, addr, buf)
}

// Write mirrors Read for the write direction.
func (m *MemoryManager) Write(tid int, addr uintptr, buf []byte, align uintptr) error {
	if align > 0 && addr%align == 0 {
		if region, ok := m.regs.Contains(Interval{addr, addr + uintptr(len(buf))}); ok && region.CoMapped() {
			off, err := m.shadowOffset(region, addr)
			if err != nil {
				return err
			}
			copy(bytesAt(off, len(buf)), buf)
			return nil
		}
	}
	return m.copierWrite(tid, addr, buf)
}

// shadowOffset computes the simulator-side address corresponding to a
// plugin-side address within a co-mapped region.
func (m *MemoryManager) shadowOffset(region Region, addr uintptr) (uintptr, error) {
	iv, got, ok := m.regs.Get(addr)
	if !ok || got.ShadowBase != region.ShadowBase {
		return 0, simerr.New(simerr.KindMemory, "region vanished between lookup and access")
	}
	return region.ShadowBase + (addr - iv.Start), nil
}

// copierRead performs a process_vm_readv-based read, splitting the request
// at page boundaries so a read spanning an unmapped page fails only for
// the unmapped portion (spec 4.3 "Access paths"; supplemented behavior
// from original_source/memory_manager.rs, SPEC_FULL section C item 4).
func (m *MemoryManager) copierRead(tid int, addr uintptr, buf []byte) error {
	return m.forEachPage(addr, len(buf), func(off int, pageAddr uintptr, n int) error {
		got, err := m.ops.ReadAt(tid, pageAddr, buf[off:off+n])
		if err != nil {
			return simerr.Wrap(err, simerr.KindMemory, "process_vm_readv")
		}
		if got != n {
			return simerr.Attr(simerr.New(simerr.KindMemory, "short read"), "addr", pageAddr)
		}
		return nil
	})
}

func (m *MemoryManager) copierWrite(tid int, addr uintptr, buf []byte) error {
	return m.forEachPage(addr, len(buf), func(off int, pageAddr uintptr, n int) error {
		got, err := m.ops.WriteAt(tid, pageAddr, buf[off:off+n])
		if err != nil {
			return simerr.Wrap(err, simerr.KindMemory, "process_vm_writev")
		}
		if got != n {
			return simerr.Attr(simerr.New(simerr.KindMemory, "short write"), "addr", pageAddr)
		}
		return nil
	})
}

// forEachPage splits [addr, addr+length) into per-page chunks, invoking fn
// with the byte offset into the original request, the chunk's start
// address, and its length.
func (m *MemoryManager) forEachPage(addr uintptr, length int, fn func(off int, addr uintptr, n int) error) error {
	end := addr + uintptr(length)
	off := 0
	for cur := addr; cur < end; {
		pageEnd := (cur/pageSize + 1) * pageSize
		if pageEnd > end {
			pageEnd = end
		}
		n := int(pageEnd - cur)
		if err := fn(off, cur, n); err != nil {
			return err
		}
		off += n
		cur = pageEnd
	}
	return nil
}
