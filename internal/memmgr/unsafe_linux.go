// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package memmgr

import "unsafe"

// unsafePointer returns the address of a mmap'd byte slice's backing array.
// This is the one place the memory mapper steps outside Go's memory model:
// the slice returned by unix.Mmap is backed by a page the kernel, not the Go
// runtime, owns, and we need its raw address to hand a pointer range to the
// plugin-side views tracked by the interval map.
func unsafePointer(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

// bytesAt reconstructs a byte slice view over a raw address and length,
// the inverse of unsafePointer, for unmapping or direct access.
func bytesAt(addr uintptr, length int) []byte {
	if length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
}
