// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package memmgr

// Sharing distinguishes private-anonymous mappings (co-mappable) from
// shared or file-backed ones (tracked but accessed via the slow path).
type Sharing int

const (
	SharingPrivate Sharing = iota
	SharingShared
)

// Prot mirrors the PROT_* bits relevant to a mapping.
type Prot uint8

const (
	ProtRead Prot = 1 << iota
	ProtWrite
	ProtExec
)

func (p Prot) Has(bit Prot) bool { return p&bit != 0 }

// Region describes one entry of the plugin's address space (spec 3.5).
// ShadowBase is the address the same bytes are mapped at in the simulator's
// own address space; it is 0 when the region is not co-mapped and must be
// accessed through the slow copier path.
type Region struct {
	ShadowBase   uintptr
	Prot         Prot
	Sharing      Sharing
	OriginalPath string
	// FileOffset is this region's offset into the shared backing file,
	// valid only when ShadowBase != 0.
	FileOffset uintptr
}

// CoMapped reports whether this region has a zero-copy simulator-side view.
func (r Region) CoMapped() bool { return r.ShadowBase != 0 }

// coMappable reports whether a region of this shape is eligible for
// automatic co-mapping on mmap: private anonymous only (spec 4.3, "Only
// private anonymous mappings are co-mapped automatically on mmap").
func coMappable(sharing Sharing, path string) bool {
	return sharing == SharingPrivate && path == ""
}
