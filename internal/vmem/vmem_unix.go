//go:build unix

package vmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Reserve maps maxBytes of anonymous, zero-filled memory. This is the
// virtual-address-space reservation spec.md §3's Lifecycle section
// describes: the whole span is mapped up front, and only the first
// table_size-derived prefix is ever touched.
func Reserve(maxBytes uint64) (*Region, error) {
	if maxBytes == 0 {
		return &Region{}, nil
	}
	data, err := unix.Mmap(-1, 0, int(maxBytes), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("vmem: mmap %d bytes: %w", maxBytes, err)
	}
	return &Region{data: data}, nil
}

// Clear replaces the region's pages with fresh anonymous zero pages,
// the mmap-remap optimization spec.md §4.E describes in place of a
// memset. Falls back to a byte-fill if the remap itself fails.
func (r *Region) Clear() error {
	if len(r.data) == 0 {
		return nil
	}
	fresh, err := unix.Mmap(-1, 0, len(r.data), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		r.ClearByteFill()
		return nil
	}
	old := r.data
	r.data = fresh
	_ = unix.Munmap(old)
	return nil
}

// ClearByteFill zeroes the region in place without remapping, the
// fallback path spec.md §4.E requires alongside the mmap optimization.
func (r *Region) ClearByteFill() {
	clear(r.data)
}

// Release unmaps the region. Construction-time allocation failure is
// the one case spec.md §7 calls fatal and unrecoverable; a failure to
// unmap a process-lifetime region on Close is surfaced as an error
// instead, since by that point the table is already being torn down.
func (r *Region) Release() error {
	if len(r.data) == 0 {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	if err != nil {
		return fmt.Errorf("vmem: munmap: %w", err)
	}
	return nil
}
