// Package vmem reserves the process-lifetime memory regions backing
// the table: the bucket array, the data array, and the four bitmaps
// (spec.md §6's sizing table), and implements the "page-remap clear"
// fast path described in spec.md §4.E with a byte-fill fallback.
package vmem

import "unsafe"

// Region is a reserved span of anonymous memory, reinterpretable as a
// []uint64 word array.
type Region struct {
	data []byte
}

// Bytes exposes the region's backing storage.
func (r *Region) Bytes() []byte {
	return r.data
}

// Words reinterprets the region as a []uint64. Callers must not hold
// onto the returned slice across a Clear call: Clear may replace the
// region's backing storage with a fresh mapping.
func (r *Region) Words() []uint64 {
	if len(r.data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&r.data[0])), len(r.data)/8)
}

// Len reports the region's byte capacity.
func (r *Region) Len() uint64 {
	return uint64(len(r.data))
}
