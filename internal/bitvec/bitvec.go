// Package bitvec implements the bit-vector primitives shared by the
// table's four bitmaps: atomic and non-atomic get/set/clear of
// individual bits, and first-clear-bit search within a word.
//
// Bits are numbered MSB-first within each 64-bit word: bit index k
// lives in word k/64, at mask 1<<(63-(k%64)).
package bitvec

import (
	"math/bits"
	"sync/atomic"
)

// Vector is a fixed-size array of bits backed by a []uint64.
type Vector struct {
	words []uint64
}

// New allocates a vector large enough to hold nbits bits, all clear.
func New(nbits uint64) *Vector {
	return &Vector{words: make([]uint64, wordCount(nbits))}
}

// Wrap adapts an existing word slice (e.g. one backed by a memory
// mapping) as a Vector without copying.
func Wrap(words []uint64) *Vector {
	return &Vector{words: words}
}

func wordCount(nbits uint64) uint64 {
	return (nbits + 63) / 64
}

func split(k uint64) (word uint64, mask uint64) {
	return k / 64, uint64(1) << (63 - (k % 64))
}

// Words exposes the backing storage, e.g. for bulk clearing.
func (v *Vector) Words() []uint64 { return v.words }

// Rebind repoints the vector at a new backing array, used after the
// table's mmap-remap clear replaces a bitmap's underlying storage.
func (v *Vector) Rebind(words []uint64) { v.words = words }

// Len returns the bit capacity of the vector.
func (v *Vector) Len() uint64 { return uint64(len(v.words)) * 64 }

// Get reads bit k (plain load, no ordering guarantees beyond program order).
func (v *Vector) Get(k uint64) bool {
	w, m := split(k)
	return v.words[w]&m != 0
}

// GetAtomic reads bit k with an atomic load, for bits contended with
// concurrent SetAtomic/ClearAtomic callers.
func (v *Vector) GetAtomic(k uint64) bool {
	w, m := split(k)
	return atomic.LoadUint64(&v.words[w])&m != 0
}

// SetPlain sets bit k with a non-atomic read-modify-write. Safe only
// when the caller has sole-writer access to the word (e.g. a worker's
// own region, or the table owns the vector exclusively during GC).
func (v *Vector) SetPlain(k uint64) {
	w, m := split(k)
	v.words[w] |= m
}

// ClearPlain clears bit k with a non-atomic read-modify-write.
func (v *Vector) ClearPlain(k uint64) {
	w, m := split(k)
	v.words[w] &^= m
}

// SetAtomic sets bit k with a CAS retry loop and reports whether this
// call was the one that flipped the bit from 0 to 1.
func (v *Vector) SetAtomic(k uint64) bool {
	w, m := split(k)
	addr := &v.words[w]
	for {
		old := atomic.LoadUint64(addr)
		if old&m != 0 {
			return false
		}
		if atomic.CompareAndSwapUint64(addr, old, old|m) {
			return true
		}
	}
}

// ClearAtomic clears bit k with a CAS retry loop and reports whether
// this call was the one that flipped the bit from 1 to 0.
func (v *Vector) ClearAtomic(k uint64) bool {
	w, m := split(k)
	addr := &v.words[w]
	for {
		old := atomic.LoadUint64(addr)
		if old&m == 0 {
			return false
		}
		if atomic.CompareAndSwapUint64(addr, old, old&^m) {
			return true
		}
	}
}

// FirstClearInWord locates the highest-order clear bit within word
// wordIdx, the bit-vector equivalent of count-leading-zeros of the
// word's complement. Returns (bitIndex, true) on success, or
// (0, false) if the word is saturated (all ones).
func (v *Vector) FirstClearInWord(wordIdx uint64) (uint64, bool) {
	comp := ^v.words[wordIdx]
	lz := bits.LeadingZeros64(comp)
	if lz == 64 {
		return 0, false
	}
	return wordIdx*64 + uint64(lz), true
}

// PopCountRange sums the set bits of words [startWord, endWord).
func (v *Vector) PopCountRange(startWord, endWord uint64) uint64 {
	var n uint64
	for _, w := range v.words[startWord:endWord] {
		n += uint64(bits.OnesCount64(w))
	}
	return n
}

// ClearRange zeroes words [startWord, endWord) in place with the clear
// builtin. The table does not use it; its byte-fill fallback lives in
// internal/vmem.
func (v *Vector) ClearRange(startWord, endWord uint64) {
	clear(v.words[startWord:endWord])
}
