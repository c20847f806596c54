package uniqtable

import (
	"sync/atomic"

	"github.com/shaia/go-uniqtable/internal/probe"
	"github.com/shaia/go-uniqtable/internal/region"
)

// Lookup is the default-hash find-or-insert entry point (spec.md §6
// lookup). workerID selects which region-allocator slot claims a new
// data slot on an insert; callers with a fixed worker pool should pass
// a stable id in [0, Config.WorkerCount).
func (t *Table) Lookup(workerID, a, b uint64) (uint64, bool, error) {
	return t.findOrInsert(workerID, a, b, false)
}

// LookupCustom is the custom-hash find-or-insert entry point
// (spec.md §6 lookup_custom). Requires a prior SetCustomHasher call.
func (t *Table) LookupCustom(workerID, a, b uint64) (uint64, bool, error) {
	if t.hashCB == nil || t.equalsCB == nil {
		return 0, false, ErrNoCustomHasher
	}
	return t.findOrInsert(workerID, a, b, true)
}

func (t *Table) initialHash(a, b uint64, custom bool) uint64 {
	if custom {
		return t.hashCB(a, b, probe.DefaultSeed)
	}
	return probe.DefaultHash(a, b)
}

func (t *Table) nextHash(prev, a, b uint64, custom bool) uint64 {
	if custom {
		return t.hashCB(a, b, prev)
	}
	return probe.Rehash(prev, a, b)
}

// findOrInsert implements spec.md §4.D's find_or_insert exactly: the
// CAS on the bucket word is the linearization point, a losing racer on
// the same key releases its speculatively-claimed slot, and the walk
// stays within one cache line per hash before rehashing.
func (t *Table) findOrInsert(workerID, a, b uint64, custom bool) (uint64, bool, error) {
	w := t.walker()
	buckets := t.tableWords()

	hash := t.initialHash(a, b, custom)
	tag := probe.Tag(hash)
	idx := w.InitialBucket(hash)
	last := idx

	var cidx uint64
	var lineWalks uint64

	for {
		v := atomic.LoadUint64(&buckets[idx])

		if v == 0 {
			if cidx == 0 {
				claimed := t.alloc.Claim(workerID)
				if claimed == region.Full {
					return 0, false, ErrTableFull
				}
				cidx = claimed
				t.setData(cidx, a, b)
			}
			newWord := probe.Pack(tag, cidx)
			if atomic.CompareAndSwapUint64(&buckets[idx], 0, newWord) {
				t.tagCustomSlot(cidx, custom)
				return cidx, true, nil
			}
			// Lost the race for this bucket; reread and fall through
			// to the match/advance checks below without consuming a
			// probe step.
			v = atomic.LoadUint64(&buckets[idx])
			if v == 0 {
				continue
			}
		}

		if probe.BucketTag(v) == tag {
			existing := probe.BucketIndex(v)
			ea, eb := t.GetData(existing)
			match := false
			if custom {
				match = t.equalsCB(a, b, ea, eb)
			} else {
				match = a == ea && b == eb
			}
			if match {
				if cidx != 0 {
					t.alloc.Release(cidx)
				}
				return existing, false, nil
			}
		}

		idx = w.NextInLine(idx)
		if idx == last {
			lineWalks++
			if lineWalks == t.cfg.Threshold {
				if cidx != 0 {
					t.alloc.Release(cidx)
				}
				return 0, false, ErrTableFull
			}
			hash = t.nextHash(hash, a, b, custom)
			tag = probe.Tag(hash)
			idx = w.InitialBucket(hash)
			last = idx
		}
	}
}

// tagCustomSlot records, in bitmap-4, which hasher produced the tag
// now stored at cidx. See DESIGN.md for why this lives in bitmap-4
// rather than reusing bitmap-2's occupancy bit the way the original
// implementation does.
func (t *Table) tagCustomSlot(cidx uint64, custom bool) {
	if custom {
		t.customBits.SetAtomic(cidx)
	} else if t.hashCB != nil {
		t.customBits.ClearAtomic(cidx)
	}
}

// IsCustomSlot reports whether cidx's tag was last computed with the
// custom hasher (SPEC_FULL.md §12 supplemented introspection).
func (t *Table) IsCustomSlot(cidx uint64) bool {
	return t.customBits.GetAtomic(cidx)
}
