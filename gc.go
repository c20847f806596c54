package uniqtable

import (
	"sync"
	"sync/atomic"

	"github.com/shaia/go-uniqtable/internal/probe"
)

// Clear implements spec.md §4.E step 1: reset every bucket word and
// occupancy bit, reinstate the forbidden-slot invariant, and drop
// every worker's current-region cache. The bucket table and bitmaps
// 1–2 are cleared via internal/vmem's page-remap fast path; bitmap-3
// (notify) and bitmap-4 (custom-hash flags) are left untouched, per
// the recommended interpretation of spec.md §9's open question — see
// DESIGN.md.
func (t *Table) Clear() error {
	if err := t.tableMem.Clear(); err != nil {
		return err
	}
	if err := t.bitmap1Mem.Clear(); err != nil {
		return err
	}
	t.regionBits.Rebind(t.bitmap1Mem.Words())
	if err := t.bitmap2Mem.Clear(); err != nil {
		return err
	}
	t.occupancy.Rebind(t.bitmap2Mem.Words())

	t.markForbiddenSlots()
	t.alloc.ResetAll()
	return nil
}

// Mark atomically sets the occupancy bit for idx and reports whether
// this call flipped it from clear to set, so a recursive marker can
// avoid revisiting already-marked children (spec.md §4.E step 2).
func (t *Table) Mark(idx uint64) bool {
	return t.occupancy.SetAtomic(idx)
}

// IsMarked reads the occupancy bit for idx (spec.md §4.E step 3).
func (t *Table) IsMarked(idx uint64) bool {
	return t.occupancy.Get(idx)
}

// Unmark atomically clears the occupancy bit for idx and reports
// whether this call flipped it. Supplemented from llmsset_unmark
// (SPEC_FULL.md §12) for GC strategies that unmark incrementally
// rather than via a bulk Clear.
func (t *Table) Unmark(idx uint64) bool {
	return t.occupancy.ClearAtomic(idx)
}

// NotifyOnDead sets the notify bit for idx (spec.md §6 notify_on_dead):
// the DD layer calls this to request a dead_cb invocation once idx
// becomes unreachable.
func (t *Table) NotifyOnDead(idx uint64) {
	t.notify.SetAtomic(idx)
}

// CountMarked returns the population of bitmap-2 (spec.md §4.E
// "count_marked"), computed with the same divide-and-conquer skeleton
// RehashAll and NotifyAll use. The sweep is bounded by the active
// table_size, not max_size, matching llmsset_count_marked's own
// dbs->table_size bound (llmsset.c:521) — the reserved tail beyond
// table_size never holds live data.
func (t *Table) CountMarked() uint64 {
	var total atomic.Uint64
	t.parallelRange(0, t.tableSize.Load(), func(lo, hi uint64) {
		var n uint64
		for idx := lo; idx < hi; idx++ {
			if t.occupancy.Get(idx) {
				n++
			}
		}
		total.Add(n)
	})
	return total.Load()
}

// RehashAll recomputes and republishes a bucket for every marked data
// slot (spec.md §4.E step 4). Must run after Clear, while the bucket
// table is empty; distinct slots can still collide on a bucket since
// the table is never perfectly sparse, so rehashSlot walks the cache
// line and rehashes across lines just like the live insert path.
// Bounded by table_size, matching llmsset_rehash's dbs->table_size
// sweep (llmsset.c:492).
func (t *Table) RehashAll() {
	t.parallelRange(0, t.tableSize.Load(), func(lo, hi uint64) {
		for idx := lo; idx < hi; idx++ {
			if t.occupancy.Get(idx) {
				t.rehashSlot(idx)
			}
		}
	})
}

// rehashSlot implements spec.md §4.E's note that rehash_bucket's
// insertion differs from the live find_or_insert path: no release
// step, no equality check, and no custom-bit update — the slot's
// custom flag (bitmap-4) was preserved across Clear, since Clear never
// touches bitmap-4. It still walks the cache line and rehashes across
// lines exactly like the live path, since distinct marked slots
// routinely share an initial bucket under any nonzero load factor;
// only a second insert of the very same data slot would be a bug, and
// rehash never does that. If the probe threshold is exhausted the
// slot is left unplaced, matching the original's own assumption that
// this never happens on a table sized sanely relative to its
// population (llmsset_rehash_bucket returns 0 rather than aborting).
func (t *Table) rehashSlot(dataIdx uint64) {
	a, b := t.GetData(dataIdx)
	custom := t.hashCB != nil && t.customBits.GetAtomic(dataIdx)

	hash := t.initialHash(a, b, custom)
	tag := probe.Tag(hash)
	w := t.walker()
	buckets := t.tableWords()
	idx := w.InitialBucket(hash)
	last := idx
	var lineWalks uint64

	for {
		v := atomic.LoadUint64(&buckets[idx])
		if v == 0 && atomic.CompareAndSwapUint64(&buckets[idx], 0, probe.Pack(tag, dataIdx)) {
			return
		}

		idx = w.NextInLine(idx)
		if idx == last {
			lineWalks++
			if lineWalks == t.cfg.Threshold {
				return
			}
			hash = t.nextHash(hash, a, b, custom)
			tag = probe.Tag(hash)
			idx = w.InitialBucket(hash)
			last = idx
		}
	}
}

// NotifyAll implements spec.md §4.E step 5: for every slot with
// notify set and occupancy clear, invoke the registered dead_cb. A
// true result resurrects the slot; otherwise its notify bit is
// cleared. A no-op if no dead_cb is registered. Bounded by table_size,
// matching llmsset_notify_all's dbs->table_size sweep (llmsset.c:579).
func (t *Table) NotifyAll() {
	if t.onDead == nil {
		return
	}
	t.parallelRange(0, t.tableSize.Load(), func(lo, hi uint64) {
		for idx := lo; idx < hi; idx++ {
			if t.notify.Get(idx) && !t.occupancy.Get(idx) {
				if t.onDead(idx) {
					t.occupancy.SetAtomic(idx)
				} else {
					t.notify.ClearAtomic(idx)
				}
			}
		}
	})
}

// parallelRange is the divide-and-conquer fan-out spec.md §5 describes
// ("spawn(left); call(right); sync()"): ranges larger than
// Config.GCLeafSize are split in half and recursed concurrently, with
// the left half handed to a new goroutine and the right half run on
// the calling one.
func (t *Table) parallelRange(lo, hi uint64, leaf func(lo, hi uint64)) {
	if hi-lo <= t.cfg.GCLeafSize {
		leaf(lo, hi)
		return
	}
	mid := lo + (hi-lo)/2

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.parallelRange(lo, mid, leaf)
	}()
	t.parallelRange(mid, hi, leaf)
	wg.Wait()
}
