// Package region implements the two-level data-slot allocator: a
// region-ownership bitmap (bitmap-1) contended across workers via
// CAS, and within an owned region, exclusive first-clear-bit scans
// of the occupancy bitmap (bitmap-2).
//
// Per spec.md §9's required re-architecture, the "current region"
// cache is not a process-global thread-local but a plain slice on the
// Allocator, indexed by worker id, so a process can host more than one
// table concurrently.
package region

import (
	"sync/atomic"

	"github.com/shaia/go-uniqtable/internal/bitvec"
)

// noRegion marks a worker as not currently owning any region.
const noRegion = ^uint64(0)

// Full is the failure sentinel returned by Claim when no region has
// a free slot, matching spec.md §4.B step 2's u64::MAX.
const Full = ^uint64(0)

// Allocator assigns unique data-slot indices to workers.
type Allocator struct {
	regions     *bitvec.Vector // bitmap-1: one bit per region
	occupancy   *bitvec.Vector // bitmap-2: one bit per slot
	regionSize  uint64         // slots per region (must be a multiple of 64)
	wordsPer    uint64         // words per region = regionSize/64
	regionCount uint64         // occupancy.Len()/regionSize, the max region count the bitmaps can address

	workerCount uint64
	current     []atomic.Uint64 // per-worker current-region cache
	active      atomic.Uint64   // region-claim ceiling, tracking table_size rather than max_size
}

// New builds an allocator over an externally-owned region-ownership
// bitmap (bitmap-1) and occupancy bitmap (bitmap-2) — both are owned
// by the table so they can be backed by its mmap'd regions and
// rebound after a page-remap clear — partitioned into regions of
// regionSize slots each (512 per spec.md §4.B), serving up to
// workerCount concurrent workers. activeRegions is the initial
// region-claim ceiling (table_size/regionSize); see SetActiveRegions.
//
// regionCount is derived from occupancy.Len()/regionSize rather than
// regions.Len(): bitmap-1 is reserved in whole 64-bit words, so its
// bit capacity can exceed the true region count by up to 63 phantom
// regions whenever that count isn't itself a multiple of 64, and
// acquiring one of those would index past the occupancy bitmap.
func New(regions, occupancy *bitvec.Vector, regionSize, workerCount, activeRegions uint64) *Allocator {
	a := &Allocator{
		regions:     regions,
		occupancy:   occupancy,
		regionSize:  regionSize,
		wordsPer:    regionSize / 64,
		regionCount: occupancy.Len() / regionSize,
		workerCount: workerCount,
		current:     make([]atomic.Uint64, workerCount),
	}
	a.active.Store(activeRegions)
	a.ResetAll()
	return a
}

// RegionCount returns the maximum number of regions the allocator can
// ever address (derived from max_size), irrespective of the current
// region-claim ceiling set by SetActiveRegions.
func (a *Allocator) RegionCount() uint64 {
	return a.regionCount
}

// SetActiveRegions updates the region-claim ceiling to match a new
// table_size (the original's set_size): claim_data_bucket scopes its
// wraparound search to table_size/(64*8) regions, not max_size
// (llmsset.c:129,131,137), so growing or shrinking the active size
// must move this ceiling along with it.
func (a *Allocator) SetActiveRegions(n uint64) {
	a.active.Store(n)
}

// ResetWorker clears a single worker's current-region cache, leaving
// every other worker's cache as it is.
func (a *Allocator) ResetWorker(workerID uint64) {
	a.current[workerID].Store(noRegion)
}

// ResetAll clears every worker's current-region cache, used by Clear.
func (a *Allocator) ResetAll() {
	for i := range a.current {
		a.current[i].Store(noRegion)
	}
}

// ResetRegions clears bitmap-1 (region ownership) in place so, together
// with ResetAll, the next Claim re-acquires regions from scratch. The
// table's Clear does not call it: it remaps bitmap-1's memory instead.
func (a *Allocator) ResetRegions() {
	clear(a.regions.Words())
}

// Claim implements spec.md §4.B's allocation algorithm: reuse a hole
// in the worker's current region if one exists, otherwise acquire a
// fresh region via CAS over bitmap-1, then return to scanning the new
// region. Returns Full if every region is saturated.
func (a *Allocator) Claim(workerID uint64) uint64 {
	for {
		if slot, ok := a.claimInCurrentRegion(workerID); ok {
			return slot
		}
		if !a.acquireRegion(workerID) {
			return Full
		}
	}
}

// claimInCurrentRegion scans the worker's owned region (if any) for a
// hole, claiming it non-atomically: region ownership means exclusive
// access to this region's occupancy words between GC cycles.
func (a *Allocator) claimInCurrentRegion(workerID uint64) (uint64, bool) {
	region := a.current[workerID].Load()
	if region == noRegion {
		return 0, false
	}
	base := region * a.wordsPer
	for w := base; w < base+a.wordsPer; w++ {
		if idx, ok := a.occupancy.FirstClearInWord(w); ok {
			a.occupancy.SetPlain(idx)
			return idx, true
		}
	}
	return 0, false
}

// acquireRegion claims a new region for workerID by CAS-setting a
// clear bit in bitmap-1, starting from a per-worker seed and wrapping
// around the active region space once. Reports whether a region was
// claimed. The search is bounded by the active ceiling (table_size),
// not the bitmaps' full max_size capacity, so growing into the
// reserved-but-unused tail of max_size requires SetActiveRegions first.
func (a *Allocator) acquireRegion(workerID uint64) bool {
	regionCount := a.active.Load()
	if regionCount == 0 {
		return false
	}

	seed := workerID * (regionCount / max(a.workerCount, 1))
	for i := uint64(0); i < regionCount; i++ {
		r := (seed + i) % regionCount
		if a.regions.SetAtomic(r) {
			a.current[workerID].Store(r)
			return true
		}
	}
	return false
}

// Release clears a slot's occupancy bit. Per spec.md §4.B, no atomic
// is needed: only the owning worker ever writes to its region's
// allocation bits between GC cycles.
func (a *Allocator) Release(slot uint64) {
	a.occupancy.ClearPlain(slot)
}
