// Package uniqtable implements a lock-free, fixed-capacity,
// content-addressed hash set mapping (a,b) word pairs to stable
// 44-bit indices — the unique-node table underlying a decision-diagram
// engine's hash-consing layer.
package uniqtable

import (
	"fmt"
	"sync/atomic"

	"github.com/shaia/go-uniqtable/internal/bitvec"
	"github.com/shaia/go-uniqtable/internal/probe"
	"github.com/shaia/go-uniqtable/internal/region"
	"github.com/shaia/go-uniqtable/internal/vmem"
)

// Phase distinguishes the table's two mutually exclusive operating
// modes. The table never enforces exclusion between them — that is
// the caller's responsibility (spec.md §5) — Phase exists purely so a
// caller or a log line can report which one is current.
type Phase int32

const (
	// PhaseOperational permits Lookup/LookupCustom; GC methods are
	// undefined behavior in this phase.
	PhaseOperational Phase = iota
	// PhaseCollecting permits Clear/Mark/IsMarked/RehashAll/
	// CountMarked/NotifyAll; Lookup/LookupCustom are undefined
	// behavior in this phase.
	PhaseCollecting
)

func (p Phase) String() string {
	if p == PhaseCollecting {
		return "collecting"
	}
	return "operational"
}

// DeadFunc is the dead_cb callback of spec.md §6: invoked once per
// slot that is notify-set and occupancy-clear during NotifyAll. A
// true return resurrects the slot.
type DeadFunc func(idx uint64) bool

// Table is the unique-node table. The zero value is not usable; build
// one with New.
type Table struct {
	cfg Config

	tableMem   *vmem.Region
	dataMem    *vmem.Region
	bitmap1Mem *vmem.Region
	bitmap2Mem *vmem.Region
	bitmap3Mem *vmem.Region
	bitmap4Mem *vmem.Region

	regionBits *bitvec.Vector // bitmap-1: region ownership
	occupancy  *bitvec.Vector // bitmap-2: slot occupancy / mark
	notify     *bitvec.Vector // bitmap-3: notify-on-dead
	customBits *bitvec.Vector // bitmap-4: per-slot custom-hasher flag (see DESIGN.md)

	alloc *region.Allocator

	tableSize atomic.Uint64 // current bucket/probe ceiling
	phase     atomic.Int32

	hashCB   probe.HashFunc
	equalsCB probe.EqualsFunc
	onDead   DeadFunc
}

// New reserves process-lifetime memory for a table with the given
// configuration and returns it ready for the operational phase.
// Construction failure is the one case spec.md §7 calls fatal: an
// ordinary misconfiguration is returned as an error, but a failed
// mmap of a process-lifetime region panics, mirroring llmsset.c's own
// fatal-error exit on mmap failure — there is no degraded mode for a
// virtual-memory reservation that didn't happen.
func New(cfg Config) (*Table, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	t := &Table{cfg: cfg}

	var err error
	if t.tableMem, err = vmem.Reserve(cfg.MaxSize * 8); err != nil {
		panic(err)
	}
	if t.dataMem, err = vmem.Reserve(cfg.MaxSize * 16); err != nil {
		panic(err)
	}
	regionCount := (cfg.MaxSize + cfg.RegionSize - 1) / cfg.RegionSize
	if t.bitmap1Mem, err = vmem.Reserve(((regionCount + 63) / 64) * 8); err != nil {
		panic(err)
	}
	if t.bitmap2Mem, err = vmem.Reserve(cfg.MaxSize / 8); err != nil {
		panic(err)
	}
	if t.bitmap3Mem, err = vmem.Reserve(cfg.MaxSize / 8); err != nil {
		panic(err)
	}
	if t.bitmap4Mem, err = vmem.Reserve(cfg.MaxSize / 8); err != nil {
		panic(err)
	}

	t.regionBits = bitvec.Wrap(t.bitmap1Mem.Words())
	t.occupancy = bitvec.Wrap(t.bitmap2Mem.Words())
	t.notify = bitvec.Wrap(t.bitmap3Mem.Words())
	t.customBits = bitvec.Wrap(t.bitmap4Mem.Words())

	t.alloc = region.New(t.regionBits, t.occupancy, cfg.RegionSize, cfg.WorkerCount, cfg.InitialSize/cfg.RegionSize)

	t.markForbiddenSlots()
	t.tableSize.Store(cfg.InitialSize)
	t.phase.Store(int32(PhaseOperational))

	return t, nil
}

// markForbiddenSlots pre-marks occupancy bits 0 and 1 so the combined
// tag|index bucket word can never be zero for a legitimate insertion
// (spec.md §9 "Sentinel 0").
func (t *Table) markForbiddenSlots() {
	t.occupancy.SetPlain(0)
	t.occupancy.SetPlain(1)
}

// Close releases the table's memory mappings. The table must not be
// used afterward.
func (t *Table) Close() error {
	var firstErr error
	for _, r := range []*vmem.Region{t.tableMem, t.dataMem, t.bitmap1Mem, t.bitmap2Mem, t.bitmap3Mem, t.bitmap4Mem} {
		if err := r.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Phase reports the table's current phase, for diagnostics only; it
// is never consulted by Lookup/LookupCustom or the GC methods to
// block or redirect a call (spec.md §5: "the core provides no latch").
func (t *Table) Phase() Phase {
	return Phase(t.phase.Load())
}

// SetCollecting moves the table into the collecting phase. Purely
// advisory bookkeeping for Phase(); see the Phase doc comment.
func (t *Table) SetCollecting() {
	t.phase.Store(int32(PhaseCollecting))
}

// SetOperational moves the table back into the operational phase.
func (t *Table) SetOperational() {
	t.phase.Store(int32(PhaseOperational))
}

// SetCustomHasher registers the custom hash and equality callbacks
// used by LookupCustom (spec.md §6 set_custom). Must be called before
// any LookupCustom call, and only while quiescent.
func (t *Table) SetCustomHasher(hash probe.HashFunc, equals probe.EqualsFunc) {
	t.hashCB = hash
	t.equalsCB = equals
}

// SetOnDead registers the dead_cb callback used by NotifyAll
// (spec.md §6 set_on_dead).
func (t *Table) SetOnDead(cb DeadFunc) {
	t.onDead = cb
}

// GetData returns the (a,b) pair stored at idx. Valid to call in any
// phase; the caller is responsible for only reading indices it knows
// (or assumes) are live.
func (t *Table) GetData(idx uint64) (a, b uint64) {
	words := t.dataMem.Words()
	base := 2 * idx
	return words[base], words[base+1]
}

func (t *Table) setData(idx, a, b uint64) {
	words := t.dataMem.Words()
	base := 2 * idx
	words[base] = a
	words[base+1] = b
}

// tableWords returns the current view of the bucket array, refetched
// on every call rather than cached, so a Clear that remaps the
// backing pages is always observed.
func (t *Table) tableWords() []uint64 {
	return t.tableMem.Words()
}

func (t *Table) walker() probe.Walker {
	size := t.tableSize.Load()
	return probe.Walker{
		LineSize:   t.cfg.LineSize,
		TableSize:  size,
		PowerOfTwo: isPowerOfTwo(size) && isPowerOfTwo(t.cfg.MaxSize),
	}
}

// SetSize changes the table's probe/allocation ceiling. Per the
// original's set_size semantics (see SPEC_FULL.md §12), this only
// ever updates metadata: existing data/bitmap contents are untouched,
// so growing is safe at any time the caller deems quiescent, and
// shrinking below the current population is refused.
func (t *Table) SetSize(newSize uint64) error {
	if newSize > t.cfg.MaxSize {
		return fmt.Errorf("%w: new size %d exceeds max size %d", ErrInvalidConfig, newSize, t.cfg.MaxSize)
	}
	if newSize%t.cfg.RegionSize != 0 {
		return fmt.Errorf("%w: new size %d is not a multiple of region size %d", ErrInvalidConfig, newSize, t.cfg.RegionSize)
	}
	if pop := t.CountMarked(); newSize < pop {
		return fmt.Errorf("%w: new size %d is below current population %d", ErrInvalidConfig, newSize, pop)
	}
	t.tableSize.Store(newSize)
	t.alloc.SetActiveRegions(newSize / t.cfg.RegionSize)
	return nil
}
