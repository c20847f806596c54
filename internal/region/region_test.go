package region

import (
	"sync"
	"testing"

	"github.com/shaia/go-uniqtable/internal/bitvec"
)

func newTestAllocator(totalSlots, regionSize, workers uint64) (*Allocator, *bitvec.Vector) {
	regionCount := (totalSlots + regionSize - 1) / regionSize
	regions := bitvec.New(regionCount)
	occ := bitvec.New(totalSlots)
	return New(regions, occ, regionSize, workers, regionCount), occ
}

func TestClaimFillsOneRegionThenMovesOn(t *testing.T) {
	a, _ := newTestAllocator(256, 64, 4)

	seen := map[uint64]bool{}
	for i := 0; i < 128; i++ {
		slot := a.Claim(0)
		if slot == Full {
			t.Fatalf("unexpected Full after only %d claims out of 256 slots", i)
		}
		if seen[slot] {
			t.Fatalf("slot %d claimed twice", slot)
		}
		seen[slot] = true
	}
	if len(seen) != 128 {
		t.Fatalf("expected 128 distinct slots, got %d", len(seen))
	}
}

func TestClaimExhaustion(t *testing.T) {
	a, _ := newTestAllocator(64, 64, 1)
	for i := 0; i < 64; i++ {
		if slot := a.Claim(0); slot == Full {
			t.Fatalf("allocator reported Full after only %d of 64 slots claimed", i)
		}
	}
	if slot := a.Claim(0); slot != Full {
		t.Fatalf("expected Full once every slot is claimed, got %d", slot)
	}
}

func TestReleaseAllowsReclaim(t *testing.T) {
	a, _ := newTestAllocator(64, 64, 1)
	for i := 0; i < 64; i++ {
		a.Claim(0)
	}
	if slot := a.Claim(0); slot != Full {
		t.Fatalf("expected Full, got %d", slot)
	}

	a.Release(5)
	if slot := a.Claim(0); slot != 5 {
		t.Fatalf("expected released slot 5 to be reclaimed, got %d", slot)
	}
}

func TestResetAllEnablesFreshClaims(t *testing.T) {
	a, occ := newTestAllocator(64, 64, 1)
	for i := 0; i < 64; i++ {
		a.Claim(0)
	}
	clear(occ.Words())
	a.ResetAll()
	a.ResetRegions()

	if slot := a.Claim(0); slot == Full {
		t.Fatalf("expected a claim to succeed after ResetAll+ResetRegions")
	}
}

func TestConcurrentClaimsAreUnique(t *testing.T) {
	const totalSlots = 512 * 8
	const workers = 8
	a, _ := newTestAllocator(totalSlots, 512, workers)

	results := make([][]uint64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			var mine []uint64
			for {
				slot := a.Claim(uint64(w))
				if slot == Full {
					break
				}
				mine = append(mine, slot)
			}
			results[w] = mine
		}(w)
	}
	wg.Wait()

	seen := map[uint64]bool{}
	total := 0
	for _, mine := range results {
		for _, slot := range mine {
			if seen[slot] {
				t.Fatalf("slot %d claimed by more than one worker", slot)
			}
			seen[slot] = true
			total++
		}
	}
	if uint64(total) != totalSlots {
		t.Fatalf("expected all %d slots claimed exactly once across workers, got %d", totalSlots, total)
	}
}
