package uniqtable

// Stats is a point-in-time snapshot of table sizing, mirroring the
// diagnostic llmsset_print_size exposes in the original implementation
// (SPEC_FULL.md §12). It reports capacity, memory reservation, and the
// occupancy count of bitmap-2 at the time of the call.
type Stats struct {
	// TableSize is the current bucket/probe ceiling.
	TableSize uint64
	// MaxSize is the construction-time hard ceiling.
	MaxSize uint64
	// Population is the current occupancy count (CountMarked).
	Population uint64
	// LoadFactor is Population / TableSize.
	LoadFactor float64

	// BucketBytes, DataBytes, BitmapBytes report the process-lifetime
	// mmap reservation sizes per spec.md §6's sizing table.
	BucketBytes uint64
	DataBytes   uint64
	BitmapBytes uint64 // combined size of bitmap-1..4
}

// Stats computes a Stats snapshot. Population requires a full
// CountMarked sweep, so this is not a cheap field accessor — call it
// for diagnostics, not on a hot path.
func (t *Table) Stats() Stats {
	tableSize := t.tableSize.Load()
	population := t.CountMarked()

	var loadFactor float64
	if tableSize > 0 {
		loadFactor = float64(population) / float64(tableSize)
	}

	return Stats{
		TableSize:   tableSize,
		MaxSize:     t.cfg.MaxSize,
		Population:  population,
		LoadFactor:  loadFactor,
		BucketBytes: t.tableMem.Len(),
		DataBytes:   t.dataMem.Len(),
		BitmapBytes: t.bitmap1Mem.Len() + t.bitmap2Mem.Len() + t.bitmap3Mem.Len() + t.bitmap4Mem.Len(),
	}
}
