package uniqtable

import "errors"

// ErrTableFull is returned by Lookup/LookupCustom when the allocator
// is exhausted or the probe threshold is reached (spec.md §7).
var ErrTableFull = errors.New("uniqtable: table full")

// ErrInvalidConfig is returned by New and SetSize for misconfiguration
// that doesn't rise to the level of a fatal allocation failure.
var ErrInvalidConfig = errors.New("uniqtable: invalid configuration")

// ErrNoCustomHasher is returned by LookupCustom when no custom hasher
// has been registered via SetCustomHasher.
var ErrNoCustomHasher = errors.New("uniqtable: no custom hasher registered")
