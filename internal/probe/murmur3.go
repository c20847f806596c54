package probe

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// Murmur3Hash is an alternative HashFunc built on murmur3 instead of
// the default fnv1a mix, for callers that register a custom hasher
// (spec.md §4.C, §6 hash_cb) and want a well-studied general-purpose
// hash rather than the table's own default. The 64-bit seed is
// truncated to murmur3's 32-bit seed parameter; this is acceptable
// because hash_cb is documented to "tolerate being called with
// arbitrary seed values" (spec.md §6), not to preserve every seed bit.
func Murmur3Hash(a, b, seed uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], a)
	binary.LittleEndian.PutUint64(buf[8:16], b)
	return murmur3.Sum64WithSeed(buf[:], uint32(seed))
}
