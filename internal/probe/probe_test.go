package probe

import "testing"

func TestDefaultHashDeterministic(t *testing.T) {
	h1 := DefaultHash(1, 2)
	h2 := DefaultHash(1, 2)
	if h1 != h2 {
		t.Fatalf("DefaultHash must be deterministic: %d != %d", h1, h2)
	}
	if h1 == DefaultHash(2, 1) {
		t.Fatalf("DefaultHash should distinguish operand order")
	}
}

func TestDefaultHashKnownVector(t *testing.T) {
	// Exercises the exact bit recipe from spec.md §4.C: seed
	// 0xcbf29ce484222325, rotate-47/rotate-31 fnv1a mix, prime
	// 1099511628211, final xor-fold by 32.
	const seed = uint64(0xcbf29ce484222325)
	const prime = uint64(1099511628211)

	a, b := uint64(1), uint64(2)
	h := rotl(seed^a, 47) * prime
	h = rotl(h^b, 31) * prime
	want := h ^ (h >> 32)

	if got := DefaultHash(a, b); got != want {
		t.Fatalf("DefaultHash(1,2) = %x, want %x", got, want)
	}
}

func rotl(x uint64, k uint) uint64 {
	return (x << k) | (x >> (64 - k))
}

func TestRehashChangesHash(t *testing.T) {
	h0 := DefaultHash(1, 2)
	h1 := Rehash(h0, 1, 2)
	if h1 == h0 {
		t.Fatalf("Rehash should produce a different value than the input hash")
	}
	if Rehash(h0, 1, 2) != h1 {
		t.Fatalf("Rehash must be deterministic")
	}
}

func TestTagAndPackRoundTrip(t *testing.T) {
	h := DefaultHash(42, 43)
	tag := Tag(h)
	if tag >= (1 << TagBits) {
		t.Fatalf("tag %d exceeds %d bits", tag, TagBits)
	}

	word := Pack(tag, 12345)
	if BucketTag(word) != tag {
		t.Fatalf("BucketTag(Pack(tag, idx)) = %d, want %d", BucketTag(word), tag)
	}
	if BucketIndex(word) != 12345 {
		t.Fatalf("BucketIndex(Pack(tag, idx)) = %d, want 12345", BucketIndex(word))
	}
}

func TestPackNeverProducesZeroForNonzeroIndex(t *testing.T) {
	// Forbidden-slot invariant (I3): since indices 0 and 1 are never
	// handed out, any legitimately packed word must be nonzero even
	// when the tag happens to be 0.
	word := Pack(0, 2)
	if word == 0 {
		t.Fatalf("Pack(0, 2) produced the empty-bucket sentinel")
	}
}

func TestWalkerInitialBucketPowerOfTwo(t *testing.T) {
	w := Walker{LineSize: 8, TableSize: 1024, PowerOfTwo: true}
	h := uint64(0xABCD1234)
	if got, want := w.InitialBucket(h), h&1023; got != want {
		t.Fatalf("InitialBucket = %d, want %d", got, want)
	}
}

func TestWalkerInitialBucketModulo(t *testing.T) {
	w := Walker{LineSize: 8, TableSize: 1000, PowerOfTwo: false}
	h := uint64(123456789)
	if got, want := w.InitialBucket(h), h%1000; got != want {
		t.Fatalf("InitialBucket = %d, want %d", got, want)
	}
}

func TestWalkerNextInLineWrapsWithinLine(t *testing.T) {
	w := Walker{LineSize: 8, TableSize: 1024, PowerOfTwo: true}
	idx := uint64(16) // start of a line
	seen := map[uint64]bool{}
	for i := 0; i < 8; i++ {
		if idx < 16 || idx >= 24 {
			t.Fatalf("probe position %d escaped its cache line [16,24)", idx)
		}
		seen[idx] = true
		idx = w.NextInLine(idx)
	}
	if len(seen) != 8 {
		t.Fatalf("expected all 8 positions in the line to be visited, got %d", len(seen))
	}
	if idx != 16 {
		t.Fatalf("expected the line-walk to wrap back to its start, got %d", idx)
	}
}

func TestMurmur3HashDeterministicAndSeedSensitive(t *testing.T) {
	h1 := Murmur3Hash(1, 2, DefaultSeed)
	h2 := Murmur3Hash(1, 2, DefaultSeed)
	if h1 != h2 {
		t.Fatalf("Murmur3Hash must be deterministic")
	}
	if h1 == Murmur3Hash(1, 2, DefaultSeed+1) {
		t.Fatalf("Murmur3Hash should be sensitive to its seed")
	}
}
