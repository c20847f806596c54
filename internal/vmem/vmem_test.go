package vmem

import "testing"

func TestReserveZeroedAndSized(t *testing.T) {
	r, err := Reserve(4096)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer r.Release()

	if r.Len() != 4096 {
		t.Fatalf("expected 4096 bytes, got %d", r.Len())
	}
	for _, b := range r.Bytes() {
		if b != 0 {
			t.Fatalf("expected freshly reserved region to be zeroed")
		}
	}
}

func TestWordsViewSharesStorage(t *testing.T) {
	r, err := Reserve(64)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer r.Release()

	words := r.Words()
	if len(words) != 8 {
		t.Fatalf("expected 8 words for 64 bytes, got %d", len(words))
	}
	words[0] = 0xDEADBEEF
	if r.Bytes()[0] == 0 && r.Bytes()[7] == 0 {
		t.Fatalf("expected the word write to be visible through the byte view")
	}
}

func TestClearZeroesAfterWrites(t *testing.T) {
	r, err := Reserve(64)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer r.Release()

	words := r.Words()
	for i := range words {
		words[i] = ^uint64(0)
	}

	if err := r.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, w := range r.Words() {
		if w != 0 {
			t.Fatalf("expected all words clear after Clear, found %x", w)
		}
	}
}

func TestReleaseThenDoubleReleaseIsSafe(t *testing.T) {
	r, err := Reserve(64)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := r.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := r.Release(); err != nil {
		t.Fatalf("second Release should be a no-op, got: %v", err)
	}
}
