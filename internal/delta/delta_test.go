package delta

import (
	"bytes"
	"math/rand"
	"testing"
)

func seqBytes(from, to int) []byte {
	b := make([]byte, 0, to-from)
	for i := from; i < to; i++ {
		b = append(b, byte(i))
	}
	return b
}

func TestRoundTripBasic(t *testing.T) {
	base := []byte("the quick brown fox jumps over the lazy dog")
	newB := []byte("the quick brown FOX jumps over the very lazy dog")

	p, err := Make(base, newB, DefaultWindow/2)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	got, err := Apply(base, p)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(got, newB) {
		t.Fatalf("round trip mismatch: got %q want %q", got, newB)
	}
}

// TestScenarioS3 reproduces spec.md §8 scenario S3: base = bytes(0..10000),
// new = base[0..5000] ++ bytes(20000..21000) ++ base[5000..]. The patch must
// round-trip and be strictly smaller than |new|.
func TestScenarioS3(t *testing.T) {
	base := seqBytes(0, 10000)
	var newB []byte
	newB = append(newB, base[0:5000]...)
	newB = append(newB, seqBytes(20000, 21000)...)
	newB = append(newB, base[5000:]...)

	p, err := Make(base, newB, 16)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	got, err := Apply(base, p)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(got, newB) {
		t.Fatal("round trip mismatch")
	}

	encoded := Encode(p)
	if len(encoded) >= len(newB) {
		t.Fatalf("expected patch (%d bytes) to be smaller than new (%d bytes)", len(encoded), len(newB))
	}
}

func TestWindowTooSmall(t *testing.T) {
	if _, err := Make([]byte("a"), []byte("b"), 3); err == nil {
		t.Fatal("expected WindowTooSmall error")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	base := []byte("abcdefghijklmnopqrstuvwxyz")
	newB := []byte("abcXYZdefghijklmnopqrstuvwxyz123")

	p, err := Make(base, newB, 4)
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	wire := Encode(p)
	decoded, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, err := Apply(base, decoded)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(got, newB) {
		t.Fatalf("mismatch after encode/decode round trip: got %q want %q", got, newB)
	}
}

func TestApplyRejectsCopyOutOfRange(t *testing.T) {
	base := []byte("short")
	p := &Patch{Ops: []Op{{Kind: opCopy, Offset: 0, Length: 100}}}
	if _, err := Apply(base, p); err == nil {
		t.Fatal("expected CopyOutOfRange error")
	}
}

func TestDecodeRejectsTruncatedPatch(t *testing.T) {
	if _, err := Decode([]byte{0xFF}); err == nil {
		t.Fatal("expected truncated patch error")
	}
}

func TestRoundTripRandomInputsAllWindows(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		baseLen := rng.Intn(500) + 1
		base := make([]byte, baseLen)
		rng.Read(base)

		newLen := rng.Intn(500) + 1
		newB := make([]byte, newLen)
		// Mix in chunks of base so some matches are likely to occur.
		copy(newB, base)
		rng.Read(newB[min(len(newB), len(base)/2):])

		for _, w := range []int{4, 8, 16, 32} {
			p, err := Make(base, newB, w)
			if err != nil {
				t.Fatalf("Make(w=%d): %v", w, err)
			}
			got, err := Apply(base, p)
			if err != nil {
				t.Fatalf("Apply(w=%d): %v", w, err)
			}
			if !bytes.Equal(got, newB) {
				t.Fatalf("trial %d w=%d: round trip mismatch", trial, w)
			}
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
