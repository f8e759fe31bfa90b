package pack

import (
	"bytes"
	"testing"

	"github.com/rune-vcs/rune/internal/hashio"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	items := []Item{
		{Name: "a.txt", Bytes: []byte("hello world")},
		{Name: "b.bin", Bytes: bytes.Repeat([]byte{0xAB}, 4096)},
		{Name: "empty", Bytes: nil},
	}

	packed, idx, err := Pack(items)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	for _, it := range items {
		entry, ok := idx.Find(it.Name)
		if !ok {
			t.Fatalf("missing index entry for %s", it.Name)
		}
		got, err := Unpack(packed, entry)
		if err != nil {
			t.Fatalf("Unpack(%s): %v", it.Name, err)
		}
		if !bytes.Equal(got, it.Bytes) {
			t.Fatalf("Unpack(%s) mismatch", it.Name)
		}
	}
}

func TestPackRejectsDuplicateNames(t *testing.T) {
	_, _, err := Pack([]Item{
		{Name: "x", Bytes: []byte("1")},
		{Name: "x", Bytes: []byte("2")},
	})
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestPackPreservesInsertionOrder(t *testing.T) {
	items := []Item{{Name: "z"}, {Name: "a"}, {Name: "m"}}
	_, idx, err := Pack(items)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	names := idx.Names()
	want := []string{"z", "a", "m"}
	for i, n := range want {
		if names[i] != n {
			t.Fatalf("expected insertion order %v, got %v", want, names)
		}
	}
}

func TestUnpackDetectsChecksumMismatch(t *testing.T) {
	packed, idx, err := Pack([]Item{{Name: "a", Bytes: []byte("content")}})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	entry, _ := idx.Find("a")
	entry.Checksum = hashio.Sum([]byte("different"))

	if _, err := Unpack(packed, entry); err == nil {
		t.Fatal("expected ChecksumMismatch error")
	}
}

func TestUnpackDetectsOffsetOutOfBounds(t *testing.T) {
	packed, idx, err := Pack([]Item{{Name: "a", Bytes: []byte("content")}})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	entry, _ := idx.Find("a")
	entry.Length = 10_000_000

	if _, err := Unpack(packed, entry); err == nil {
		t.Fatal("expected OffsetOutOfBounds error")
	}
}

func TestIndexEncodeDecodeRoundTrip(t *testing.T) {
	items := []Item{
		{Name: "one", Bytes: []byte("1")},
		{Name: "two", Bytes: []byte("22")},
	}
	_, idx, err := Pack(items)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	wire, err := EncodeIndex(idx)
	if err != nil {
		t.Fatalf("EncodeIndex: %v", err)
	}
	decoded, err := DecodeIndex(wire)
	if err != nil {
		t.Fatalf("DecodeIndex: %v", err)
	}

	for _, name := range idx.Names() {
		want, _ := idx.Find(name)
		got, ok := decoded.Find(name)
		if !ok || got != want {
			t.Fatalf("entry mismatch for %s: got %+v want %+v", name, got, want)
		}
	}
}

func TestDecodeIndexRejectsBadMagic(t *testing.T) {
	if _, err := DecodeIndex([]byte("not an index")); err == nil {
		t.Fatal("expected decode error for bad magic")
	}
}
