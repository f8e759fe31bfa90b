package lfs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"testing"
	"time"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/rerr"
)

func TestChunkAndStoreReconstructsExactContent(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	content := make([]byte, 25*1024*1024)
	rand.New(rand.NewSource(1)).Read(content)

	p, err := store.ChunkAndStore(content, 8*1024*1024)
	if err != nil {
		t.Fatalf("ChunkAndStore: %v", err)
	}
	if len(p.Chunks) != 4 {
		t.Fatalf("expected 4 chunks (8+8+8+1 MiB), got %d", len(p.Chunks))
	}

	sum := sha256.Sum256(content)
	if string(p.OID) != hex.EncodeToString(sum[:]) {
		t.Fatalf("pointer oid does not match sha256 of content")
	}

	got, err := store.Reconstruct(p)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("reconstructed content does not match original")
	}
}

func TestChunkStoreIsContentAddressedAndIdempotent(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	content := bytes.Repeat([]byte("x"), 100)
	p1, err := store.ChunkAndStore(content, MinChunkSize)
	if err != nil {
		t.Fatalf("ChunkAndStore: %v", err)
	}
	p2, err := store.ChunkAndStore(content, MinChunkSize)
	if err != nil {
		t.Fatalf("ChunkAndStore again: %v", err)
	}
	if p1.OID != p2.OID {
		t.Fatal("expected identical content to produce identical oid")
	}
}

func TestPointerEncodeDecodeRoundTrip(t *testing.T) {
	p := Pointer{V: 1, OID: hashio.Sum([]byte("x")), Size: 1, ChunkSize: DefaultChunkSize, Chunks: []hashio.Hash{hashio.Sum([]byte("x"))}}
	decoded, err := DecodePointer(p.Encode())
	if err != nil {
		t.Fatalf("DecodePointer: %v", err)
	}
	if decoded.OID != p.OID || decoded.Size != p.Size {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, p)
	}
}

func TestWriteChunkRejectsMismatchedContent(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	content := bytes.Repeat([]byte("y"), 1024)
	p, _ := store.ChunkAndStore(content, MinChunkSize)

	if err := store.WriteChunk(p.Chunks[0], bytes.Repeat([]byte("z"), 1024)); err == nil {
		t.Fatal("expected WriteChunk to reject mismatched content for an existing cid claim")
	}
}

func TestConfigShouldTrackMatchesPatternAndThreshold(t *testing.T) {
	cfg := &Config{Patterns: []string{"*.psd"}, SizeThresholdBytes: 1000}
	if !cfg.ShouldTrack("design.psd", 10) {
		t.Fatal("expected pattern match to trigger LFS tracking")
	}
	if !cfg.ShouldTrack("anything.bin", 2000) {
		t.Fatal("expected size threshold to trigger LFS tracking")
	}
	if cfg.ShouldTrack("small.txt", 10) {
		t.Fatal("expected untracked file to not trigger LFS")
	}
}

func TestLockAcquireExclusiveAndRelease(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if _, err := store.Acquire("assets/a.bin", "P", ReasonDevelopment, 0, false); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	_, err := store.Acquire("assets/a.bin", "Q", ReasonDevelopment, 0, false)
	kind, ok := rerr.KindOf(err)
	if !ok || kind != rerr.State {
		t.Fatalf("expected Q's acquire to fail with AlreadyLocked, got %v", err)
	}

	if released, err := store.Release("assets/a.bin", "Q", false); err == nil || released {
		t.Fatalf("expected Q's release to fail as non-owner, got released=%v err=%v", released, err)
	}

	released, err := store.Release("assets/a.bin", "P", false)
	if err != nil || !released {
		t.Fatalf("expected P's release to succeed, got released=%v err=%v", released, err)
	}

	if _, err := store.Acquire("assets/a.bin", "Q", ReasonDevelopment, 0, false); err != nil {
		t.Fatalf("expected Q's retry to succeed after release: %v", err)
	}

	locks, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(locks) != 1 || locks[0].OwnerID != "Q" {
		t.Fatalf("expected exactly one active lock owned by Q, got %+v", locks)
	}
}

func TestBranchSwitchSmartPolicyReleasesDevelopmentLocksOnly(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	store.Acquire("a.bin", "P", ReasonDevelopment, 0, false)
	store.Acquire("b.bin", "P", ReasonRelease, 0, false)

	released, err := store.ReleaseOnBranchSwitch("P", PolicySmart)
	if err != nil {
		t.Fatalf("ReleaseOnBranchSwitch: %v", err)
	}
	if len(released) != 1 || released[0] != "a.bin" {
		t.Fatalf("expected only a.bin released under smart policy, got %v", released)
	}

	locks, _ := store.List()
	if len(locks) != 1 || locks[0].Path != "b.bin" {
		t.Fatalf("expected b.bin (release reason) to remain locked, got %+v", locks)
	}
}

func TestBranchSwitchExplicitPolicyKeepsEverything(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	store.Acquire("a.bin", "P", ReasonDevelopment, 0, false)

	released, err := store.ReleaseOnBranchSwitch("P", PolicyExplicit)
	if err != nil {
		t.Fatalf("ReleaseOnBranchSwitch: %v", err)
	}
	if len(released) != 0 {
		t.Fatalf("expected explicit policy to release nothing, got %v", released)
	}
}

func TestAcquireIdempotentForSameOwner(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	first, err := store.Acquire("a.bin", "P", ReasonDevelopment, time.Hour, false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	second, err := store.Acquire("a.bin", "P", ReasonDevelopment, time.Hour, false)
	if err != nil {
		t.Fatalf("Acquire (repeat): %v", err)
	}
	if first.AcquiredAt != second.AcquiredAt {
		t.Fatal("expected repeat acquire by the same owner to return the existing record")
	}
}

func TestForceAcquireOverridesExistingLock(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	store.Acquire("a.bin", "P", ReasonDevelopment, 0, false)
	l, err := store.Acquire("a.bin", "admin", ReasonConflict, 0, true)
	if err != nil {
		t.Fatalf("force Acquire: %v", err)
	}
	if l.OwnerID != "admin" {
		t.Fatalf("expected forced acquire to transfer ownership, got %+v", l)
	}

	locks, _ := store.List()
	if len(locks) != 1 || locks[0].OwnerID != "admin" {
		t.Fatalf("expected exactly one lock owned by admin, got %+v", locks)
	}
}
