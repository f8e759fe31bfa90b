package worktree

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/rune-vcs/rune/internal/lfs"
)

func TestAddLFSAwareStagesPointerForLargeFile(t *testing.T) {
	repo, dir := newRepo(t)

	content := make([]byte, 25*1024*1024)
	rand.New(rand.NewSource(7)).Read(content)
	full := filepath.Join(dir, "asset.bin")
	if err := os.WriteFile(full, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store := lfs.NewStore(repo.RuneDir)
	cfg := &lfs.Config{SizeThresholdBytes: 10 * 1024 * 1024, ChunkSizeBytes: 8 * 1024 * 1024}

	if err := AddLFSAware(repo, nil, store, cfg, full); err != nil {
		t.Fatalf("AddLFSAware: %v", err)
	}

	idx, err := repo.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	entry, ok := idx["asset.bin"]
	if !ok {
		t.Fatal("expected asset.bin staged")
	}

	blob, err := repo.ReadObject(entry.BlobID)
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	p, err := lfs.DecodePointer(blob)
	if err != nil {
		t.Fatalf("expected staged blob to decode as an LFS pointer: %v", err)
	}
	if len(p.Chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(p.Chunks))
	}

	reconstructed, err := store.Reconstruct(p)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if len(reconstructed) != len(content) {
		t.Fatalf("reconstructed length mismatch: %d vs %d", len(reconstructed), len(content))
	}
}

func TestAddLFSAwareSkipsSmallFiles(t *testing.T) {
	repo, dir := newRepo(t)
	full := filepath.Join(dir, "small.txt")
	os.WriteFile(full, []byte("tiny"), 0o644)

	store := lfs.NewStore(repo.RuneDir)
	cfg := &lfs.Config{SizeThresholdBytes: 10 * 1024 * 1024, ChunkSizeBytes: 8 * 1024 * 1024}

	if err := AddLFSAware(repo, nil, store, cfg, full); err != nil {
		t.Fatalf("AddLFSAware: %v", err)
	}
	idx, _ := repo.ReadIndex()
	blob, err := repo.ReadObject(idx["small.txt"].BlobID)
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	if string(blob) != "tiny" {
		t.Fatalf("expected raw content staged for small file, got %q", blob)
	}
}
