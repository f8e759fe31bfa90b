package worktree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rune-vcs/rune/internal/ignore"
	"github.com/rune-vcs/rune/internal/objstore"
)

func sig(name string) objstore.Signature {
	return objstore.Signature{Name: name, Email: name + "@example.com", Timestamp: 1}
}

func newRepo(t *testing.T) (*objstore.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := objstore.Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return repo, dir
}

func TestAddStagesSingleFile(t *testing.T) {
	repo, dir := newRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := Add(repo, nil, filepath.Join(dir, "a.txt")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	idx, err := repo.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if _, ok := idx["a.txt"]; !ok {
		t.Fatal("expected a.txt staged")
	}
}

func TestAddDirectoryRespectsIgnoreMatcher(t *testing.T) {
	repo, dir := newRepo(t)
	os.MkdirAll(filepath.Join(dir, "src"), 0o755)
	os.WriteFile(filepath.Join(dir, "src", "keep.go"), []byte("package src"), 0o644)
	os.WriteFile(filepath.Join(dir, "src", "skip.log"), []byte("noise"), 0o644)

	m := ignore.NewMatcher()
	m.AddPatterns(ignore.SourceProject, []string{"*.log"})

	if err := Add(repo, m, dir); err != nil {
		t.Fatalf("Add: %v", err)
	}

	idx, _ := repo.ReadIndex()
	if _, ok := idx["src/keep.go"]; !ok {
		t.Fatal("expected src/keep.go staged")
	}
	if _, ok := idx["src/skip.log"]; ok {
		t.Fatal("expected src/skip.log to be skipped")
	}
}

func TestStatusReportsStagedAndUntracked(t *testing.T) {
	repo, dir := newRepo(t)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644)
	Add(repo, nil, filepath.Join(dir, "a.txt"))
	repo.Commit(sig("a"), sig("a"), "first")

	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha-modified"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bravo"), 0o644)

	st, err := Compute(repo, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	var sawModified, sawUntracked bool
	for _, f := range st.Files {
		if f.Path == "a.txt" && f.WorkStatus == "modified" {
			sawModified = true
		}
		if f.Path == "b.txt" && f.Untracked {
			sawUntracked = true
		}
	}
	if !sawModified {
		t.Fatal("expected a.txt to show as work-tree modified")
	}
	if !sawUntracked {
		t.Fatal("expected b.txt to show as untracked")
	}
}

func TestMoveRenamesFileAndUpdatesIndex(t *testing.T) {
	repo, dir := newRepo(t)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644)
	Add(repo, nil, filepath.Join(dir, "a.txt"))
	repo.Commit(sig("a"), sig("a"), "first")

	if err := Move(repo, filepath.Join(dir, "a.txt"), filepath.Join(dir, "renamed.txt")); err != nil {
		t.Fatalf("Move: %v", err)
	}

	idx, _ := repo.ReadIndex()
	if e, ok := idx["a.txt"]; !ok || !e.Deleted {
		t.Fatal("expected a.txt staged as deleted")
	}
	if _, ok := idx["renamed.txt"]; !ok {
		t.Fatal("expected renamed.txt staged")
	}
	if _, err := os.Stat(filepath.Join(dir, "renamed.txt")); err != nil {
		t.Fatalf("expected renamed.txt on disk: %v", err)
	}
}

func TestRemoveCachedLeavesDiskFileInPlace(t *testing.T) {
	repo, dir := newRepo(t)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644)
	Add(repo, nil, filepath.Join(dir, "a.txt"))
	repo.Commit(sig("a"), sig("a"), "first")

	if err := Remove(repo, filepath.Join(dir, "a.txt"), true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
		t.Fatal("expected a.txt to remain on disk with --cached")
	}
	idx, _ := repo.ReadIndex()
	if e, ok := idx["a.txt"]; !ok || !e.Deleted {
		t.Fatal("expected a.txt staged as deleted")
	}
}

func TestCheckoutMaterializesTargetTree(t *testing.T) {
	repo, dir := newRepo(t)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644)
	Add(repo, nil, filepath.Join(dir, "a.txt"))
	first, _ := repo.Commit(sig("a"), sig("a"), "first")
	repo.CreateBranch("feature", first)

	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bravo"), 0o644)
	Add(repo, nil, filepath.Join(dir, "b.txt"))
	repo.Commit(sig("a"), sig("a"), "second")

	if err := Checkout(repo, "feature", false, false); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.txt")); !os.IsNotExist(err) {
		t.Fatal("expected b.txt removed after checking out feature branch")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
		t.Fatal("expected a.txt still present")
	}

	// Regression: a successful checkout always repopulates the index with
	// the target tree's entries, so a subsequent checkout with no changes
	// in between must still succeed rather than spuriously reporting a
	// dirty working tree.
	if err := Checkout(repo, "main", false, false); err != nil {
		t.Fatalf("second checkout with no intervening changes: %v", err)
	}
}

func TestBlameAttributesEachEntryToIntroducingCommit(t *testing.T) {
	repo, dir := newRepo(t)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644)
	Add(repo, nil, filepath.Join(dir, "a.txt"))
	first, _ := repo.Commit(sig("a"), sig("a"), "add a")

	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bravo"), 0o644)
	Add(repo, nil, filepath.Join(dir, "b.txt"))
	second, _ := repo.Commit(sig("a"), sig("a"), "add b")

	blame, err := Blame(repo, second, "", 0)
	if err != nil {
		t.Fatalf("Blame: %v", err)
	}
	if blame["a.txt"].CommitID != first {
		t.Fatalf("expected a.txt blamed on first commit, got %s", blame["a.txt"].CommitID)
	}
	if blame["b.txt"].CommitID != second {
		t.Fatalf("expected b.txt blamed on second commit, got %s", blame["b.txt"].CommitID)
	}
}

func TestMailmapResolvesCanonicalIdentity(t *testing.T) {
	dir := t.TempDir()
	content := "Proper Name <proper@example.com> <old@example.com>\n"
	os.WriteFile(filepath.Join(dir, ".mailmap"), []byte(content), 0o644)

	m, err := LoadMailmap(dir)
	if err != nil {
		t.Fatalf("LoadMailmap: %v", err)
	}

	s := objstore.Signature{Name: "Old Name", Email: "old@example.com"}
	m.Resolve(&s)
	if s.Name != "Proper Name" || s.Email != "proper@example.com" {
		t.Fatalf("unexpected resolved signature: %+v", s)
	}
}

func TestMailmapMissingFileIsNoOp(t *testing.T) {
	dir := t.TempDir()
	m, err := LoadMailmap(dir)
	if err != nil {
		t.Fatalf("LoadMailmap: %v", err)
	}
	s := objstore.Signature{Name: "Someone", Email: "someone@example.com"}
	m.Resolve(&s)
	if s.Name != "Someone" {
		t.Fatal("expected no-op mailmap to leave signature untouched")
	}
}
