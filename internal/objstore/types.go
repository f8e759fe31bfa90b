// Package objstore implements the on-disk object store and commit model
// from spec.md §4.5: repository layout, staging index, commit creation,
// branches, HEAD, and checkout semantics. Grounded in gitcore/repository.go,
// gitcore/objects.go, gitcore/refs.go, gitcore/index.go, and gitcore/types.go,
// generalized from a read-only SHA-1 viewer to a read/write SHA-256 store.
package objstore

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/rune-vcs/rune/internal/hashio"
)

// Hash is re-exported so callers outside hashio don't need two import paths
// for the same concept when working with the object store.
type Hash = hashio.Hash

// Kind tags which of the three object shapes a stored byte sequence is, as
// interpreted by the caller (the store itself is content-addressed and
// kind-agnostic — see spec.md §9 "Polymorphism over object kinds").
type Kind string

const (
	KindBlob   Kind = "blob"
	KindTree   Kind = "tree"
	KindCommit Kind = "commit"
)

// TreeEntry is one mapping within a Tree: a path component to a child
// object. Entries never contain "/" or resolve to "." or "..".
type TreeEntry struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	ID   Hash   `json:"id"`
	Mode uint32 `json:"mode"`
}

// Tree is an ordered, content-addressed directory snapshot. Entries are
// always stored sorted lexicographically by Name so serialization is
// canonical (spec.md §3 invariant: "Sorted lexicographically; serialization
// is therefore canonical").
type Tree struct {
	Entries []TreeEntry `json:"entries"`
}

// sortedCopy returns a copy of entries sorted by Name.
func sortedCopy(entries []TreeEntry) []TreeEntry {
	out := make([]TreeEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NewTree builds a Tree with entries sorted into canonical order.
func NewTree(entries []TreeEntry) Tree {
	return Tree{Entries: sortedCopy(entries)}
}

// Encode returns the canonical JSON serialization of t. Because Entries is
// always kept sorted, Encode is deterministic for a logically identical
// tree regardless of construction order.
func (t Tree) Encode() []byte {
	t.Entries = sortedCopy(t.Entries)
	b, _ := json.Marshal(t)
	return b
}

// DecodeTree parses the bytes produced by Tree.Encode.
func DecodeTree(data []byte) (Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return Tree{}, err
	}
	return t, nil
}

// Signature is an author or committer identity attached to a commit.
type Signature struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Timestamp int64  `json:"timestamp_unix_utc"`
}

// Now returns a Signature for name/email stamped with the current time.
func Now(name, email string) Signature {
	return Signature{Name: name, Email: email, Timestamp: time.Now().Unix()}
}

// Commit is an immutable snapshot: a tree plus parents, author/committer,
// and message. Root commits have zero parents; merges have two or more.
type Commit struct {
	TreeID    Hash      `json:"tree_id"`
	Parents   []Hash    `json:"parents"`
	Author    Signature `json:"author"`
	Committer Signature `json:"committer"`
	Message   string    `json:"message"`
}

// Encode returns the canonical JSON serialization of c.
func (c Commit) Encode() []byte {
	if c.Parents == nil {
		c.Parents = []Hash{}
	}
	b, _ := json.Marshal(c)
	return b
}

// DecodeCommit parses the bytes produced by Commit.Encode.
func DecodeCommit(data []byte) (Commit, error) {
	var c Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return Commit{}, err
	}
	return c, nil
}

// IndexEntry is one staged path in the staging index.
type IndexEntry struct {
	Path     string `json:"path"`
	BlobID   Hash   `json:"blob_id"`
	Mode     uint32 `json:"mode"`
	StagedAt int64  `json:"staged_at"`
	Deleted  bool   `json:"deleted,omitempty"`
}

// StashEntry is one saved working-tree snapshot.
type StashEntry struct {
	TreeID    Hash   `json:"tree_id"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"created_at"`
}
