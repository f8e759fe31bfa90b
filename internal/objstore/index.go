package objstore

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/rerr"
)

// ReadIndex loads the staging index, keyed by repo-relative path.
func (r *Repository) ReadIndex() (map[string]IndexEntry, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	var list []IndexEntry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	out := make(map[string]IndexEntry, len(list))
	for _, e := range list {
		out[e.Path] = e
	}
	return out, nil
}

func (r *Repository) writeIndex(entries map[string]IndexEntry) error {
	list := make([]IndexEntry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Path < list[j].Path })
	data, err := json.Marshal(list)
	if err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return hashio.AtomicWrite(r.indexPath(), data, 0o644)
}

// Stage hashes content into the object store as a blob and records path as
// staged at that blob with mode. Grounded in gitcore/index.go's entry model,
// generalized to accept content directly (the caller, internal/worktree,
// reads the working-tree file).
func (r *Repository) Stage(path string, content []byte, mode uint32) error {
	clean, err := hashio.NormalizePath(path)
	if err != nil {
		return err
	}
	blobID, err := r.WriteObject(content)
	if err != nil {
		return err
	}

	idx, err := r.ReadIndex()
	if err != nil {
		return err
	}
	idx[clean] = IndexEntry{Path: clean, BlobID: blobID, Mode: mode, StagedAt: time.Now().Unix()}
	return r.writeIndex(idx)
}

// StageDeletion records path as staged for removal, so the next commit omits
// it from the tree even though it may still exist in HEAD's tree.
func (r *Repository) StageDeletion(path string) error {
	clean, err := hashio.NormalizePath(path)
	if err != nil {
		return err
	}
	idx, err := r.ReadIndex()
	if err != nil {
		return err
	}
	idx[clean] = IndexEntry{Path: clean, StagedAt: time.Now().Unix(), Deleted: true}
	return r.writeIndex(idx)
}

// Unstage removes path from the staging index entirely, leaving the working
// tree and HEAD untouched. Fails with CodeNothingStaged if path was never
// staged.
func (r *Repository) Unstage(path string) error {
	clean, err := hashio.NormalizePath(path)
	if err != nil {
		return err
	}
	idx, err := r.ReadIndex()
	if err != nil {
		return err
	}
	if _, ok := idx[clean]; !ok {
		return rerr.New(rerr.State, rerr.CodeNothingStaged, clean)
	}
	delete(idx, clean)
	return r.writeIndex(idx)
}

// ClearIndex empties the staging index, used after a commit and by stash push.
func (r *Repository) ClearIndex() error {
	return r.writeIndex(map[string]IndexEntry{})
}

// ResetIndexToTree repopulates the staging index to exactly mirror treeID's
// flattened entries, used by hard resets and checkout.
func (r *Repository) ResetIndexToTree(treeID Hash) error {
	flat, err := r.FlattenTree(treeID)
	if err != nil {
		return err
	}
	idx := make(map[string]IndexEntry, len(flat))
	now := time.Now().Unix()
	for path, entry := range flat {
		idx[path] = IndexEntry{Path: path, BlobID: entry.ID, Mode: entry.Mode, StagedAt: now}
	}
	return r.writeIndex(idx)
}

// FlattenTree walks a tree recursively and returns every blob entry keyed by
// its full repo-relative path.
func (r *Repository) FlattenTree(treeID Hash) (map[string]TreeEntry, error) {
	out := make(map[string]TreeEntry)
	if treeID.Empty() {
		return out, nil
	}
	if err := r.flattenInto(treeID, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) flattenInto(treeID Hash, prefix string, out map[string]TreeEntry) error {
	t, err := r.ReadTree(treeID)
	if err != nil {
		return err
	}
	for _, e := range t.Entries {
		full := e.Name
		if prefix != "" {
			full = prefix + "/" + e.Name
		}
		switch e.Kind {
		case KindTree:
			if err := r.flattenInto(e.ID, full, out); err != nil {
				return err
			}
		default:
			out[full] = TreeEntry{Name: full, Kind: e.Kind, ID: e.ID, Mode: e.Mode}
		}
	}
	return nil
}
