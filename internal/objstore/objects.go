package objstore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/pack"
	"github.com/rune-vcs/rune/internal/rerr"
)

// WriteObject stores data content-addressed under its SHA-256 digest and
// returns the resulting id. Writing the same bytes twice is a no-op past the
// first call (spec.md §3 invariant: objects are immutable and idempotent to
// write). Grounded in gitcore/objects.go's loose-object writer, generalized
// from SHA-1 to SHA-256 and from read-only to read/write.
func (r *Repository) WriteObject(data []byte) (Hash, error) {
	id := hashio.Sum(data)
	path := hashio.ShardedPath(r.looseDir(), id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}
	if err := hashio.AtomicWrite(path, data, 0o444); err != nil {
		return "", err
	}
	return id, nil
}

// ReadObject retrieves the bytes previously stored under id, checking loose
// storage first and falling back to any pack file's index.
func (r *Repository) ReadObject(id Hash) ([]byte, error) {
	loosePath := hashio.ShardedPath(r.looseDir(), id)
	if data, err := os.ReadFile(loosePath); err == nil {
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}

	data, ok, err := r.readFromPacks(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rerr.New(rerr.Integrity, rerr.CodeObjectMissing, string(id))
	}
	return data, nil
}

// HasObject reports whether id exists in loose storage or any pack, without
// reading its full content.
func (r *Repository) HasObject(id Hash) bool {
	if _, err := os.Stat(hashio.ShardedPath(r.looseDir(), id)); err == nil {
		return true
	}
	_, ok, _ := r.readFromPacks(id)
	return ok
}

// readFromPacks scans every *.idx file in the packs directory for id, in
// lexical filename order, returning the first match's decompressed bytes.
func (r *Repository) readFromPacks(id Hash) ([]byte, bool, error) {
	entries, err := os.ReadDir(r.packsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".idx") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".idx")
		idxData, err := os.ReadFile(filepath.Join(r.packsDir(), e.Name()))
		if err != nil {
			return nil, false, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
		}
		idx, err := pack.DecodeIndex(idxData)
		if err != nil {
			return nil, false, err
		}
		entry, ok := idx.Find(string(id))
		if !ok {
			continue
		}
		packData, err := os.ReadFile(filepath.Join(r.packsDir(), base+".pack"))
		if err != nil {
			return nil, false, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
		}
		data, err := pack.Unpack(packData, entry)
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}
	return nil, false, nil
}

// WriteTree stores t's canonical encoding and returns its id.
func (r *Repository) WriteTree(t Tree) (Hash, error) {
	return r.WriteObject(t.Encode())
}

// ReadTree retrieves and decodes the tree stored under id.
func (r *Repository) ReadTree(id Hash) (Tree, error) {
	data, err := r.ReadObject(id)
	if err != nil {
		return Tree{}, err
	}
	return DecodeTree(data)
}

// WriteCommit stores c's canonical encoding and returns its id.
func (r *Repository) WriteCommit(c Commit) (Hash, error) {
	return r.WriteObject(c.Encode())
}

// ReadCommit retrieves and decodes the commit stored under id.
func (r *Repository) ReadCommit(id Hash) (Commit, error) {
	data, err := r.ReadObject(id)
	if err != nil {
		return Commit{}, err
	}
	return DecodeCommit(data)
}

// CollectObjects walks treeID recursively and returns the raw bytes of every
// tree and blob reachable from it, keyed by id. Unlike FlattenTree (which
// only reports leaf blob entries by path), this also includes intermediate
// tree objects, since a sync client reconstructing a remote commit needs the
// whole object graph, not just the paths it ultimately resolves to.
func (r *Repository) CollectObjects(treeID Hash) (map[Hash][]byte, error) {
	out := map[Hash][]byte{}
	if treeID.Empty() {
		return out, nil
	}
	if err := r.collectObjectsInto(treeID, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) collectObjectsInto(treeID Hash, out map[Hash][]byte) error {
	if _, done := out[treeID]; done {
		return nil
	}
	data, err := r.ReadObject(treeID)
	if err != nil {
		return err
	}
	out[treeID] = data

	t, err := DecodeTree(data)
	if err != nil {
		return err
	}
	for _, e := range t.Entries {
		if e.Kind == KindTree {
			if err := r.collectObjectsInto(e.ID, out); err != nil {
				return err
			}
			continue
		}
		if _, done := out[e.ID]; done {
			continue
		}
		blob, err := r.ReadObject(e.ID)
		if err != nil {
			return err
		}
		out[e.ID] = blob
	}
	return nil
}
