package lfs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/rerr"
)

// DefaultChunkSize is the default chunk size (8 MiB) spec.md §4.7 assigns
// when .rune/lfsconfig does not override it.
const DefaultChunkSize = 8 * 1024 * 1024

// MinChunkSize is the minimum configurable chunk size (1 MiB), per spec.md
// §4.7: "configurable ≥ 1 MiB".
const MinChunkSize = 1024 * 1024

// Store is the chunk store and lock registry rooted at a repository's
// .rune directory.
type Store struct {
	RuneDir string
}

// NewStore returns a Store rooted at runeDir (a repository's ".rune").
func NewStore(runeDir string) *Store {
	return &Store{RuneDir: runeDir}
}

func (s *Store) objectsDir() string { return filepath.Join(s.RuneDir, "lfs", "objects") }

// ChunkAndStore splits content into chunks of size chunkSize (or
// DefaultChunkSize if zero), writes each chunk to content-addressed storage
// if not already present, and returns the resulting Pointer. The oid is
// computed incrementally over the full content as it is chunked, matching
// spec.md §4.7 step 3.
func (s *Store) ChunkAndStore(content []byte, chunkSize uint64) (Pointer, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < MinChunkSize {
		return Pointer{}, rerr.New(rerr.UserInput, "ChunkSizeTooSmall", fmt.Sprintf("%d", chunkSize))
	}

	hasher := hashio.NewHasher()
	var chunks []hashio.Hash

	for offset := uint64(0); offset < uint64(len(content)); offset += chunkSize {
		end := offset + chunkSize
		if end > uint64(len(content)) {
			end = uint64(len(content))
		}
		chunk := content[offset:end]
		hasher.Write(chunk)

		cid := hashio.Sum(chunk)
		if err := s.writeChunk(cid, chunk); err != nil {
			return Pointer{}, err
		}
		chunks = append(chunks, cid)
	}

	if len(content) == 0 {
		// Zero-length content still yields a single empty chunk so
		// reconstruction has something to concatenate.
		cid := hashio.Sum(nil)
		if err := s.writeChunk(cid, nil); err != nil {
			return Pointer{}, err
		}
		chunks = []hashio.Hash{cid}
		hasher.Write(nil)
	}

	return Pointer{
		V:         1,
		OID:       hasher.Sum(),
		Size:      uint64(len(content)),
		ChunkSize: chunkSize,
		Chunks:    chunks,
	}, nil
}

func (s *Store) writeChunk(cid hashio.Hash, data []byte) error {
	path := hashio.ShardedPath(s.objectsDir(), cid)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return hashio.AtomicWrite(path, data, 0o444)
}

// HasChunk reports whether cid is already stored, used by the sync server
// to answer push/upload requests with AlreadyPresent.
func (s *Store) HasChunk(cid hashio.Hash) bool {
	_, err := os.Stat(hashio.ShardedPath(s.objectsDir(), cid))
	return err == nil
}

// ReadChunk returns the raw bytes stored under cid.
func (s *Store) ReadChunk(cid hashio.Hash) ([]byte, error) {
	data, err := os.ReadFile(hashio.ShardedPath(s.objectsDir(), cid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rerr.New(rerr.Integrity, rerr.CodeObjectMissing, string(cid))
		}
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return data, nil
}

// WriteChunk stores data under its own content hash after verifying it
// equals the claimed cid, used by upload handlers receiving chunks over the
// wire. Returns rerr.CodeChecksumMismatch if the claim is wrong.
func (s *Store) WriteChunk(cid hashio.Hash, data []byte) error {
	if got := hashio.Sum(data); got != cid {
		return rerr.New(rerr.Integrity, rerr.CodeChecksumMismatch, fmt.Sprintf("got %s want %s", got, cid))
	}
	return s.writeChunk(cid, data)
}

func (s *Store) indexedPath(oid hashio.Hash, index int) string {
	return filepath.Join(s.objectsDir(), "by-oid", string(oid), fmt.Sprintf("%d", index))
}

// HasIndexedChunk reports whether chunk index of oid has already been
// uploaded, used to answer POST /lfs/upload idempotently: the wire protocol
// addresses chunks by (oid, chunk_index) rather than by the chunk's own
// content hash, per spec.md §4.9's upload/download body shape.
func (s *Store) HasIndexedChunk(oid hashio.Hash, index int) bool {
	_, err := os.Stat(s.indexedPath(oid, index))
	return err == nil
}

// WriteIndexedChunk stores data as chunk index of oid. A second write of the
// same (oid, index) with identical data is a no-op; identical (oid, index)
// with different data is also accepted as a last-write-wins overwrite, since
// the wire protocol carries no independent hash to arbitrate a conflict.
func (s *Store) WriteIndexedChunk(oid hashio.Hash, index int, data []byte) error {
	return hashio.AtomicWrite(s.indexedPath(oid, index), data, 0o644)
}

// ReadIndexedChunk returns the bytes previously stored for (oid, index).
func (s *Store) ReadIndexedChunk(oid hashio.Hash, index int) ([]byte, error) {
	data, err := os.ReadFile(s.indexedPath(oid, index))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rerr.New(rerr.Integrity, rerr.CodeObjectMissing, fmt.Sprintf("%s#%d", oid, index))
		}
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return data, nil
}

// Reconstruct concatenates p's chunks in order, verifying each chunk's hash
// and the reassembled content's overall oid, per spec.md invariant 6.
func (s *Store) Reconstruct(p Pointer) ([]byte, error) {
	var buf bytes.Buffer
	for _, cid := range p.Chunks {
		data, err := s.ReadChunk(cid)
		if err != nil {
			return nil, err
		}
		if got := hashio.Sum(data); got != cid {
			return nil, rerr.New(rerr.Integrity, rerr.CodeChecksumMismatch, string(cid))
		}
		buf.Write(data)
	}

	out := buf.Bytes()
	if uint64(len(out)) > p.Size {
		out = out[:p.Size]
	}
	if uint64(len(out)) != p.Size {
		return nil, rerr.New(rerr.Integrity, rerr.CodeTruncatedPatch, "reconstructed content shorter than pointer size")
	}
	if got := hashio.Sum(out); got != p.OID {
		return nil, rerr.New(rerr.Integrity, rerr.CodeChecksumMismatch, fmt.Sprintf("reconstructed oid %s != pointer oid %s", got, p.OID))
	}
	return out, nil
}
