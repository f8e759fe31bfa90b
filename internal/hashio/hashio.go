// Package hashio provides the content-addressing and I/O primitives shared by
// every on-disk rune component (spec.md §4.1): canonical SHA-256 hashing,
// atomic file writes, and path normalization that rejects traversal outside
// a repository root. Grounded in the directory-walking and defensive path
// handling used throughout gitcore (findGitDirectory, readLooseObjectRaw).
package hashio

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rune-vcs/rune/internal/rerr"
)

// Hash is a lowercase hex-encoded SHA-256 digest, 64 characters long.
type Hash string

// Empty reports whether h is the zero value.
func (h Hash) Empty() bool { return h == "" }

// Short returns the first 7 hex characters, or the full hash if shorter.
func (h Hash) Short() string {
	if len(h) < 7 {
		return string(h)
	}
	return string(h)[:7]
}

// Sum computes the canonical SHA-256 digest of b.
func Sum(b []byte) Hash {
	sum := sha256.Sum256(b)
	return Hash(hex.EncodeToString(sum[:]))
}

// NewHasher returns a streaming SHA-256 accumulator for callers that hash
// data incrementally (e.g. the LFS chunker).
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Hasher wraps hash.Hash with a Hash()-returning Sum method.
type Hasher struct {
	h interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
	}
}

// Write feeds bytes into the running digest.
func (h *Hasher) Write(p []byte) (int, error) { return h.h.Write(p) }

// Sum returns the digest accumulated so far.
func (h *Hasher) Sum() Hash {
	return Hash(hex.EncodeToString(h.h.Sum(nil)))
}

// ParseHash validates that s is a well-formed 64-character hex digest.
func ParseHash(s string) (Hash, error) {
	if len(s) != 64 {
		return "", rerr.New(rerr.UserInput, "InvalidHash", fmt.Sprintf("invalid hash length: %d", len(s)))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", rerr.Wrap(rerr.UserInput, "InvalidHash", err)
	}
	return Hash(s), nil
}

// ShardedPath returns the loose-object storage path for id under root,
// splitting the first two hex characters into a directory exactly as
// spec.md §4.5 requires: objects/loose/<aa>/<rest>.
func ShardedPath(root string, id Hash) string {
	s := string(id)
	return filepath.Join(root, s[:2], s[2:])
}

// AtomicWrite writes data to path by writing a randomly-suffixed temp file in
// the same directory, fsyncing it, and renaming it into place. The rename is
// atomic on POSIX filesystems, so readers never observe a partially written
// file; a concurrent writer racing to the same path is resolved by whichever
// rename lands last, which is safe because loose objects are content
// addressed and identical bytes land at the same path either way.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	if err := tmp.Close(); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}

	cleanup = false
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return nil
}

// NormalizePath rejects absolute paths, ".."-escaping paths, and NUL bytes,
// and returns the forward-slash-normalized, root-relative form. It does not
// touch the filesystem; ResolveWithinRoot additionally checks symlinks.
func NormalizePath(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", rerr.New(rerr.UserInput, rerr.CodePathEscapesRoot, "path contains NUL byte")
	}
	clean := filepath.ToSlash(filepath.Clean(p))
	if clean == "." {
		return "", nil
	}
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "../") || clean == ".." {
		return "", rerr.New(rerr.UserInput, rerr.CodePathEscapesRoot, p)
	}
	return clean, nil
}

// ResolveWithinRoot joins rel onto root, verifies the normalized path does
// not escape root, and — if the path exists — verifies that no path
// component resolves through a symlink that points outside root.
func ResolveWithinRoot(root, rel string) (string, error) {
	clean, err := NormalizePath(rel)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.FromSlash(clean))

	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolvedRoot = root
	}

	// Walk up from full until we find an existing ancestor, then verify
	// that ancestor's resolved form is still inside resolvedRoot. This
	// catches a symlink placed at any path component, not just the leaf.
	cursor := full
	for {
		if info, statErr := os.Lstat(cursor); statErr == nil {
			resolved, evalErr := filepath.EvalSymlinks(cursor)
			if evalErr == nil {
				rel, relErr := filepath.Rel(resolvedRoot, resolved)
				if relErr != nil || rel == ".." || strings.HasPrefix(rel, "../") {
					return "", rerr.New(rerr.UserInput, rerr.CodePathEscapesRoot, rel)
				}
			}
			_ = info
			break
		}
		parent := filepath.Dir(cursor)
		if parent == cursor {
			break
		}
		cursor = parent
	}

	return full, nil
}

// RandomSuffix returns a short random hex string, used for temp file names
// and as a source of entropy for non-cryptographic IDs.
func RandomSuffix(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read on the stdlib reader only fails if the OS RNG is
		// broken, which is unrecoverable; panicking matches the teacher's
		// treatment of other impossible-in-practice invariants.
		panic(fmt.Sprintf("hashio: crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}
