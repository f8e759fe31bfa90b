// Package lfs implements the Large File Storage engine from spec.md §4.7:
// pointer blobs, content-addressed chunk storage, and the Perforce-style
// exclusive lock registry with branch-switch inheritance policies. Chunking
// and pointer reconstruction are new code (no teacher equivalent — gitvista
// has no LFS subsystem), grounded in gitcore/objects.go's sharded loose-object
// layout and hashio's content-addressing primitives, generalized to content
// split across multiple addressed pieces instead of one object per file.
package lfs

import (
	"encoding/json"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/rerr"
)

// Pointer is the canonical JSON stand-in blob staged in place of large file
// content (spec.md §6: `{"v":1,"oid":...,"size":...,"chunk_size":...,"chunks":[...]}`).
type Pointer struct {
	V         int           `json:"v"`
	OID       hashio.Hash   `json:"oid"`
	Size      uint64        `json:"size"`
	ChunkSize uint64        `json:"chunk_size"`
	Chunks    []hashio.Hash `json:"chunks"`
}

// Encode returns the canonical JSON serialization of p.
func (p Pointer) Encode() []byte {
	if p.V == 0 {
		p.V = 1
	}
	b, _ := json.Marshal(p)
	return b
}

// DecodePointer parses bytes previously produced by Pointer.Encode. It
// returns an Integrity error with CodeDecodeError for malformed JSON or a
// record that is not a version-1 pointer with an oid; callers distinguish
// pointer blobs from ordinary content by attempting this decode.
func DecodePointer(data []byte) (Pointer, error) {
	var p Pointer
	if err := json.Unmarshal(data, &p); err != nil {
		return Pointer{}, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	if p.V != 1 || p.OID.Empty() {
		return Pointer{}, rerr.New(rerr.Integrity, rerr.CodeDecodeError, "not a valid LFS pointer")
	}
	return p, nil
}
