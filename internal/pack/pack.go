// Package pack implements the pack codec from spec.md §4.3: many blobs are
// concatenated, zstd-compressed as one stream, and described by a side index
// mapping name -> (offset, length, checksum). Grounded in gitcore/pack.go's
// fanout-table index-reading structure (loadPackIndexV1/V2, PackIndex,
// FindObject), generalized from git's SHA-1 pack format (read-only in the
// teacher) to rune's SHA-256/zstd format that also writes.
package pack

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/rerr"
)

// Entry describes one packed blob's location within the decompressed pack
// stream and its integrity checksum.
type Entry struct {
	Name     string
	Offset   int64
	Length   int64
	Checksum hashio.Hash
}

// Index maps blob name to its Entry, preserving insertion order so unpack
// is deterministic (spec.md §4.3).
type Index struct {
	order   []string
	entries map[string]Entry
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// Find returns the Entry for name and whether it exists.
func (x *Index) Find(name string) (Entry, bool) {
	e, ok := x.entries[name]
	return e, ok
}

// Names returns packed blob names in insertion order.
func (x *Index) Names() []string {
	out := make([]string, len(x.order))
	copy(out, x.order)
	return out
}

func (x *Index) add(e Entry) {
	if _, exists := x.entries[e.Name]; !exists {
		x.order = append(x.order, e.Name)
	}
	x.entries[e.Name] = e
}

// Item is one named blob to be packed.
type Item struct {
	Name  string
	Bytes []byte
}

// Pack compresses all items into a single zstd stream and builds the
// accompanying Index. Names must be unique within a pack; insertion order is
// preserved. Each entry's checksum is the SHA-256 of its uncompressed bytes
// (spec.md invariant 7).
func Pack(items []Item) ([]byte, *Index, error) {
	seen := make(map[string]struct{}, len(items))
	var uncompressed bytes.Buffer
	idx := NewIndex()

	for _, it := range items {
		if _, dup := seen[it.Name]; dup {
			return nil, nil, rerr.New(rerr.UserInput, "DuplicateName", it.Name)
		}
		seen[it.Name] = struct{}{}

		offset := int64(uncompressed.Len())
		uncompressed.Write(it.Bytes)

		idx.add(Entry{
			Name:     it.Name,
			Offset:   offset,
			Length:   int64(len(it.Bytes)),
			Checksum: hashio.Sum(it.Bytes),
		})
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, nil, rerr.Wrap(rerr.Internal, rerr.CodeCompressionError, err)
	}
	compressed := enc.EncodeAll(uncompressed.Bytes(), nil)
	if err := enc.Close(); err != nil {
		return nil, nil, rerr.Wrap(rerr.Internal, rerr.CodeCompressionError, err)
	}

	return compressed, idx, nil
}

// Unpack decompresses packData once and returns exactly the bytes that were
// passed to Pack for entry.Name, verified against entry.Checksum.
func Unpack(packData []byte, entry Entry) ([]byte, error) {
	decoded, err := decompress(packData)
	if err != nil {
		return nil, err
	}

	if entry.Offset < 0 || entry.Length < 0 || entry.Offset+entry.Length > int64(len(decoded)) {
		return nil, rerr.New(rerr.Integrity, rerr.CodeOffsetOutOfBound,
			fmt.Sprintf("entry %s: [%d:%d) exceeds decompressed length %d", entry.Name, entry.Offset, entry.Offset+entry.Length, len(decoded)))
	}

	blob := decoded[entry.Offset : entry.Offset+entry.Length]
	if got := hashio.Sum(blob); got != entry.Checksum {
		return nil, rerr.New(rerr.Integrity, rerr.CodeChecksumMismatch,
			fmt.Sprintf("entry %s: checksum mismatch: got %s want %s", entry.Name, got, entry.Checksum))
	}

	// Defensive copy: callers must not be able to mutate the shared
	// decompressed buffer through the returned slice.
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func decompress(packData []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeCompressionError, err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(packData, nil)
	if err != nil {
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeCompressionError, err)
	}
	return out, nil
}

// --- on-disk index serialization (objects/packs/<id>.idx) ---
//
// The format is a simple sequential table with no fanout; entries vary in
// width because each is keyed by name length + bytes (rune names are not
// fixed 20-byte hashes): magic, entry count, then per entry
// [namelen uint32][name][offset int64][length int64][checksum 32 bytes].

var indexMagic = [4]byte{'R', 'P', 'I', '1'}

// EncodeIndex serializes idx to its on-disk form, in Names() order.
func EncodeIndex(idx *Index) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(indexMagic[:])

	names := idx.Names()
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(names))); err != nil {
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}

	for _, name := range names {
		e, _ := idx.Find(name)
		if err := writeIndexEntry(&buf, e); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeIndexEntry(buf *bytes.Buffer, e Entry) error {
	nameBytes := []byte(e.Name)
	if err := binary.Write(buf, binary.BigEndian, uint32(len(nameBytes))); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	buf.Write(nameBytes)
	if err := binary.Write(buf, binary.BigEndian, e.Offset); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	if err := binary.Write(buf, binary.BigEndian, e.Length); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	sum, err := decodeChecksumHex(string(e.Checksum))
	if err != nil {
		return err
	}
	buf.Write(sum[:])
	return nil
}

// DecodeIndex parses the on-disk form produced by EncodeIndex.
func DecodeIndex(data []byte) (*Index, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	if magic != indexMagic {
		return nil, rerr.New(rerr.Integrity, rerr.CodeDecodeError, "bad pack index magic")
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}

	idx := NewIndex()
	for i := uint32(0); i < count; i++ {
		e, err := readIndexEntry(r)
		if err != nil {
			return nil, err
		}
		idx.add(e)
	}
	return idx, nil
}

func readIndexEntry(r *bytes.Reader) (Entry, error) {
	var nameLen uint32
	if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return Entry{}, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return Entry{}, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}

	var offset, length int64
	if err := binary.Read(r, binary.BigEndian, &offset); err != nil {
		return Entry{}, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return Entry{}, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}

	var sum [32]byte
	if _, err := io.ReadFull(r, sum[:]); err != nil {
		return Entry{}, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}

	return Entry{
		Name:     string(nameBytes),
		Offset:   offset,
		Length:   length,
		Checksum: hashio.Hash(encodeChecksumHex(sum)),
	}, nil
}

func decodeChecksumHex(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) != 64 {
		return out, rerr.New(rerr.Integrity, rerr.CodeDecodeError, "checksum must be 64 hex chars")
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	copy(out[:], decoded)
	return out, nil
}

func encodeChecksumHex(sum [32]byte) string {
	return hex.EncodeToString(sum[:])
}

// SortedNames returns idx's names sorted lexicographically, useful for
// deterministic iteration independent of pack insertion order.
func SortedNames(idx *Index) []string {
	names := idx.Names()
	sort.Strings(names)
	return names
}
