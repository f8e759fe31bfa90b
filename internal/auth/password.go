package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/rune-vcs/rune/internal/rerr"
)

// Argon2id parameters for interactive logins: one pass over 64 MiB with 4
// lanes, the time/memory settings golang.org/x/crypto/argon2 suggests for
// IDKey.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // KiB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// HashPassword derives a salted argon2id hash for plaintext, encoded as
// "$argon2id$v=19$m=...,t=...,p=...$salt$hash", the same self-describing
// format argon2's own reference CLI produces.
func HashPassword(plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	hash := argon2.IDKey([]byte(plaintext), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword reports whether plaintext matches encoded, which must have
// been produced by HashPassword. Comparison is constant-time.
func VerifyPassword(encoded, plaintext string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, rerr.New(rerr.Integrity, rerr.CodeDecodeError, "malformed password hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}

	got := argon2.IDKey([]byte(plaintext), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
