// Package auth implements the token authentication and audit subsystem
// from spec.md §4.8: random-secret token issuance, permission checks, and
// an append-only audit log. gitvista (the teacher) has no auth layer at
// all — this package is new code, grounded in the corpus's closest
// analogues: go-git-go-git's use of golang.org/x/crypto for cryptographic
// primitives (here argon2 for password hashing instead of its ssh key
// handling), and AKJUS-bsc-erigon's modernc.org/sqlite + pressly/goose
// migration pattern for the persistent store, which the teacher itself
// already imports goose for without ever wiring it to anything.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/rune-vcs/rune/internal/rerr"
)

// Permission is one capability a token may carry.
type Permission string

const (
	PermRead  Permission = "read"
	PermWrite Permission = "write"
	PermAdmin Permission = "admin"
	PermLFS   Permission = "lfs"
)

// Token is the persisted record for one issued credential. Secret is never
// persisted in plaintext; only SecretHash is stored, and the raw secret is
// returned once, at issuance, to the caller.
type Token struct {
	ID          string
	Principal   string
	Permissions map[Permission]bool
	IssuedAt    int64
	ExpiresAt   *int64
	Revoked     bool
	SecretHash  string
}

// Issued is returned by IssueToken: the persisted record plus the one-time
// plaintext secret.
type Issued struct {
	Token
	Secret string
}

// Has reports whether t carries permission p.
func (t Token) Has(p Permission) bool { return t.Permissions[p] }

func (t Token) expired(now int64) bool {
	return t.ExpiresAt != nil && *t.ExpiresAt <= now
}

// newSecret returns a random >=128-bit, base64-encoded secret, per spec.md
// §4.8: "Secret is random ≥ 128 bits, Base64-encoded."
func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func newTokenID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// IssueToken creates and persists a new token for principal with the given
// permission set and optional TTL (zero means no expiry; a negative TTL
// yields an already-expired token), returning its id and one-time secret.
func (s *Store) IssueToken(principal string, perms []Permission, ttl time.Duration) (Issued, error) {
	id, err := newTokenID()
	if err != nil {
		return Issued{}, err
	}
	secret, err := newSecret()
	if err != nil {
		return Issued{}, err
	}

	permSet := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		permSet[p] = true
	}

	now := time.Now().Unix()
	tok := Token{
		ID:          id,
		Principal:   principal,
		Permissions: permSet,
		IssuedAt:    now,
		SecretHash:  hashSecret(secret),
	}
	if ttl != 0 {
		exp := now + int64(ttl.Seconds())
		tok.ExpiresAt = &exp
	}

	if err := s.persistToken(tok); err != nil {
		return Issued{}, err
	}
	return Issued{Token: tok, Secret: secret}, nil
}

// Validate looks up the token matching secret and reports its principal and
// permissions, or a typed Auth error (CodeUnknownToken, CodeExpired,
// CodeRevoked).
func (s *Store) Validate(secret string) (Token, error) {
	hash := hashSecret(secret)
	tok, ok, err := s.findTokenByHash(hash)
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return Token{}, rerr.New(rerr.Auth, rerr.CodeUnknownToken, "")
	}
	if tok.Revoked {
		return Token{}, rerr.New(rerr.Auth, rerr.CodeRevoked, tok.ID)
	}
	if tok.expired(time.Now().Unix()) {
		return Token{}, rerr.New(rerr.Auth, rerr.CodeExpired, tok.ID)
	}
	return tok, nil
}

// Revoke marks id's token as revoked. Idempotent.
func (s *Store) Revoke(id string) error {
	return s.revokeToken(id)
}

// Require checks that secret validates and carries permission p, returning
// the resolved Token on success or a typed Auth error: Validate's own error
// (CodeUnknownToken, CodeExpired, CodeRevoked) if the secret does not
// validate, CodeUnauthorized if validation fails for a non-auth reason, and
// CodeForbidden if the token is valid but missing the permission.
// Every call is audit-logged regardless of outcome, per spec.md §4.8.
func (s *Store) Require(secret string, permission Permission, action, resource string) (Token, error) {
	tok, err := s.Validate(secret)
	if err != nil {
		s.Audit(Event{Action: action, Resource: resource, Outcome: "denied"})
		if kind, ok := rerr.KindOf(err); ok && kind == rerr.Auth {
			return Token{}, err
		}
		return Token{}, rerr.New(rerr.Auth, rerr.CodeUnauthorized, "")
	}

	if !tok.Has(permission) {
		s.Audit(Event{Principal: tok.Principal, Action: action, Resource: resource, Outcome: "forbidden"})
		return Token{}, rerr.New(rerr.Auth, rerr.CodeForbidden, string(permission))
	}

	s.Audit(Event{Principal: tok.Principal, Action: action, Resource: resource, Outcome: "allowed"})
	return tok, nil
}
