package auth

import (
	"testing"
	"time"

	"github.com/rune-vcs/rune/internal/rerr"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIssueTokenAndValidateRoundTrip(t *testing.T) {
	s := newStore(t)

	issued, err := s.IssueToken("alice", []Permission{PermRead, PermWrite}, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if issued.Secret == "" {
		t.Fatal("expected non-empty secret")
	}

	tok, err := s.Validate(issued.Secret)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if tok.Principal != "alice" || !tok.Has(PermRead) || !tok.Has(PermWrite) || tok.Has(PermAdmin) {
		t.Fatalf("unexpected token: %+v", tok)
	}
}

func TestValidateUnknownSecret(t *testing.T) {
	s := newStore(t)

	_, err := s.Validate("not-a-real-secret")
	if kind, ok := rerr.KindOf(err); !ok || kind != rerr.Auth {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestValidateExpiredToken(t *testing.T) {
	s := newStore(t)

	issued, err := s.IssueToken("bob", []Permission{PermRead}, -1*time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	_, err = s.Validate(issued.Secret)
	var rerrErr *rerr.Error
	if err == nil {
		t.Fatal("expected expired token to fail validation")
	}
	if e, ok := err.(*rerr.Error); ok {
		rerrErr = e
	}
	if rerrErr == nil || rerrErr.Code != rerr.CodeExpired {
		t.Fatalf("expected CodeExpired, got %v", err)
	}
}

func TestRevokeToken(t *testing.T) {
	s := newStore(t)

	issued, err := s.IssueToken("carol", []Permission{PermRead}, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := s.Revoke(issued.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	_, err = s.Validate(issued.Secret)
	if e, ok := err.(*rerr.Error); !ok || e.Code != rerr.CodeRevoked {
		t.Fatalf("expected CodeRevoked, got %v", err)
	}
}

func TestRequireEnforcesPermissionAndAudits(t *testing.T) {
	s := newStore(t)

	issued, err := s.IssueToken("dana", []Permission{PermRead}, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := s.Require(issued.Secret, PermRead, "pull", "branch:main"); err != nil {
		t.Fatalf("Require(read): %v", err)
	}

	_, err = s.Require(issued.Secret, PermAdmin, "delete-branch", "branch:main")
	if e, ok := err.(*rerr.Error); !ok || e.Code != rerr.CodeForbidden {
		t.Fatalf("expected CodeForbidden, got %v", err)
	}

	events, err := s.ReadAudit()
	if err != nil {
		t.Fatalf("ReadAudit: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(events))
	}
	if events[0].Outcome != "allowed" || events[1].Outcome != "forbidden" {
		t.Fatalf("unexpected audit outcomes: %+v", events)
	}
	if events[1].Principal != "dana" || events[1].Resource != "branch:main" {
		t.Fatalf("unexpected audit event: %+v", events[1])
	}
}

func TestPasswordHashAndVerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	ok, err := VerifyPassword(hash, "correct horse battery staple")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}

	ok, err = VerifyPassword(hash, "wrong password")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched password to fail verification")
	}
}

func TestIssueTokenIsIdempotentlyDistinctPerCall(t *testing.T) {
	s := newStore(t)

	a, err := s.IssueToken("erin", []Permission{PermLFS}, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	b, err := s.IssueToken("erin", []Permission{PermLFS}, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if a.Secret == b.Secret || a.ID == b.ID {
		t.Fatal("expected distinct secrets/ids across separate issuances")
	}
}
