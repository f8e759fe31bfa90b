package auth

import (
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/rune-vcs/rune/internal/rerr"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is the sqlite-backed persistence layer for tokens, per spec.md
// §4.8; it also holds the audit logger, which writes a separate JSON-lines
// file (audit.go) rather than a database table. The teacher (gitvista) declares
// github.com/pressly/goose/v3 in its go.mod but never calls it; this is its
// first real use, migrating the schema below on Open.
type Store struct {
	db    *sql.DB
	audit *auditLogger
}

// Open opens (creating if necessary) the auth database under runeDir and
// runs all pending goose migrations.
func Open(runeDir string) (*Store, error) {
	dbPath := filepath.Join(runeDir, "auth.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	db.SetMaxOpenConns(1) // sqlite: single writer, matches objstore's advisory lock discipline

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}

	return &Store{db: db, audit: newAuditLogger(runeDir)}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func (s *Store) persistToken(tok Token) error {
	perms := encodePermissions(tok.Permissions)
	_, err := s.db.Exec(
		`INSERT INTO tokens (id, principal, permissions, issued_at, expires_at, revoked, secret_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tok.ID, tok.Principal, perms, tok.IssuedAt, tok.ExpiresAt, tok.Revoked, tok.SecretHash,
	)
	if err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return nil
}

func (s *Store) findTokenByHash(hash string) (Token, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, principal, permissions, issued_at, expires_at, revoked, secret_hash
		 FROM tokens WHERE secret_hash = ?`, hash,
	)
	tok, err := scanToken(row)
	if err == sql.ErrNoRows {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return tok, true, nil
}

func (s *Store) revokeToken(id string) error {
	_, err := s.db.Exec(`UPDATE tokens SET revoked = 1 WHERE id = ?`, id)
	if err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return nil
}

func scanToken(row *sql.Row) (Token, error) {
	var tok Token
	var perms string
	var expiresAt sql.NullInt64
	if err := row.Scan(&tok.ID, &tok.Principal, &perms, &tok.IssuedAt, &expiresAt, &tok.Revoked, &tok.SecretHash); err != nil {
		return Token{}, err
	}
	if expiresAt.Valid {
		v := expiresAt.Int64
		tok.ExpiresAt = &v
	}
	tok.Permissions = decodePermissions(perms)
	return tok, nil
}

func encodePermissions(perms map[Permission]bool) string {
	out := ""
	for p, ok := range perms {
		if !ok {
			continue
		}
		if out != "" {
			out += ","
		}
		out += string(p)
	}
	return out
}

func decodePermissions(s string) map[Permission]bool {
	out := map[Permission]bool{}
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out[Permission(s[start:i])] = true
			}
			start = i + 1
		}
	}
	return out
}
