package auth

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rune-vcs/rune/internal/rerr"
)

// Event is one audit-log record, matching spec.md §4.8's shape exactly:
// {timestamp, principal, action, resource, outcome}.
type Event struct {
	Timestamp int64  `json:"timestamp"`
	Principal string `json:"principal"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
	Outcome   string `json:"outcome"`
}

// auditLogger appends Events as line-delimited JSON, never truncating or
// rewriting prior entries, per spec.md §4.8's append-only requirement.
type auditLogger struct {
	mu   sync.Mutex
	path string
}

func newAuditLogger(runeDir string) *auditLogger {
	return &auditLogger{path: filepath.Join(runeDir, "audit.log")}
}

// Audit appends ev to the log, stamping Timestamp if unset. Failures to
// write the audit log are swallowed into the returned bool rather than
// surfaced as an operation failure — auditing must never block a caller
// that already passed or failed its permission check.
func (s *Store) Audit(ev Event) bool {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().Unix()
	}
	return s.audit.append(ev)
}

func (a *auditLogger) append(ev Event) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}
	defer f.Close()

	line, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	line = append(line, '\n')
	_, err = f.Write(line)
	return err == nil
}

// ReadAudit returns every event recorded in the audit log, in append order.
func (s *Store) ReadAudit() ([]Event, error) {
	data, err := os.ReadFile(s.audit.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}

	var events []Event
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			return nil, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
