package lfs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/rerr"
)

// Reason is the declared purpose of a lock, constraining which
// branch-switch inheritance policies release it.
type Reason string

const (
	ReasonDevelopment Reason = "development"
	ReasonRelease     Reason = "release"
	ReasonConflict    Reason = "conflict"
	ReasonLarge       Reason = "large"
)

// InheritancePolicy controls what happens to a principal's locks when they
// switch branches (spec.md §4.5/§4.7).
type InheritancePolicy string

const (
	// PolicyNone releases all locks the switching principal owns.
	PolicyNone InheritancePolicy = "none"
	// PolicySmart releases only locks tagged ReasonDevelopment.
	PolicySmart InheritancePolicy = "smart"
	// PolicyExplicit keeps all locks regardless of reason.
	PolicyExplicit InheritancePolicy = "explicit"
)

// Lock is one exclusive-path reservation.
type Lock struct {
	Path       string  `json:"path"`
	OwnerID    string  `json:"owner_id"`
	AcquiredAt int64   `json:"acquired_at"`
	ExpiresAt  *int64  `json:"expires_at,omitempty"`
	Reason     Reason  `json:"reason"`
}

func (l Lock) expired(now int64) bool {
	return l.ExpiresAt != nil && *l.ExpiresAt <= now
}

func (s *Store) locksPath() string { return filepath.Join(s.RuneDir, "lfs", "locks") }

// readLocks loads the registry as stored, expired entries included; Acquire
// and List skip expired records themselves.
func (s *Store) readLocks() ([]Lock, error) {
	data, err := os.ReadFile(s.locksPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	var list []Lock
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	return list, nil
}

func (s *Store) writeLocks(list []Lock) error {
	data, err := json.Marshal(list)
	if err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return hashio.AtomicWrite(s.locksPath(), data, 0o644)
}

// Acquire creates a lock on path for owner. It fails with CodeAlreadyLocked
// unless force is set (admin override) or the existing record is expired.
// Acquiring the same (path, owner) pair again is idempotent and returns the
// existing record, matching spec.md's idempotence requirement for
// `locks/acquire`.
func (s *Store) Acquire(path, owner string, reason Reason, ttl time.Duration, force bool) (Lock, error) {
	now := time.Now().Unix()
	list, err := s.readLocks()
	if err != nil {
		return Lock{}, err
	}

	kept := make([]Lock, 0, len(list))
	var existing *Lock
	for i := range list {
		l := list[i]
		if l.Path != path || l.expired(now) {
			if l.Path != path {
				kept = append(kept, l)
			}
			continue
		}
		existing = &list[i]
		kept = append(kept, l)
	}

	if existing != nil {
		if existing.OwnerID == owner {
			return *existing, nil
		}
		if !force {
			return Lock{}, rerr.New(rerr.State, rerr.CodeAlreadyLocked, path)
		}
		// Admin force-override: replace the existing record below.
		kept = removeLockPath(kept, path)
	}

	l := Lock{Path: path, OwnerID: owner, AcquiredAt: now, Reason: reason}
	if ttl > 0 {
		exp := now + int64(ttl.Seconds())
		l.ExpiresAt = &exp
	}
	kept = append(kept, l)

	if err := s.writeLocks(kept); err != nil {
		return Lock{}, err
	}
	return l, nil
}

func removeLockPath(list []Lock, path string) []Lock {
	out := list[:0]
	for _, l := range list {
		if l.Path != path {
			out = append(out, l)
		}
	}
	return out
}

// Release removes the lock on path. Fails with CodeNotLockOwner unless the
// caller is owner or force is set.
func (s *Store) Release(path, owner string, force bool) (bool, error) {
	list, err := s.readLocks()
	if err != nil {
		return false, err
	}

	found := false
	kept := make([]Lock, 0, len(list))
	for _, l := range list {
		if l.Path != path {
			kept = append(kept, l)
			continue
		}
		if l.OwnerID != owner && !force {
			return false, rerr.New(rerr.State, rerr.CodeNotLockOwner, path)
		}
		found = true
	}
	if !found {
		return false, nil
	}
	return true, s.writeLocks(kept)
}

// List returns every non-expired active lock.
func (s *Store) List() ([]Lock, error) {
	now := time.Now().Unix()
	list, err := s.readLocks()
	if err != nil {
		return nil, err
	}
	out := make([]Lock, 0, len(list))
	for _, l := range list {
		if !l.expired(now) {
			out = append(out, l)
		}
	}
	return out, nil
}

// ReleaseOnBranchSwitch applies policy to owner's locks, releasing those the
// policy designates, and returns the paths that were released (spec.md
// §4.7: "On branch switch, the registry applies an inheritance policy").
func (s *Store) ReleaseOnBranchSwitch(owner string, policy InheritancePolicy) ([]string, error) {
	if policy == PolicyExplicit {
		return nil, nil
	}

	list, err := s.readLocks()
	if err != nil {
		return nil, err
	}

	var released []string
	kept := make([]Lock, 0, len(list))
	for _, l := range list {
		if l.OwnerID != owner {
			kept = append(kept, l)
			continue
		}
		release := policy == PolicyNone || (policy == PolicySmart && l.Reason == ReasonDevelopment)
		if release {
			released = append(released, l.Path)
			continue
		}
		kept = append(kept, l)
	}

	if len(released) == 0 {
		return nil, nil
	}
	return released, s.writeLocks(kept)
}
