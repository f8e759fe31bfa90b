package objstore

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/rerr"
)

// ReadStashes loads the stash stack, most-recently-pushed last.
func (r *Repository) ReadStashes() ([]StashEntry, error) {
	data, err := os.ReadFile(r.stashPath())
	if err != nil {
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	var list []StashEntry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	return list, nil
}

func (r *Repository) writeStashes(list []StashEntry) error {
	data, err := json.Marshal(list)
	if err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return hashio.AtomicWrite(r.stashPath(), data, 0o644)
}

// StashPush snapshots the current staging index as a tree, pushes it onto
// the stash stack with message, and clears the index (spec.md: stash moves
// staged changes out of the way without committing them).
func (r *Repository) StashPush(message string) (StashEntry, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return StashEntry{}, err
	}
	if len(idx) == 0 {
		return StashEntry{}, rerr.New(rerr.State, rerr.CodeNothingStaged, "")
	}

	treeID, err := r.buildTreeFromIndex(idx)
	if err != nil {
		return StashEntry{}, err
	}

	entry := StashEntry{TreeID: treeID, Message: message, CreatedAt: time.Now().Unix()}
	list, err := r.ReadStashes()
	if err != nil {
		return StashEntry{}, err
	}
	list = append(list, entry)
	if err := r.writeStashes(list); err != nil {
		return StashEntry{}, err
	}
	if err := r.ClearIndex(); err != nil {
		return StashEntry{}, err
	}
	return entry, nil
}

// StashApply re-stages the most recently pushed stash's tree without
// removing it from the stack. Fails with CodeStashConflict if the index
// already has staged changes, since applying would silently clobber them.
func (r *Repository) StashApply() (StashEntry, error) {
	list, err := r.ReadStashes()
	if err != nil {
		return StashEntry{}, err
	}
	if len(list) == 0 {
		return StashEntry{}, rerr.New(rerr.UserInput, rerr.CodeNotFound, "no stash entries")
	}

	idx, err := r.ReadIndex()
	if err != nil {
		return StashEntry{}, err
	}
	if len(idx) > 0 {
		return StashEntry{}, rerr.New(rerr.State, rerr.CodeStashConflict, "")
	}

	top := list[len(list)-1]
	if err := r.ResetIndexToTree(top.TreeID); err != nil {
		return StashEntry{}, err
	}
	return top, nil
}

// StashDrop removes the most recently pushed stash entry from the stack
// without applying it.
func (r *Repository) StashDrop() error {
	list, err := r.ReadStashes()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return rerr.New(rerr.UserInput, rerr.CodeNotFound, "no stash entries")
	}
	return r.writeStashes(list[:len(list)-1])
}
