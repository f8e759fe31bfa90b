package objstore

import (
	"os"
	"strings"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/rerr"
)

const headSymbolicPrefix = "ref: refs/heads/"

// HeadState describes the HEAD state machine: either pointing at a branch
// (symbolic) or pinned to a specific commit (detached), per spec.md §4.5.
type HeadState struct {
	Branch   string // non-empty when symbolic
	CommitID Hash   // always populated; zero value means the branch has no commits yet
	Detached bool
}

func (r *Repository) writeHeadSymbolic(branch string) error {
	return hashio.AtomicWrite(r.headPath(), []byte(headSymbolicPrefix+branch+"\n"), 0o644)
}

func (r *Repository) writeHeadDetached(id Hash) error {
	return hashio.AtomicWrite(r.headPath(), []byte(string(id)+"\n"), 0o644)
}

// Head reads the current HEAD state, resolving a symbolic ref to its
// branch's commit id if the branch has one.
func (r *Repository) Head() (HeadState, error) {
	data, err := os.ReadFile(r.headPath())
	if err != nil {
		return HeadState{}, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	line := strings.TrimSpace(string(data))

	if strings.HasPrefix(line, headSymbolicPrefix) {
		branch := strings.TrimPrefix(line, headSymbolicPrefix)
		id, ok, err := r.readBranchRef(branch)
		if err != nil {
			return HeadState{}, err
		}
		if !ok {
			return HeadState{Branch: branch}, nil
		}
		return HeadState{Branch: branch, CommitID: id}, nil
	}

	id, err := hashio.ParseHash(line)
	if err != nil {
		return HeadState{}, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	return HeadState{Detached: true, CommitID: id}, nil
}

// CurrentCommit resolves HEAD all the way to a commit id, failing with
// CodeNotFound if the current branch has no commits yet.
func (r *Repository) CurrentCommit() (Hash, error) {
	h, err := r.Head()
	if err != nil {
		return "", err
	}
	if h.CommitID.Empty() {
		return "", rerr.New(rerr.State, rerr.CodeNotFound, "HEAD has no commits")
	}
	return h.CommitID, nil
}

func (r *Repository) branchRefPath(branch string) (string, error) {
	return hashio.ResolveWithinRoot(r.refsHeads(), branch)
}

func (r *Repository) readBranchRef(branch string) (Hash, bool, error) {
	path, err := r.branchRefPath(branch)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	id, err := hashio.ParseHash(strings.TrimSpace(string(data)))
	if err != nil {
		return "", false, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	return id, true, nil
}

func (r *Repository) writeBranchRef(branch string, id Hash) error {
	path, err := r.branchRefPath(branch)
	if err != nil {
		return err
	}
	return hashio.AtomicWrite(path, []byte(string(id)+"\n"), 0o644)
}

// BranchExists reports whether branch has a ref file, regardless of whether
// it has any commits.
func (r *Repository) BranchExists(branch string) bool {
	path, err := r.branchRefPath(branch)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// ListBranches returns every branch name, sorted.
func (r *Repository) ListBranches() ([]string, error) {
	entries, err := os.ReadDir(r.refsHeads())
	if err != nil {
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// CreateBranch creates branch pointing at startID. Fails with CodeBranchExists
// if the branch already has a ref.
func (r *Repository) CreateBranch(branch string, startID Hash) error {
	if r.BranchExists(branch) {
		return rerr.New(rerr.State, rerr.CodeBranchExists, branch)
	}
	return r.writeBranchRef(branch, startID)
}

// BranchHead returns the commit id branch currently points at, creating no
// ref as a side effect. The second return value is false if branch has no
// ref at all; a branch that exists but has no commits yet returns ("", true,
// nil). Used by the sync server to answer GET /sync/branches without
// needing a full Head() resolution for every name.
func (r *Repository) BranchHead(branch string) (Hash, bool, error) {
	if !r.BranchExists(branch) {
		return "", false, nil
	}
	id, _, err := r.readBranchRef(branch)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// SetBranchHead creates branch if absent and advances it to id directly,
// without touching HEAD or the staging index. Used by the sync server to
// land a validated push onto the target branch, per spec.md §4.9.
func (r *Repository) SetBranchHead(branch string, id Hash) error {
	return r.writeBranchRef(branch, id)
}

// DeleteBranch removes branch's ref. Fails with CodeBranchIsCurrent if HEAD
// symbolically points at it.
func (r *Repository) DeleteBranch(branch string) error {
	head, err := r.Head()
	if err != nil {
		return err
	}
	if !head.Detached && head.Branch == branch {
		return rerr.New(rerr.State, rerr.CodeBranchIsCurrent, branch)
	}
	if !r.BranchExists(branch) {
		return rerr.New(rerr.UserInput, rerr.CodeBranchNotFound, branch)
	}
	path, err := r.branchRefPath(branch)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return nil
}

// SwitchBranch moves HEAD to branch symbolically. It does not touch the
// working tree or index; callers perform checkout separately.
func (r *Repository) SwitchBranch(branch string) error {
	if !r.BranchExists(branch) {
		return rerr.New(rerr.UserInput, rerr.CodeBranchNotFound, branch)
	}
	return r.writeHeadSymbolic(branch)
}

// DetachHead moves HEAD to point directly at id.
func (r *Repository) DetachHead(id Hash) error {
	return r.writeHeadDetached(id)
}

// advanceHead records id as the new commit for the current branch (or moves
// detached HEAD directly), as the final step of Commit/fast-forward/merge.
func (r *Repository) advanceHead(id Hash) error {
	head, err := r.Head()
	if err != nil {
		return err
	}
	if head.Detached {
		return r.writeHeadDetached(id)
	}
	return r.writeBranchRef(head.Branch, id)
}
