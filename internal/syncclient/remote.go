package syncclient

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/rerr"
)

// Remote is one named sync endpoint, per spec.md §4.10: "Manages local
// remote entries keyed by name."
type Remote struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	AuthToken     string `json:"auth_token,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

const remotesFile = "remotes.json"

// RemoteRegistry persists named remotes under a repository's rune directory,
// one JSON file holding the whole set. Mirrors objstore's preference for
// plain encoded files over a database for small, infrequently-written
// repository-local config.
type RemoteRegistry struct {
	mu      sync.Mutex
	path    string
	remotes map[string]Remote
}

// OpenRegistry loads (or initializes) the remote registry for runeDir.
func OpenRegistry(runeDir string) (*RemoteRegistry, error) {
	path := filepath.Join(runeDir, remotesFile)
	reg := &RemoteRegistry{path: path, remotes: make(map[string]Remote)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	if len(data) == 0 {
		return reg, nil
	}
	var list []Remote
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	for _, r := range list {
		reg.remotes[r.Name] = r
	}
	return reg, nil
}

func (reg *RemoteRegistry) persist() error {
	list := make([]Remote, 0, len(reg.remotes))
	for _, r := range reg.remotes {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeDecodeError, err)
	}
	return hashio.AtomicWrite(reg.path, data, 0o644)
}

// Add registers or replaces a named remote.
func (reg *RemoteRegistry) Add(r Remote) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.remotes[r.Name] = r
	return reg.persist()
}

// Remove deletes a named remote, a no-op if it doesn't exist.
func (reg *RemoteRegistry) Remove(name string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.remotes, name)
	return reg.persist()
}

// Get returns the named remote, or false if it isn't registered.
func (reg *RemoteRegistry) Get(name string) (Remote, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.remotes[name]
	return r, ok
}

// List returns every registered remote, sorted by name.
func (reg *RemoteRegistry) List() []Remote {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	list := make([]Remote, 0, len(reg.remotes))
	for _, r := range reg.remotes {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
